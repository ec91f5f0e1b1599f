package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"github.com/aerius-app/aerius/internal/auth"
)

type hubFixture struct {
	hub    *Hub
	issuer *auth.Issuer
	url    string
	ctx    context.Context
}

func newHubFixture(t *testing.T, teams map[string]string) *hubFixture {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	issuer := auth.NewIssuer("0123456789abcdef0123456789abcdef", time.Hour)
	hub := NewHub(issuer, func(ctx context.Context, userID string) (string, error) {
		return teams[userID], nil
	}, nil)
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(srv.Close)

	return &hubFixture{hub: hub, issuer: issuer, url: "ws" + strings.TrimPrefix(srv.URL, "http"), ctx: ctx}
}

func (f *hubFixture) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	token, _, err := f.issuer.Issue(userID)
	require.NoError(t, err)

	conn, _, err := websocket.Dial(f.ctx, f.url+"?token="+token, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHubRoutesEventsByTeam(t *testing.T) {
	f := newHubFixture(t, map[string]string{"u1": "T1", "u2": "T2", "u3": "T1"})

	c1 := f.dial(t, "u1")
	c2 := f.dial(t, "u2")
	c3 := f.dial(t, "u3")
	require.Eventually(t, func() bool { return f.hub.ClientCount() == 3 }, 2*time.Second, 10*time.Millisecond)

	f.hub.PublishTeam("T2", "team.member_joined", map[string]string{"user_id": "u9"})
	f.hub.PublishTeam("T1", "integration.connected", map[string]string{"provider": "slack"})

	msg := read(t, c1)
	assert.Equal(t, "integration.connected", msg.Type)
	assert.JSONEq(t, `{"provider":"slack"}`, string(msg.Payload))

	assert.Equal(t, "integration.connected", read(t, c3).Type)
	assert.Equal(t, "team.member_joined", read(t, c2).Type)
}

func TestHubPing(t *testing.T) {
	f := newHubFixture(t, map[string]string{"u1": "T1"})
	conn := f.dial(t, "u1")

	require.NoError(t, conn.Write(f.ctx, websocket.MessageText, []byte(`{"type":"ping","payload":{}}`)))
	assert.Equal(t, "pong", read(t, conn).Type)
}

func TestHubRejects(t *testing.T) {
	f := newHubFixture(t, map[string]string{"u1": "T1"})

	_, resp, err := websocket.Dial(f.ctx, f.url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.Dial(f.ctx, f.url+"?token=forged", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, _, err := f.issuer.Issue("teamless")
	require.NoError(t, err)
	_, resp, err = websocket.Dial(f.ctx, f.url+"?token="+token, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestPublishNeverBlocks(t *testing.T) {
	hub := NewHub(auth.NewIssuer("0123456789abcdef0123456789abcdef", time.Hour), nil, nil)

	done := make(chan struct{})
	go func() {
		// Run is not started, so the queue fills and the rest are dropped.
		for i := 0; i < 1000; i++ {
			hub.PublishTeam("T1", "team.member_joined", map[string]int{"i": i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("PublishTeam blocked")
	}
}

func TestDropMemberStopsDelivery(t *testing.T) {
	f := newHubFixture(t, map[string]string{"removed": "T1", "stays": "T1", "mover": "T2"})

	removed := f.dial(t, "removed")
	stays := f.dial(t, "stays")
	mover := f.dial(t, "mover")
	require.Eventually(t, func() bool { return f.hub.ClientCount() == 3 }, 2*time.Second, 10*time.Millisecond)

	f.hub.DropMember("T2", "removed")
	assert.Equal(t, 3, f.hub.ClientCount())

	f.hub.DropMember("T1", "removed")
	f.hub.DropMember("", "mover")
	assert.Equal(t, 1, f.hub.ClientCount())

	f.hub.PublishTeam("T1", "integration.connected", map[string]string{"provider": "slack"})
	f.hub.PublishTeam("T2", "integration.connected", map[string]string{"provider": "jira"})
	assert.Equal(t, "integration.connected", read(t, stays).Type)

	for _, conn := range []*websocket.Conn{removed, mover} {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, _, err := conn.Read(ctx)
		cancel()
		require.Error(t, err)
		assert.Equal(t, websocket.StatusPolicyViolation, websocket.CloseStatus(err))
	}
}
