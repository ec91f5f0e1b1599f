package store_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aerius-app/aerius/internal/models"
	"github.com/aerius-app/aerius/internal/store"
	"github.com/aerius-app/aerius/internal/testutil"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	return store.New(testutil.NewDB(t))
}

func createUser(t *testing.T, s *store.Store, email string) *models.User {
	t.Helper()
	u := &models.User{Email: email, Name: email, PasswordHash: "hash"}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func createTeam(t *testing.T, s *store.Store, creator *models.User, code string, expiresAt time.Time) *models.Team {
	t.Helper()
	team := &models.Team{
		Name:                "Platform",
		CreatorID:           creator.ID,
		InviteCode:          code,
		InviteCodeExpiresAt: expiresAt,
		InviteCodeUpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.CreateTeam(context.Background(), team))
	return team
}

func TestUsers(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	u := createUser(t, s, "Ada@Example.com ")
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "ada@example.com", u.Email)

	got, err := s.GetUserByEmail(ctx, "ADA@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = s.GetUserByID(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = s.CreateUser(ctx, &models.User{Email: "ada@example.com", PasswordHash: "x"})
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func TestCreateTeamAddsCreator(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	creator := createUser(t, s, "lead@example.com")
	team := createTeam(t, s, creator, "ABCD2345", time.Now().Add(time.Hour))

	ok, err := s.IsMember(ctx, team.ID, creator.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	u, err := s.GetUserByID(ctx, creator.ID)
	require.NoError(t, err)
	require.NotNil(t, u.TeamID)
	assert.Equal(t, team.ID, *u.TeamID)

	members, err := s.ListMembers(ctx, team)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.True(t, members[0].IsLeader)
	assert.Equal(t, "lead@example.com", members[0].Email)

	other := createUser(t, s, "other@example.com")
	dup := &models.Team{Name: "Dup", CreatorID: other.ID, InviteCode: "ABCD2345", InviteCodeExpiresAt: time.Now()}
	assert.ErrorIs(t, s.CreateTeam(ctx, dup), store.ErrDuplicate)
}

func TestJoinByCode(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	creator := createUser(t, s, "lead@example.com")
	team := createTeam(t, s, creator, "JOIN2345", now.Add(time.Hour))
	member := createUser(t, s, "member@example.com")

	joined, err := s.JoinByCode(ctx, "JOIN2345", member.ID, now)
	require.NoError(t, err)
	assert.Equal(t, team.ID, joined.ID)

	_, err = s.JoinByCode(ctx, "JOIN2345", member.ID, now)
	assert.ErrorIs(t, err, store.ErrAlreadyMember)

	u, err := s.GetUserByID(ctx, member.ID)
	require.NoError(t, err)
	require.NotNil(t, u.TeamID)
	assert.Equal(t, team.ID, *u.TeamID)

	members, err := s.ListMembers(ctx, team)
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

func TestJoinByUnknownCodeWritesNothing(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	creator := createUser(t, s, "lead@example.com")
	team := createTeam(t, s, creator, "REAL2345", time.Now().Add(time.Hour))
	member := createUser(t, s, "member@example.com")

	_, err := s.JoinByCode(ctx, "FAKE2345", member.ID, time.Now())
	assert.ErrorIs(t, err, store.ErrNotFound)

	u, err := s.GetUserByID(ctx, member.ID)
	require.NoError(t, err)
	assert.Nil(t, u.TeamID)

	members, err := s.ListMembers(ctx, team)
	require.NoError(t, err)
	assert.Len(t, members, 1)
}

func TestJoinByExpiredCode(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	creator := createUser(t, s, "lead@example.com")
	createTeam(t, s, creator, "OLDC2345", now.Add(-time.Minute))
	member := createUser(t, s, "member@example.com")

	_, err := s.JoinByCode(ctx, "OLDC2345", member.ID, now)
	assert.ErrorIs(t, err, store.ErrCodeExpired)
}

func TestConcurrentJoinsKeepEveryMember(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	creator := createUser(t, s, "lead@example.com")
	team := createTeam(t, s, creator, "RACE2345", now.Add(time.Hour))

	const n = 12
	users := make([]*models.User, n)
	for i := range users {
		users[i] = createUser(t, s, fmt.Sprintf("user%d@example.com", i))
	}

	var wg sync.WaitGroup
	errs := make(chan error, n*2)
	for _, u := range users {
		// Each user joins twice at once; exactly one must win.
		for j := 0; j < 2; j++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				_, err := s.JoinByCode(ctx, "RACE2345", id, now)
				errs <- err
			}(u.ID)
		}
	}
	wg.Wait()
	close(errs)

	var ok, already int
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		require.ErrorIs(t, err, store.ErrAlreadyMember)
		already++
	}
	assert.Equal(t, n, ok)
	assert.Equal(t, n, already)

	members, err := s.ListMembers(ctx, team)
	require.NoError(t, err)
	assert.Len(t, members, n+1)
}

func TestRegenerateCode(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	creator := createUser(t, s, "lead@example.com")
	team := createTeam(t, s, creator, "FIRST234", now.Add(time.Hour))
	member := createUser(t, s, "member@example.com")
	_, err := s.JoinByCode(ctx, "FIRST234", member.ID, now)
	require.NoError(t, err)

	err = s.RegenerateCode(ctx, team.ID, member.ID, "STOLEN23", now.Add(time.Hour), now)
	assert.ErrorIs(t, err, store.ErrNotCreator)

	err = s.RegenerateCode(ctx, "missing", creator.ID, "NOPE2345", now.Add(time.Hour), now)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.RegenerateCode(ctx, team.ID, creator.ID, "SECOND23", now.Add(2*time.Hour), now))

	got, err := s.GetTeam(ctx, team.ID)
	require.NoError(t, err)
	assert.Equal(t, "SECOND23", got.InviteCode)

	late := createUser(t, s, "late@example.com")
	_, err = s.JoinByCode(ctx, "FIRST234", late.ID, now)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.JoinByCode(ctx, "SECOND23", late.ID, now)
	assert.NoError(t, err)
}

func TestRemoveMember(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	creator := createUser(t, s, "lead@example.com")
	team := createTeam(t, s, creator, "REMV2345", now.Add(time.Hour))
	member := createUser(t, s, "member@example.com")
	_, err := s.JoinByCode(ctx, "REMV2345", member.ID, now)
	require.NoError(t, err)

	assert.ErrorIs(t, s.RemoveMember(ctx, team.ID, member.ID, creator.ID), store.ErrNotCreator)
	require.NoError(t, s.RemoveMember(ctx, team.ID, creator.ID, member.ID))
	assert.ErrorIs(t, s.RemoveMember(ctx, team.ID, creator.ID, member.ID), store.ErrNotFound)

	ok, err := s.IsMember(ctx, team.ID, member.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	u, err := s.GetUserByID(ctx, member.ID)
	require.NoError(t, err)
	assert.Nil(t, u.TeamID)
}

func TestIntegrationLifecycle(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	refresh := "enc-refresh"
	rec := &models.Integration{
		TeamID:       "T1",
		Provider:     "jira",
		AccessToken:  "enc-access",
		RefreshToken: &refresh,
		Scope:        "read:jira-work",
		Metadata:     map[string]string{"cloudId": "c-1"},
	}
	require.NoError(t, s.UpsertIntegration(ctx, rec))
	firstID := rec.ID
	assert.True(t, rec.Connected)

	require.NoError(t, s.UpsertIntegration(ctx, &models.Integration{TeamID: "T1", Provider: "slack", AccessToken: "enc-slack"}))

	require.NoError(t, s.DisconnectIntegration(ctx, "T1", "jira", time.Now().UTC()))
	got, err := s.GetIntegration(ctx, "T1", "jira")
	require.NoError(t, err)
	assert.False(t, got.Connected)
	assert.NotNil(t, got.DisconnectedAt)
	assert.Equal(t, "enc-access", got.AccessToken)

	again := &models.Integration{TeamID: "T1", Provider: "jira", AccessToken: "enc-access-2", Metadata: map[string]string{"cloudId": "c-2"}}
	require.NoError(t, s.UpsertIntegration(ctx, again))
	assert.Equal(t, firstID, again.ID)
	assert.True(t, again.Connected)
	assert.Nil(t, again.DisconnectedAt)
	assert.Nil(t, again.RefreshToken)
	assert.Equal(t, "c-2", again.Metadata["cloudId"])

	list, err := s.ListIntegrations(ctx, "T1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "jira", list[0].Provider)
	assert.Equal(t, "slack", list[1].Provider)

	counts, err := s.CountConnected(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts["jira"])
	assert.Equal(t, int64(1), counts["slack"])

	assert.ErrorIs(t, s.DisconnectIntegration(ctx, "T2", "jira", time.Now()), store.ErrNotFound)
	_, err = s.GetIntegration(ctx, "T2", "jira")
	assert.ErrorIs(t, err, store.ErrNotFound)

	empty, err := s.ListIntegrations(ctx, "T2")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStateConsumedOnce(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.IssueState(ctx, &models.OAuthState{
		Nonce: "n-1", TeamID: "T1", Provider: "github", UserID: "U1", Setup: true,
		CreatedAt: now, ExpiresAt: now.Add(10 * time.Minute),
	}))

	st, err := s.ConsumeState(ctx, "n-1", now)
	require.NoError(t, err)
	assert.Equal(t, "T1", st.TeamID)
	assert.True(t, st.Setup)

	_, err = s.ConsumeState(ctx, "n-1", now)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.ConsumeState(ctx, "unknown", now)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestExpiredStates(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i, exp := range []time.Time{now.Add(-time.Minute), now.Add(-time.Second), now.Add(time.Minute)} {
		require.NoError(t, s.IssueState(ctx, &models.OAuthState{
			Nonce: fmt.Sprintf("n-%d", i), TeamID: "T1", Provider: "slack", UserID: "U1",
			CreatedAt: now, ExpiresAt: exp,
		}))
	}

	_, err := s.ConsumeState(ctx, "n-0", now)
	assert.ErrorIs(t, err, store.ErrNotFound)

	deleted, err := s.DeleteExpiredStates(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = s.ConsumeState(ctx, "n-2", now)
	assert.NoError(t, err)
}

func TestUpdateProfile(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	u := createUser(t, s, "grace@example.com")
	assert.False(t, u.SetupCompleted)

	name := "  Grace Hopper "
	got, err := s.UpdateProfile(ctx, u.ID, store.ProfileUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Grace Hopper", got.Name)
	assert.False(t, got.SetupCompleted)

	done := true
	got, err = s.UpdateProfile(ctx, u.ID, store.ProfileUpdate{SetupCompleted: &done})
	require.NoError(t, err)
	assert.Equal(t, "Grace Hopper", got.Name)
	assert.True(t, got.SetupCompleted)

	_, err = s.UpdateProfile(ctx, "missing", store.ProfileUpdate{SetupCompleted: &done})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListMeetingsPages(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	leader := createUser(t, s, "lead@example.com")
	team := createTeam(t, s, leader, "ABCDEFGH", time.Now().Add(time.Hour))
	other := createTeam(t, s, createUser(t, s, "other@example.com"), "HGFEDCBA", time.Now().Add(time.Hour))

	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.CreateMeeting(ctx, &models.Meeting{
			ID:         fmt.Sprintf("m%d", i),
			TeamID:     team.ID,
			Title:      fmt.Sprintf("Standup %d", i),
			DurationMs: 60000,
			Transcript: []models.TranscriptSegment{{Speaker: "A", Text: "hi", StartMs: 0, EndMs: 900}},
			CreatedBy:  leader.ID,
			CreatedAt:  base.Add(time.Duration(i) * time.Hour),
		}))
	}
	// Same instant as m4; the id breaks the tie.
	require.NoError(t, s.CreateMeeting(ctx, &models.Meeting{ID: "m9", TeamID: team.ID, Title: "Retro", CreatedBy: leader.ID, CreatedAt: base.Add(4 * time.Hour)}))
	require.NoError(t, s.CreateMeeting(ctx, &models.Meeting{TeamID: other.ID, Title: "Elsewhere", CreatedBy: other.CreatorID}))

	ids := func(list []models.Meeting) []string {
		out := make([]string, 0, len(list))
		for _, m := range list {
			out = append(out, m.ID)
		}
		return out
	}

	first, err := s.ListMeetings(ctx, team.ID, nil, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"m9", "m4", "m3"}, ids(first))
	assert.Nil(t, first[1].Transcript)
	assert.Equal(t, models.MeetingProcessing, first[0].Status)

	last := first[len(first)-1]
	rest, err := s.ListMeetings(ctx, team.ID, &store.MeetingCursor{CreatedAt: last.CreatedAt, ID: last.ID}, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"m2", "m1", "m0"}, ids(rest))

	last = rest[len(rest)-1]
	empty, err := s.ListMeetings(ctx, team.ID, &store.MeetingCursor{CreatedAt: last.CreatedAt, ID: last.ID}, 3)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGetMeeting(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	leader := createUser(t, s, "lead@example.com")
	team := createTeam(t, s, leader, "ABCDEFGH", time.Now().Add(time.Hour))

	m := &models.Meeting{
		TeamID:     team.ID,
		Title:      "Planning",
		Transcript: []models.TranscriptSegment{{Speaker: "SPEAKER_0", Text: "Ship it", StartMs: 10, EndMs: 2000}},
		SpeakerMap: map[string]string{"SPEAKER_0": "Ada"},
		CreatedBy:  leader.ID,
	}
	require.NoError(t, s.CreateMeeting(ctx, m))
	assert.NotEmpty(t, m.ID)

	got, err := s.GetMeeting(ctx, team.ID, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "Planning", got.Title)
	assert.Equal(t, m.Transcript, got.Transcript)
	assert.Equal(t, "Ada", got.SpeakerMap["SPEAKER_0"])

	_, err = s.GetMeeting(ctx, "another-team", m.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetMeeting(ctx, team.ID, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
