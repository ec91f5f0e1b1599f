// Package meeting serves the meetings recorded by a team.
package meeting

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/aerius-app/aerius/internal/models"
	"github.com/aerius-app/aerius/internal/store"
	"github.com/aerius-app/aerius/internal/validation"
)

// PageSize is the number of meetings per page.
const PageSize = 20

// EventMeetingCreated is published to the team when a meeting is recorded.
const EventMeetingCreated = "meeting.created"

var (
	ErrNotFound      = errors.New("meeting not found")
	ErrInvalidCursor = errors.New("invalid cursor")
	ErrInvalidTitle  = errors.New("meeting title is required and at most 200 characters")
)

// Publisher delivers events to the members of a team.
type Publisher interface {
	PublishTeam(teamID, eventType string, payload interface{})
}

type nopPublisher struct{}

func (nopPublisher) PublishTeam(string, string, interface{}) {}

// Page is one page of meetings, newest first. NextCursor is empty on the
// last page.
type Page struct {
	Meetings   []models.Meeting `json:"meetings"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

// Service reads and records meetings.
type Service struct {
	store     *store.Store
	publisher Publisher
	now       func() time.Time
}

// NewService creates a meeting service. publisher may be nil.
func NewService(st *store.Store, publisher Publisher) *Service {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &Service{
		store:     st,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// List returns the page of teamID's meetings that follows cursor. An empty
// cursor starts at the newest meeting.
func (s *Service) List(ctx context.Context, teamID, cursor string) (*Page, error) {
	var after *store.MeetingCursor
	if cursor != "" {
		decoded, err := DecodeCursor(cursor)
		if err != nil {
			return nil, err
		}
		after = decoded
	}

	// One extra row tells whether another page exists.
	meetings, err := s.store.ListMeetings(ctx, teamID, after, PageSize+1)
	if err != nil {
		return nil, fmt.Errorf("failed to list meetings: %w", err)
	}

	page := &Page{Meetings: meetings}
	if len(meetings) > PageSize {
		page.Meetings = meetings[:PageSize]
		last := page.Meetings[PageSize-1]
		page.NextCursor = EncodeCursor(store.MeetingCursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	if page.Meetings == nil {
		page.Meetings = []models.Meeting{}
	}
	return page, nil
}

// Get returns one of teamID's meetings with its transcript.
func (s *Service) Get(ctx context.Context, teamID, id string) (*models.Meeting, error) {
	m, err := s.store.GetMeeting(ctx, teamID, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load meeting: %w", err)
	}
	return m, nil
}

// Create records a meeting for teamID on behalf of userID.
func (s *Service) Create(ctx context.Context, teamID, userID string, m *models.Meeting) (*models.Meeting, error) {
	if err := validation.Var(m.Title, "notblank,max=200"); err != nil {
		return nil, ErrInvalidTitle
	}

	m.ID = ""
	m.TeamID = teamID
	m.CreatedBy = userID
	m.Title = strings.TrimSpace(m.Title)
	m.CreatedAt = s.now()
	if err := s.store.CreateMeeting(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to create meeting: %w", err)
	}

	log.WithFields(log.Fields{"team_id": teamID, "meeting_id": m.ID}).Info("Meeting: recorded")
	s.publisher.PublishTeam(teamID, EventMeetingCreated, map[string]string{"id": m.ID, "title": m.Title})
	return m, nil
}

type cursorPayload struct {
	CreatedAt time.Time `json:"t"`
	ID        string    `json:"id"`
}

// EncodeCursor serializes c as an opaque token.
func EncodeCursor(c store.MeetingCursor) string {
	raw, _ := json.Marshal(cursorPayload{CreatedAt: c.CreatedAt.UTC(), ID: c.ID})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor parses a token made by EncodeCursor.
func DecodeCursor(value string) (*store.MeetingCursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	var p cursorPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.ID == "" || p.CreatedAt.IsZero() {
		return nil, ErrInvalidCursor
	}
	return &store.MeetingCursor{CreatedAt: p.CreatedAt, ID: p.ID}, nil
}
