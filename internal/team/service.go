// Package team implements teams and the invite code membership protocol.
package team

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/aerius-app/aerius/internal/metrics"
	"github.com/aerius-app/aerius/internal/models"
	"github.com/aerius-app/aerius/internal/store"
	"github.com/aerius-app/aerius/internal/validation"
)

const maxCodeAttempts = 5

// Event types published to team members.
const (
	EventMemberJoined          = "team.member_joined"
	EventMemberRemoved         = "team.member_removed"
	EventInviteCodeRegenerated = "team.invite_code_regenerated"
)

var (
	ErrInvalidName   = errors.New("team name is required and at most 100 characters")
	ErrInvalidCode   = errors.New("invalid invite code")
	ErrCodeExpired   = errors.New("invite code has expired")
	ErrAlreadyMember = errors.New("already a member of this team")
	ErrNotCreator    = errors.New("only the team creator can do this")
	ErrNotMember     = errors.New("not a member of this team")
	ErrNotFound      = errors.New("team not found")
	ErrRemoveCreator = errors.New("the team creator cannot be removed")
)

// Publisher delivers events to the members of a team.
type Publisher interface {
	PublishTeam(teamID, eventType string, payload interface{})
	// DropMember ends userID's event streams for teamID, or all of the
	// user's streams when teamID is empty.
	DropMember(teamID, userID string)
}

type nopPublisher struct{}

func (nopPublisher) PublishTeam(string, string, interface{}) {}
func (nopPublisher) DropMember(string, string)               {}

// Service coordinates team mutations.
type Service struct {
	store     *store.Store
	publisher Publisher
	codeTTL   time.Duration

	now     func() time.Time
	newCode func() (string, error)
}

// NewService creates a team service. publisher may be nil.
func NewService(st *store.Store, publisher Publisher, codeTTL time.Duration) *Service {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &Service{
		store:     st,
		publisher: publisher,
		codeTTL:   codeTTL,
		now:       func() time.Time { return time.Now().UTC() },
		newCode:   GenerateCode,
	}
}

// CreateTeam creates a team owned by creatorID with a fresh invite code.
func (s *Service) CreateTeam(ctx context.Context, name, creatorID string) (*models.Team, error) {
	if err := validation.Var(name, "notblank,max=100"); err != nil {
		return nil, ErrInvalidName
	}
	name = strings.TrimSpace(name)

	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return nil, err
		}

		now := s.now()
		team := &models.Team{
			Name:                name,
			CreatorID:           creatorID,
			InviteCode:          code,
			InviteCodeExpiresAt: now.Add(s.codeTTL),
			InviteCodeUpdatedAt: now,
			CreatedAt:           now,
		}

		err = s.store.CreateTeam(ctx, team)
		if err == nil {
			log.WithFields(log.Fields{"team_id": team.ID, "user_id": creatorID}).Info("Team: created")
			// The creator's current team changed.
			s.publisher.DropMember("", creatorID)
			return team, nil
		}
		if !errors.Is(err, store.ErrDuplicate) {
			return nil, fmt.Errorf("failed to create team: %w", err)
		}
		log.WithField("attempt", attempt).Warn("Team: invite code collision, retrying")
	}

	return nil, fmt.Errorf("failed to create team: no unique invite code after %d attempts", maxCodeAttempts)
}

// JoinTeam adds userID to the team whose invite code matches code.
func (s *Service) JoinTeam(ctx context.Context, code, userID string) (*models.Team, error) {
	code = NormalizeCode(code)
	if !ValidCode(code) {
		metrics.TeamJoins.WithLabelValues("invalid_code").Inc()
		return nil, ErrInvalidCode
	}

	team, err := s.store.JoinByCode(ctx, code, userID, s.now())
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		metrics.TeamJoins.WithLabelValues("invalid_code").Inc()
		return nil, ErrInvalidCode
	case errors.Is(err, store.ErrCodeExpired):
		metrics.TeamJoins.WithLabelValues("expired").Inc()
		return nil, ErrCodeExpired
	case errors.Is(err, store.ErrAlreadyMember):
		metrics.TeamJoins.WithLabelValues("already_member").Inc()
		return nil, ErrAlreadyMember
	default:
		metrics.TeamJoins.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to join team: %w", err)
	}

	metrics.TeamJoins.WithLabelValues("success").Inc()
	log.WithFields(log.Fields{"team_id": team.ID, "user_id": userID}).Info("Team: member joined")
	s.publisher.DropMember("", userID)
	s.publisher.PublishTeam(team.ID, EventMemberJoined, map[string]string{"user_id": userID})
	return team, nil
}

// RegenerateCode replaces the team's invite code. The previous code stops
// working immediately.
func (s *Service) RegenerateCode(ctx context.Context, teamID, requesterID string) (*models.Team, error) {
	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return nil, err
		}

		now := s.now()
		err = s.store.RegenerateCode(ctx, teamID, requesterID, code, now.Add(s.codeTTL), now)
		switch {
		case err == nil:
			team, err := s.store.GetTeam(ctx, teamID)
			if err != nil {
				return nil, fmt.Errorf("failed to load team: %w", err)
			}
			log.WithField("team_id", teamID).Info("Team: invite code regenerated")
			s.publisher.PublishTeam(teamID, EventInviteCodeRegenerated, map[string]string{"team_id": teamID})
			return team, nil
		case errors.Is(err, store.ErrNotFound):
			return nil, ErrNotFound
		case errors.Is(err, store.ErrNotCreator):
			return nil, ErrNotCreator
		case !errors.Is(err, store.ErrDuplicate):
			return nil, fmt.Errorf("failed to regenerate invite code: %w", err)
		}
	}

	return nil, fmt.Errorf("failed to regenerate invite code: no unique code after %d attempts", maxCodeAttempts)
}

// RemoveMember removes memberID from the team. Only the creator may do this
// and the creator cannot remove themselves.
func (s *Service) RemoveMember(ctx context.Context, teamID, requesterID, memberID string) error {
	team, err := s.store.GetTeam(ctx, teamID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if team.CreatorID != requesterID {
		return ErrNotCreator
	}
	if memberID == requesterID {
		return ErrRemoveCreator
	}

	err = s.store.RemoveMember(ctx, teamID, requesterID, memberID)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, store.ErrNotCreator):
		return ErrNotCreator
	default:
		return fmt.Errorf("failed to remove member: %w", err)
	}

	log.WithFields(log.Fields{"team_id": teamID, "user_id": memberID}).Info("Team: member removed")
	s.publisher.DropMember(teamID, memberID)
	s.publisher.PublishTeam(teamID, EventMemberRemoved, map[string]string{"user_id": memberID})
	return nil
}

// Get returns a team and its members as seen by requesterID, who must be a
// member.
func (s *Service) Get(ctx context.Context, teamID, requesterID string) (*models.Team, []models.Member, error) {
	team, err := s.store.GetTeam(ctx, teamID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	if err := s.RequireMember(ctx, teamID, requesterID); err != nil {
		return nil, nil, err
	}

	members, err := s.store.ListMembers(ctx, team)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list members: %w", err)
	}
	return team, members, nil
}

// RequireMember returns ErrNotMember unless userID belongs to teamID.
func (s *Service) RequireMember(ctx context.Context, teamID, userID string) error {
	ok, err := s.store.IsMember(ctx, teamID, userID)
	if err != nil {
		return fmt.Errorf("failed to check membership: %w", err)
	}
	if !ok {
		return ErrNotMember
	}
	return nil
}
