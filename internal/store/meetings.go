package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/aerius-app/aerius/internal/models"
)

// MeetingCursor is the position of the last meeting of a page.
type MeetingCursor struct {
	CreatedAt time.Time
	ID        string
}

// CreateMeeting inserts a meeting.
func (s *Store) CreateMeeting(ctx context.Context, meeting *models.Meeting) error {
	if meeting.ID == "" {
		meeting.ID = uuid.NewString()
	}
	if meeting.CreatedAt.IsZero() {
		meeting.CreatedAt = time.Now().UTC()
	}
	if meeting.Status == "" {
		meeting.Status = models.MeetingProcessing
	}
	return translate(s.db.WithContext(ctx).Create(meeting).Error)
}

// ListMeetings returns up to limit meetings of teamID, newest first, starting
// after the cursor when one is given. Ties on created_at are ordered by id.
// Transcripts are not loaded.
func (s *Store) ListMeetings(ctx context.Context, teamID string, after *MeetingCursor, limit int) ([]models.Meeting, error) {
	query := s.db.WithContext(ctx).
		Omit("transcript", "speaker_map").
		Where("team_id = ?", teamID)
	if after != nil {
		query = query.Where("(created_at < ? OR (created_at = ? AND id < ?))", after.CreatedAt, after.CreatedAt, after.ID)
	}

	var meetings []models.Meeting
	err := query.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&meetings).Error
	if err != nil {
		return nil, err
	}
	return meetings, nil
}

// GetMeeting loads one meeting of teamID. Meetings of other teams are
// reported as ErrNotFound.
func (s *Store) GetMeeting(ctx context.Context, teamID, id string) (*models.Meeting, error) {
	var meeting models.Meeting
	err := s.db.WithContext(ctx).Where("team_id = ? AND id = ?", teamID, id).First(&meeting).Error
	if err != nil {
		return nil, translate(err)
	}
	return &meeting, nil
}
