package models

import "time"

// Meeting processing states.
const (
	MeetingProcessing  = "processing"
	MeetingTranscribed = "transcribed"
	MeetingResolving   = "resolving"
	MeetingCompleted   = "completed"
)

// TranscriptSegment is one speaker turn.
type TranscriptSegment struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
	StartMs int64  `json:"start_ms"`
	EndMs   int64  `json:"end_ms"`
}

// Meeting is a recorded team meeting. List queries leave Transcript and
// SpeakerMap unloaded.
type Meeting struct {
	ID         string              `json:"id" gorm:"primaryKey"`
	TeamID     string              `json:"team_id" gorm:"not null;index:idx_meetings_team_created,priority:1"`
	Title      string              `json:"title" gorm:"not null"`
	Status     string              `json:"status" gorm:"not null;default:processing"`
	DurationMs int64               `json:"duration_ms" gorm:"not null;default:0"`
	Transcript []TranscriptSegment `json:"transcript,omitempty" gorm:"serializer:json;type:text"`
	SpeakerMap map[string]string   `json:"speaker_map,omitempty" gorm:"serializer:json;type:text"`
	CreatedBy  string              `json:"created_by" gorm:"not null"`
	CreatedAt  time.Time           `json:"created_at" gorm:"index:idx_meetings_team_created,priority:2"`
}

// TableName specifies the table name for Meeting
func (Meeting) TableName() string {
	return "meetings"
}
