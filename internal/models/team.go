package models

import "time"

// Team groups users that share meetings and integrations.
type Team struct {
	ID                  string    `json:"id" gorm:"primaryKey"`
	Name                string    `json:"name" gorm:"not null"`
	CreatorID           string    `json:"creator_id" gorm:"not null"`
	InviteCode          string    `json:"invite_code" gorm:"uniqueIndex;not null"`
	InviteCodeExpiresAt time.Time `json:"invite_code_expires_at" gorm:"not null"`
	InviteCodeUpdatedAt time.Time `json:"invite_code_updated_at" gorm:"not null"`
	CreatedAt           time.Time `json:"created_at"`
}

// TableName specifies the table name for Team
func (Team) TableName() string {
	return "teams"
}

// InviteCodeExpired reports whether the invite code may still be used to join.
func (t *Team) InviteCodeExpired(now time.Time) bool {
	return !now.Before(t.InviteCodeExpiresAt)
}

// TeamMember is one row per (team, user). The composite key makes joining an
// atomic add-to-set.
type TeamMember struct {
	TeamID   string    `json:"team_id" gorm:"primaryKey"`
	UserID   string    `json:"user_id" gorm:"primaryKey"`
	JoinedAt time.Time `json:"joined_at" gorm:"not null"`
}

// TableName specifies the table name for TeamMember
func (TeamMember) TableName() string {
	return "team_members"
}

// Member is a team member as shown to other members.
type Member struct {
	UserID   string    `json:"uid"`
	Email    string    `json:"email"`
	Name     string    `json:"name"`
	IsLeader bool      `json:"is_leader"`
	JoinedAt time.Time `json:"joined_at"`
}
