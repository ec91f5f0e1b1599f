package models

import "time"

// OAuthState is a single-use nonce issued when a team starts connecting a
// provider. The callback must present and consume it before any token
// exchange happens.
type OAuthState struct {
	Nonce     string    `json:"-" gorm:"primaryKey"`
	TeamID    string    `json:"team_id" gorm:"not null"`
	Provider  string    `json:"provider" gorm:"not null"`
	UserID    string    `json:"user_id" gorm:"not null"`
	Setup     bool      `json:"setup" gorm:"not null;default:false"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null;index"`
}

// TableName specifies the table name for OAuthState
func (OAuthState) TableName() string {
	return "oauth_states"
}

// Expired reports whether the state can no longer be consumed.
func (s *OAuthState) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
