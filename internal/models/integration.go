package models

import "time"

// Integration is the credential record of one team's connection to one
// provider. Token fields only ever hold encrypted blobs and are never
// serialized to clients.
type Integration struct {
	ID             string            `json:"id" gorm:"primaryKey"`
	TeamID         string            `json:"team_id" gorm:"not null;uniqueIndex:idx_integrations_team_provider"`
	Provider       string            `json:"provider" gorm:"not null;uniqueIndex:idx_integrations_team_provider"`
	Connected      bool              `json:"connected" gorm:"not null;default:false"`
	AccessToken    string            `json:"-" gorm:"not null"`
	RefreshToken   *string           `json:"-"`
	UserToken      *string           `json:"-"`
	ExpiresAt      *time.Time        `json:"expires_at,omitempty"`
	Scope          string            `json:"scope,omitempty"`
	TokenType      string            `json:"token_type,omitempty"`
	Metadata       map[string]string `json:"metadata" gorm:"serializer:json;type:text"`
	ConnectedAt    time.Time         `json:"connected_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	DisconnectedAt *time.Time        `json:"disconnected_at,omitempty"`
}

// TableName specifies the table name for Integration
func (Integration) TableName() string {
	return "integrations"
}

// All lists every persisted model, in dependency order.
func All() []interface{} {
	return []interface{}{&User{}, &Team{}, &TeamMember{}, &Integration{}, &OAuthState{}, &Meeting{}}
}
