package models

import "time"

// User represents a user in the system
type User struct {
	ID             string    `json:"id" gorm:"primaryKey"`
	Email          string    `json:"email" gorm:"uniqueIndex;not null"`
	Name           string    `json:"name"`
	PasswordHash   string    `json:"-" gorm:"not null"` // Never expose password in JSON
	TeamID         *string   `json:"team_id"`
	SetupCompleted bool      `json:"setup_completed" gorm:"not null;default:false"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "users"
}
