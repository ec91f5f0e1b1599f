// Package store persists users, teams, integration credentials and OAuth
// states with GORM.
package store

import (
	"errors"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when the addressed record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique key is already taken.
	ErrDuplicate = errors.New("duplicate record")
	// ErrAlreadyMember is returned when a user joins a team twice.
	ErrAlreadyMember = errors.New("already a member")
	// ErrCodeExpired is returned when an invite code is past its expiry.
	ErrCodeExpired = errors.New("invite code expired")
	// ErrNotCreator is returned for creator-only mutations by anyone else.
	ErrNotCreator = errors.New("only the team creator can do this")
)

// Store wraps the database handle.
type Store struct {
	db *gorm.DB
}

// New creates a Store on top of db.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}
	return err
}
