package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/aerius-app/aerius/internal/models"
)

// IssueState stores a connect nonce.
func (s *Store) IssueState(ctx context.Context, state *models.OAuthState) error {
	return translate(s.db.WithContext(ctx).Create(state).Error)
}

// ConsumeState deletes and returns the state for nonce. Only one caller can
// win the delete; everyone else, and any caller after expiry, gets
// ErrNotFound.
func (s *Store) ConsumeState(ctx context.Context, nonce string, now time.Time) (*models.OAuthState, error) {
	var state models.OAuthState
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("nonce = ?", nonce).First(&state).Error; err != nil {
			return translate(err)
		}

		result := tx.Where("nonce = ?", nonce).Delete(&models.OAuthState{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if state.Expired(now) {
		return nil, ErrNotFound
	}
	return &state, nil
}

// DeleteExpiredStates removes states that can no longer be consumed.
func (s *Store) DeleteExpiredStates(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&models.OAuthState{})
	return result.RowsAffected, result.Error
}
