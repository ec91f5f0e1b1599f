package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aerius-app/aerius/internal/models"
)

// CreateUser inserts a user. Emails are stored lower-cased.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	return translate(s.db.WithContext(ctx).Create(user).Error)
}

// GetUserByEmail loads a user by email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// GetUserByID loads a user by id.
func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// ProfileUpdate lists the user fields a user may change. Nil fields are left
// untouched.
type ProfileUpdate struct {
	Name           *string
	SetupCompleted *bool
}

// UpdateProfile applies update to the user and returns the stored result.
func (s *Store) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*models.User, error) {
	changes := map[string]interface{}{"updated_at": time.Now().UTC()}
	if update.Name != nil {
		changes["name"] = strings.TrimSpace(*update.Name)
	}
	if update.SetupCompleted != nil {
		changes["setup_completed"] = *update.SetupCompleted
	}

	result := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(changes)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.GetUserByID(ctx, userID)
}
