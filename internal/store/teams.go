package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aerius-app/aerius/internal/models"
)

// CreateTeam inserts the team, the creator's membership and the creator's
// team pointer in one transaction. A taken invite code yields ErrDuplicate.
func (s *Store) CreateTeam(ctx context.Context, team *models.Team) error {
	if team.ID == "" {
		team.ID = uuid.NewString()
	}
	if team.CreatedAt.IsZero() {
		team.CreatedAt = time.Now().UTC()
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(team).Error; err != nil {
			return translate(err)
		}

		member := models.TeamMember{TeamID: team.ID, UserID: team.CreatorID, JoinedAt: team.CreatedAt}
		if err := tx.Create(&member).Error; err != nil {
			return translate(err)
		}

		return tx.Model(&models.User{}).Where("id = ?", team.CreatorID).Update("team_id", team.ID).Error
	})
}

// GetTeam loads a team by id.
func (s *Store) GetTeam(ctx context.Context, id string) (*models.Team, error) {
	var team models.Team
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&team).Error; err != nil {
		return nil, translate(err)
	}
	return &team, nil
}

// JoinByCode adds userID to the team holding code. The membership insert is
// an atomic add-to-set: a concurrent or repeated join of the same user
// inserts nothing and reports ErrAlreadyMember, and joins of different users
// never overwrite each other. Unknown codes return ErrNotFound without
// writing anything.
func (s *Store) JoinByCode(ctx context.Context, code, userID string, now time.Time) (*models.Team, error) {
	var team models.Team
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("invite_code = ?", code).First(&team).Error; err != nil {
			return translate(err)
		}
		if team.InviteCodeExpired(now) {
			return ErrCodeExpired
		}

		result := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.TeamMember{TeamID: team.ID, UserID: userID, JoinedAt: now})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrAlreadyMember
		}

		return tx.Model(&models.User{}).Where("id = ?", userID).Update("team_id", team.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &team, nil
}

// RegenerateCode replaces the invite code with a single conditional update
// that only matches when creatorID owns the team.
func (s *Store) RegenerateCode(ctx context.Context, teamID, creatorID, code string, expiresAt, now time.Time) error {
	result := s.db.WithContext(ctx).Model(&models.Team{}).
		Where("id = ? AND creator_id = ?", teamID, creatorID).
		Updates(map[string]interface{}{
			"invite_code":            code,
			"invite_code_expires_at": expiresAt,
			"invite_code_updated_at": now,
		})
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		if _, err := s.GetTeam(ctx, teamID); err != nil {
			return err
		}
		return ErrNotCreator
	}
	return nil
}

// RemoveMember deletes a membership and clears the member's team pointer.
func (s *Store) RemoveMember(ctx context.Context, teamID, creatorID, memberID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var team models.Team
		if err := tx.Where("id = ?", teamID).First(&team).Error; err != nil {
			return translate(err)
		}
		if team.CreatorID != creatorID {
			return ErrNotCreator
		}

		result := tx.Where("team_id = ? AND user_id = ?", teamID, memberID).Delete(&models.TeamMember{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}

		return tx.Model(&models.User{}).
			Where("id = ? AND team_id = ?", memberID, teamID).
			Update("team_id", nil).Error
	})
}

// IsMember reports whether userID belongs to teamID.
func (s *Store) IsMember(ctx context.Context, teamID, userID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.TeamMember{}).
		Where("team_id = ? AND user_id = ?", teamID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListMembers returns the members of a team in join order.
func (s *Store) ListMembers(ctx context.Context, team *models.Team) ([]models.Member, error) {
	var rows []models.TeamMember
	if err := s.db.WithContext(ctx).Where("team_id = ?", team.ID).Order("joined_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []models.Member{}, nil
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.UserID)
	}

	var users []models.User
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	members := make([]models.Member, 0, len(rows))
	for _, row := range rows {
		u := byID[row.UserID]
		members = append(members, models.Member{
			UserID:   row.UserID,
			Email:    u.Email,
			Name:     u.Name,
			IsLeader: row.UserID == team.CreatorID,
			JoinedAt: row.JoinedAt,
		})
	}
	return members, nil
}
