package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"

	"github.com/aerius-app/aerius/internal/models"
)

// upsertColumns are overwritten when a team reconnects a provider.
var upsertColumns = []string{
	"connected",
	"access_token",
	"refresh_token",
	"user_token",
	"expires_at",
	"scope",
	"token_type",
	"metadata",
	"connected_at",
	"updated_at",
	"disconnected_at",
}

// ListIntegrations returns every credential record of a team.
func (s *Store) ListIntegrations(ctx context.Context, teamID string) ([]models.Integration, error) {
	integrations := []models.Integration{}
	err := s.db.WithContext(ctx).Where("team_id = ?", teamID).Order("provider ASC").Find(&integrations).Error
	if err != nil {
		return nil, err
	}
	return integrations, nil
}

// GetIntegration loads the record for one team and provider.
func (s *Store) GetIntegration(ctx context.Context, teamID, provider string) (*models.Integration, error) {
	var integration models.Integration
	err := s.db.WithContext(ctx).Where("team_id = ? AND provider = ?", teamID, provider).First(&integration).Error
	if err != nil {
		return nil, translate(err)
	}
	return &integration, nil
}

// UpsertIntegration writes a connected record keyed by (team, provider),
// overwriting any previous connection. The token fields of rec must already
// be encrypted.
func (s *Store) UpsertIntegration(ctx context.Context, rec *models.Integration) error {
	now := time.Now().UTC()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.Connected = true
	rec.DisconnectedAt = nil
	rec.ConnectedAt = now
	rec.UpdatedAt = now

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "team_id"}, {Name: "provider"}},
		DoUpdates: clause.AssignmentColumns(upsertColumns),
	}).Create(rec).Error
	if err != nil {
		return err
	}

	// The row id is the original one on reconnect.
	return s.db.WithContext(ctx).Where("team_id = ? AND provider = ?", rec.TeamID, rec.Provider).First(rec).Error
}

// DisconnectIntegration flags a record as disconnected. Encrypted tokens are
// kept.
func (s *Store) DisconnectIntegration(ctx context.Context, teamID, provider string, now time.Time) error {
	result := s.db.WithContext(ctx).Model(&models.Integration{}).
		Where("team_id = ? AND provider = ?", teamID, provider).
		Updates(map[string]interface{}{
			"connected":       false,
			"disconnected_at": now,
			"updated_at":      now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AllIntegrations returns every credential record.
func (s *Store) AllIntegrations(ctx context.Context) ([]models.Integration, error) {
	var integrations []models.Integration
	if err := s.db.WithContext(ctx).Order("team_id, provider").Find(&integrations).Error; err != nil {
		return nil, err
	}
	return integrations, nil
}

// UpdateTokens rewrites the encrypted token columns of one record.
func (s *Store) UpdateTokens(ctx context.Context, id, accessToken string, refreshToken, userToken *string) error {
	return s.db.WithContext(ctx).Model(&models.Integration{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"access_token":  accessToken,
			"refresh_token": refreshToken,
			"user_token":    userToken,
		}).Error
}

// CountConnected returns the number of connected records per provider.
func (s *Store) CountConnected(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Provider string
		Count    int64
	}
	err := s.db.WithContext(ctx).Model(&models.Integration{}).
		Select("provider, COUNT(*) AS count").
		Where("connected = ?", true).
		Group("provider").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Provider] = row.Count
	}
	return counts, nil
}
