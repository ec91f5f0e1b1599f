package oauth

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/aerius-app/aerius/internal/encryption"
	"github.com/aerius-app/aerius/internal/metrics"
)

// PurgeExpiredStates deletes connect nonces that can no longer be consumed.
func (s *Service) PurgeExpiredStates(ctx context.Context) (int64, error) {
	deleted, err := s.store.DeleteExpiredStates(ctx, s.now())
	if err != nil {
		log.WithError(err).Error("OAuth cleanup: Failed to delete expired states")
		return 0, err
	}
	if deleted > 0 {
		log.Infof("OAuth cleanup: Deleted %d expired states", deleted)
	}
	return deleted, nil
}

// MigrateLegacyTokens rewrites credential records still holding blobs in the
// legacy cipher format. Records that fail to decrypt are left untouched and
// logged. It returns the number of records rewritten.
func (s *Service) MigrateLegacyTokens(ctx context.Context) (int, error) {
	records, err := s.store.AllIntegrations(ctx)
	if err != nil {
		return 0, err
	}

	migrated := 0
	for _, rec := range records {
		if !hasLegacyBlob(rec.AccessToken, rec.RefreshToken, rec.UserToken) {
			continue
		}

		logger := log.WithFields(log.Fields{"provider": rec.Provider, "team_id": rec.TeamID})

		access, err := s.cipher.Reencrypt(rec.AccessToken)
		if err != nil {
			logger.WithError(err).Error("OAuth migration: Failed to re-encrypt access token")
			continue
		}
		refresh, err := s.reencryptOptional(rec.RefreshToken)
		if err != nil {
			logger.WithError(err).Error("OAuth migration: Failed to re-encrypt refresh token")
			continue
		}
		user, err := s.reencryptOptional(rec.UserToken)
		if err != nil {
			logger.WithError(err).Error("OAuth migration: Failed to re-encrypt user token")
			continue
		}

		if err := s.store.UpdateTokens(ctx, rec.ID, access, refresh, user); err != nil {
			return migrated, err
		}
		migrated++
	}

	if migrated > 0 {
		log.Infof("OAuth migration: Re-encrypted %d legacy credential records", migrated)
	}
	return migrated, nil
}

func (s *Service) reencryptOptional(blob *string) (*string, error) {
	if blob == nil {
		return nil, nil
	}
	out, err := s.cipher.Reencrypt(*blob)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func hasLegacyBlob(access string, optional ...*string) bool {
	if encryption.IsLegacy(access) {
		return true
	}
	for _, blob := range optional {
		if blob != nil && encryption.IsLegacy(*blob) {
			return true
		}
	}
	return false
}

// RefreshConnectedGauge recomputes the connected integrations gauge.
func (s *Service) RefreshConnectedGauge(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	counts, err := s.store.CountConnected(ctx)
	if err != nil {
		return err
	}
	metrics.SetConnected(s.registry.Names(), counts)
	return nil
}
