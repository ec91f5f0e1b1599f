// Package oauth connects teams to third-party providers with the OAuth2
// authorization code flow and keeps their credentials encrypted at rest.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/aerius-app/aerius/internal/config"
	"github.com/aerius-app/aerius/internal/encryption"
	"github.com/aerius-app/aerius/internal/metrics"
	"github.com/aerius-app/aerius/internal/models"
	"github.com/aerius-app/aerius/internal/store"
)

// Event types published to team members.
const (
	EventIntegrationConnected    = "integration.connected"
	EventIntegrationDisconnected = "integration.disconnected"
)

var (
	ErrUnknownProvider = errors.New("unknown provider")
	ErrNotConfigured   = errors.New("integration not configured")
	// ErrInvalidCallback covers a callback without code or state, or with a
	// state that does not decode.
	ErrInvalidCallback = errors.New("invalid callback parameters")
	ErrNotConnected    = errors.New("integration not connected")
	ErrVerifyFailed    = errors.New("integration verification failed")
)

// Stage names the step of a callback that failed.
type Stage string

const (
	StageAuth     Stage = "auth"
	StageState    Stage = "state"
	StageToken    Stage = "token"
	StageAPI      Stage = "api"
	StageMetadata Stage = "metadata"
	StageCallback Stage = "callback"
)

// Publisher delivers events to the members of a team.
type Publisher interface {
	PublishTeam(teamID, eventType string, payload interface{})
}

type nopPublisher struct{}

func (nopPublisher) PublishTeam(string, string, interface{}) {}

// ProviderInfo is the public view of a provider.
type ProviderInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Configured  bool   `json:"configured"`
}

// Service runs connect and callback for every registered provider.
type Service struct {
	registry  *Registry
	client    *Client
	store     *store.Store
	cipher    *encryption.Cipher
	publisher Publisher

	credentials config.IntegrationsConfig
	appURL      string
	stateTTL    time.Duration
	// callbackTimeout keeps a callback inside the server write timeout.
	callbackTimeout time.Duration
	now             func() time.Time
}

const defaultCallbackTimeout = 12 * time.Second

// NewService creates the OAuth service. publisher may be nil.
func NewService(cfg *config.Config, registry *Registry, client *Client, st *store.Store, cipher *encryption.Cipher, publisher Publisher) *Service {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	callbackTimeout := cfg.OAuth.CallbackTimeout
	if callbackTimeout <= 0 {
		callbackTimeout = defaultCallbackTimeout
	}
	return &Service{
		registry:        registry,
		client:          client,
		store:           st,
		cipher:          cipher,
		publisher:       publisher,
		credentials:     cfg.Integrations,
		appURL:          cfg.AppURL,
		stateTTL:        cfg.StateTTL,
		callbackTimeout: callbackTimeout,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// Provider returns the provider registered as name.
func (s *Service) Provider(name string) (*Provider, error) {
	return s.registry.Get(name)
}

// Providers lists every provider and whether it is configured.
func (s *Service) Providers() []ProviderInfo {
	names := s.registry.Names()
	infos := make([]ProviderInfo, 0, len(names))
	for _, name := range names {
		p, _ := s.registry.Get(name)
		creds := s.Credentials(name)
		infos = append(infos, ProviderInfo{
			Name:        name,
			DisplayName: p.DisplayName,
			Configured:  creds.ClientID != "" && creds.ClientSecret != "",
		})
	}
	return infos
}

// Credentials returns the client credentials for provider, with the redirect
// URI defaulted to this service's callback route.
func (s *Service) Credentials(provider string) config.ProviderCredentials {
	creds := s.credentials.For(provider)
	if creds.RedirectURI == "" {
		creds.RedirectURI = fmt.Sprintf("%s/api/integrations/%s/callback", s.appURL, provider)
	}
	return creds
}

// CheckConnectable returns ErrNotConfigured when the provider has no client
// id.
func (s *Service) CheckConnectable(p *Provider) error {
	if s.credentials.For(p.Name).ClientID == "" {
		return fmt.Errorf("%w: %s", ErrNotConfigured, p.Name)
	}
	return nil
}

// Connect issues a single-use nonce for teamID and returns the provider's
// authorization URL. The caller has already been checked for membership.
func (s *Service) Connect(ctx context.Context, p *Provider, teamID, userID string, setup bool) (string, error) {
	if err := s.CheckConnectable(p); err != nil {
		return "", err
	}

	nonce, err := GenerateNonce()
	if err != nil {
		return "", err
	}

	now := s.now()
	err = s.store.IssueState(ctx, &models.OAuthState{
		Nonce:     nonce,
		TeamID:    teamID,
		Provider:  p.Name,
		UserID:    userID,
		Setup:     setup,
		CreatedAt: now,
		ExpiresAt: now.Add(s.stateTTL),
	})
	if err != nil {
		return "", fmt.Errorf("failed to store state: %w", err)
	}

	state, err := EncodeState(State{TeamID: teamID, Setup: setup, Nonce: nonce})
	if err != nil {
		return "", err
	}

	creds := s.Credentials(p.Name)
	params := url.Values{}
	params.Set("client_id", creds.ClientID)
	params.Set("redirect_uri", creds.RedirectURI)
	params.Set("state", state)
	if p.Scopes != "" {
		params.Set("scope", p.Scopes)
	}
	for k, v := range p.ExtraAuthParams {
		params.Set(k, v)
	}

	log.WithFields(log.Fields{"provider": p.Name, "team_id": teamID}).Info("OAuth: Redirecting to authorization URL")
	return p.AuthURL + "?" + params.Encode(), nil
}

// Callback completes the flow for one provider redirect and returns where
// the browser should go next. It only returns an error for a malformed
// request (ErrInvalidCallback) or missing credentials (ErrNotConfigured);
// every other failure is reported through the redirect. Provider calls and
// storage share one deadline, so a slow provider ends in a failure redirect.
func (s *Service) Callback(ctx context.Context, p *Provider, query url.Values) (string, error) {
	logger := log.WithField("provider", p.Name)

	if providerErr := query.Get("error"); providerErr != "" {
		logger.WithField("error", providerErr).Warn("OAuth: Provider returned an error")
		return s.failure(p, StageAuth), nil
	}

	code := query.Get("code")
	rawState := query.Get("state")
	if code == "" || rawState == "" {
		return "", ErrInvalidCallback
	}
	blob, err := DecodeState(rawState)
	if err != nil {
		return "", ErrInvalidCallback
	}

	creds := s.Credentials(p.Name)
	if creds.ClientID == "" || creds.ClientSecret == "" {
		logger.Error("OAuth: Provider credentials are not configured")
		return "", fmt.Errorf("%w: %s", ErrNotConfigured, p.Name)
	}

	logger = logger.WithField("team_id", blob.TeamID)

	ctx, cancel := context.WithTimeout(ctx, s.callbackTimeout)
	defer cancel()

	state, err := s.store.ConsumeState(ctx, blob.Nonce, s.now())
	if err != nil {
		logger.Warn("OAuth: Unknown, reused or expired state")
		return s.failure(p, StageState), nil
	}
	if state.Provider != p.Name || state.TeamID != blob.TeamID {
		logger.Warn("OAuth: State does not match this callback")
		return s.failure(p, StageState), nil
	}

	tokens, err := s.client.Exchange(ctx, p, creds, code)
	if err != nil {
		logger.WithError(err).Warn("OAuth: Token exchange failed")
		if errors.Is(err, ErrProviderRejected) {
			return s.failure(p, StageAPI), nil
		}
		return s.failure(p, StageToken), nil
	}

	if err := s.client.Describe(ctx, p, tokens); err != nil {
		logger.WithError(err).Warn("OAuth: Metadata lookup failed")
		return s.failure(p, StageMetadata), nil
	}

	if err := s.save(ctx, p, state.TeamID, tokens); err != nil {
		logger.WithError(err).Error("OAuth: Failed to store credentials")
		return s.failure(p, StageCallback), nil
	}

	metrics.OAuthCallbacks.WithLabelValues(p.Name, "success").Inc()
	logger.Info("OAuth: Integration connected")
	s.publisher.PublishTeam(state.TeamID, EventIntegrationConnected, map[string]string{"provider": p.Name})

	if state.Setup {
		return fmt.Sprintf("%s/setup?step=integrations&%s=success", s.appURL, p.Name), nil
	}
	return fmt.Sprintf("%s/dashboard/settings?%s=success", s.appURL, p.Name), nil
}

func (s *Service) failure(p *Provider, stage Stage) string {
	marker := fmt.Sprintf("%s_%s_failed", p.Name, stage)
	metrics.OAuthCallbacks.WithLabelValues(p.Name, string(stage)+"_failed").Inc()
	return fmt.Sprintf("%s/dashboard/settings?error=%s", s.appURL, url.QueryEscape(marker))
}

func (s *Service) save(ctx context.Context, p *Provider, teamID string, tokens *TokenSet) error {
	access, err := s.cipher.Encrypt(tokens.AccessToken)
	if err != nil {
		return err
	}

	rec := &models.Integration{
		TeamID:      teamID,
		Provider:    p.Name,
		AccessToken: access,
		Scope:       tokens.Scope,
		TokenType:   tokens.TokenType,
		Metadata:    tokens.Metadata,
	}

	if rec.RefreshToken, err = s.encryptOptional(tokens.RefreshToken); err != nil {
		return err
	}
	if rec.UserToken, err = s.encryptOptional(tokens.UserToken); err != nil {
		return err
	}
	if tokens.ExpiresIn > 0 {
		expiresAt := s.now().Add(time.Duration(tokens.ExpiresIn) * time.Second)
		rec.ExpiresAt = &expiresAt
	}

	return s.store.UpsertIntegration(ctx, rec)
}

func (s *Service) encryptOptional(token string) (*string, error) {
	if token == "" {
		return nil, nil
	}
	blob, err := s.cipher.Encrypt(token)
	if err != nil {
		return nil, err
	}
	return &blob, nil
}

// List returns the team's credential records.
func (s *Service) List(ctx context.Context, teamID string) ([]models.Integration, error) {
	return s.store.ListIntegrations(ctx, teamID)
}

// Disconnect flags the team's record for provider as disconnected.
func (s *Service) Disconnect(ctx context.Context, teamID, provider string) error {
	if _, err := s.registry.Get(provider); err != nil {
		return err
	}

	err := s.store.DisconnectIntegration(ctx, teamID, provider, s.now())
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotConnected
	}
	if err != nil {
		return fmt.Errorf("failed to disconnect integration: %w", err)
	}

	log.WithFields(log.Fields{"provider": provider, "team_id": teamID}).Info("OAuth: Integration disconnected")
	s.publisher.PublishTeam(teamID, EventIntegrationDisconnected, map[string]string{"provider": provider})
	return nil
}

// Verify checks the stored credential against the provider's identity
// endpoint and returns what the provider reports about it.
func (s *Service) Verify(ctx context.Context, teamID, provider string) (map[string]string, error) {
	p, err := s.registry.Get(provider)
	if err != nil {
		return nil, err
	}

	rec, err := s.store.GetIntegration(ctx, teamID, provider)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotConnected
	}
	if err != nil {
		return nil, err
	}
	if !rec.Connected {
		return nil, ErrNotConnected
	}

	token, err := s.cipher.Decrypt(rec.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerifyFailed, err)
	}

	identity, err := s.client.Verify(ctx, p, token)
	if err != nil {
		log.WithFields(log.Fields{"provider": provider, "team_id": teamID}).WithError(err).Warn("OAuth: Verification failed")
		return nil, fmt.Errorf("%w: %v", ErrVerifyFailed, err)
	}
	return identity, nil
}

// ParseSetup reads the setup query flag.
func ParseSetup(value string) bool {
	return strings.EqualFold(value, "true")
}
