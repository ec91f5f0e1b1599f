package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/aerius-app/aerius/internal/config"
)

var (
	// ErrTokenRequest means the token endpoint could not be reached or
	// answered with a non-2xx status.
	ErrTokenRequest = errors.New("token request failed")
	// ErrProviderRejected means the token endpoint answered but reported
	// failure or returned no access token.
	ErrProviderRejected = errors.New("provider rejected the token request")
	// ErrLookup means a call made with the new access token failed.
	ErrLookup = errors.New("provider lookup failed")
)

// Client performs the HTTP side of the authorization code flow.
type Client struct {
	http *resty.Client
}

// NewClient creates a client whose requests time out after timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		http: resty.New().SetTimeout(timeout),
	}
}

// Exchange trades an authorization code for tokens.
func (c *Client) Exchange(ctx context.Context, p *Provider, creds config.ProviderCredentials, code string) (*TokenSet, error) {
	params := map[string]string{
		"grant_type":   "authorization_code",
		"code":         code,
		"redirect_uri": creds.RedirectURI,
	}

	req := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetHeaders(p.TokenHeaders)

	switch p.ClientAuth {
	case ClientSecretBasic:
		req.SetBasicAuth(creds.ClientID, creds.ClientSecret)
	default:
		params["client_id"] = creds.ClientID
		params["client_secret"] = creds.ClientSecret
	}

	switch p.Encoding {
	case JSONBody:
		req.SetHeader("Content-Type", "application/json").SetBody(params)
	case QueryParams:
		req.SetQueryParams(params)
	default:
		req.SetFormData(params)
	}

	resp, err := req.Post(p.TokenURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenRequest, err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("%w: status %d", ErrTokenRequest, resp.StatusCode())
	}

	body := resp.Body()
	if p.CheckResponse != nil {
		if err := p.CheckResponse(body); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProviderRejected, err)
		}
	}

	var raw struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
		Scope        string `json:"scope"`
		TokenType    string `json:"token_type"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode token response: %v", ErrProviderRejected, err)
	}
	if raw.AccessToken == "" {
		return nil, fmt.Errorf("%w: token response missing access_token", ErrProviderRejected)
	}

	tokens := &TokenSet{
		AccessToken:  raw.AccessToken,
		RefreshToken: raw.RefreshToken,
		ExpiresIn:    raw.ExpiresIn,
		Scope:        raw.Scope,
		TokenType:    raw.TokenType,
		Metadata:     make(map[string]string),
	}
	if p.DecodeToken != nil {
		if err := p.DecodeToken(body, tokens); err != nil {
			return nil, fmt.Errorf("%w: decode token response: %v", ErrProviderRejected, err)
		}
	}

	return tokens, nil
}

// Describe runs the provider's metadata lookups and merges their results
// into tokens.Metadata.
func (c *Client) Describe(ctx context.Context, p *Provider, tokens *TokenSet) error {
	for _, lookup := range p.Lookups {
		if err := c.lookup(ctx, lookup, tokens.AccessToken, tokens.Metadata); err != nil {
			return err
		}
	}
	return nil
}

// Verify calls the provider's identity endpoint with accessToken.
func (c *Client) Verify(ctx context.Context, p *Provider, accessToken string) (map[string]string, error) {
	identity := make(map[string]string)
	if err := c.lookup(ctx, p.Verify, accessToken, identity); err != nil {
		return nil, err
	}
	return identity, nil
}

func (c *Client) lookup(ctx context.Context, l Lookup, accessToken string, meta map[string]string) error {
	req := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetHeaders(l.Headers)

	switch l.Auth {
	case RawToken:
		req.SetHeader("Authorization", accessToken)
	default:
		req.SetAuthToken(accessToken)
	}

	resp, err := req.Execute(l.method(), l.URL)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrLookup, l.Name, err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("%w: %s: status %d", ErrLookup, l.Name, resp.StatusCode())
	}

	if l.Decode != nil {
		if err := l.Decode(resp.Body(), meta); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrLookup, l.Name, err)
		}
	}
	return nil
}
