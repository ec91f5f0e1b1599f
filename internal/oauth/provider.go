package oauth

import (
	"fmt"
	"net/http"
	"sort"
)

// BodyEncoding is how the token request carries its parameters.
type BodyEncoding int

const (
	FormBody BodyEncoding = iota
	JSONBody
	QueryParams
)

// ClientAuth is how the client id and secret reach the token endpoint.
type ClientAuth int

const (
	ClientSecretInBody ClientAuth = iota
	ClientSecretBasic
)

// TokenAuth is how a lookup presents the access token.
type TokenAuth int

const (
	BearerToken TokenAuth = iota
	// RawToken sends the token as the whole Authorization header value.
	RawToken
)

// TokenSet is the result of a successful code exchange.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	UserToken    string
	ExpiresIn    int64
	Scope        string
	TokenType    string
	Metadata     map[string]string
}

// Lookup is a follow-up call authenticated with the new access token.
type Lookup struct {
	Name    string
	Method  string
	URL     string
	Headers map[string]string
	Auth    TokenAuth
	// Decode copies what it needs from the response body into meta.
	Decode func(body []byte, meta map[string]string) error
}

func (l Lookup) method() string {
	if l.Method == "" {
		return http.MethodGet
	}
	return l.Method
}

// Provider describes everything that differs between providers in the
// authorization code flow.
type Provider struct {
	Name        string
	DisplayName string

	AuthURL         string
	Scopes          string
	ExtraAuthParams map[string]string

	TokenURL     string
	Encoding     BodyEncoding
	ClientAuth   ClientAuth
	TokenHeaders map[string]string
	// CheckResponse rejects token responses that report failure with a 2xx
	// status.
	CheckResponse func(body []byte) error
	// DecodeToken reads provider specific fields of the token response.
	DecodeToken func(body []byte, tokens *TokenSet) error

	Lookups []Lookup
	Verify  Lookup
}

// Registry holds the supported providers.
type Registry struct {
	providers map[string]*Provider
}

// NewRegistry creates a registry of providers.
func NewRegistry(providers ...*Provider) *Registry {
	r := &Registry{providers: make(map[string]*Provider, len(providers))}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// DefaultRegistry returns the five built-in providers.
func DefaultRegistry() *Registry {
	return NewRegistry(Slack(), Jira(), GitHub(), Notion(), ClickUp())
}

// Register adds or replaces a provider.
func (r *Registry) Register(p *Provider) {
	r.providers[p.Name] = p
}

// Get returns the provider registered as name.
func (r *Registry) Get(name string) (*Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return p, nil
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
