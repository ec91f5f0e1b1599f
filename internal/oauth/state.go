package oauth

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidState is returned for a state parameter that cannot be decoded.
var ErrInvalidState = errors.New("invalid state parameter")

// State is the payload round-tripped through the provider redirect. The
// nonce ties it to a server-side record.
type State struct {
	TeamID string `json:"teamId"`
	Setup  bool   `json:"setup"`
	Nonce  string `json:"nonce"`
}

// GenerateNonce returns a random single-use nonce.
func GenerateNonce() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// EncodeState serializes s as standard, padded base64 of its JSON.
func EncodeState(s State) (string, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeState parses a state parameter. Standard and URL-safe alphabets are
// accepted, with or without padding. A '+' that arrived as a space is
// restored.
func DecodeState(value string) (State, error) {
	var s State

	value = strings.TrimRight(strings.ReplaceAll(value, " ", "+"), "=")
	enc := base64.RawStdEncoding
	if strings.ContainsAny(value, "-_") {
		enc = base64.RawURLEncoding
	}

	raw, err := enc.DecodeString(value)
	if err != nil {
		return s, ErrInvalidState
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return s, ErrInvalidState
	}
	if s.TeamID == "" || s.Nonce == "" {
		return s, ErrInvalidState
	}
	return s, nil
}
