// Package encryption protects provider tokens at rest.
//
// Blobs are AES-256-GCM sealed under a key derived with PBKDF2-HMAC-SHA256
// (100000 iterations, fixed salt) from a configured passphrase, and stored
// as standard base64 of nonce || ciphertext || tag. The same passphrase,
// salt and iteration count must be used to read a blob back.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
)

const (
	keySalt       = "lazydevs-salt-2024"
	keyIterations = 100000
	keyLength     = 32
	nonceSize     = 12

	legacySalt = "salt"
)

// ErrDecrypt is returned for any blob that cannot be authenticated.
var ErrDecrypt = errors.New("failed to decrypt token")

// Cipher encrypts and decrypts token blobs. It is safe for concurrent use.
type Cipher struct {
	aead   cipher.AEAD
	legacy cipher.AEAD
}

// NewCipher derives the token keys from passphrase.
func NewCipher(passphrase string) (*Cipher, error) {
	if passphrase == "" {
		return nil, errors.New("encryption passphrase is empty")
	}

	key := pbkdf2.Key([]byte(passphrase), []byte(keySalt), keyIterations, keyLength, sha256.New)
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	// Parameters match the scrypt defaults the legacy writer relied on.
	legacyKey, err := scrypt.Key([]byte(passphrase), []byte(legacySalt), 16384, 8, 1, keyLength)
	if err != nil {
		return nil, fmt.Errorf("derive legacy key: %w", err)
	}
	legacy, err := newGCM(legacyKey)
	if err != nil {
		return nil, err
	}

	return &Cipher{aead: aead, legacy: legacy}, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create block cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return aead, nil
}

// Encrypt seals plaintext under a fresh random nonce.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, nonceSize, nonceSize+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a blob produced by Encrypt, or a legacy blob.
func (c *Cipher) Decrypt(blob string) (string, error) {
	if IsLegacy(blob) {
		return c.decryptLegacy(blob)
	}

	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil || len(raw) < nonceSize+c.aead.Overhead() {
		return "", ErrDecrypt
	}
	plaintext, err := c.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plaintext), nil
}

// IsLegacy reports whether blob uses the old hex(iv):hex(tag):hex(ct) layout.
func IsLegacy(blob string) bool {
	return strings.Count(blob, ":") == 2
}

// Reencrypt converts a legacy blob into the current format. Current-format
// blobs are returned unchanged.
func (c *Cipher) Reencrypt(blob string) (string, error) {
	if !IsLegacy(blob) {
		return blob, nil
	}
	plaintext, err := c.decryptLegacy(blob)
	if err != nil {
		return "", err
	}
	return c.Encrypt(plaintext)
}

func (c *Cipher) decryptLegacy(blob string) (string, error) {
	parts := strings.Split(blob, ":")
	if len(parts) != 3 {
		return "", ErrDecrypt
	}
	iv, errIV := hex.DecodeString(parts[0])
	tag, errTag := hex.DecodeString(parts[1])
	ct, errCT := hex.DecodeString(parts[2])
	if errIV != nil || errTag != nil || errCT != nil || len(iv) != nonceSize || len(tag) != c.legacy.Overhead() {
		return "", ErrDecrypt
	}

	plaintext, err := c.legacy.Open(nil, iv, append(ct, tag...), nil)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plaintext), nil
}
