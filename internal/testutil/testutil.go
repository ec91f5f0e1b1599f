// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/scrypt"
	"gorm.io/gorm"

	"github.com/aerius-app/aerius/internal/config"
	"github.com/aerius-app/aerius/internal/database"
)

// NewDB returns a migrated SQLite database that lives in the test's temp dir.
// The pool sizes match the service defaults; Connect narrows them for SQLite.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	cfg := config.DatabaseConfig{
		Type:         "sqlite",
		DSN:          filepath.Join(t.TempDir(), "aerius.db"),
		MaxOpenConns: 25,
		MaxIdleConns: 5,
	}

	db, err := database.Connect(cfg)
	if err != nil {
		t.Fatalf("connect test database: %v", err)
	}
	if err := database.RunMigrations(db, cfg.Type); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// LegacyBlob seals plaintext in the hex(iv):hex(tag):hex(ct) layout with the
// scrypt-derived key older records were written with.
func LegacyBlob(t testing.TB, passphrase, plaintext string) string {
	t.Helper()

	key, err := scrypt.Key([]byte(passphrase), []byte("salt"), 16384, 8, 1, 32)
	if err != nil {
		t.Fatalf("derive legacy key: %v", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		t.Fatalf("legacy block: %v", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		t.Fatalf("legacy gcm: %v", err)
	}

	iv := make([]byte, 12)
	if _, err := rand.Read(iv); err != nil {
		t.Fatalf("legacy iv: %v", err)
	}
	sealed := aead.Seal(nil, iv, []byte(plaintext), nil)
	split := len(sealed) - aead.Overhead()
	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(sealed[split:]) + ":" + hex.EncodeToString(sealed[:split])
}
