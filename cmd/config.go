package cmd

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/minvws/nl-rdo-prs-go/internal/registry"
)

// DatabaseConfig configures the KeyRegistry's backing store.
type DatabaseConfig struct {
	Type string
	DSN  string
}

// open connects to the configured database and runs the registry schema
// migration (§6.3). "sqlite" and "postgres" are the only supported drivers —
// both are wired the way the teacher's go.mod already pulls in
// gorm.io/driver/sqlite and gorm.io/driver/postgres.
func (dc *DatabaseConfig) open() (*gorm.DB, error) {
	if dc.DSN == "" {
		return nil, errors.New("database configuration error: dsn is required")
	}
	dc.Type = strings.ToLower(dc.Type)

	var dialector gorm.Dialector
	switch dc.Type {
	case "sqlite":
		dialector = sqlite.Open(dc.DSN)
	case "postgres":
		dialector = postgres.Open(dc.DSN)
	default:
		return nil, fmt.Errorf("unsupported database type: %s (must be 'sqlite' or 'postgres')", dc.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := registry.Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate registry schema: %w", err)
	}
	return db, nil
}

// loadKeyFile reads a base64url-encoded 32-byte secret from path, per §6.4.
// An empty file is a fatal startup error.
func loadKeyFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file %s: %w", path, err)
	}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return nil, fmt.Errorf("key file %s is empty", path)
	}
	key, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(trimmed)
	if err != nil {
		key, err = base64.URLEncoding.DecodeString(trimmed)
		if err != nil {
			return nil, fmt.Errorf("key file %s is not valid base64url: %w", path, err)
		}
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("key file %s must decode to exactly 32 bytes, got %d", path, len(key))
	}
	return key, nil
}
