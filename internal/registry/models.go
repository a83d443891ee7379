// Package registry implements the KeyRegistry (§4.6) and its backing
// relational layout (§6.3): organisations and their per-scope public keys,
// stored via gorm the way the teacher repo's go.mod already pulls in
// gorm.io/gorm plus the sqlite and postgres drivers for its own relational
// store.
package registry

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Organisation is the `organisation` table of §6.3.
type Organisation struct {
	ID          uint   `gorm:"primaryKey"`
	URA         string `gorm:"uniqueIndex;size:8;not null"`
	Name        string `gorm:"not null"`
	MaxRidUsage string `gorm:"column:max_rid_usage;size:8"`

	Keys []OrganisationKey `gorm:"constraint:OnDelete:CASCADE"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrganisationKey is the `organisation_key` table of §6.3. Scope is stored
// as a comma-joined, pre-normalised string; ScopeSet() parses it back out.
type OrganisationKey struct {
	ID             uint   `gorm:"primaryKey"`
	OrganisationID uint   `gorm:"index;not null"`
	Scope          string `gorm:"not null"`
	KeyData        string `gorm:"column:key_data;not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ScopeSentinelAny is the wildcard scope token that matches any requested
// scope, per §3.
const ScopeSentinelAny = "*"

// ScopeSet parses the stored, comma-joined scope column back into its
// normalised set representation.
func (k OrganisationKey) ScopeSet() []string {
	if k.Scope == "" {
		return nil
	}
	return strings.Split(k.Scope, ",")
}

// Migrate creates or updates the registry's tables. Call once at startup.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Organisation{}, &OrganisationKey{})
}
