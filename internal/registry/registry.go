package registry

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/minvws/nl-rdo-prs-go/internal/policy"
	"github.com/minvws/nl-rdo-prs-go/internal/prserr"
)

// KeyRegistry is the read surface the core depends on (§4.6). Admin
// mutators are exposed on Store directly since they live outside the core
// per §1, but resolution is what ExchangeOrchestrator calls.
type KeyRegistry interface {
	Resolve(ura, scope string) (*rsa.PublicKey, error)
	MaxRidUsage(ura string) (policy.Tier, error)
	OrganisationByURA(ura string) (*Organisation, error)
}

// Store is a gorm-backed KeyRegistry implementation, covering both the
// read surface the core calls and the admin mutators that sit outside it.
type Store struct {
	db *gorm.DB
}

// NewStore wraps an already-connected *gorm.DB.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// OrganisationByURA looks up an organisation by its URA. Returns
// OrganizationNotFound if absent.
func (s *Store) OrganisationByURA(ura string) (*Organisation, error) {
	var org Organisation
	err := s.db.Where("ura = ?", ura).First(&org).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, prserr.New(prserr.OrganizationNotFound, "no such organisation")
	}
	if err != nil {
		return nil, prserr.Wrap(prserr.CryptoInternal, "failed to query organisation", err)
	}
	return &org, nil
}

// MaxRidUsage implements KeyRegistry.MaxRidUsage.
func (s *Store) MaxRidUsage(ura string) (policy.Tier, error) {
	org, err := s.OrganisationByURA(ura)
	if err != nil {
		return "", err
	}
	tier := policy.Tier(org.MaxRidUsage)
	if !policy.Valid(tier) {
		return "", prserr.New(prserr.OrganizationNotFound, "organisation has no usage ceiling configured")
	}
	return tier, nil
}

// Resolve implements KeyRegistry.Resolve: find the public key an
// organisation has registered for scope, preferring an exact scope match
// over the "*" wildcard when both exist, per §4.6. When several
// non-wildcard keys contain the scope, the lowest-ID entry is chosen — a
// fixed, deterministic tie-break, as §4.6 requires of any implementation.
func (s *Store) Resolve(ura, scope string) (*rsa.PublicKey, error) {
	org, err := s.OrganisationByURA(ura)
	if err != nil {
		return nil, err
	}

	var keys []OrganisationKey
	if err := s.db.Where("organisation_id = ?", org.ID).Order("id asc").Find(&keys).Error; err != nil {
		return nil, prserr.Wrap(prserr.CryptoInternal, "failed to query keys", err)
	}

	normScope := strings.ToLower(strings.TrimSpace(scope))

	var wildcard *OrganisationKey
	for i := range keys {
		set := keys[i].ScopeSet()
		for _, sc := range set {
			if sc == normScope {
				return parsePublicKeyPEM(keys[i].KeyData)
			}
			if sc == ScopeSentinelAny && wildcard == nil {
				wildcard = &keys[i]
			}
		}
	}
	if wildcard != nil {
		return parsePublicKeyPEM(wildcard.KeyData)
	}

	return nil, prserr.New(prserr.PubKeyNotFound, "no key found for this organisation and scope")
}

// CreateKey validates and inserts a new OrganisationKey, per the insertion
// rules of §4.6: PEM-parseable, public (not private), scope normalised to
// lowercase/trimmed/deduplicated/sorted, non-empty.
func (s *Store) CreateKey(orgID uint, scope []string, pemData string) (*OrganisationKey, error) {
	normalized := NormalizeScope(scope)
	if len(normalized) == 0 {
		return nil, prserr.New(prserr.InvalidInput, "scope must contain at least one item")
	}
	if _, err := parsePublicKeyPEM(pemData); err != nil {
		return nil, err
	}

	entry := OrganisationKey{
		OrganisationID: orgID,
		Scope:          strings.Join(normalized, ","),
		KeyData:        strings.TrimSpace(pemData),
	}
	if err := s.db.Create(&entry).Error; err != nil {
		return nil, prserr.Wrap(prserr.CryptoInternal, "failed to store key", err)
	}
	return &entry, nil
}

// NormalizeScope trims, lowercases, deduplicates and sorts scope tokens.
func NormalizeScope(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, s := range items {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// parsePublicKeyPEM parses a PEM-encoded RSA public key, rejecting any PEM
// block that instead holds private key material.
func parsePublicKeyPEM(data string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(data))
	if block == nil {
		return nil, prserr.New(prserr.InvalidInput, "not a valid PEM encoded public key")
	}

	if strings.Contains(block.Type, "PRIVATE") {
		return nil, prserr.New(prserr.InvalidInput, "must be a public key, not a private key")
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		cert, certErr := x509.ParseCertificate(block.Bytes)
		if certErr == nil {
			pub = cert.PublicKey
		} else {
			return nil, prserr.Wrap(prserr.InvalidInput, "not a valid PEM encoded public key", err)
		}
	}

	rsaKey, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, prserr.New(prserr.InvalidInput, "only RSA public keys are supported")
	}
	return rsaKey, nil
}

// ParseURA validates and strips the "ura:" prefix from a recipient
// organisation identifier, per §4.8.1 step 1.
func ParseURA(recipientOrg string) (string, error) {
	const prefix = "ura:"
	if !strings.HasPrefix(recipientOrg, prefix) {
		return "", prserr.New(prserr.InvalidURA, "recipient organisation must be of the form ura:<digits>")
	}
	digits := strings.TrimPrefix(recipientOrg, prefix)
	if len(digits) == 0 || len(digits) > 8 {
		return "", prserr.New(prserr.InvalidURA, "ura must be 1-8 digits")
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", prserr.New(prserr.InvalidURA, "ura must be numeric")
		}
	}
	return zeroPadURA(digits), nil
}

func zeroPadURA(digits string) string {
	for len(digits) < 8 {
		digits = "0" + digits
	}
	return digits
}
