package registry

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/minvws/nl-rdo-prs-go/internal/prserr"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("gorm.Open: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

func testPubKeyPEM(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("MarshalPKIXPublicKey: %v", err)
	}
	block := &pem.Block{Type: "PUBLIC KEY", Bytes: der}
	return string(pem.EncodeToMemory(block))
}

func testPrivKeyPEM(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey: %v", err)
	}
	der := x509.MarshalPKCS1PrivateKey(key)
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: der}
	return string(pem.EncodeToMemory(block))
}

func seedOrg(t *testing.T, db *gorm.DB, ura, maxUsage string) Organisation {
	t.Helper()
	org := Organisation{URA: ura, Name: "Test Org " + ura, MaxRidUsage: maxUsage}
	if err := db.Create(&org).Error; err != nil {
		t.Fatalf("create organisation: %v", err)
	}
	return org
}

func TestResolveExactMatchBeatsWildcard(t *testing.T) {
	db := openTestDB(t)
	store := NewStore(db)
	org := seedOrg(t, db, "87654321", "rp")

	wildcardPEM := testPubKeyPEM(t)
	exactPEM := testPubKeyPEM(t)

	if _, err := store.CreateKey(org.ID, []string{"*"}, wildcardPEM); err != nil {
		t.Fatalf("CreateKey wildcard: %v", err)
	}
	if _, err := store.CreateKey(org.ID, []string{"nvi"}, exactPEM); err != nil {
		t.Fatalf("CreateKey exact: %v", err)
	}

	got, err := store.Resolve("87654321", "nvi")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want, err := parsePublicKeyPEM(exactPEM)
	if err != nil {
		t.Fatalf("parsePublicKeyPEM: %v", err)
	}
	if !got.Equal(want) {
		t.Fatal("expected the exact-scope key, not the wildcard key")
	}

	// The wildcard still matches a scope with no exact entry.
	if _, err := store.Resolve("87654321", "other"); err != nil {
		t.Fatalf("Resolve via wildcard: %v", err)
	}
}

func TestResolveMissingReturnsPubKeyNotFound(t *testing.T) {
	db := openTestDB(t)
	store := NewStore(db)
	seedOrg(t, db, "87654321", "rp")

	_, err := store.Resolve("87654321", "nvi")
	if err == nil {
		t.Fatal("expected error")
	}
	prsErr, ok := prserr.As(err)
	if !ok || prsErr.Kind != prserr.PubKeyNotFound {
		t.Fatalf("expected PubKeyNotFound, got %v", err)
	}
}

func TestResolveUnknownOrgReturnsOrganizationNotFound(t *testing.T) {
	db := openTestDB(t)
	store := NewStore(db)

	_, err := store.Resolve("00000000", "nvi")
	if err == nil {
		t.Fatal("expected error")
	}
	prsErr, ok := prserr.As(err)
	if !ok || prsErr.Kind != prserr.OrganizationNotFound {
		t.Fatalf("expected OrganizationNotFound, got %v", err)
	}
}

func TestCreateKeyRejectsPrivateKey(t *testing.T) {
	db := openTestDB(t)
	store := NewStore(db)
	org := seedOrg(t, db, "87654321", "rp")

	_, err := store.CreateKey(org.ID, []string{"nvi"}, testPrivKeyPEM(t))
	if err == nil {
		t.Fatal("expected error for private key")
	}
}

func TestCreateKeyRejectsEmptyScope(t *testing.T) {
	db := openTestDB(t)
	store := NewStore(db)
	org := seedOrg(t, db, "87654321", "rp")

	_, err := store.CreateKey(org.ID, []string{"  ", ""}, testPubKeyPEM(t))
	if err == nil {
		t.Fatal("expected error for empty scope set")
	}
}

func TestNormalizeScope(t *testing.T) {
	got := NormalizeScope([]string{" NVI", "nvi", "Abc", ""})
	want := []string{"abc", "nvi"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestParseURA(t *testing.T) {
	got, err := ParseURA("ura:12345678")
	if err != nil {
		t.Fatalf("ParseURA: %v", err)
	}
	if got != "12345678" {
		t.Fatalf("got %q", got)
	}

	if _, err := ParseURA("12345678"); err == nil {
		t.Fatal("expected error without ura: prefix")
	}
	if _, err := ParseURA("ura:abcdefgh"); err == nil {
		t.Fatal("expected error for non-numeric ura")
	}
}

func TestMaxRidUsage(t *testing.T) {
	db := openTestDB(t)
	store := NewStore(db)
	seedOrg(t, db, "87654321", "rp")

	tier, err := store.MaxRidUsage("87654321")
	if err != nil {
		t.Fatalf("MaxRidUsage: %v", err)
	}
	if string(tier) != "rp" {
		t.Fatalf("got %q", tier)
	}
}
