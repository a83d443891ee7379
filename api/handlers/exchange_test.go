package handlers

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"

	ristretto "github.com/gtank/ristretto255"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/minvws/nl-rdo-prs-go/internal/exchange"
	"github.com/minvws/nl-rdo-prs-go/internal/oprfcore"
	"github.com/minvws/nl-rdo-prs-go/internal/pseudonym"
	"github.com/minvws/nl-rdo-prs-go/internal/registry"
	"github.com/minvws/nl-rdo-prs-go/internal/ridcore"
)

func testHandlerEnv(t *testing.T) *Exchange {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("gorm.Open: %v", err)
	}
	if err := registry.Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	store := registry.NewStore(db)

	master := []byte("0123456789abcdef0123456789abcdef")[:32]
	uniform := make([]byte, 64)
	for i := range uniform {
		uniform[i] = byte(i + 1)
	}
	oprfKeyMaterial := new(ristretto.Scalar).FromUniformBytes(uniform).Encode(nil)
	oprfEngine, err := oprfcore.New(oprfKeyMaterial)
	if err != nil {
		t.Fatalf("oprfcore.New: %v", err)
	}

	org := registry.Organisation{URA: "87654321", Name: "org", MaxRidUsage: "bsn"}
	if err := db.Create(&org).Error; err != nil {
		t.Fatalf("create organisation: %v", err)
	}
	callerOrg := registry.Organisation{URA: "11112222", Name: "caller", MaxRidUsage: "bsn"}
	if err := db.Create(&callerOrg).Error; err != nil {
		t.Fatalf("create caller organisation: %v", err)
	}

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		t.Fatalf("MarshalPKIXPublicKey: %v", err)
	}
	pemData := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
	if _, err := store.CreateKey(org.ID, []string{"nvi"}, pemData); err != nil {
		t.Fatalf("CreateKey: %v", err)
	}

	orch := exchange.New(store, pseudonym.New(master), ridcore.New(master), oprfEngine)
	return &Exchange{Orch: orch}
}

func TestExchangePseudonymHandlerRejectsWrongMethod(t *testing.T) {
	e := testHandlerEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/exchange/pseudonym", nil)
	rec := httptest.NewRecorder()

	e.ExchangePseudonymHandler(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("got status %d", rec.Code)
	}
}

func TestExchangePseudonymHandlerRejectsMissingCallerContext(t *testing.T) {
	e := testHandlerEnv(t)
	body := `{"personal_id":{"landCode":"NL","type":"bsn","value":"123456782"},"recipient_org":"ura:87654321","recipient_scope":"nvi","pseudonym_type":"irreversible"}`
	req := httptest.NewRequest(http.MethodPost, "/exchange/pseudonym", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()

	e.ExchangePseudonymHandler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestExchangePseudonymHandlerSuccess(t *testing.T) {
	e := testHandlerEnv(t)
	body := `{"personal_id":{"landCode":"NL","type":"bsn","value":"123456782"},"recipient_org":"ura:87654321","recipient_scope":"nvi","pseudonym_type":"irreversible"}`
	req := httptest.NewRequest(http.MethodPost, "/exchange/pseudonym", bytes.NewBufferString(body))
	req.Header.Set(headerCallerURA, "11112222")
	req.Header.Set(headerCallerCardType, "S")
	rec := httptest.NewRecorder()

	e.ExchangePseudonymHandler(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("got status %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/jwe" {
		t.Fatalf("got content-type %q", ct)
	}
	if rec.Body.Len() == 0 {
		t.Fatal("expected a non-empty compact JWE body")
	}
}

func TestExchangePseudonymHandlerRejectsWrongCardType(t *testing.T) {
	e := testHandlerEnv(t)
	body := `{"personal_id":{"landCode":"NL","type":"bsn","value":"123456782"},"recipient_org":"ura:87654321","recipient_scope":"nvi","pseudonym_type":"irreversible"}`
	req := httptest.NewRequest(http.MethodPost, "/exchange/pseudonym", bytes.NewBufferString(body))
	req.Header.Set(headerCallerURA, "11112222")
	req.Header.Set(headerCallerCardType, "T")
	rec := httptest.NewRecorder()

	e.ExchangePseudonymHandler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d", rec.Code)
	}
}

func TestReceiveHandlerMalformedRid(t *testing.T) {
	e := testHandlerEnv(t)
	body := `{"rid":"not-a-rid","recipient_org":"ura:87654321","recipient_scope":"nvi","pseudonym_type":"irp"}`
	req := httptest.NewRequest(http.MethodPost, "/receive", bytes.NewBufferString(body))
	req.Header.Set(headerCallerURA, "11112222")
	rec := httptest.NewRecorder()

	e.ReceiveHandler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestHealthHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	HealthHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d", rec.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != "OK" {
		t.Fatalf("got status %q", resp.Status)
	}
}

func TestHealthHandlerRejectsWrongMethod(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	rec := httptest.NewRecorder()

	HealthHandler(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("got status %d", rec.Code)
	}
}
