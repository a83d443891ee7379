// Package ridcore implements the RidEngine (§4.3): authenticated encryption
// of RID claims under AES-256-GCM with a fixed associated-data string, plus
// the RidClaims shape (§3) the rest of the core assembles and inspects.
package ridcore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"

	"github.com/minvws/nl-rdo-prs-go/internal/kdf"
	"github.com/minvws/nl-rdo-prs-go/internal/prserr"
)

const (
	aad      = "RID:v1"
	nonceLen = 12

	// Prefix is how a RID pseudonym string begins on the wire, per §3.
	Prefix = "rid:"
)

// Claims is the plaintext bound inside a RID envelope. Field order matches
// §4.8.2 step 1 exactly, so JSON-encoding two equal Claims values always
// produces byte-identical plaintext.
type Claims struct {
	Usage                 string `json:"usage"`
	RecipientOrganization string `json:"recipient_organization"`
	RecipientScope        string `json:"recipient_scope"`
	PersonalID            string `json:"personal_id"`
}

// Engine derives its subkey from the process-wide master key.
type Engine struct {
	master []byte
}

// New builds an Engine over the given master key.
func New(master []byte) *Engine {
	return &Engine{master: master}
}

// EncryptRid authenticates and encrypts claims, returning the
// "rid:"-less base64url token (nonce‖ciphertext‖tag). The 16-byte GCM tag
// is appended after the ciphertext, as cipher.AEAD.Seal produces it; it does
// not precede the ciphertext.
func (e *Engine) EncryptRid(claims Claims) (string, error) {
	plaintext, err := json.Marshal(claims)
	if err != nil {
		return "", prserr.Wrap(prserr.CryptoInternal, "failed to encode rid claims", err)
	}

	key, err := kdf.RIDAESKey(e.master)
	if err != nil {
		return "", prserr.Wrap(prserr.CryptoInternal, "failed to derive key", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", prserr.Wrap(prserr.CryptoInternal, "failed to initialise cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", prserr.Wrap(prserr.CryptoInternal, "failed to initialise AEAD", err)
	}

	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return "", prserr.Wrap(prserr.CryptoInternal, "failed to generate nonce", err)
	}

	sealed := gcm.Seal(nil, nonce, plaintext, []byte(aad))

	out := make([]byte, 0, len(nonce)+len(sealed))
	out = append(out, nonce...)
	out = append(out, sealed...)

	return base64.URLEncoding.EncodeToString(out), nil
}

// DecryptRid reverses EncryptRid. Any failure — malformed base64, a token
// shorter than nonce+tag, or AEAD verification failure — collapses to
// InvalidRid without distinguishing the cause to the caller, per §4.3.
func (e *Engine) DecryptRid(token string) (Claims, error) {
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return Claims{}, prserr.New(prserr.InvalidRid, "malformed rid token")
	}
	if len(raw) < nonceLen {
		return Claims{}, prserr.New(prserr.InvalidRid, "malformed rid token")
	}

	nonce := raw[:nonceLen]
	ciphertext := raw[nonceLen:]

	key, err := kdf.RIDAESKey(e.master)
	if err != nil {
		return Claims{}, prserr.Wrap(prserr.CryptoInternal, "failed to derive key", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return Claims{}, prserr.Wrap(prserr.CryptoInternal, "failed to initialise cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return Claims{}, prserr.Wrap(prserr.CryptoInternal, "failed to initialise AEAD", err)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, []byte(aad))
	if err != nil {
		return Claims{}, prserr.New(prserr.InvalidRid, "failed to decrypt rid")
	}

	var claims Claims
	if err := json.Unmarshal(plaintext, &claims); err != nil {
		return Claims{}, prserr.New(prserr.InvalidRid, "malformed rid claims")
	}

	return claims, nil
}
