// Package jweenv builds the compact JWE responses described in §4.5 and
// §6.2: RSA-OAEP-256 key wrapping, A256GCM content encryption, the
// recipient public key's SHA-256 thumbprint as kid, and a fixed claim set.
package jweenv

import (
	"crypto"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"time"

	jose "github.com/go-jose/go-jose/v4"

	"github.com/minvws/nl-rdo-prs-go/internal/prserr"
)

// envelopeTTL is how long a built JWE's exp claim is valid for, per §4.5.
const envelopeTTL = 300 * time.Second

// Now is overridable in tests; defaults to time.Now.
var Now = time.Now

// Build assembles the JWE claim set and encrypts it compactly for the
// recipient's RSA public key.
func Build(audience, scope, subject string, pubKey *rsa.PublicKey, extra map[string]any) (string, error) {
	now := Now().UTC().Unix()

	claims := map[string]any{
		"subject": subject,
		"aud":     audience,
		"scope":   scope,
		"version": "1.1",
		"iat":     now,
		"exp":     now + int64(envelopeTTL.Seconds()),
	}
	for k, v := range extra {
		claims[k] = v
	}

	plaintext, err := json.Marshal(claims)
	if err != nil {
		return "", prserr.Wrap(prserr.CryptoInternal, "failed to encode jwe claims", err)
	}

	kid, err := thumbprint(pubKey)
	if err != nil {
		return "", prserr.Wrap(prserr.CryptoInternal, "failed to compute key thumbprint", err)
	}

	recipient := jose.Recipient{
		Algorithm: jose.RSA_OAEP_256,
		Key:       pubKey,
		KeyID:     kid,
	}

	opts := (&jose.EncrypterOptions{Compact: true}).WithContentType("application/json")

	encrypter, err := jose.NewEncrypter(jose.A256GCM, recipient, opts)
	if err != nil {
		return "", prserr.Wrap(prserr.CryptoInternal, "failed to initialise encrypter", err)
	}

	obj, err := encrypter.Encrypt(plaintext)
	if err != nil {
		return "", prserr.Wrap(prserr.CryptoInternal, "failed to encrypt jwe", err)
	}

	compact, err := obj.CompactSerialize()
	if err != nil {
		return "", prserr.Wrap(prserr.CryptoInternal, "failed to serialize jwe", err)
	}

	return compact, nil
}

// thumbprint computes the base64url-encoded SHA-256 JWK thumbprint of pub,
// used as the JWE's kid header.
func thumbprint(pub *rsa.PublicKey) (string, error) {
	jwk := jose.JSONWebKey{Key: pub}
	sum, err := jwk.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(sum), nil
}
