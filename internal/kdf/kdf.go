// Package kdf derives labelled symmetric subkeys from the process-wide
// master key via HKDF-SHA256, and provides the constant-time comparison
// primitives the rest of the core relies on.
package kdf

import (
	"crypto/sha256"
	"crypto/subtle"
	"io"

	"golang.org/x/crypto/hkdf"
)

// SubkeyLen is the length in bytes of every derived subkey.
const SubkeyLen = 32

// Derive expands master into a labelled subkey of length n using
// HKDF-SHA256 with an empty salt, per §4.1.
func Derive(master []byte, info []byte, n int) ([]byte, error) {
	r := hkdf.New(sha256.New, master, nil, info)
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Labels for the subkeys named in §4.1.
const (
	InfoIRPHMAC = "prs:irp:hmac"
	InfoRIDAES  = "prs:rid"
	rpAESPrefix = "prs:rp:aes-siv:"
)

// IRPHMACKey derives irp_hmac_key.
func IRPHMACKey(master []byte) ([]byte, error) {
	return Derive(master, []byte(InfoIRPHMAC), SubkeyLen)
}

// RPAESKey derives rp_aes_key(org): the reversible-pseudonym key scoped to
// one recipient organisation.
func RPAESKey(master []byte, org string) ([]byte, error) {
	return Derive(master, []byte(rpAESPrefix+org), SubkeyLen)
}

// RPSIVKeys derives the MAC and encryption halves of rp_aes_key(org) used by
// the deterministic AES-SIV substitute in internal/pseudonym (see its doc
// comment and §9's third open question). Both halves come from a single
// HKDF expansion of the same labelled info string, so this remains one
// logical subkey split in two for the synthetic-IV construction.
func RPSIVKeys(master []byte, org string) (macKey, encKey []byte, err error) {
	raw, err := Derive(master, []byte(rpAESPrefix+org), 2*SubkeyLen)
	if err != nil {
		return nil, nil, err
	}
	return raw[:SubkeyLen], raw[SubkeyLen:], nil
}

// RIDAESKey derives rid_aes_key.
func RIDAESKey(master []byte) ([]byte, error) {
	return Derive(master, []byte(InfoRIDAES), SubkeyLen)
}

// ConstantTimeEqual reports whether a and b are equal, in time independent
// of their contents (but not their length).
func ConstantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}
