// Package pseudonym implements the PseudonymEngine (§4.2): deterministic
// irreversible (HMAC-SHA256) and reversible pseudonyms for a personal
// identifier, scoped to a recipient (organisation, scope) pair.
//
// §4.2 names AES-SIV for the reversible construction, but none of the
// pack's example repos import an AES-SIV library (the closest,
// brave-experiments-opaque, only pulls in AEAD primitives through
// bytemare/crypto's curve/hash helpers, not a SIV mode). §9's third open
// question sanctions exactly this situation: substitute a deterministic
// construction built from HMAC and AES-CTR that preserves both the
// determinism property and AEAD-style authenticity. The scheme is a
// simplified synthetic-IV: a MAC over the associated data and plaintext
// serves as both the authentication tag and, after a second derivation, the
// counter-mode IV, so encrypting the same subject twice yields the same
// ciphertext (§8 property 4) while any bit flip in the ciphertext is
// detected (§8 property 6).
package pseudonym

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/minvws/nl-rdo-prs-go/internal/kdf"
	"github.com/minvws/nl-rdo-prs-go/internal/personalid"
	"github.com/minvws/nl-rdo-prs-go/internal/prserr"
)

const (
	// aad is the associated data bound to every reversible pseudonym's AEAD.
	aad = "PRS:Pseudonym:v1"

	irreversiblePrefix = "pseudonym:irreversible:"
	reversiblePrefix   = "pseudonym:reversible:"

	tagLen = 16
	ivLen  = aes.BlockSize
)

// Decrypted is the result of decrypting a reversible pseudonym.
type Decrypted struct {
	PersonalId     personalid.PersonalId
	RecipientOrg   string
	RecipientScope string
}

// Engine derives its subkeys from a single process-wide master key.
type Engine struct {
	master []byte
}

// New builds an Engine over the given master key. The master key is never
// copied into logs or retained beyond this struct.
func New(master []byte) *Engine {
	return &Engine{master: master}
}

func subject(pid personalid.PersonalId, recipientOrg, recipientScope string) (string, error) {
	if strings.Contains(recipientOrg, "|") || strings.Contains(recipientScope, "|") {
		return "", prserr.New(prserr.InvalidInput, "invalid characters in recipient organisation or scope")
	}
	return fmt.Sprintf("%s|%s|%s", pid.String(), recipientOrg, recipientScope), nil
}

// GenerateIrreversible computes a deterministic, one-way pseudonym for pid
// scoped to (recipientOrg, recipientScope).
func (e *Engine) GenerateIrreversible(pid personalid.PersonalId, recipientOrg, recipientScope string) (string, error) {
	subj, err := subject(pid, recipientOrg, recipientScope)
	if err != nil {
		return "", err
	}

	key, err := kdf.IRPHMACKey(e.master)
	if err != nil {
		return "", prserr.Wrap(prserr.CryptoInternal, "failed to derive key", err)
	}

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(subj))
	digest := mac.Sum(nil)

	return irreversiblePrefix + base64.URLEncoding.EncodeToString(digest), nil
}

// GenerateReversible computes a deterministic, recipient-reversible
// pseudonym for pid scoped to (recipientOrg, recipientScope).
func (e *Engine) GenerateReversible(pid personalid.PersonalId, recipientOrg, recipientScope string) (string, error) {
	subj, err := subject(pid, recipientOrg, recipientScope)
	if err != nil {
		return "", err
	}

	encoded, err := e.encryptSubject(subj, recipientOrg)
	if err != nil {
		return "", prserr.Wrap(prserr.CryptoInternal, "failed to encrypt data", err)
	}
	return reversiblePrefix + encoded, nil
}

// DecryptReversible recovers the personal id, recipient org and scope bound
// into a reversible pseudonym previously minted for recipientOrg. Any
// failure (base64, tag mismatch, malformed subject) collapses to
// InvalidPseudonym per §4.9.
func (e *Engine) DecryptReversible(encoded, recipientOrg string) (Decrypted, error) {
	trimmed := strings.TrimPrefix(encoded, reversiblePrefix)

	subj, err := e.decryptSubject(trimmed, recipientOrg)
	if err != nil {
		return Decrypted{}, prserr.New(prserr.InvalidPseudonym, "failed to decode reversible pseudonym")
	}

	parts := strings.Split(subj, "|")
	if len(parts) != 3 {
		return Decrypted{}, prserr.New(prserr.InvalidPseudonym, "failed to decode reversible pseudonym")
	}

	pid, err := personalid.FromString(parts[0])
	if err != nil {
		return Decrypted{}, prserr.New(prserr.InvalidPseudonym, "failed to decode reversible pseudonym")
	}

	return Decrypted{
		PersonalId:     pid,
		RecipientOrg:   parts[1],
		RecipientScope: parts[2],
	}, nil
}

// sivTag computes the synthetic-IV tag: a MAC over the associated data and
// the plaintext, under macKey.
func sivTag(macKey []byte, message string) []byte {
	mac := hmac.New(sha256.New, macKey)
	mac.Write([]byte(aad))
	mac.Write([]byte{0})
	mac.Write([]byte(message))
	return mac.Sum(nil)[:tagLen]
}

// sivIV derives the CTR-mode IV from the tag, so it never needs to be
// transmitted alongside the ciphertext.
func sivIV(macKey, tag []byte) []byte {
	mac := hmac.New(sha256.New, macKey)
	mac.Write([]byte("prs:rp:siv-iv"))
	mac.Write(tag)
	return mac.Sum(nil)[:ivLen]
}

func (e *Engine) encryptSubject(message, recipientOrg string) (string, error) {
	macKey, encKey, err := kdf.RPSIVKeys(e.master, recipientOrg)
	if err != nil {
		return "", err
	}

	tag := sivTag(macKey, message)
	iv := sivIV(macKey, tag)

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return "", err
	}
	stream := cipher.NewCTR(block, iv)

	ct := make([]byte, len(message))
	stream.XORKeyStream(ct, []byte(message))

	data := append(append([]byte{}, tag...), ct...)
	return base64.URLEncoding.EncodeToString(data), nil
}

func (e *Engine) decryptSubject(encoded, recipientOrg string) (string, error) {
	data, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	if len(data) < tagLen {
		return "", fmt.Errorf("ciphertext too short")
	}

	tag := data[:tagLen]
	ct := data[tagLen:]

	macKey, encKey, err := kdf.RPSIVKeys(e.master, recipientOrg)
	if err != nil {
		return "", err
	}

	iv := sivIV(macKey, tag)
	block, err := aes.NewCipher(encKey)
	if err != nil {
		return "", err
	}
	stream := cipher.NewCTR(block, iv)

	plain := make([]byte, len(ct))
	stream.XORKeyStream(plain, ct)

	expected := sivTag(macKey, string(plain))
	if !kdf.ConstantTimeEqual(expected, tag) {
		return "", fmt.Errorf("tag mismatch")
	}

	return string(plain), nil
}
