// Package oprfcore implements the OprfEngine (§4.4): server-side
// evaluation of a blinded input against a secret scalar in a prime-order
// group. The group is Ristretto, the same curve choice avahowell-occlude's
// OPAQUE implementation makes for exactly this reason: a safe prime-order
// elliptic curve group with a canonical element encoding and constant-time
// arithmetic.
package oprfcore

import (
	ristretto "github.com/gtank/ristretto255"

	"github.com/minvws/nl-rdo-prs-go/internal/prserr"
)

// Engine holds the server's OPRF secret scalar.
type Engine struct {
	sk *ristretto.Scalar
}

// New builds an Engine from a 32-byte canonically-encoded scalar.
func New(sk []byte) (*Engine, error) {
	s := new(ristretto.Scalar)
	if err := s.Decode(sk); err != nil {
		return nil, prserr.Wrap(prserr.CryptoInternal, "invalid oprf secret key", err)
	}
	return &Engine{sk: s}, nil
}

// Evaluate computes E = sk·B for the group element encoded by
// blindedInput, returning its compressed encoding. The scalar
// multiplication ristretto255 performs is constant-time in sk, satisfying
// §4.4's side-channel requirement.
func (e *Engine) Evaluate(blindedInput []byte) ([]byte, error) {
	b := new(ristretto.Element)
	if err := b.Decode(blindedInput); err != nil {
		return nil, prserr.New(prserr.InvalidBlind, "blinded input is not a valid group element")
	}

	result := new(ristretto.Element).ScalarMult(e.sk, b)
	return result.Encode(nil), nil
}
