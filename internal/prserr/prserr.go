// Package prserr defines the typed error kinds the core surfaces, along
// with the HTTP status each kind maps to. Internal causes travel with the
// error for logging but are never rendered to a client.
package prserr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies one of the failure classes a PRS operation can return.
type Kind string

const (
	InvalidInput         Kind = "InvalidInput"
	InvalidURA           Kind = "InvalidURA"
	OrganizationNotFound Kind = "OrganizationNotFound"
	PubKeyNotFound       Kind = "PubKeyNotFound"
	PolicyDenied         Kind = "PolicyDenied"
	InvalidRid           Kind = "InvalidRid"
	InvalidPseudonym     Kind = "InvalidPseudonym"
	InvalidBlind         Kind = "InvalidBlind"
	CryptoInternal       Kind = "CryptoInternal"
)

// Error is the error type every core package returns. Message is the fixed,
// client-safe text for Kind; cause is the precise failure, kept only for
// operator logs.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Cause returns the internal failure reason, for logging only.
func (e *Error) Cause() error { return e.cause }

// New builds an Error with a fixed, client-safe message and no cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error carrying an internal cause that must not reach the client.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// As extracts a *Error from err, following the standard errors.As contract.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// StatusCode maps a Kind to the HTTP status code it is surfaced as.
func StatusCode(kind Kind) int {
	switch kind {
	case InvalidInput, InvalidURA, PolicyDenied, InvalidRid, InvalidPseudonym, InvalidBlind:
		return http.StatusBadRequest
	case OrganizationNotFound, PubKeyNotFound:
		return http.StatusNotFound
	case CryptoInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
