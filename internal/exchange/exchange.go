// Package exchange implements the ExchangeOrchestrator (§4.8): the four
// request-scoped operations that glue PseudonymEngine, RidEngine,
// OprfEngine, KeyRegistry and UsagePolicy together. Every operation is
// synchronous and side-effect-free beyond a KeyRegistry read, per §5.
package exchange

import (
	"encoding/base64"

	"github.com/minvws/nl-rdo-prs-go/internal/jweenv"
	"github.com/minvws/nl-rdo-prs-go/internal/oprfcore"
	"github.com/minvws/nl-rdo-prs-go/internal/personalid"
	"github.com/minvws/nl-rdo-prs-go/internal/policy"
	"github.com/minvws/nl-rdo-prs-go/internal/prserr"
	"github.com/minvws/nl-rdo-prs-go/internal/pseudonym"
	"github.com/minvws/nl-rdo-prs-go/internal/registry"
	"github.com/minvws/nl-rdo-prs-go/internal/ridcore"
)

// PseudonymType values accepted by the direct exchange operation (§4.8.1).
const (
	TypeIrreversible = "irreversible"
	TypeReversible   = "reversible"
)

// Orchestrator wires the engines together. Construct once at startup and
// share by ownership — no ambient singletons, per §9's design note.
type Orchestrator struct {
	Registry  registry.KeyRegistry
	Pseudonym *pseudonym.Engine
	Rid       *ridcore.Engine
	Oprf      *oprfcore.Engine
}

// New builds an Orchestrator from its already-constructed collaborators.
func New(reg registry.KeyRegistry, p *pseudonym.Engine, r *ridcore.Engine, o *oprfcore.Engine) *Orchestrator {
	return &Orchestrator{Registry: reg, Pseudonym: p, Rid: r, Oprf: o}
}

// ExchangeRequest is the input to ExchangePseudonym (§4.8.1).
type ExchangeRequest struct {
	PersonalID        personalid.PersonalId
	RecipientOrg      string
	RecipientScope    string
	PseudonymType     string
	CallerMaxRidUsage policy.Tier
}

// ExchangePseudonym implements §4.8.1: direct exchange of a personal
// identifier for a pseudonym, wrapped in a JWE for the recipient.
func (o *Orchestrator) ExchangePseudonym(req ExchangeRequest) (string, error) {
	ura, err := registry.ParseURA(req.RecipientOrg)
	if err != nil {
		return "", err
	}

	if _, err := o.Registry.OrganisationByURA(ura); err != nil {
		return "", err
	}

	if req.PseudonymType == TypeReversible && req.CallerMaxRidUsage == policy.Irp {
		return "", prserr.New(prserr.PolicyDenied, "caller is not permitted to originate reversible pseudonyms")
	}

	pubKey, err := o.Registry.Resolve(ura, req.RecipientScope)
	if err != nil {
		return "", err
	}

	var subject string
	switch req.PseudonymType {
	case TypeIrreversible:
		subject, err = o.Pseudonym.GenerateIrreversible(req.PersonalID, "ura:"+ura, req.RecipientScope)
	case TypeReversible:
		subject, err = o.Pseudonym.GenerateReversible(req.PersonalID, "ura:"+ura, req.RecipientScope)
	default:
		return "", prserr.New(prserr.InvalidInput, "unsupported pseudonym type")
	}
	if err != nil {
		return "", err
	}

	return jweenv.Build("ura:"+ura, req.RecipientScope, subject, pubKey, nil)
}

// IssueRidRequest is the input to IssueRid (§4.8.2).
type IssueRidRequest struct {
	PersonalID     personalid.PersonalId
	RecipientOrg   string
	RecipientScope string
	RidUsage       policy.Tier
}

// IssueRid implements §4.8.2: issue an encrypted, authenticated RID bound
// to (identifier, recipient, usage-ceiling), wrapped in a JWE.
func (o *Orchestrator) IssueRid(req IssueRidRequest) (string, error) {
	if !policy.Valid(req.RidUsage) {
		return "", prserr.New(prserr.InvalidInput, "invalid rid usage")
	}

	claims := ridcore.Claims{
		Usage:                 string(req.RidUsage),
		RecipientOrganization: req.RecipientOrg,
		RecipientScope:        req.RecipientScope,
		PersonalID:            req.PersonalID.String(),
	}

	token, err := o.Rid.EncryptRid(claims)
	if err != nil {
		return "", err
	}

	ura, err := registry.ParseURA(req.RecipientOrg)
	if err != nil {
		return "", err
	}
	if _, err := o.Registry.OrganisationByURA(ura); err != nil {
		return "", err
	}
	pubKey, err := o.Registry.Resolve(ura, req.RecipientScope)
	if err != nil {
		return "", err
	}

	subject := ridcore.Prefix + token
	extra := map[string]any{"ridUsage": string(req.RidUsage)}

	return jweenv.Build("ura:"+ura, req.RecipientScope, subject, pubKey, extra)
}

// RedeemRidRequest is the input to RedeemRid (§4.8.3).
type RedeemRidRequest struct {
	Rid            string
	RecipientOrg   string
	RecipientScope string
	PseudonymType  policy.Tier
}

// RedeemRidResult is the response shape of §6.2's receive envelope.
type RedeemRidResult struct {
	Pseudonym string `json:"pseudonym"`
	Type      string `json:"type"`
}

// RedeemRid implements §4.8.3's redemption state machine.
func (o *Orchestrator) RedeemRid(req RedeemRidRequest) (RedeemRidResult, error) {
	if len(req.Rid) < len(ridcore.Prefix) || req.Rid[:len(ridcore.Prefix)] != ridcore.Prefix {
		return RedeemRidResult{}, prserr.New(prserr.InvalidRid, "not a rid")
	}
	if !policy.Valid(req.PseudonymType) {
		return RedeemRidResult{}, prserr.New(prserr.InvalidInput, "invalid pseudonym type")
	}

	token := req.Rid[len(ridcore.Prefix):]
	claims, err := o.Rid.DecryptRid(token)
	if err != nil {
		return RedeemRidResult{}, err
	}

	if claims.RecipientOrganization != req.RecipientOrg || claims.RecipientScope != req.RecipientScope {
		return RedeemRidResult{}, prserr.New(prserr.InvalidRid, "rid does not match requested audience")
	}

	ridUsage := policy.Tier(claims.Usage)
	if !policy.Valid(ridUsage) {
		return RedeemRidResult{}, prserr.New(prserr.InvalidRid, "rid carries an invalid usage")
	}

	ura, err := registry.ParseURA(req.RecipientOrg)
	if err != nil {
		return RedeemRidResult{}, err
	}
	recipientMax, err := o.Registry.MaxRidUsage(ura)
	if err != nil {
		return RedeemRidResult{}, err
	}

	if !policy.RedemptionAllowed(ridUsage, recipientMax, req.PseudonymType) {
		return RedeemRidResult{}, prserr.New(prserr.PolicyDenied, "rid usage policy denies this redemption")
	}

	pid, err := personalid.FromString(claims.PersonalID)
	if err != nil {
		return RedeemRidResult{}, prserr.New(prserr.InvalidRid, "rid carries an invalid personal id")
	}

	var pseudonymStr string
	switch req.PseudonymType {
	case policy.Bsn:
		pseudonymStr = pid.String()
	case policy.Rp:
		pseudonymStr, err = o.Pseudonym.GenerateReversible(pid, claims.RecipientOrganization, claims.RecipientScope)
	case policy.Irp:
		pseudonymStr, err = o.Pseudonym.GenerateIrreversible(pid, claims.RecipientOrganization, claims.RecipientScope)
	}
	if err != nil {
		return RedeemRidResult{}, err
	}

	return RedeemRidResult{Pseudonym: pseudonymStr, Type: string(req.PseudonymType)}, nil
}

// OprfEvalRequest is the input to OprfEval (§4.8.4).
type OprfEvalRequest struct {
	BlindedInputB64 string
	RecipientOrg    string
	RecipientScope  string
}

// OprfEval implements §4.8.4: evaluate a blinded input and wrap the result
// in a JWE for the recipient.
func (o *Orchestrator) OprfEval(req OprfEvalRequest) (string, error) {
	ura, err := registry.ParseURA(req.RecipientOrg)
	if err != nil {
		return "", err
	}
	if _, err := o.Registry.OrganisationByURA(ura); err != nil {
		return "", err
	}
	pubKey, err := o.Registry.Resolve(ura, req.RecipientScope)
	if err != nil {
		return "", err
	}

	blinded, err := base64.URLEncoding.DecodeString(req.BlindedInputB64)
	if err != nil {
		return "", prserr.New(prserr.InvalidInput, "blinded_input must be base64url")
	}

	eval, err := o.Oprf.Evaluate(blinded)
	if err != nil {
		return "", err
	}

	subject := "pseudonym:eval:" + base64.URLEncoding.EncodeToString(eval)
	return jweenv.Build("ura:"+ura, req.RecipientScope, subject, pubKey, nil)
}
