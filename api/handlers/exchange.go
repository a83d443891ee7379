package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/minvws/nl-rdo-prs-go/internal/exchange"
	"github.com/minvws/nl-rdo-prs-go/internal/personalid"
	"github.com/minvws/nl-rdo-prs-go/internal/policy"
	"github.com/minvws/nl-rdo-prs-go/internal/prserr"
	"github.com/minvws/nl-rdo-prs-go/internal/trust"
)

// Exchange wires an ExchangeOrchestrator into the four request-scoped HTTP
// operations of §4.8. Construct once at startup and register its methods as
// handlers, mirroring how api/handlers/devices.go binds onto a *db.State.
type Exchange struct {
	Orch *exchange.Orchestrator
}

type personalIDWire struct {
	LandCode string `json:"landCode"`
	Type     string `json:"type"`
	Value    string `json:"value"`
}

func (w personalIDWire) toPersonalID() (personalid.PersonalId, error) {
	return personalid.New(w.LandCode, w.Type, w.Value)
}

// writeError maps a prserr.Kind to its HTTP status and writes the fixed,
// client-safe message. The internal cause, if any, is logged but never sent.
func writeError(w http.ResponseWriter, err error) {
	prsErr, ok := prserr.As(err)
	if !ok {
		slog.Error("unexpected error", "err", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if cause := prsErr.Cause(); cause != nil {
		slog.Error("request failed", "kind", prsErr.Kind, "cause", cause)
	} else {
		slog.Debug("request failed", "kind", prsErr.Kind)
	}
	http.Error(w, prsErr.Message, prserr.StatusCode(prsErr.Kind))
}

func decodeJSONBody(r *http.Request, v any) error {
	defer func() { _ = r.Body.Close() }()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return prserr.Wrap(prserr.InvalidInput, "malformed request body", err)
	}
	return nil
}

func writeJWE(w http.ResponseWriter, status int, compact string) {
	w.Header().Set("Content-Type", "application/jwe")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(compact))
}

// ExchangePseudonymRequest is the wire shape of POST /exchange/pseudonym.
type ExchangePseudonymRequest struct {
	PersonalID     personalIDWire `json:"personal_id"`
	RecipientOrg   string         `json:"recipient_org"`
	RecipientScope string         `json:"recipient_scope"`
	PseudonymType  string         `json:"pseudonym_type"`
}

// ExchangePseudonymHandler implements §4.8.1, exposed as POST /exchange/pseudonym.
func (e *Exchange) ExchangePseudonymHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	caller, err := callerFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if !trustSatisfiesOrigination(caller) {
		writeError(w, prserr.New(prserr.PolicyDenied, "caller's card type does not permit origination"))
		return
	}

	var req ExchangePseudonymRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	pid, err := req.PersonalID.toPersonalID()
	if err != nil {
		writeError(w, err)
		return
	}

	callerMax, err := e.Orch.Registry.MaxRidUsage(caller.URA)
	if err != nil {
		writeError(w, err)
		return
	}

	compact, err := e.Orch.ExchangePseudonym(exchange.ExchangeRequest{
		PersonalID:        pid,
		RecipientOrg:      req.RecipientOrg,
		RecipientScope:    req.RecipientScope,
		PseudonymType:     req.PseudonymType,
		CallerMaxRidUsage: callerMax,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	// §8 scenario S1: a direct pseudonym exchange returns HTTP 201.
	writeJWE(w, http.StatusCreated, compact)
}

// IssueRidRequest is the wire shape of POST /exchange/rid.
type IssueRidRequest struct {
	PersonalID     personalIDWire `json:"personal_id"`
	RecipientOrg   string         `json:"recipient_org"`
	RecipientScope string         `json:"recipient_scope"`
	RidUsage       string         `json:"rid_usage"`
}

// IssueRidHandler implements §4.8.2, exposed as POST /exchange/rid.
func (e *Exchange) IssueRidHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	caller, err := callerFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if !trustSatisfiesOrigination(caller) {
		writeError(w, prserr.New(prserr.PolicyDenied, "caller's card type does not permit origination"))
		return
	}

	var req IssueRidRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	pid, err := req.PersonalID.toPersonalID()
	if err != nil {
		writeError(w, err)
		return
	}

	compact, err := e.Orch.IssueRid(exchange.IssueRidRequest{
		PersonalID:     pid,
		RecipientOrg:   req.RecipientOrg,
		RecipientScope: req.RecipientScope,
		RidUsage:       policy.Tier(req.RidUsage),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJWE(w, http.StatusOK, compact)
}

// RedeemRidWireRequest is the wire shape of POST /receive.
type RedeemRidWireRequest struct {
	Rid            string `json:"rid"`
	RecipientOrg   string `json:"recipient_org"`
	RecipientScope string `json:"recipient_scope"`
	PseudonymType  string `json:"pseudonym_type"`
}

// ReceiveHandler implements §4.8.3, exposed as POST /receive.
func (e *Exchange) ReceiveHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if _, err := callerFromRequest(r); err != nil {
		writeError(w, err)
		return
	}

	var req RedeemRidWireRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := e.Orch.RedeemRid(exchange.RedeemRidRequest{
		Rid:            req.Rid,
		RecipientOrg:   req.RecipientOrg,
		RecipientScope: req.RecipientScope,
		PseudonymType:  policy.Tier(req.PseudonymType),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		slog.Error("failed to encode receive response", "err", err)
	}
}

// OprfEvalWireRequest is the wire shape of POST /oprf/eval.
type OprfEvalWireRequest struct {
	BlindedInput   string `json:"blinded_input"`
	RecipientOrg   string `json:"recipient_org"`
	RecipientScope string `json:"recipient_scope"`
}

// OprfEvalHandler implements §4.8.4, exposed as POST /oprf/eval.
func (e *Exchange) OprfEvalHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if _, err := callerFromRequest(r); err != nil {
		writeError(w, err)
		return
	}

	var req OprfEvalWireRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	compact, err := e.Orch.OprfEval(exchange.OprfEvalRequest{
		BlindedInputB64: req.BlindedInput,
		RecipientOrg:    req.RecipientOrg,
		RecipientScope:  req.RecipientScope,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJWE(w, http.StatusOK, compact)
}

// trustSatisfiesOrigination reports whether caller may originate pseudonyms
// or RIDs at all, per §6.1: only card_type "S" is accepted for origination.
func trustSatisfiesOrigination(caller trust.AuthenticatedCaller) bool {
	return caller.CardType == trust.CardS
}
