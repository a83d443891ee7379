package handlers

import (
	"net/http"
	"strings"

	"github.com/minvws/nl-rdo-prs-go/internal/prserr"
	"github.com/minvws/nl-rdo-prs-go/internal/registry"
	"github.com/minvws/nl-rdo-prs-go/internal/trust"
)

// Headers the mTLS/OAuth2-terminating reverse proxy is expected to set once
// it has authenticated the caller (§6.1). Parsing the actual client
// certificate, the cnf.x5t#S256 thumbprint binding, and the OAuth2 token is
// out of scope for this core — only the resulting AuthenticatedCaller
// matters here.
const (
	headerCallerURA      = "X-PRS-Caller-URA"
	headerCallerCardType = "X-PRS-Caller-Card-Type"
	headerCallerScopes   = "X-PRS-Caller-Scopes"
)

// callerFromRequest reconstructs the AuthenticatedCaller the trust boundary
// attached to r. Returns InvalidInput if the required headers are absent —
// this never happens once the reverse proxy sits in front of the core, but
// the handler must not trust an unauthenticated request.
func callerFromRequest(r *http.Request) (trust.AuthenticatedCaller, error) {
	ura := r.Header.Get(headerCallerURA)
	if ura == "" {
		return trust.AuthenticatedCaller{}, prserr.New(prserr.InvalidInput, "missing authenticated caller context")
	}
	normalized, err := registry.ParseURA("ura:" + ura)
	if err != nil {
		return trust.AuthenticatedCaller{}, err
	}

	scopes := make(map[string]struct{})
	if raw := r.Header.Get(headerCallerScopes); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(s)
			if s != "" {
				scopes[s] = struct{}{}
			}
		}
	}

	return trust.AuthenticatedCaller{
		URA:      normalized,
		CardType: r.Header.Get(headerCallerCardType),
		Scopes:   scopes,
	}, nil
}
