// Package api registers the PRS HTTP surface (§6.2) onto a net/http mux,
// the way the teacher wires its rendezvous/owner/manufacturer handlers onto
// api.NewHTTPHandler before serving.
package api

import (
	"net/http"

	"golang.org/x/time/rate"

	"github.com/minvws/nl-rdo-prs-go/api/handlers"
	"github.com/minvws/nl-rdo-prs-go/internal/exchange"
)

// requestsPerSecond and burstSize bound how fast a single caller may drive
// the four exchange operations; /health is exempt since it carries no
// trust-boundary cost.
const (
	requestsPerSecond rate.Limit = 50
	burstSize                    = 100
)

// NewRouter builds the request router for a PRS instance backed by orch.
func NewRouter(orch *exchange.Orchestrator) http.Handler {
	ex := &handlers.Exchange{Orch: orch}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handlers.HealthHandler)
	mux.Handle("/exchange/pseudonym", withRateLimit(http.HandlerFunc(ex.ExchangePseudonymHandler), requestsPerSecond, burstSize))
	mux.Handle("/exchange/rid", withRateLimit(http.HandlerFunc(ex.IssueRidHandler), requestsPerSecond, burstSize))
	mux.Handle("/receive", withRateLimit(http.HandlerFunc(ex.ReceiveHandler), requestsPerSecond, burstSize))
	mux.Handle("/oprf/eval", withRateLimit(http.HandlerFunc(ex.OprfEvalHandler), requestsPerSecond, burstSize))
	return mux
}
