package audithttp

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/quotedesk/internal/platform/httpx"
	"github.com/odyssey-erp/quotedesk/internal/shared"
)

const (
	exportLimit  = 10
	exportWindow = time.Minute
)

// MountRoutes registers the audit timeline and its CSV export. Exports are
// limited per account.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	r.Route("/audit", func(r chi.Router) {
		r.Get("/", h.handleTimeline)
		r.With(exportLimiter()).Get("/export.csv", h.handleExport)
	})
}

func exportLimiter() func(http.Handler) http.Handler {
	return httprate.Limit(exportLimit, exportWindow,
		httprate.WithKeyFuncs(accountKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Fail(w, http.StatusTooManyRequests, "export limit reached, try again shortly")
		}),
	)
}

func accountKey(r *http.Request) (string, error) {
	if actor, ok := shared.ActorFromContext(r.Context()); ok {
		return "audit-export:" + strconv.FormatInt(actor.AccountID, 10), nil
	}
	return httprate.KeyByIP(r)
}
