package api

import (
	"net/http"
	"time"

	"github.com/jobstream-labs/jobstream/pkg/health"
	"github.com/jobstream-labs/jobstream/pkg/metrics"
	"github.com/jobstream-labs/jobstream/pkg/middleware"
)

// NewRouter wires every route behind the middleware chain
// (RequestID → CORS → Metrics → Timeout).
//
// Route table:
//
//	GET    /api/v1/search/{user_id}                → contextual search
//	POST   /api/v1/users                           → create user
//	GET    /api/v1/users                           → list users
//	POST   /api/v1/login                           → credential check
//	GET    /api/v1/users/{id}                      → get user
//	PUT    /api/v1/users/{id}                      → update user
//	DELETE /api/v1/users/{id}                      → delete user
//	POST   /api/v1/users/{id}/scrub-metadata       → trim interaction logs
//	GET    /api/v1/users/{user_id}/searches        → search log
//	GET    /api/v1/users/{user_id}/clicks          → click log
//	POST   /api/v1/users/{user_id}/clicks          → record click
//	GET    /api/v1/postings                        → list postings
//	GET    /api/v1/postings/{id}                   → get posting
//	PUT    /api/v1/postings/{id}                   → update posting
//	DELETE /api/v1/postings/{id}                   → delete posting
//	POST   /api/v1/candidates                      → synchronous ingest
//	POST   /api/v1/admin/cycle                     → run full cycle now
//	POST   /api/v1/admin/propagate                 → run propagation now
//	POST   /api/v1/admin/scrub                     → run retention now
//	POST   /api/v1/admin/setup                     → schema + collection setup
//	GET    /api/v1/admin/counts                    → store/index counts
//	GET    /api/v1/cache/stats                     → query cache statistics
//	POST   /api/v1/cache/invalidate                → drop cached results
//	GET    /health/live, /health/ready             → probes
func NewRouter(h *Handler, checker *health.Checker, m *metrics.Metrics, requestTimeout time.Duration) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	mux.HandleFunc("GET /api/v1/search/{user_id}", h.Search)

	mux.HandleFunc("POST /api/v1/users", h.CreateUser)
	mux.HandleFunc("GET /api/v1/users", h.ListUsers)
	mux.HandleFunc("POST /api/v1/login", h.Login)
	mux.HandleFunc("GET /api/v1/users/{id}", h.GetUser)
	mux.HandleFunc("PUT /api/v1/users/{id}", h.UpdateUser)
	mux.HandleFunc("DELETE /api/v1/users/{id}", h.DeleteUser)
	mux.HandleFunc("POST /api/v1/users/{id}/scrub-metadata", h.ScrubUserMetadata)

	mux.HandleFunc("GET /api/v1/users/{user_id}/searches", h.ListSearches)
	mux.HandleFunc("GET /api/v1/users/{user_id}/clicks", h.ListClicks)
	mux.HandleFunc("POST /api/v1/users/{user_id}/clicks", h.AddClick)

	mux.HandleFunc("GET /api/v1/postings", h.ListPostings)
	mux.HandleFunc("GET /api/v1/postings/{id}", h.GetPosting)
	mux.HandleFunc("PUT /api/v1/postings/{id}", h.UpdatePosting)
	mux.HandleFunc("DELETE /api/v1/postings/{id}", h.DeletePosting)
	mux.HandleFunc("POST /api/v1/candidates", h.IngestCandidates)

	mux.HandleFunc("POST /api/v1/admin/cycle", h.RunCycle)
	mux.HandleFunc("POST /api/v1/admin/propagate", h.RunPropagate)
	mux.HandleFunc("POST /api/v1/admin/scrub", h.RunScrub)
	mux.HandleFunc("POST /api/v1/admin/setup", h.Setup)
	mux.HandleFunc("GET /api/v1/admin/counts", h.Counts)

	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)

	var chain http.Handler = mux
	chain = middleware.Timeout(requestTimeout)(chain)
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	chain = middleware.CORS(middleware.DefaultCORSConfig())(chain)
	chain = middleware.RequestID(chain)
	return chain
}
