package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/minelink/internal/link/service"
	"github.com/aussiebroadwan/minelink/internal/link/store"
	"github.com/aussiebroadwan/minelink/pkg/httpx"
	"github.com/aussiebroadwan/minelink/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	apiSecret    []byte
	callbackPath string
	pendingTTL   time.Duration
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store       store.Store
	LinkService *service.LinkService
}

func NewRouter(
	apiSecret []byte,
	callbackPath, buildVersion string,
	pendingTTL time.Duration,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		apiSecret:    apiSecret,
		callbackPath: callbackPath,
		pendingTTL:   pendingTTL,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerCallback()
	r.registerLink()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			MineLink Account Binding Service API
//	@version		0.1.0
//	@description	Binds in-game player identities to external OAuth2 accounts. The host
//	@description	(game server plugin or console tooling) drives the API with HS256 bearer
//	@description	tokens signed with the shared API secret; players only ever see the
//	@description	browser-facing callback page.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/minelink
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8280
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				HS256 API token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerCallback() {
	// The callback must answer every method itself so wrong-method requests
	// still get the HTML result page, so no method is baked into the pattern.
	callbackHandler := &CallbackHandler{LinkService: r.LinkService}
	r.Mux.Handle(r.callbackPath,
		httpx.Chain(callbackHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerLink() {
	h := &LinkHandler{
		LinkService: r.LinkService,
		PendingTTL:  r.pendingTTL,
	}

	authn := httpx.AuthnMiddleware(r.apiSecret)

	// POST /v1/link/begin - moderate rate limit by caller subject
	r.Mux.Handle("POST /v1/link/begin",
		httpx.Chain(http.HandlerFunc(h.HandleBegin),
			authn,
			httpx.RateLimitBySubject(httpx.ModerateLimit),
		),
	)

	// GET /v1/link - admin listing, moderate rate limit
	r.Mux.Handle("GET /v1/link",
		httpx.Chain(http.HandlerFunc(h.HandleList),
			authn,
			httpx.RequireAnyScope("link:admin"),
			httpx.RateLimitBySubject(httpx.ModerateLimit),
		),
	)

	// GET /v1/link/status - admin status snapshot. Registered before the
	// {principal_id} wildcard can shadow it; the mux prefers the literal.
	r.Mux.Handle("GET /v1/link/status",
		httpx.Chain(http.HandlerFunc(h.HandleStatus),
			authn,
			httpx.RequireAnyScope("link:admin"),
			httpx.RateLimitBySubject(httpx.ModerateLimit),
		),
	)

	// Per-player operations
	r.Mux.Handle("GET /v1/link/{principal_id}",
		httpx.Chain(http.HandlerFunc(h.HandleGet),
			authn,
			httpx.RateLimitBySubject(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("DELETE /v1/link/{principal_id}",
		httpx.Chain(http.HandlerFunc(h.HandleUnbind),
			authn,
			httpx.RateLimitBySubject(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("PUT /v1/link/{principal_id}/display-name",
		httpx.Chain(http.HandlerFunc(h.HandleDisplayName),
			authn,
			httpx.RateLimitBySubject(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /v1/link/{principal_id}/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			authn,
			httpx.RateLimitBySubject(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
