// internal/adapters/in/http/router.go
package httpin

import (
	"net/http"

	"go.uber.org/zap"

	"storefront/internal/adapters/in/http/middleware"
	"storefront/internal/adapters/in/http/storefront"
	storefrontHandler "storefront/internal/adapters/in/http/storefront/handler"
	"storefront/internal/infra/metrics"
)

// RouterDeps collects the dependencies injected from main.go.
type RouterDeps struct {
	Sessions storefrontHandler.SessionOpener

	// optional: nil disables Firebase ID-token verification (every shopper is anonymous)
	AuthVerifier middleware.IDTokenVerifier
	// required: signs the X-Storefront-Session token
	SessionTokens *middleware.SessionTokens
	// optional: nil disables /metrics and request metrics
	Metrics *metrics.Metrics

	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewRouter builds the HTTP handler. Middleware order, outermost first:
// CORS, Recover, Metrics, Session, UserAuth.
func NewRouter(deps RouterDeps) http.Handler {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	mux := http.NewServeMux()

	// Health check (always on)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if deps.Metrics != nil {
		mux.Handle("/metrics", deps.Metrics.Handler())
	}

	// storefront routes carry the shopper session and the optional signed-in user
	shop := http.NewServeMux()
	storefront.Register(shop, storefront.Deps{
		Cart:      storefrontHandler.NewCartHandler(deps.Sessions, log),
		GuestCart: storefrontHandler.NewGuestCartHandler(deps.Sessions, log),
		Checkout:  storefrontHandler.NewCheckoutHandler(deps.Sessions, log),
	}, log)

	var shopChain []func(http.Handler) http.Handler
	if deps.SessionTokens != nil {
		shopChain = append(shopChain, deps.SessionTokens.Middleware(log))
	} else {
		log.Warn("session tokens not configured; every request starts a new session")
	}
	if deps.AuthVerifier != nil {
		auth := &middleware.UserAuthMiddleware{Verifier: deps.AuthVerifier, Logger: log}
		shopChain = append(shopChain, auth.Handler)
	}
	mux.Handle("/storefront/", middleware.Chain(shop, shopChain...))

	outer := []func(http.Handler) http.Handler{
		middleware.CORS(deps.AllowedOrigins),
		middleware.Recover(log),
	}
	if deps.Metrics != nil {
		outer = append(outer, deps.Metrics.Middleware)
	}
	return middleware.Chain(mux, outer...)
}
