// internal/adapters/in/http/storefront/router.go
package storefront

import (
	"net/http"

	"go.uber.org/zap"
)

// Deps is the shopper-facing handler set.
type Deps struct {
	Cart      http.Handler
	GuestCart http.Handler
	Checkout  http.Handler
}

// handleSafe registers pattern with h.
// If h is nil, it logs and registers NotFoundHandler instead.
func handleSafe(mux *http.ServeMux, pattern string, h http.Handler, name string, log *zap.Logger) {
	if h == nil {
		log.Warn("nil handler, registering NotFoundHandler", zap.String("handler", name), zap.String("pattern", pattern))
		h = http.NotFoundHandler()
	}
	mux.Handle(pattern, h)
}

// Register registers the storefront routes onto mux.
func Register(mux *http.ServeMux, deps Deps, logger *zap.Logger) {
	if mux == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Named("storefront.router")

	// signed-in cart
	handleSafe(mux, "/storefront/cart", deps.Cart, "Cart", log)
	handleSafe(mux, "/storefront/cart/", deps.Cart, "Cart", log)

	// guest cart
	handleSafe(mux, "/storefront/guest-cart", deps.GuestCart, "GuestCart", log)
	handleSafe(mux, "/storefront/guest-cart/", deps.GuestCart, "GuestCart", log)

	// checkout
	handleSafe(mux, "/storefront/checkout", deps.Checkout, "Checkout", log)
	handleSafe(mux, "/storefront/checkout/", deps.Checkout, "Checkout", log)
}
