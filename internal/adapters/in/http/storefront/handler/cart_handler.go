// internal/adapters/in/http/storefront/handler/cart_handler.go
package storefrontHandler

import (
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/application/usecase"
	productdom "storefront/internal/domain/product"
)

// CartHandler serves the signed-in cart: /storefront/cart[/items|/shipping].
type CartHandler struct {
	sessions SessionOpener
	log      *zap.Logger
}

func NewCartHandler(sessions SessionOpener, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartHandler{sessions: sessions, log: logger.Named("cart_handler")}
}

type addCartItemRequest struct {
	Product  productdom.Product `json:"product"`
	Quantity int                `json:"quantity"`
}

type setCartQuantityRequest struct {
	LineID   string `json:"lineId"`
	Quantity int    `json:"quantity"`
}

type setShippingRequest struct {
	Cost decimal.Decimal `json:"cost"`
}

func (h *CartHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	path := cleanPath(r.URL.Path)
	defer func() {
		h.log.Debug("served", zap.String("method", r.Method), zap.String("path", path), zap.Duration("elapsed", time.Since(start)))
	}()

	s, ok := openSession(w, r, h.sessions, h.log)
	if !ok {
		return
	}
	uid, err := syncIdentity(r, s)
	if err != nil {
		writeErr(w, statusFor(err), err.Error())
		return
	}
	if uid == "" {
		writeErr(w, http.StatusUnauthorized, "sign in required")
		return
	}

	ctx := r.Context()
	var snap usecase.CartSnapshot

	switch {
	case path == "/storefront/cart" && r.Method == http.MethodGet:
		snap = s.Cart.Snapshot()

	case path == "/storefront/cart" && r.Method == http.MethodDelete:
		snap = s.Cart.Clear(ctx)

	case path == "/storefront/cart/items" && r.Method == http.MethodPost:
		var req addCartItemRequest
		if err := decodeJSON(r, &req); err != nil {
			badRequest(w, "invalid json")
			return
		}
		if err := req.Product.Normalize().Validate(); err != nil {
			badRequest(w, err.Error())
			return
		}
		if req.Quantity > productdom.MaxQuantity {
			badRequest(w, productdom.ErrQuantityTooLarge.Error())
			return
		}
		snap = s.Cart.Add(ctx, req.Product, req.Quantity)

	case path == "/storefront/cart/items" && r.Method == http.MethodPut:
		var req setCartQuantityRequest
		if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.LineID) == "" {
			badRequest(w, "lineId is required")
			return
		}
		if req.Quantity > productdom.MaxQuantity {
			badRequest(w, productdom.ErrQuantityTooLarge.Error())
			return
		}
		snap = s.Cart.SetQuantity(ctx, req.LineID, req.Quantity)

	case path == "/storefront/cart/items" && r.Method == http.MethodDelete:
		lineID := strings.TrimSpace(r.URL.Query().Get("lineId"))
		if lineID == "" {
			badRequest(w, "lineId is required")
			return
		}
		snap = s.Cart.Remove(ctx, lineID)

	case path == "/storefront/cart/shipping" && r.Method == http.MethodPut:
		var req setShippingRequest
		if err := decodeJSON(r, &req); err != nil {
			badRequest(w, "invalid json")
			return
		}
		if req.Cost.IsNegative() {
			badRequest(w, "shipping cost must not be negative")
			return
		}
		snap = s.Cart.SetShipping(ctx, req.Cost)

	case path == "/storefront/cart" || path == "/storefront/cart/items" || path == "/storefront/cart/shipping":
		methodNotAllowed(w)
		return

	default:
		notFound(w)
		return
	}

	writeJSON(w, http.StatusOK, snap)
}
