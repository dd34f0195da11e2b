// internal/adapters/in/http/storefront/handler/guest_cart_handler.go
package storefrontHandler

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	guestcartdom "storefront/internal/domain/guestcart"
	productdom "storefront/internal/domain/product"
)

// GuestCartHandler serves the anonymous cart of the session: /storefront/guest-cart[...].
type GuestCartHandler struct {
	sessions SessionOpener
	log      *zap.Logger
}

func NewGuestCartHandler(sessions SessionOpener, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GuestCartHandler{sessions: sessions, log: logger.Named("guest_cart_handler")}
}

type guestCartResponse struct {
	Items   []guestcartdom.Entry `json:"items"`
	Count   int                  `json:"count"`
	Total   decimal.Decimal      `json:"total"`
	Dropped []string             `json:"dropped,omitempty"`
}

func guestCartView(st guestcartdom.State) guestCartResponse {
	return guestCartResponse{Items: st.Sorted(), Count: st.Count(), Total: st.Total().Round(2)}
}

type addGuestItemRequest struct {
	Product  productdom.Product `json:"product"`
	Quantity int                `json:"quantity"`
}

type updateGuestItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

func (h *GuestCartHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := cleanPath(r.URL.Path)

	s, ok := openSession(w, r, h.sessions, h.log)
	if !ok {
		return
	}
	ctx := r.Context()

	switch {
	case path == "/storefront/guest-cart" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, guestCartView(s.GuestCart.Snapshot()))

	case path == "/storefront/guest-cart" && r.Method == http.MethodDelete:
		writeJSON(w, http.StatusOK, guestCartView(s.GuestCart.ClearCart(ctx)))

	case path == "/storefront/guest-cart/items" && r.Method == http.MethodPost:
		var req addGuestItemRequest
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
		writeJSON(w, http.StatusOK, guestCartView(s.GuestCart.AddItem(ctx, req.Product, req.Quantity)))

	case path == "/storefront/guest-cart/items" && r.Method == http.MethodPut:
		var req updateGuestItemRequest
		if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.ProductID) == "" {
			badRequest(w, "productId is required")
			return
		}
		if req.Quantity > productdom.MaxQuantity {
			badRequest(w, productdom.ErrQuantityTooLarge.Error())
			return
		}
		writeJSON(w, http.StatusOK, guestCartView(s.GuestCart.UpdateQuantity(ctx, req.ProductID, req.Quantity)))

	case path == "/storefront/guest-cart/items" && r.Method == http.MethodDelete:
		productID := strings.TrimSpace(r.URL.Query().Get("productId"))
		if productID == "" {
			badRequest(w, "productId is required")
			return
		}
		writeJSON(w, http.StatusOK, guestCartView(s.GuestCart.RemoveItem(ctx, productID)))

	case path == "/storefront/guest-cart/clean" && r.Method == http.MethodPost:
		dropped := s.GuestCart.CleanInvalidItems(ctx)
		resp := guestCartView(s.GuestCart.Snapshot())
		resp.Dropped = dropped
		writeJSON(w, http.StatusOK, resp)

	case path == "/storefront/guest-cart" || path == "/storefront/guest-cart/items" || path == "/storefront/guest-cart/clean":
		methodNotAllowed(w)

	default:
		notFound(w)
	}
}
