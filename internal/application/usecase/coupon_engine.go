// internal/application/usecase/coupon_engine.go
package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	coupondom "storefront/internal/domain/coupon"
)

var (
	ErrCouponAlreadyApplied = errors.New("coupon: code already applied")
	ErrCouponNotApplied     = errors.New("coupon: code is not applied")
)

// CouponEngine keeps the list of server-validated coupons of one checkout.
//
// The coupon service is authoritative for each discount amount. The aggregate
// is the sum of the applied amounts and is only ever recomputed from that list.
type CouponEngine struct {
	mu         sync.Mutex
	applied    []coupondom.Applied
	aggregate  decimal.Decimal
	processing bool

	svc CouponService
	log *zap.Logger
}

func NewCouponEngine(svc CouponService, logger *zap.Logger) *CouponEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CouponEngine{
		aggregate: decimal.Zero,
		svc:       svc,
		log:       logger.Named("coupon_engine"),
	}
}

// Apply validates code with the coupon service and appends it on success.
// Failures leave the applied list untouched.
func (e *CouponEngine) Apply(ctx context.Context, code string, cctx CouponContext) (coupondom.Applied, error) {
	code = coupondom.NormalizeCode(code)
	if err := coupondom.ValidateCode(code); err != nil {
		return coupondom.Applied{}, invalid(err)
	}

	e.mu.Lock()
	if e.processing {
		e.mu.Unlock()
		return coupondom.Applied{}, ErrBusy
	}
	if e.indexLocked(code) >= 0 {
		e.mu.Unlock()
		return coupondom.Applied{}, invalid(ErrCouponAlreadyApplied)
	}
	e.processing = true
	e.mu.Unlock()

	applied, err := e.svc.ApplyCoupon(ctx, code, cctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.processing = false

	if err != nil {
		e.log.Info("apply rejected", zap.String("code", code), zap.Error(err))
		return coupondom.Applied{}, upstream("apply-coupon", err)
	}
	if strings.TrimSpace(applied.Code) == "" {
		applied.Code = code
	}
	applied.Code = coupondom.NormalizeCode(applied.Code)
	if e.indexLocked(applied.Code) >= 0 {
		return coupondom.Applied{}, invalid(ErrCouponAlreadyApplied)
	}

	e.applied = append(e.applied, applied)
	e.aggregate = e.aggregate.Add(applied.DiscountAmount)
	e.log.Debug("applied", zap.String("code", applied.Code), zap.String("discount", applied.DiscountAmount.StringFixed(2)))
	return applied, nil
}

// Remove invalidates code server-side, then drops it locally and recomputes the aggregate.
func (e *CouponEngine) Remove(ctx context.Context, code string, cctx CouponContext) error {
	code = coupondom.NormalizeCode(code)

	e.mu.Lock()
	if e.processing {
		e.mu.Unlock()
		return ErrBusy
	}
	if e.indexLocked(code) < 0 {
		e.mu.Unlock()
		return invalid(ErrCouponNotApplied)
	}
	e.processing = true
	e.mu.Unlock()

	err := e.svc.RemoveCoupon(ctx, code, cctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.processing = false

	if err != nil {
		e.log.Info("remove failed", zap.String("code", code), zap.Error(err))
		return upstream("remove-coupon", err)
	}

	if idx := e.indexLocked(code); idx >= 0 {
		e.applied = append(e.applied[:idx], e.applied[idx+1:]...)
	}
	e.aggregate = coupondom.Aggregate(e.applied)
	return nil
}

// Applied returns a copy of the applied coupons in application order.
func (e *CouponEngine) Applied() []coupondom.Applied {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]coupondom.Applied(nil), e.applied...)
}

// Codes returns the applied codes in application order.
func (e *CouponEngine) Codes() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.applied))
	for _, a := range e.applied {
		out = append(out, a.Code)
	}
	return out
}

// Aggregate is the total discount of every applied coupon.
func (e *CouponEngine) Aggregate() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.aggregate
}

func (e *CouponEngine) IsProcessing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.processing
}

// Reset forgets every applied coupon without calling the service.
func (e *CouponEngine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.applied = nil
	e.aggregate = decimal.Zero
}

func (e *CouponEngine) indexLocked(code string) int {
	for i, a := range e.applied {
		if a.Code == code {
			return i
		}
	}
	return -1
}
