// internal/application/checkout/state.go
package checkout

// State is the single, mutually exclusive state of a checkout flow.
type State string

const (
	StateIdle            State = "IDLE"
	StateChoice          State = "CHOICE"
	StateGuestEmailEntry State = "GUEST_EMAIL_ENTRY"
	StateGuestOTPPending State = "GUEST_OTP_PENDING"
	// StateGuestVerified is held between a verified email link and the deferred move to the billing form.
	StateGuestVerified State = "GUEST_VERIFIED"
	StateAuthLogin     State = "AUTH_LOGIN"
	StateCartTransfer  State = "CART_TRANSFER"
	StateBillingForm   State = "BILLING_FORM"
	StateSubmitting    State = "SUBMITTING"
	StateSuccess       State = "SUCCESS"
	StateError         State = "ERROR"
)

// Flow tells which operation the current states belong to.
// It decides where ERROR goes back to on retry.
type Flow string

const (
	FlowNone     Flow = ""
	FlowPurchase Flow = "purchase" // one-click batch purchase of the signed-in cart
	FlowGuest    Flow = "guest"    // guest email verification
	FlowCheckout Flow = "checkout" // billing form submission
)

// retryTarget is where Retry leaves the ERROR state for.
func (f Flow) retryTarget() State {
	if f == FlowCheckout {
		return StateBillingForm
	}
	return StateIdle
}
