package checkout

import (
	"context"
	"fmt"
	"testing"

	"github.com/cucumber/godog"
)

type featureContext struct {
	h       *harness
	lastErr error
}

func (c *featureContext) reset() {
	c.h = buildHarness()
	c.lastErr = nil
}

func (c *featureContext) record(_ Snapshot, err error) error {
	c.lastErr = err
	return nil
}

func (c *featureContext) signedInAs(userID string) error {
	_, err := c.h.o.AuthSucceeded(context.Background(), Identity{UserID: userID, Email: userID + "@example.com"})
	return err
}

func (c *featureContext) cartHolds(id, price string) error {
	c.h.cart.Add(context.Background(), prod(id, price), 1)
	return nil
}

func (c *featureContext) guestCartHolds(id, price string) error {
	if st := c.h.guestCart.AddItem(context.Background(), prod(id, price), 1); !st.Has(id) {
		return fmt.Errorf("guest cart rejected %s", id)
	}
	return nil
}

func (c *featureContext) purchasesFail(id string) error {
	c.h.purchaser.failOn = id
	return nil
}

func (c *featureContext) requestPurchase() error {
	return c.record(c.h.o.RequestPurchase(context.Background()))
}

func (c *featureContext) continueAsGuest() error {
	return c.record(c.h.o.ContinueAsGuest(context.Background()))
}

func (c *featureContext) chooseSignIn() error {
	return c.record(c.h.o.SignIn(context.Background()))
}

func (c *featureContext) submitEmail(email string) error {
	return c.record(c.h.o.SubmitGuestEmail(context.Background(), email))
}

func (c *featureContext) enterCode(code string) error {
	return c.record(c.h.o.SubmitOTP(context.Background(), code, true))
}

func (c *featureContext) retry() error {
	return c.record(c.h.o.Retry(context.Background()))
}

func (c *featureContext) openBilling() error {
	return c.record(c.h.o.BeginCheckout(context.Background()))
}

func (c *featureContext) submitBilling() error {
	err := c.record(c.h.o.SubmitBilling(context.Background(), validForm()))
	c.h.o.WaitSideEffects()
	return err
}

func (c *featureContext) applyCoupon(code string) error {
	return c.record(c.h.o.ApplyCoupon(context.Background(), code))
}

func (c *featureContext) removeCoupon(code string) error {
	return c.record(c.h.o.RemoveCoupon(context.Background(), code))
}

func (c *featureContext) tearDown() error {
	c.h.o.Teardown()
	return nil
}

func (c *featureContext) redirectElapses() error {
	c.h.sched.FireDue()
	return nil
}

func (c *featureContext) stateIs(want string) error {
	if got := c.h.o.State(); string(got) != want {
		return fmt.Errorf("state %s, want %s (last error: %v)", got, want, c.lastErr)
	}
	return nil
}

func (c *featureContext) lastErrorKind(want string) error {
	if got := KindOf(c.lastErr); string(got) != want {
		return fmt.Errorf("error kind %q, want %q (%v)", got, want, c.lastErr)
	}
	return nil
}

func (c *featureContext) purchasesMade(n int) error {
	if got := len(c.h.o.Snapshot(context.Background()).Purchases); got != n {
		return fmt.Errorf("%d purchases, want %d", got, n)
	}
	return nil
}

func (c *featureContext) cartEmpty() error {
	if !c.h.cart.Snapshot().State.IsEmpty() {
		return fmt.Errorf("cart still holds %d lines", len(c.h.cart.Snapshot().State.Items))
	}
	return nil
}

func (c *featureContext) cartLines(n int) error {
	if got := len(c.h.cart.Snapshot().State.Items); got != n {
		return fmt.Errorf("cart holds %d lines, want %d", got, n)
	}
	return nil
}

func (c *featureContext) guestCartEmpty() error {
	if !c.h.guestCart.Snapshot().IsEmpty() {
		return fmt.Errorf("guest cart is not empty")
	}
	return nil
}

func (c *featureContext) sentTo(dest string) error {
	nav, ok := c.h.nav.Last()
	if !ok {
		return fmt.Errorf("no navigation recorded")
	}
	if string(nav.To) != dest {
		return fmt.Errorf("navigated to %s, want %s", nav.To, dest)
	}
	return nil
}

func (c *featureContext) notSentAnywhere() error {
	if navs := c.h.nav.Drain(); len(navs) > 0 {
		return fmt.Errorf("unexpected navigation to %s", navs[0].To)
	}
	return nil
}

func (c *featureContext) billingTotal(want string) error {
	got := c.h.o.Snapshot(context.Background()).Totals.Total.StringFixed(2)
	if got != want {
		return fmt.Errorf("total %s, want %s", got, want)
	}
	return nil
}

func InitializeCheckoutScenario(ctx *godog.ScenarioContext) {
	c := &featureContext{}

	ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		c.reset()
		return ctx, nil
	})

	// Given
	ctx.Step(`^a fresh checkout session$`, func() error { return nil })
	ctx.Step(`^the shopper is signed in as "([^"]*)"$`, c.signedInAs)
	ctx.Step(`^the cart holds product "([^"]*)" at "([^"]*)"$`, c.cartHolds)
	ctx.Step(`^the guest cart holds product "([^"]*)" at "([^"]*)"$`, c.guestCartHolds)
	ctx.Step(`^purchases of "([^"]*)" fail$`, c.purchasesFail)

	// When
	ctx.Step(`^the shopper requests a purchase$`, c.requestPurchase)
	ctx.Step(`^the shopper continues as guest$`, c.continueAsGuest)
	ctx.Step(`^the shopper chooses to sign in$`, c.chooseSignIn)
	ctx.Step(`^the shopper signs in as "([^"]*)"$`, c.signedInAs)
	ctx.Step(`^the guest submits email "([^"]*)"$`, c.submitEmail)
	ctx.Step(`^the guest enters code "([^"]*)" accepting the terms$`, c.enterCode)
	ctx.Step(`^the shopper retries$`, c.retry)
	ctx.Step(`^the shopper opens the billing form$`, c.openBilling)
	ctx.Step(`^the shopper submits valid billing details$`, c.submitBilling)
	ctx.Step(`^the shopper applies coupon "([^"]*)"$`, c.applyCoupon)
	ctx.Step(`^the shopper removes coupon "([^"]*)"$`, c.removeCoupon)
	ctx.Step(`^the session is torn down$`, c.tearDown)
	ctx.Step(`^the redirect delay elapses$`, c.redirectElapses)

	// Then
	ctx.Step(`^the checkout state is "([^"]*)"$`, c.stateIs)
	ctx.Step(`^the last error is an? "([^"]*)" error$`, c.lastErrorKind)
	ctx.Step(`^(\d+) purchases were made$`, c.purchasesMade)
	ctx.Step(`^the cart is empty$`, c.cartEmpty)
	ctx.Step(`^the cart holds (\d+) lines?$`, c.cartLines)
	ctx.Step(`^the guest cart is empty$`, c.guestCartEmpty)
	ctx.Step(`^the shopper is sent to "([^"]*)"$`, c.sentTo)
	ctx.Step(`^the shopper is not sent anywhere$`, c.notSentAnywhere)
	ctx.Step(`^the billing total is "([^"]*)"$`, c.billingTotal)
}

func TestCheckoutFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeCheckoutScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
