package booking

import (
	"context"
	"fmt"
	"time"

	"bookline/models"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"go.uber.org/zap"
)

// PaymentLinker is the payment-collaborator contract: obtain a checkout link
// for an amount, tagged with tenant and appointment identifiers, expiring
// with the hold.
type PaymentLinker interface {
	CreateCheckoutLink(ctx context.Context, tenantID, refID string, amount float64, title string, expiry time.Time) (string, error)
}

// StripePaymentLinker creates Stripe Checkout sessions.
type StripePaymentLinker struct {
	Logger    *zap.Logger
	Currency  string
	ReturnURL string
}

// NewStripePaymentLinker builds the Stripe-backed PaymentLinker. The global
// stripe.Key is set once in main.
func NewStripePaymentLinker(logger *zap.Logger, currency, returnURL string) *StripePaymentLinker {
	if currency == "" {
		currency = "usd"
	}
	return &StripePaymentLinker{Logger: logger, Currency: currency, ReturnURL: returnURL}
}

func (p *StripePaymentLinker) CreateCheckoutLink(ctx context.Context, tenantID, refID string, amount float64, title string, expiry time.Time) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(p.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(title),
					},
					UnitAmount: stripe.Int64(int64(amount * 100)),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(p.ReturnURL),
		ExpiresAt:  stripe.Int64(expiry.Unix()),
	}
	params.Context = ctx
	params.AddMetadata("tenantId", tenantID)
	params.AddMetadata("refId", refID)

	sess, err := session.New(params)
	if err != nil {
		p.Logger.Warn("stripe checkout session creation failed",
			zap.String("tenantId", tenantID), zap.String("refId", refID), zap.Error(err))
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}
	return sess.URL, nil
}

// PlanCheckoutTitle builds the line-item title for a platform plan purchase.
func PlanCheckoutTitle(plan *models.PlatformPlan) string {
	return fmt.Sprintf("%s plan (%s)", plan.Name, plan.Period)
}
