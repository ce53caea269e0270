package payments

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"

	"github.com/example/ecoride/internal/apperr"
	"github.com/example/ecoride/internal/logging"
	"github.com/example/ecoride/internal/storage"
)

// intentCreator is the PaymentIntent call the fine flow needs.
type intentCreator interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// Payment is returned to the client to complete the fine payment.
type Payment struct {
	ViolationID  int64  `json:"violation_id"`
	IntentID     string `json:"payment_intent_id"`
	ClientSecret string `json:"client_secret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Status       string `json:"status"`
}

// FinePayments opens Stripe PaymentIntents for recorded violations.
type FinePayments struct {
	Violations storage.ViolationStore
	Currency   string
	intents    intentCreator
	logger     *slog.Logger
}

// NewFinePayments returns a flow that answers NotConfigured for every call
// when apiKey is empty.
func NewFinePayments(violations storage.ViolationStore, apiKey, currency string, logger *slog.Logger) *FinePayments {
	if logger == nil {
		logger = logging.Discard()
	}
	p := &FinePayments{Violations: violations, Currency: currency, logger: logger}
	if apiKey != "" {
		p.intents = client.New(apiKey, nil).PaymentIntents
	}
	return p
}

// minorUnits converts whole rupees (or the configured currency's major unit) for Stripe.
func minorUnits(amount int) int64 { return int64(amount) * 100 }

// Pay creates a PaymentIntent for the violation's fine. Repeated calls for
// the same violation reuse Stripe's idempotency window.
func (p *FinePayments) Pay(ctx context.Context, violationID int64) (Payment, error) {
	const op = "payments.pay"
	if p.intents == nil {
		return Payment{}, apperr.New(apperr.KindNotConfigured, op, "payments are not configured")
	}
	v, err := p.Violations.GetViolation(ctx, violationID)
	if err != nil {
		return Payment{}, err
	}
	if v.Amount <= 0 {
		return Payment{}, apperr.Invalid(op, "violation", "has no fine to pay")
	}

	id := strconv.FormatInt(v.ID, 10)
	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(minorUnits(v.Amount)),
		Currency:    stripe.String(p.Currency),
		Description: stripe.String(fmt.Sprintf("Emission fine for %s: %s", v.VehicleID, v.Reason)),
	}
	params.Context = ctx
	params.AddMetadata("violation_id", id)
	params.AddMetadata("vehicle_id", v.VehicleID)
	params.SetIdempotencyKey("fine-" + id)

	pi, err := p.intents.New(params)
	if err != nil {
		return Payment{}, apperr.Wrap(apperr.KindUpstreamUnavailable, op, err)
	}
	p.logger.Info("fine_payment_created", "violation_id", v.ID, "vehicle_id", v.VehicleID, "payment_intent", pi.ID)
	return Payment{
		ViolationID:  v.ID,
		IntentID:     pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		Status:       string(pi.Status),
	}, nil
}
