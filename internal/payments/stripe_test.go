package payments

import (
	"context"
	"errors"
	"testing"

	stripe "github.com/stripe/stripe-go/v74"

	"github.com/example/ecoride/internal/apperr"
	"github.com/example/ecoride/internal/models"
	"github.com/example/ecoride/internal/storage"
)

type fakeIntents struct {
	params *stripe.PaymentIntentParams
	err    error
}

func (f *fakeIntents) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	return &stripe.PaymentIntent{
		ID:           "pi_test_1",
		ClientSecret: "pi_test_1_secret",
		Amount:       *params.Amount,
		Currency:     stripe.Currency(*params.Currency),
		Status:       stripe.PaymentIntentStatusRequiresPaymentMethod,
	}, nil
}

func recordViolation(t *testing.T, store *storage.MemoryStore, amount int) models.Violation {
	t.Helper()
	var v models.Violation
	err := store.WithinVehicle(context.Background(), "KA05MN4321", func(tx storage.ViolationTx) error {
		v = models.Violation{VehicleID: "KA05MN4321", Reason: "High Emission (AQI: 140)", Amount: amount, Status: models.ViolationPending}
		return tx.InsertViolation(context.Background(), &v)
	})
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestPayCreatesIntentWithMetadata(t *testing.T) {
	store := storage.NewMemoryStore()
	v := recordViolation(t, store, 500)
	intents := &fakeIntents{}
	p := NewFinePayments(store, "", "inr", nil)
	p.intents = intents

	pay, err := p.Pay(context.Background(), v.ID)
	if err != nil {
		t.Fatal(err)
	}
	if pay.Amount != 50000 || pay.Currency != "inr" || pay.IntentID != "pi_test_1" || pay.ViolationID != v.ID {
		t.Fatalf("unexpected payment %+v", pay)
	}
	if intents.params.Metadata["vehicle_id"] != "KA05MN4321" || intents.params.Metadata["violation_id"] == "" {
		t.Fatalf("metadata missing: %+v", intents.params.Metadata)
	}
	if intents.params.IdempotencyKey == nil || *intents.params.IdempotencyKey == "" {
		t.Fatal("expected idempotency key")
	}
}

func TestPayErrors(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	unconfigured := NewFinePayments(store, "", "inr", nil)
	if _, err := unconfigured.Pay(ctx, 1); !apperr.Is(err, apperr.KindNotConfigured) {
		t.Fatalf("expected not configured, got %v", err)
	}

	p := NewFinePayments(store, "", "inr", nil)
	p.intents = &fakeIntents{}
	if _, err := p.Pay(ctx, 424242); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	warning := recordViolation(t, store, 0)
	if _, err := p.Pay(ctx, warning.ID); !apperr.Is(err, apperr.KindInvalidInput) {
		t.Fatalf("expected invalid input for zero fine, got %v", err)
	}

	fine := recordViolation(t, store, 200)
	p.intents = &fakeIntents{err: errors.New("card network down")}
	if _, err := p.Pay(ctx, fine.ID); !apperr.Is(err, apperr.KindUpstreamUnavailable) {
		t.Fatalf("expected upstream unavailable, got %v", err)
	}
}
