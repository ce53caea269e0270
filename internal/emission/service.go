package emission

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/example/ecoride/internal/apperr"
	"github.com/example/ecoride/internal/logging"
	"github.com/example/ecoride/internal/models"
	"github.com/example/ecoride/internal/observability"
	"github.com/example/ecoride/internal/storage"
)

const DefaultThreshold = 80

// Decision is the outcome of one check. Violation is nil for a pass.
type Decision struct {
	VehicleID      string
	AQI            int
	Action         Action
	Fine           int
	Blocked        bool
	ViolationCount int
	Message        string
	Violation      *models.Violation
}

func (d Decision) Passed() bool { return d.Action == ActionPass }

type Service struct {
	Store     storage.ViolationStore
	Probe     Probe
	Threshold int
	Logger    *slog.Logger
}

func NewService(store storage.ViolationStore, probe Probe, threshold int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	if probe == nil {
		probe = SimulatedProbe{}
	}
	return &Service{Store: store, Probe: probe, Threshold: threshold, Logger: logger}
}

// Check evaluates a reading for the vehicle. A nil aqi asks the Probe.
// A failing reading appends exactly one violation before returning; the
// count-then-append runs inside the vehicle's scope.
func (s *Service) Check(ctx context.Context, vehicleID string, aqi *int) (Decision, error) {
	const op = "emission.check"
	vehicleID = strings.TrimSpace(vehicleID)
	if vehicleID == "" {
		return Decision{}, apperr.Invalid(op, "vehicleNo", "is required")
	}

	var reading int
	if aqi != nil {
		reading = *aqi
	} else {
		v, err := s.Probe.Read(ctx, vehicleID)
		if err != nil {
			return Decision{}, apperr.Wrap(apperr.KindUpstreamUnavailable, op+".probe", err)
		}
		reading = v
	}
	if reading < 0 {
		return Decision{}, apperr.Invalid(op, "aqi", "must be >= 0")
	}

	if reading <= s.Threshold {
		observability.EmissionDecisionsTotal.WithLabelValues(string(ActionPass)).Inc()
		return Decision{
			VehicleID: vehicleID,
			AQI:       reading,
			Action:    ActionPass,
			Message:   "Emission levels are within normal limits.",
		}, nil
	}

	var d Decision
	err := s.Store.WithinVehicle(ctx, vehicleID, func(tx storage.ViolationTx) error {
		prior, err := tx.CountViolations(ctx, vehicleID)
		if err != nil {
			return err
		}
		action, fine := Escalate(prior)
		v := &models.Violation{
			VehicleID: vehicleID,
			Reason:    fmt.Sprintf("High Emission (AQI: %d)", reading),
			Amount:    fine,
			Status:    models.ViolationPending,
		}
		if action == ActionBlocked {
			v.Status = models.ViolationBlocked
		}
		if err := tx.InsertViolation(ctx, v); err != nil {
			return err
		}
		d = Decision{
			VehicleID:      vehicleID,
			AQI:            reading,
			Action:         action,
			Fine:           fine,
			Blocked:        action == ActionBlocked,
			ViolationCount: prior + 1,
			Violation:      v,
		}
		return nil
	})
	if err != nil {
		if apperr.KindOf(err) == "" {
			err = apperr.Wrap(apperr.KindStorageFailure, op, err)
		}
		return Decision{}, err
	}

	d.Message = failMessage(d)
	observability.EmissionDecisionsTotal.WithLabelValues(string(d.Action)).Inc()
	s.Logger.Info("emission_fail",
		"vehicle", vehicleID,
		"aqi", reading,
		"action", d.Action,
		"fine", d.Fine,
		"violation_count", d.ViolationCount,
	)
	return d, nil
}

func failMessage(d Decision) string {
	if d.Blocked {
		return "Vehicle Registration BLOCKED due to repeated violations."
	}
	if d.Fine > 0 {
		return fmt.Sprintf("High Emission detected! Action: %s ₹%d", d.Action, d.Fine)
	}
	return fmt.Sprintf("High Emission detected! Action: %s", d.Action)
}

// Report appends a manually issued fine. It shares the vehicle scope with
// Check so ladder counts stay consistent.
func (s *Service) Report(ctx context.Context, vehicleID string, amount int, reason string) (models.Violation, error) {
	const op = "emission.report"
	vehicleID = strings.TrimSpace(vehicleID)
	if vehicleID == "" {
		return models.Violation{}, apperr.Invalid(op, "vehicleId", "is required")
	}
	if amount < 0 {
		return models.Violation{}, apperr.Invalid(op, "amount", "must be >= 0")
	}
	if strings.TrimSpace(reason) == "" {
		reason = "Reported fine"
	}
	v := models.Violation{VehicleID: vehicleID, Reason: reason, Amount: amount, Status: models.ViolationPending}
	err := s.Store.WithinVehicle(ctx, vehicleID, func(tx storage.ViolationTx) error {
		return tx.InsertViolation(ctx, &v)
	})
	if err != nil {
		if apperr.KindOf(err) == "" {
			err = apperr.Wrap(apperr.KindStorageFailure, op, err)
		}
		return models.Violation{}, err
	}
	s.Logger.Info("fine_reported", "vehicle", vehicleID, "amount", amount, "violation_id", v.ID)
	return v, nil
}

func (s *Service) History(ctx context.Context, vehicleID string) ([]models.Violation, error) {
	vehicleID = strings.TrimSpace(vehicleID)
	if vehicleID == "" {
		return nil, apperr.Invalid("emission.history", "vehicleNo", "is required")
	}
	return s.Store.ListViolations(ctx, vehicleID)
}
