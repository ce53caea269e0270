package notice

import (
	"bytes"
	"testing"
	"time"

	"github.com/example/ecoride/internal/models"
)

func TestRenderProducesPDF(t *testing.T) {
	ts := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	v := models.Violation{ID: 12, VehicleID: "KA01AB1234", Reason: "High Emission (AQI: 171)", Amount: 500, Status: models.ViolationPending, Timestamp: ts}
	history := []models.Violation{
		v,
		{ID: 11, VehicleID: "KA01AB1234", Reason: "High Emission (AQI: 95)", Amount: 200, Status: models.ViolationPending, Timestamp: ts.Add(-time.Hour)},
	}

	out, err := Render(v, history, ts)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Fatalf("output is not a PDF: %q", out[:8])
	}
}

func TestRenderBlockedWithoutHistory(t *testing.T) {
	v := models.Violation{ID: 1, VehicleID: "KA02", Reason: "High Emission (AQI: 300)", Status: models.ViolationBlocked}
	out, err := Render(v, nil, time.Now())
	if err != nil || len(out) == 0 {
		t.Fatalf("render failed: %v", err)
	}
}
