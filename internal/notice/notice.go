package notice

import (
	"bytes"
	"fmt"
	"time"

	"github.com/phpdave11/gofpdf"

	"github.com/example/ecoride/internal/models"
)

// Render builds the violation notice PDF for one recorded violation. history
// is the vehicle's full violation list and is printed as a table below.
func Render(v models.Violation, history []models.Violation, issued time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Emission Violation Notice", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "EMISSION VIOLATION NOTICE")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	lines := []string{
		fmt.Sprintf("Notice No   : EV-%06d", v.ID),
		"Issued      : " + issued.Format("2006-01-02 15:04"),
		"Vehicle     : " + v.VehicleID,
		"Recorded    : " + v.Timestamp.Format("2006-01-02 15:04"),
		"Reason      : " + v.Reason,
		fmt.Sprintf("Fine        : INR %d", v.Amount),
		"Status      : " + statusLabel(v.Status),
	}
	for _, s := range lines {
		pdf.Cell(0, 7, s)
		pdf.Ln(7)
	}

	if v.Status == models.ViolationBlocked {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "B", 12)
		pdf.MultiCell(0, 6, "This vehicle's registration is BLOCKED due to repeated violations.", "", "", false)
	}

	if len(history) > 0 {
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "B", 12)
		pdf.Cell(0, 7, fmt.Sprintf("Violation history (%d)", len(history)))
		pdf.Ln(8)

		pdf.SetFont("Helvetica", "B", 10)
		for _, h := range []struct {
			w float64
			s string
		}{{35, "Date"}, {95, "Reason"}, {25, "Fine"}, {25, "Status"}} {
			pdf.CellFormat(h.w, 7, h.s, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)

		pdf.SetFont("Helvetica", "", 10)
		for _, h := range history {
			pdf.CellFormat(35, 6, h.Timestamp.Format("2006-01-02"), "1", 0, "L", false, 0, "")
			pdf.CellFormat(95, 6, h.Reason, "1", 0, "L", false, 0, "")
			pdf.CellFormat(25, 6, fmt.Sprintf("%d", h.Amount), "1", 0, "R", false, 0, "")
			pdf.CellFormat(25, 6, statusLabel(h.Status), "1", 0, "L", false, 0, "")
			pdf.Ln(-1)
		}
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "I", 10)
	pdf.MultiCell(0, 6, "Pay online from the EcoRide app or at any traffic enforcement office.", "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func statusLabel(s models.ViolationStatus) string {
	switch s {
	case models.ViolationBlocked:
		return "Blocked"
	case models.ViolationPending:
		return "Pending"
	default:
		return string(s)
	}
}
