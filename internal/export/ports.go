package export

import (
	"context"

	"budgeteer/internal/core"
)

// Report is the payload handed to an exporter: one user's monthly report
// with its status verdicts and optional commentary.
type Report struct {
	UserID     string
	Year       int
	Month      int
	Report     core.BudgetReport
	Statuses   core.ReportStatuses
	Commentary string
}

// ReportExporter pushes a report snapshot to an external destination and
// returns a reference to where it landed.
type ReportExporter interface {
	ExportReport(ctx context.Context, r Report) (sheetRef string, err error)
}
