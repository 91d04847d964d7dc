package google

import (
	"testing"

	"budgeteer/internal/core"
	"budgeteer/internal/export"
)

func sampleReport() export.Report {
	report := core.BudgetReport{}
	report.Income.Total = core.Money{Cents: 500000}
	report.Needs = core.BucketSection{
		BudgetPercent: 50,
		Subcategories: map[string][]core.ClassifiedItem{
			core.SubHousing: {
				{Type: core.BucketNeeds, Subcategory: core.SubHousing, Name: "Rent", Amount: core.Money{Cents: 145000}},
			},
			core.SubFoodDrink: {
				{Type: core.BucketNeeds, Subcategory: core.SubFoodDrink, Name: "Groceries", Amount: core.Money{Cents: 25000}},
			},
		},
		Total: core.Money{Cents: 170000},
	}
	report.Wants = core.BucketSection{
		BudgetPercent: 30,
		Subcategories: map[string][]core.ClassifiedItem{
			core.SubDining: {
				{Type: core.BucketWants, Subcategory: core.SubDining, Name: "Chipotle", Amount: core.Money{Cents: 1875}},
			},
		},
		Total: core.Money{Cents: 1875},
	}
	report.Savings = core.SavingsSection{BudgetPercent: 20, Total: core.Money{Cents: 328125}}

	return export.Report{
		UserID: "user-1",
		Year:   2025,
		Month:  6,
		Report: report,
		Statuses: core.ReportStatuses{
			Needs:   core.BudgetStatus{Level: core.StatusGood, Message: "needs on pace"},
			Wants:   core.BudgetStatus{Level: core.StatusExcellent, Message: "wants well under"},
			Savings: core.BudgetStatus{Level: core.StatusExcellent, Message: "savings ahead"},
		},
		Commentary: "Strong month overall.",
	}
}

func TestBuildReportRows(t *testing.T) {
	rows := buildReportRows(sampleReport())

	// income + 2 needs subs + needs total + 1 wants sub + wants total +
	// savings + commentary
	if len(rows) != 8 {
		t.Fatalf("rows = %d, want 8", len(rows))
	}

	if rows[0][0] != "June 2025" {
		t.Errorf("month label = %v, want June 2025", rows[0][0])
	}
	if rows[0][3] != 5000.0 {
		t.Errorf("income = %v, want 5000.0", rows[0][3])
	}

	// Subcategories sorted alphabetically: food_drink before housing
	if rows[1][2] != core.SubFoodDrink || rows[2][2] != core.SubHousing {
		t.Errorf("needs subs = %v, %v; want sorted order", rows[1][2], rows[2][2])
	}
	if rows[3][2] != "total" || rows[3][3] != 1700.0 {
		t.Errorf("needs total row = %v", rows[3])
	}
	if rows[3][4] != "needs on pace" {
		t.Errorf("needs status = %v", rows[3][4])
	}

	last := rows[len(rows)-1]
	if last[1] != "commentary" || last[4] != "Strong month overall." {
		t.Errorf("commentary row = %v", last)
	}
}

func TestBuildReportRowsWithoutCommentary(t *testing.T) {
	r := sampleReport()
	r.Commentary = ""
	rows := buildReportRows(r)

	last := rows[len(rows)-1]
	if last[1] != "savings" {
		t.Errorf("last row should be savings when commentary is empty, got %v", last)
	}
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		base string
		year int
		want string
	}{
		{"Budget", 2025, "2025 Budget"},
		{"  Budget  ", 2025, "2025 Budget"},
		{"", 2025, "2025"},
	}
	for _, tt := range tests {
		if got := yearPrefixedName(tt.base, tt.year); got != tt.want {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tt.base, tt.year, got, tt.want)
		}
	}
}

func TestMonthLabel(t *testing.T) {
	if got := monthLabel(2025, 1); got != "January 2025" {
		t.Errorf("monthLabel = %q", got)
	}
}
