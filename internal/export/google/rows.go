package google

import (
	"sort"

	"budgeteer/internal/core"
	"budgeteer/internal/export"
)

// buildReportRows flattens a report into spreadsheet rows with columns
// Month | Bucket | Subcategory | Amount | Note. Amounts are written as
// decimal currency values.
func buildReportRows(r export.Report) [][]any {
	rows := [][]any{
		{monthLabel(r.Year, r.Month), "income", "", dollars(r.Report.Income.Total), ""},
	}

	rows = append(rows, bucketRows("needs", r.Report.Needs, r.Statuses.Needs)...)
	rows = append(rows, bucketRows("wants", r.Report.Wants, r.Statuses.Wants)...)

	rows = append(rows, []any{"", "savings", "", dollars(r.Report.Savings.Total), r.Statuses.Savings.Message})

	if r.Commentary != "" {
		rows = append(rows, []any{"", "commentary", "", "", r.Commentary})
	}

	return rows
}

func bucketRows(name string, section core.BucketSection, status core.BudgetStatus) [][]any {
	subs := make([]string, 0, len(section.Subcategories))
	for sub := range section.Subcategories {
		subs = append(subs, sub)
	}
	sort.Strings(subs)

	rows := make([][]any, 0, len(subs)+1)
	for _, sub := range subs {
		rows = append(rows, []any{"", name, sub, dollars(section.SubcategoryTotal(sub)), ""})
	}
	rows = append(rows, []any{"", name, "total", dollars(section.Total), status.Message})
	return rows
}

func dollars(m core.Money) float64 {
	return float64(m.Cents) / 100.0
}
