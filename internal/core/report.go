package core

import "errors"

// ErrNoTransactions is returned by Aggregate for an empty input. Callers
// display an empty/prompt state; "no data yet" is distinct from a report
// full of zeroes.
var ErrNoTransactions = errors.New("no transactions to aggregate")

// ClassifiedItem is a transaction after classification: the unit the report
// is built from. Amounts are always unsigned cents.
type ClassifiedItem struct {
	Type        BucketType `json:"type"`
	Subcategory string     `json:"subcategory"`
	Name        string     `json:"name"`
	Amount      Money      `json:"amount_cents"`
	Date        string     `json:"date"`
}

// BucketSection holds the classified items of one spending bucket (needs or
// wants), grouped by subcategory. Insertion order within a subcategory is
// preserved; it is display-relevant, not semantically significant.
type BucketSection struct {
	BudgetPercent int                         `json:"budget_percent"`
	Subcategories map[string][]ClassifiedItem `json:"subcategories"`
	Total         Money                       `json:"total_cents"`
}

func (s *BucketSection) add(item ClassifiedItem) {
	if s.Subcategories == nil {
		s.Subcategories = make(map[string][]ClassifiedItem)
	}
	s.Subcategories[item.Subcategory] = append(s.Subcategories[item.Subcategory], item)
	s.Total = s.Total.Add(item.Amount)
}

// SubcategoryTotal sums the items filed under one subcategory.
func (s *BucketSection) SubcategoryTotal(name string) Money {
	var total Money
	for _, item := range s.Subcategories[name] {
		total = total.Add(item.Amount)
	}
	return total
}

// IncomeSection collects income-classified transactions.
type IncomeSection struct {
	Total Money            `json:"total_cents"`
	Items []ClassifiedItem `json:"items"`
}

// SavingsSection is derived, never classified: savings is strictly the
// residual income − needs − wants, clamped at zero. A negative residual is
// a deficit condition surfaced by the status engine, not a negative bucket.
type SavingsSection struct {
	BudgetPercent int   `json:"budget_percent"`
	Total         Money `json:"total_cents"`
}

// BudgetReport is the aggregated, percentage-bucketed view of a transaction
// set for one evaluation period. It is rebuilt from scratch on every
// generation; there is no incremental update.
type BudgetReport struct {
	Needs   BucketSection  `json:"needs"`
	Wants   BucketSection  `json:"wants"`
	Income  IncomeSection  `json:"income"`
	Savings SavingsSection `json:"savings"`
}

// SpentTotal is the sum of both spending buckets.
func (r *BudgetReport) SpentTotal() Money {
	return r.Needs.Total.Add(r.Wants.Total)
}

// Deficit is the amount by which spending exceeded income, zero when the
// residual is non-negative.
func (r *BudgetReport) Deficit() Money {
	d := r.SpentTotal().Sub(r.Income.Total)
	if d.Cents < 0 {
		return Money{}
	}
	return d
}

// Aggregate classifies every transaction and folds the results into a fresh
// BudgetReport. Budget percentages are copied from cfg; cfg is expected to
// be already validated at the config boundary — Aggregate never normalizes
// it silently.
//
// The function is deterministic and idempotent: the same transactions and
// config always produce an identical report.
func Aggregate(txns []Transaction, cfg BudgetConfig) (*BudgetReport, error) {
	if len(txns) == 0 {
		return nil, ErrNoTransactions
	}

	report := &BudgetReport{
		Needs:   BucketSection{BudgetPercent: cfg.NeedsPercent, Subcategories: make(map[string][]ClassifiedItem)},
		Wants:   BucketSection{BudgetPercent: cfg.WantsPercent, Subcategories: make(map[string][]ClassifiedItem)},
		Savings: SavingsSection{BudgetPercent: cfg.SavingsPercent},
	}

	for _, t := range txns {
		n := t.Normalize()
		c := Classify(n)

		name := n.DisplayName
		if name == "" {
			name = "Unknown transaction"
		}
		item := ClassifiedItem{
			Type:        c.Type,
			Subcategory: c.Subcategory,
			Name:        name,
			Amount:      n.Amount,
			Date:        n.Date,
		}

		switch c.Type {
		case BucketIncome:
			report.Income.Items = append(report.Income.Items, item)
			report.Income.Total = report.Income.Total.Add(item.Amount)
		case BucketNeeds:
			report.Needs.add(item)
		case BucketWants:
			report.Wants.add(item)
		}
	}

	if cfg.MonthlyIncomeOverride.Cents > 0 {
		report.Income.Total = cfg.MonthlyIncomeOverride
	}

	residual := report.Income.Total.Sub(report.SpentTotal())
	if residual.Cents > 0 {
		report.Savings.Total = residual
	}

	return report, nil
}

// BudgetAmounts splits an income total into per-bucket budget amounts
// according to the config percentages.
func BudgetAmounts(income Money, cfg BudgetConfig) (needs, wants, savings Money) {
	needs = Money{Cents: income.Cents * int64(cfg.NeedsPercent) / 100}
	wants = Money{Cents: income.Cents * int64(cfg.WantsPercent) / 100}
	savings = Money{Cents: income.Cents * int64(cfg.SavingsPercent) / 100}
	return needs, wants, savings
}
