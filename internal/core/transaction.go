package core

import (
	"strings"
	"time"
)

// Transaction is a single bank transaction as returned by the aggregation
// API. It is immutable input: the classifier and aggregator never mutate it.
//
// Sign convention on the wire: positive amount = money leaving the account
// (an expense), negative = money entering (income or a credit). The
// convention is fixed here at the ingestion boundary; nothing downstream of
// Normalize ever sees a raw signed amount.
type Transaction struct {
	Name             string  `json:"name"`
	MerchantName     string  `json:"merchant_name,omitempty"`
	Amount           float64 `json:"amount"`
	Date             string  `json:"date"`
	Category         string  `json:"category"`
	DetailedCategory string  `json:"detailed_category"`
}

// UnknownDate is the date bucket for transactions whose date is missing or
// unparseable. A fixed marker keeps the core free of clock reads.
const UnknownDate = "unknown"

// NormalizedTransaction is a Transaction with safe defaults applied and the
// ambiguity squeezed out: the amount is unsigned cents plus a credit flag,
// text fields are lowercased for matching, and the date is either a valid
// YYYY-MM-DD string or UnknownDate.
type NormalizedTransaction struct {
	DisplayName string
	Amount      Money // unsigned
	Credit      bool  // true when money entered the account
	Date        string

	// Lowercased matching fields.
	name     string
	category string
	detailed string
}

// Normalize applies the safe-default policy: a malformed transaction never
// fails, it degrades. Missing name matches as the empty string, missing
// amount is zero, a bad date lands in the UnknownDate bucket.
func (t Transaction) Normalize() NormalizedTransaction {
	display := strings.TrimSpace(t.Name)
	if display == "" {
		display = strings.TrimSpace(t.MerchantName)
	}

	// Prefer the raw name for keyword matching, with the cleaner merchant
	// label folded in so either field can satisfy a rule.
	matchName := strings.ToLower(strings.TrimSpace(t.Name))
	if mn := strings.ToLower(strings.TrimSpace(t.MerchantName)); mn != "" && mn != matchName {
		if matchName == "" {
			matchName = mn
		} else {
			matchName = matchName + " " + mn
		}
	}

	date := strings.TrimSpace(t.Date)
	if _, err := time.Parse("2006-01-02", date); err != nil {
		date = UnknownDate
	}

	amount := FromDollars(t.Amount)

	return NormalizedTransaction{
		DisplayName: display,
		Amount:      amount.Abs(),
		Credit:      amount.Cents < 0,
		Date:        date,
		name:        matchName,
		category:    strings.ToLower(strings.TrimSpace(t.Category)),
		detailed:    strings.ToLower(strings.TrimSpace(t.DetailedCategory)),
	}
}

// Day extracts the day of month from the normalized date, or 0 when the
// date is unknown.
func (n NormalizedTransaction) Day() int {
	ts, err := time.Parse("2006-01-02", n.Date)
	if err != nil {
		return 0
	}
	return ts.Day()
}
