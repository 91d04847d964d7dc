// Package memory is an in-process bank backend for local development and
// tests. Linking always succeeds and transactions come from a fixed fixture.
package memory

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"budgeteer/internal/bank"
	"budgeteer/internal/core"
)

type Source struct {
	transactions []core.Transaction
	linkCounter  int64
}

var _ bank.Client = (*Source)(nil)

// NewSource creates a source serving the given transactions. With no
// transactions it serves a representative fixture anchored to today.
func NewSource(txns []core.Transaction) *Source {
	if len(txns) == 0 {
		txns = Fixture(time.Now())
	}
	return &Source{transactions: txns}
}

// Fixture returns a small but representative transaction set with dates in
// the two weeks leading up to the anchor day.
func Fixture(anchor time.Time) []core.Transaction {
	day := func(offset int) string {
		return anchor.AddDate(0, 0, -offset).Format("2006-01-02")
	}
	return []core.Transaction{
		{Name: "Employer Direct Deposit", Amount: -3200.00, Date: day(13), Category: "income", DetailedCategory: "income_wages"},
		{Name: "Whole Foods Market", MerchantName: "Whole Foods", Amount: 86.29, Date: day(12), Category: "food_and_drink", DetailedCategory: "food_and_drink_groceries"},
		{Name: "Shell Gas Station", MerchantName: "Shell", Amount: 41.50, Date: day(11), Category: "transportation", DetailedCategory: "transportation_gas"},
		{Name: "Monthly Rent Payment", Amount: 1450.00, Date: day(10), Category: "rent_and_utilities", DetailedCategory: "rent_and_utilities_rent"},
		{Name: "CVS Pharmacy", MerchantName: "CVS", Amount: 23.10, Date: day(9), Category: "medical", DetailedCategory: "medical_pharmacies"},
		{Name: "Chipotle Mexican Grill", MerchantName: "Chipotle", Amount: 18.75, Date: day(7), Category: "food_and_drink", DetailedCategory: "food_and_drink_restaurant"},
		{Name: "Netflix Subscription", MerchantName: "Netflix", Amount: 15.49, Date: day(6), Category: "entertainment", DetailedCategory: "entertainment_streaming"},
		{Name: "Geico Auto Insurance", Amount: 112.00, Date: day(5), Category: "insurance", DetailedCategory: "insurance_auto"},
		{Name: "Amazon Marketplace", MerchantName: "Amazon", Amount: 64.23, Date: day(4), Category: "shops", DetailedCategory: "shops_online"},
		{Name: "Delta Air Lines", MerchantName: "Delta", Amount: 324.80, Date: day(3), Category: "travel", DetailedCategory: "travel_flights"},
		{Name: "Trader Joe's", MerchantName: "Trader Joe's", Amount: 54.96, Date: day(2), Category: "food_and_drink", DetailedCategory: "food_and_drink_groceries"},
		{Name: "Venmo Payment", Amount: 30.00, Date: day(1), Category: "transfer", DetailedCategory: "transfer_out"},
	}
}

// CreateLinkToken implements bank.Linker
func (s *Source) CreateLinkToken(_ context.Context, userID string) (string, error) {
	n := atomic.AddInt64(&s.linkCounter, 1)
	return fmt.Sprintf("link-memory-%s-%d", userID, n), nil
}

// ExchangePublicToken implements bank.Linker
func (s *Source) ExchangePublicToken(_ context.Context, publicToken string) (bank.LinkedItem, error) {
	if publicToken == "" {
		return bank.LinkedItem{}, fmt.Errorf("public token is required")
	}
	return bank.LinkedItem{
		AccessToken: "access-memory-" + publicToken,
		ItemID:      "item-memory-" + publicToken,
	}, nil
}

// FetchTransactions implements bank.TransactionSource. Only transactions
// dated inside [start, end] are returned; undated ones are always included
// so malformed-date handling stays reachable end to end.
func (s *Source) FetchTransactions(_ context.Context, _ string, start, end time.Time) ([]core.Transaction, error) {
	var out []core.Transaction
	for _, t := range s.transactions {
		d, err := time.Parse("2006-01-02", t.Date)
		if err != nil {
			out = append(out, t)
			continue
		}
		if d.Before(start) || d.After(end) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}
