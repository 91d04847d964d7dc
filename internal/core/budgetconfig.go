package core

import (
	"errors"
	"fmt"
)

// BudgetConfig is the user-editable percentage split plus an optional fixed
// monthly income. Owned by the user profile and persisted externally; the
// aggregator only ever reads a validated snapshot of it.
type BudgetConfig struct {
	NeedsPercent          int   `json:"needs"`
	WantsPercent          int   `json:"wants"`
	SavingsPercent        int   `json:"savings"`
	MonthlyIncomeOverride Money `json:"monthly_income_override_cents,omitempty"`
}

var ErrInvalidBudgetConfig = errors.New("invalid budget config")

// DefaultBudgetConfig is the classic 50/30/20 split.
func DefaultBudgetConfig() BudgetConfig {
	return BudgetConfig{NeedsPercent: 50, WantsPercent: 30, SavingsPercent: 20}
}

// Validate enforces the config contract: the three percentages must be
// non-negative integers summing to exactly 100. Violations are rejected at
// this boundary, never silently normalized downstream.
func (c BudgetConfig) Validate() error {
	if c.NeedsPercent < 0 || c.WantsPercent < 0 || c.SavingsPercent < 0 {
		return fmt.Errorf("%w: percentages must be non-negative (needs=%d wants=%d savings=%d)",
			ErrInvalidBudgetConfig, c.NeedsPercent, c.WantsPercent, c.SavingsPercent)
	}
	if sum := c.NeedsPercent + c.WantsPercent + c.SavingsPercent; sum != 100 {
		return fmt.Errorf("%w: percentages must sum to 100, got %d", ErrInvalidBudgetConfig, sum)
	}
	if c.MonthlyIncomeOverride.Cents < 0 {
		return fmt.Errorf("%w: monthly income override must be non-negative", ErrInvalidBudgetConfig)
	}
	return nil
}

// Rebalance sets one bucket's percentage and redistributes the remaining
// share across the other two in proportion to their previous values. The
// rounding remainder goes to the first of the adjusted buckets (canonical
// order needs, wants, savings) so the three always sum to 100.
func (c BudgetConfig) Rebalance(bucket BucketType, percent int) (BudgetConfig, error) {
	if percent < 0 || percent > 100 {
		return BudgetConfig{}, fmt.Errorf("%w: percentage %d out of range", ErrInvalidBudgetConfig, percent)
	}

	remaining := 100 - percent

	var firstOld, secondOld int
	switch bucket {
	case BucketNeeds:
		firstOld, secondOld = c.WantsPercent, c.SavingsPercent
	case BucketWants:
		firstOld, secondOld = c.NeedsPercent, c.SavingsPercent
	case BucketSavings:
		firstOld, secondOld = c.NeedsPercent, c.WantsPercent
	default:
		return BudgetConfig{}, fmt.Errorf("%w: %q is not a budget bucket", ErrInvalidBudgetConfig, bucket)
	}

	var first, second int
	if firstOld+secondOld == 0 {
		// No previous ratio to preserve: split evenly, odd cent of a
		// percent to the first adjusted bucket.
		second = remaining / 2
		first = remaining - second
	} else {
		first = remaining * firstOld / (firstOld + secondOld)
		second = remaining * secondOld / (firstOld + secondOld)
		first += remaining - first - second
	}

	out := c
	switch bucket {
	case BucketNeeds:
		out.NeedsPercent, out.WantsPercent, out.SavingsPercent = percent, first, second
	case BucketWants:
		out.NeedsPercent, out.WantsPercent, out.SavingsPercent = first, percent, second
	case BucketSavings:
		out.NeedsPercent, out.WantsPercent, out.SavingsPercent = first, second, percent
	}
	return out, nil
}
