package core

import (
	"fmt"
	"time"
)

// StatusLevel classifies how spending (or saving) compares to the budget.
type StatusLevel string

const (
	StatusNeutral   StatusLevel = "neutral"
	StatusExcellent StatusLevel = "excellent"
	StatusGood      StatusLevel = "good"
	StatusWarning   StatusLevel = "warning"
	StatusDanger    StatusLevel = "danger"
)

// StatusCategory selects the evaluation regime: spending buckets are judged
// on how fast money leaves, the savings goal on how much is projected to
// remain.
type StatusCategory string

const (
	SpendingStatus StatusCategory = "spending"
	SavingsStatus  StatusCategory = "savings"
)

// BudgetStatus is the user-facing verdict for one bucket.
type BudgetStatus struct {
	Level      StatusLevel `json:"level"`
	Percentage float64     `json:"percentage"`
	Message    string      `json:"message"`
}

// DaysInMonth returns the calendar length of a month, leap February
// included.
func DaysInMonth(year int, month time.Month) int {
	// Day zero of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// MonthProgress returns the elapsed fraction of the given month as seen at
// now: daysElapsed / daysInMonth, counting the current day as elapsed. A
// month that lies fully in the past (or any non-current month) is treated
// as complete and returns 1. A future month returns 0.
//
// The current time is an explicit parameter; the core never reads a clock.
func MonthProgress(now time.Time, year int, month time.Month) float64 {
	switch {
	case year < now.Year(), year == now.Year() && month < now.Month():
		return 1
	case year > now.Year(), year == now.Year() && month > now.Month():
		return 0
	}
	return float64(now.Day()) / float64(DaysInMonth(year, month))
}

// EvaluateStatus judges actual against budget for a bucket at a point in
// the month. A zero budget yields a neutral status rather than dividing.
//
// Completed month (progress == 1): percentage = actual/budget·100 with
// thresholds at 80 and 100. In-progress month: actual is compared to the
// time-prorated expectation budget·progress; the reported percentage is the
// pace (100 = exactly on track). For the savings goal the projection
// actual/progress is compared to the goal instead, so under-spending reads
// as ahead, not behind.
func EvaluateStatus(actual, budget Money, category StatusCategory, progress float64) BudgetStatus {
	if budget.Cents <= 0 || progress <= 0 {
		return BudgetStatus{Level: StatusNeutral, Percentage: 0, Message: "No budget set for this category yet."}
	}
	if progress > 1 {
		progress = 1
	}

	if category == SavingsStatus {
		return evaluateSavings(actual, budget, progress)
	}

	if progress == 1 {
		pct := actual.Dollars() / budget.Dollars() * 100
		switch {
		case pct <= 80:
			return BudgetStatus{Level: StatusGood, Percentage: pct,
				Message: fmt.Sprintf("Spent %.0f%% of budget. Well under the limit.", pct)}
		case pct <= 100:
			return BudgetStatus{Level: StatusWarning, Percentage: pct,
				Message: fmt.Sprintf("Spent %.0f%% of budget. Close to the limit.", pct)}
		default:
			return BudgetStatus{Level: StatusDanger, Percentage: pct,
				Message: fmt.Sprintf("Over budget: spent %.0f%% of the limit.", pct)}
		}
	}

	expected := budget.Dollars() * progress
	pace := actual.Dollars() / expected * 100
	switch {
	case pace <= 80:
		return BudgetStatus{Level: StatusExcellent, Percentage: pace,
			Message: "Spending well below pace for this point in the month."}
	case pace <= 100:
		return BudgetStatus{Level: StatusGood, Percentage: pace,
			Message: "On track for this point in the month."}
	case pace <= 120:
		return BudgetStatus{Level: StatusWarning, Percentage: pace,
			Message: "Spending slightly ahead of pace. Slow down to stay on budget."}
	default:
		return BudgetStatus{Level: StatusDanger, Percentage: pace,
			Message: "Spending far ahead of pace. On course to blow the budget."}
	}
}

// evaluateSavings inverts the pacing idea: the month-end projection of the
// current savings rate is measured against the goal. High numbers are good.
func evaluateSavings(actual, goal Money, progress float64) BudgetStatus {
	projected := actual.Dollars() / progress
	pct := projected / goal.Dollars() * 100
	switch {
	case pct >= 120:
		return BudgetStatus{Level: StatusExcellent, Percentage: pct,
			Message: fmt.Sprintf("Projected to save %.0f%% of the goal. Outstanding month.", pct)}
	case pct >= 100:
		return BudgetStatus{Level: StatusGood, Percentage: pct,
			Message: fmt.Sprintf("Projected to hit %.0f%% of the savings goal. Keep it up.", pct)}
	case pct >= 80:
		return BudgetStatus{Level: StatusWarning, Percentage: pct,
			Message: fmt.Sprintf("Projected at %.0f%% of the savings goal. A little behind.", pct)}
	case pct >= 50:
		return BudgetStatus{Level: StatusWarning, Percentage: pct,
			Message: fmt.Sprintf("Projected at %.0f%% of the savings goal. Spending is eating into savings.", pct)}
	default:
		return BudgetStatus{Level: StatusDanger, Percentage: pct,
			Message: fmt.Sprintf("Projected at only %.0f%% of the savings goal this month.", pct)}
	}
}

// ReportStatuses is the full status verdict for a report: one entry per
// bucket, evaluated against the budget amounts implied by the report's own
// income and percentages.
type ReportStatuses struct {
	Needs   BudgetStatus `json:"needs"`
	Wants   BudgetStatus `json:"wants"`
	Savings BudgetStatus `json:"savings"`
}

// EvaluateReport derives budget amounts from the report's income total and
// config percentages, then scores each bucket at the given month progress.
func EvaluateReport(r *BudgetReport, cfg BudgetConfig, progress float64) ReportStatuses {
	needsBudget, wantsBudget, savingsGoal := BudgetAmounts(r.Income.Total, cfg)
	return ReportStatuses{
		Needs:   EvaluateStatus(r.Needs.Total, needsBudget, SpendingStatus, progress),
		Wants:   EvaluateStatus(r.Wants.Total, wantsBudget, SpendingStatus, progress),
		Savings: EvaluateStatus(r.Savings.Total, savingsGoal, SavingsStatus, progress),
	}
}
