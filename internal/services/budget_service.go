package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"budgeteer/internal/bank"
	"budgeteer/internal/core"
	"budgeteer/internal/storage"
)

// ErrBankNotLinked is returned when a report is requested for a user who
// has not completed the link flow.
var ErrBankNotLinked = errors.New("bank account not linked")

// ReportStore is the slice of the repository the service needs.
type ReportStore interface {
	CreateUser(ctx context.Context, id, email, displayName string, cfg core.BudgetConfig) (storage.User, error)
	GetUser(ctx context.Context, id string) (storage.User, error)
	SaveBankCredentials(ctx context.Context, userID, accessToken, itemID string) error
	GetBudgetConfig(ctx context.Context, userID string) (core.BudgetConfig, error)
	UpdateBudgetConfig(ctx context.Context, userID string, cfg core.BudgetConfig) error
	SaveReport(ctx context.Context, snap storage.ReportSnapshot) (int64, error)
	GetReport(ctx context.Context, userID string, year, month int) (storage.ReportSnapshot, error)
}

// SyncPublisher publishes report sync messages.
type SyncPublisher interface {
	PublishReportSync(ctx context.Context, reportID int64, userID string, year, month int) error
}

// Commentator produces optional report commentary.
type Commentator interface {
	Commentary(ctx context.Context, r *core.BudgetReport, statuses core.ReportStatuses, year, month int) (string, error)
}

// BudgetService orchestrates user, link, and report operations across the
// bank provider, SQLite, AMQP, and the commentary model.
type BudgetService struct {
	store      ReportStore
	bankClient bank.Client
	publisher  SyncPublisher
	advisor    Commentator
	windowDays int
	now        func() time.Time
}

func NewBudgetService(store ReportStore, bankClient bank.Client, publisher SyncPublisher, advisor Commentator, windowDays int) *BudgetService {
	if windowDays <= 0 {
		windowDays = 30
	}
	return &BudgetService{
		store:      store,
		bankClient: bankClient,
		publisher:  publisher,
		advisor:    advisor,
		windowDays: windowDays,
		now:        time.Now,
	}
}

// CreateUser provisions a profile with the default 50/30/20 split. Email
// and display name are optional.
func (s *BudgetService) CreateUser(ctx context.Context, email, displayName string) (storage.User, error) {
	id := uuid.NewString()
	u, err := s.store.CreateUser(ctx, id, email, displayName, core.DefaultBudgetConfig())
	if err != nil {
		return storage.User{}, fmt.Errorf("create user: %w", err)
	}
	slog.InfoContext(ctx, "User created", "user_id", u.ID)
	return u, nil
}

// CreateLinkToken starts the account-linking flow for an existing user.
func (s *BudgetService) CreateLinkToken(ctx context.Context, userID string) (string, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return "", err
	}
	token, err := s.bankClient.CreateLinkToken(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("create link token: %w", err)
	}
	return token, nil
}

// ExchangePublicToken completes the link flow and stores the resulting
// credentials on the user.
func (s *BudgetService) ExchangePublicToken(ctx context.Context, userID, publicToken string) error {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return err
	}
	item, err := s.bankClient.ExchangePublicToken(ctx, publicToken)
	if err != nil {
		return fmt.Errorf("exchange public token: %w", err)
	}
	if err := s.store.SaveBankCredentials(ctx, userID, item.AccessToken, item.ItemID); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Bank account linked", "user_id", userID, "item_id", item.ItemID)
	return nil
}

func (s *BudgetService) GetBudgetConfig(ctx context.Context, userID string) (core.BudgetConfig, error) {
	return s.store.GetBudgetConfig(ctx, userID)
}

// UpdateBudgetConfig replaces the user's split after validating it and
// returns the persisted value, mirroring RebalanceBudget.
func (s *BudgetService) UpdateBudgetConfig(ctx context.Context, userID string, cfg core.BudgetConfig) (core.BudgetConfig, error) {
	if err := cfg.Validate(); err != nil {
		return core.BudgetConfig{}, err
	}
	if err := s.store.UpdateBudgetConfig(ctx, userID, cfg); err != nil {
		return core.BudgetConfig{}, err
	}
	return cfg, nil
}

// RebalanceBudget pins one bucket to the given percentage, redistributes
// the rest proportionally, and persists the result.
func (s *BudgetService) RebalanceBudget(ctx context.Context, userID string, bucket core.BucketType, percent int) (core.BudgetConfig, error) {
	current, err := s.store.GetBudgetConfig(ctx, userID)
	if err != nil {
		return core.BudgetConfig{}, err
	}
	next, err := current.Rebalance(bucket, percent)
	if err != nil {
		return core.BudgetConfig{}, err
	}
	if err := s.store.UpdateBudgetConfig(ctx, userID, next); err != nil {
		return core.BudgetConfig{}, err
	}
	return next, nil
}

// ReportResult is a freshly generated report plus its evaluation.
type ReportResult struct {
	ID         int64               `json:"id"`
	Year       int                 `json:"year"`
	Month      int                 `json:"month"`
	Report     *core.BudgetReport  `json:"report"`
	Statuses   core.ReportStatuses `json:"statuses"`
	Commentary string              `json:"commentary,omitempty"`
}

// GenerateReport fetches the trailing transaction window, aggregates it
// into a report for the current month, persists the snapshot, and queues it
// for spreadsheet sync. The sync publish is fire-and-forget: a dead broker
// never fails report generation, the resync sweep catches up later.
func (s *BudgetService) GenerateReport(ctx context.Context, userID string) (*ReportResult, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.AccessToken == "" {
		return nil, ErrBankNotLinked
	}

	now := s.now()
	start := now.AddDate(0, 0, -s.windowDays)

	txns, err := s.bankClient.FetchTransactions(ctx, user.AccessToken, start, now)
	if err != nil {
		return nil, fmt.Errorf("fetch transactions: %w", err)
	}

	report, err := core.Aggregate(txns, user.Config)
	if err != nil {
		return nil, err
	}

	progress := core.MonthProgress(now, now.Year(), now.Month())
	statuses := core.EvaluateReport(report, user.Config, progress)

	commentary := ""
	if s.advisor != nil {
		commentary, err = s.advisor.Commentary(ctx, report, statuses, now.Year(), int(now.Month()))
		if err != nil {
			slog.WarnContext(ctx, "Commentary generation failed, continuing without",
				"user_id", userID, "error", err)
			commentary = ""
		}
	}

	snap := storage.ReportSnapshot{
		UserID:     userID,
		Year:       now.Year(),
		Month:      int(now.Month()),
		Report:     *report,
		Statuses:   statuses,
		Commentary: commentary,
	}
	id, err := s.store.SaveReport(ctx, snap)
	if err != nil {
		return nil, err
	}

	if err := s.publishSync(ctx, id, userID, snap.Year, snap.Month); err != nil {
		slog.ErrorContext(ctx, "Failed to publish report sync message",
			"report_id", id, "user_id", userID, "error", err)
		// The snapshot is stored as pending; the resync sweep will retry.
	}

	slog.InfoContext(ctx, "Report generated",
		"report_id", id,
		"user_id", userID,
		"year", snap.Year,
		"month", snap.Month,
		"txn_count", len(txns))

	return &ReportResult{
		ID:         id,
		Year:       snap.Year,
		Month:      snap.Month,
		Report:     report,
		Statuses:   statuses,
		Commentary: commentary,
	}, nil
}

// GetReport returns the stored snapshot for the given month.
func (s *BudgetService) GetReport(ctx context.Context, userID string, year, month int) (storage.ReportSnapshot, error) {
	return s.store.GetReport(ctx, userID, year, month)
}

func (s *BudgetService) publishSync(ctx context.Context, reportID int64, userID string, year, month int) error {
	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP publisher not available, skipping sync message")
		return nil
	}
	return s.publisher.PublishReportSync(ctx, reportID, userID, year, month)
}
