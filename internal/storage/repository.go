package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"budgeteer/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a user or report snapshot does not exist.
var ErrNotFound = errors.New("not found")

// Sync states for report snapshots. A snapshot starts pending, moves to
// synced once the exporter confirms the write, and lands on failed only
// after the retry budget is exhausted.
const (
	SyncPending = "pending"
	SyncSynced  = "synced"
	SyncFailed  = "failed"
)

// maxSyncAttempts is the retry budget before a snapshot is parked as failed.
const maxSyncAttempts = 5

// User is a stored profile: budget split plus linked bank credentials.
// AccessToken never leaves the process; it is not serialized anywhere.
type User struct {
	ID          string
	Email       string
	DisplayName string
	Config      core.BudgetConfig
	AccessToken string
	BankItemID  string
	CreatedAt   time.Time
}

// ReportSnapshot is a persisted monthly report together with its sync state
// toward the external spreadsheet.
type ReportSnapshot struct {
	ID           int64
	UserID       string
	Year         int
	Month        int
	Report       core.BudgetReport
	Statuses     core.ReportStatuses
	Commentary   string
	SyncStatus   string
	SyncAttempts int
	SheetRef     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateUser inserts a profile with the given budget split. Email and
// display name are optional.
func (r *SQLiteRepository) CreateUser(ctx context.Context, id, email, displayName string, cfg core.BudgetConfig) (User, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, display_name, needs_percent, wants_percent, savings_percent, monthly_income_override_cents)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, email, displayName, cfg.NeedsPercent, cfg.WantsPercent, cfg.SavingsPercent, cfg.MonthlyIncomeOverride.Cents)
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return r.GetUser(ctx, id)
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id string) (User, error) {
	var u User
	var overrideCents int64
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, display_name, needs_percent, wants_percent, savings_percent,
		        monthly_income_override_cents, bank_access_token, bank_item_id, created_at
		 FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Email, &u.DisplayName,
			&u.Config.NeedsPercent, &u.Config.WantsPercent, &u.Config.SavingsPercent,
			&overrideCents, &u.AccessToken, &u.BankItemID, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	u.Config.MonthlyIncomeOverride = core.Money{Cents: overrideCents}
	return u, nil
}

// SaveBankCredentials stores the access token and item id obtained from the
// public-token exchange.
func (r *SQLiteRepository) SaveBankCredentials(ctx context.Context, userID, accessToken, itemID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET bank_access_token = ?, bank_item_id = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`, accessToken, itemID, userID)
	if err != nil {
		return fmt.Errorf("save bank credentials: %w", err)
	}
	return rowTouched(res, userID)
}

func (r *SQLiteRepository) GetBudgetConfig(ctx context.Context, userID string) (core.BudgetConfig, error) {
	u, err := r.GetUser(ctx, userID)
	if err != nil {
		return core.BudgetConfig{}, err
	}
	return u.Config, nil
}

func (r *SQLiteRepository) UpdateBudgetConfig(ctx context.Context, userID string, cfg core.BudgetConfig) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET needs_percent = ?, wants_percent = ?, savings_percent = ?,
		        monthly_income_override_cents = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		cfg.NeedsPercent, cfg.WantsPercent, cfg.SavingsPercent, cfg.MonthlyIncomeOverride.Cents, userID)
	if err != nil {
		return fmt.Errorf("update budget config: %w", err)
	}
	return rowTouched(res, userID)
}

// SaveReport upserts the snapshot for (user, year, month). A re-generated
// report goes back to pending with a fresh retry budget so the worker picks
// it up again.
func (r *SQLiteRepository) SaveReport(ctx context.Context, snap ReportSnapshot) (int64, error) {
	reportJSON, err := json.Marshal(snap.Report)
	if err != nil {
		return 0, fmt.Errorf("marshal report: %w", err)
	}
	statusesJSON, err := json.Marshal(snap.Statuses)
	if err != nil {
		return 0, fmt.Errorf("marshal statuses: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO budget_reports (user_id, year, month, report_json, statuses_json, commentary)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, year, month) DO UPDATE SET
		   report_json = excluded.report_json,
		   statuses_json = excluded.statuses_json,
		   commentary = excluded.commentary,
		   sync_status = 'pending',
		   sync_attempts = 0,
		   updated_at = CURRENT_TIMESTAMP`,
		snap.UserID, snap.Year, snap.Month, string(reportJSON), string(statusesJSON), snap.Commentary)
	if err != nil {
		return 0, fmt.Errorf("save report: %w", err)
	}

	var id int64
	err = r.db.QueryRowContext(ctx,
		`SELECT id FROM budget_reports WHERE user_id = ? AND year = ? AND month = ?`,
		snap.UserID, snap.Year, snap.Month).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("read back report id: %w", err)
	}
	return id, nil
}

func (r *SQLiteRepository) GetReport(ctx context.Context, userID string, year, month int) (ReportSnapshot, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, year, month, report_json, statuses_json, commentary,
		        sync_status, sync_attempts, sheet_ref, created_at, updated_at
		 FROM budget_reports WHERE user_id = ? AND year = ? AND month = ?`,
		userID, year, month)
	return scanSnapshot(row)
}

func (r *SQLiteRepository) GetReportByID(ctx context.Context, id int64) (ReportSnapshot, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, year, month, report_json, statuses_json, commentary,
		        sync_status, sync_attempts, sheet_ref, created_at, updated_at
		 FROM budget_reports WHERE id = ?`, id)
	return scanSnapshot(row)
}

// ListPendingReports returns the oldest pending snapshots, limit capped by
// the caller's batch size.
func (r *SQLiteRepository) ListPendingReports(ctx context.Context, limit int) ([]ReportSnapshot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, year, month, report_json, statuses_json, commentary,
		        sync_status, sync_attempts, sheet_ref, created_at, updated_at
		 FROM budget_reports WHERE sync_status = 'pending'
		 ORDER BY updated_at ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending reports: %w", err)
	}
	defer rows.Close()

	var snaps []ReportSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending reports: %w", err)
	}
	return snaps, nil
}

func (r *SQLiteRepository) MarkReportSynced(ctx context.Context, id int64, sheetRef string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE budget_reports SET sync_status = 'synced', sheet_ref = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`, sheetRef, id)
	if err != nil {
		return fmt.Errorf("mark report synced: %w", err)
	}
	return nil
}

// MarkReportSyncFailed burns one retry attempt. The snapshot stays pending
// until the attempt budget runs out, then it is parked as failed and left
// for a manual re-generate.
func (r *SQLiteRepository) MarkReportSyncFailed(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE budget_reports
		 SET sync_attempts = sync_attempts + 1,
		     sync_status = CASE WHEN sync_attempts + 1 >= ? THEN 'failed' ELSE 'pending' END,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`, maxSyncAttempts, id)
	if err != nil {
		return fmt.Errorf("mark report sync failed: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (ReportSnapshot, error) {
	var snap ReportSnapshot
	var reportJSON, statusesJSON string
	err := row.Scan(&snap.ID, &snap.UserID, &snap.Year, &snap.Month,
		&reportJSON, &statusesJSON, &snap.Commentary,
		&snap.SyncStatus, &snap.SyncAttempts, &snap.SheetRef,
		&snap.CreatedAt, &snap.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ReportSnapshot{}, ErrNotFound
	}
	if err != nil {
		return ReportSnapshot{}, fmt.Errorf("scan report: %w", err)
	}
	if err := json.Unmarshal([]byte(reportJSON), &snap.Report); err != nil {
		return ReportSnapshot{}, fmt.Errorf("unmarshal report: %w", err)
	}
	if err := json.Unmarshal([]byte(statusesJSON), &snap.Statuses); err != nil {
		return ReportSnapshot{}, fmt.Errorf("unmarshal statuses: %w", err)
	}
	return snap, nil
}

func rowTouched(res sql.Result, userID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return nil
}
