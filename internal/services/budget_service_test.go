package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"budgeteer/internal/bank"
	"budgeteer/internal/core"
	"budgeteer/internal/storage"
)

type fakeStore struct {
	users    map[string]storage.User
	reports  map[string]storage.ReportSnapshot
	nextID   int64
	saveErr  error
	savedIDs []int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   make(map[string]storage.User),
		reports: make(map[string]storage.ReportSnapshot),
	}
}

func (f *fakeStore) CreateUser(_ context.Context, id, email, displayName string, cfg core.BudgetConfig) (storage.User, error) {
	u := storage.User{ID: id, Email: email, DisplayName: displayName, Config: cfg, CreatedAt: time.Now()}
	f.users[id] = u
	return u, nil
}

func (f *fakeStore) GetUser(_ context.Context, id string) (storage.User, error) {
	u, ok := f.users[id]
	if !ok {
		return storage.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (f *fakeStore) SaveBankCredentials(_ context.Context, userID, accessToken, itemID string) error {
	u, ok := f.users[userID]
	if !ok {
		return storage.ErrNotFound
	}
	u.AccessToken = accessToken
	u.BankItemID = itemID
	f.users[userID] = u
	return nil
}

func (f *fakeStore) GetBudgetConfig(_ context.Context, userID string) (core.BudgetConfig, error) {
	u, ok := f.users[userID]
	if !ok {
		return core.BudgetConfig{}, storage.ErrNotFound
	}
	return u.Config, nil
}

func (f *fakeStore) UpdateBudgetConfig(_ context.Context, userID string, cfg core.BudgetConfig) error {
	u, ok := f.users[userID]
	if !ok {
		return storage.ErrNotFound
	}
	u.Config = cfg
	f.users[userID] = u
	return nil
}

func reportKey(userID string, year, month int) string {
	return userID + "/" + time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}

func (f *fakeStore) SaveReport(_ context.Context, snap storage.ReportSnapshot) (int64, error) {
	if f.saveErr != nil {
		return 0, f.saveErr
	}
	f.nextID++
	snap.ID = f.nextID
	snap.SyncStatus = storage.SyncPending
	f.reports[reportKey(snap.UserID, snap.Year, snap.Month)] = snap
	f.savedIDs = append(f.savedIDs, snap.ID)
	return snap.ID, nil
}

func (f *fakeStore) GetReport(_ context.Context, userID string, year, month int) (storage.ReportSnapshot, error) {
	snap, ok := f.reports[reportKey(userID, year, month)]
	if !ok {
		return storage.ReportSnapshot{}, storage.ErrNotFound
	}
	return snap, nil
}

type fakeBank struct {
	txns     []core.Transaction
	fetchErr error
	linked   bank.LinkedItem
}

func (f *fakeBank) CreateLinkToken(context.Context, string) (string, error) {
	return "link-token", nil
}

func (f *fakeBank) ExchangePublicToken(_ context.Context, publicToken string) (bank.LinkedItem, error) {
	if publicToken == "" {
		return bank.LinkedItem{}, errors.New("empty public token")
	}
	return f.linked, nil
}

func (f *fakeBank) FetchTransactions(context.Context, string, time.Time, time.Time) ([]core.Transaction, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.txns, nil
}

type fakePublisher struct {
	published []int64
	err       error
}

func (f *fakePublisher) PublishReportSync(_ context.Context, reportID int64, _ string, _, _ int) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, reportID)
	return nil
}

type fakeCommentator struct {
	commentary string
	err        error
}

func (f *fakeCommentator) Commentary(context.Context, *core.BudgetReport, core.ReportStatuses, int, int) (string, error) {
	return f.commentary, f.err
}

func linkedUser(t *testing.T, store *fakeStore) string {
	t.Helper()
	ctx := context.Background()
	if _, err := store.CreateUser(ctx, "user-1", "", "", core.DefaultBudgetConfig()); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := store.SaveBankCredentials(ctx, "user-1", "access-token", "item-1"); err != nil {
		t.Fatalf("SaveBankCredentials: %v", err)
	}
	return "user-1"
}

func fixedClock(svc *BudgetService, year int, month time.Month, day int) {
	svc.now = func() time.Time {
		return time.Date(year, month, day, 12, 0, 0, 0, time.UTC)
	}
}

func TestCreateUserDefaults(t *testing.T) {
	store := newFakeStore()
	svc := NewBudgetService(store, &fakeBank{}, nil, nil, 30)

	u, err := svc.CreateUser(context.Background(), "ada@example.com", "Ada")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.ID == "" {
		t.Error("user id should be generated")
	}
	if u.Email != "ada@example.com" {
		t.Errorf("email = %q, want ada@example.com", u.Email)
	}
	if u.Config != core.DefaultBudgetConfig() {
		t.Errorf("config = %+v, want default 50/30/20", u.Config)
	}
}

func TestCreateLinkTokenRequiresUser(t *testing.T) {
	svc := NewBudgetService(newFakeStore(), &fakeBank{}, nil, nil, 30)

	if _, err := svc.CreateLinkToken(context.Background(), "nobody"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestExchangePublicToken(t *testing.T) {
	store := newFakeStore()
	bankClient := &fakeBank{linked: bank.LinkedItem{AccessToken: "secret", ItemID: "item-9"}}
	svc := NewBudgetService(store, bankClient, nil, nil, 30)
	ctx := context.Background()

	if _, err := store.CreateUser(ctx, "user-1", "", "", core.DefaultBudgetConfig()); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := svc.ExchangePublicToken(ctx, "user-1", "public-token"); err != nil {
		t.Fatalf("ExchangePublicToken: %v", err)
	}

	u, _ := store.GetUser(ctx, "user-1")
	if u.AccessToken != "secret" || u.BankItemID != "item-9" {
		t.Errorf("credentials = %q/%q", u.AccessToken, u.BankItemID)
	}
}

func TestUpdateBudgetConfigValidates(t *testing.T) {
	store := newFakeStore()
	svc := NewBudgetService(store, &fakeBank{}, nil, nil, 30)
	ctx := context.Background()
	linkedUser(t, store)

	bad := core.BudgetConfig{NeedsPercent: 50, WantsPercent: 30, SavingsPercent: 30}
	if _, err := svc.UpdateBudgetConfig(ctx, "user-1", bad); !errors.Is(err, core.ErrInvalidBudgetConfig) {
		t.Errorf("err = %v, want ErrInvalidBudgetConfig", err)
	}

	good := core.BudgetConfig{NeedsPercent: 60, WantsPercent: 25, SavingsPercent: 15}
	saved, err := svc.UpdateBudgetConfig(ctx, "user-1", good)
	if err != nil {
		t.Fatalf("UpdateBudgetConfig: %v", err)
	}
	if saved != good {
		t.Errorf("returned config = %+v, want %+v", saved, good)
	}
	got, _ := store.GetBudgetConfig(ctx, "user-1")
	if got != good {
		t.Errorf("config = %+v, want %+v", got, good)
	}
}

func TestRebalanceBudget(t *testing.T) {
	store := newFakeStore()
	svc := NewBudgetService(store, &fakeBank{}, nil, nil, 30)
	ctx := context.Background()
	linkedUser(t, store)

	next, err := svc.RebalanceBudget(ctx, "user-1", core.BucketNeeds, 60)
	if err != nil {
		t.Fatalf("RebalanceBudget: %v", err)
	}
	want := core.BudgetConfig{NeedsPercent: 60, WantsPercent: 24, SavingsPercent: 16}
	if next != want {
		t.Errorf("rebalanced = %+v, want %+v", next, want)
	}
	stored, _ := store.GetBudgetConfig(ctx, "user-1")
	if stored != want {
		t.Errorf("stored = %+v, want %+v", stored, want)
	}
}

func TestGenerateReportRequiresLink(t *testing.T) {
	store := newFakeStore()
	svc := NewBudgetService(store, &fakeBank{}, nil, nil, 30)
	ctx := context.Background()

	if _, err := store.CreateUser(ctx, "user-1", "", "", core.DefaultBudgetConfig()); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := svc.GenerateReport(ctx, "user-1"); !errors.Is(err, ErrBankNotLinked) {
		t.Errorf("err = %v, want ErrBankNotLinked", err)
	}
}

func TestGenerateReportEmptyWindow(t *testing.T) {
	store := newFakeStore()
	svc := NewBudgetService(store, &fakeBank{}, nil, nil, 30)
	linkedUser(t, store)

	if _, err := svc.GenerateReport(context.Background(), "user-1"); !errors.Is(err, core.ErrNoTransactions) {
		t.Errorf("err = %v, want ErrNoTransactions", err)
	}
}

func TestGenerateReport(t *testing.T) {
	store := newFakeStore()
	bankClient := &fakeBank{txns: []core.Transaction{
		{Name: "Paycheck", Amount: -5000.00, Date: "2025-06-01", Category: "income"},
		{Name: "Monthly Rent", Amount: 1500.00, Date: "2025-06-02", Category: "rent_and_utilities"},
		{Name: "Cinema", Amount: 25.00, Date: "2025-06-03", Category: "entertainment"},
	}}
	publisher := &fakePublisher{}
	commentator := &fakeCommentator{commentary: "Looking good."}
	svc := NewBudgetService(store, bankClient, publisher, commentator, 30)
	fixedClock(svc, 2025, time.June, 15)
	linkedUser(t, store)

	result, err := svc.GenerateReport(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GenerateReport: %v", err)
	}

	if result.Year != 2025 || result.Month != 6 {
		t.Errorf("period = %d/%d, want 2025/6", result.Year, result.Month)
	}
	if result.Report.Income.Total.Cents != 500000 {
		t.Errorf("income = %d, want 500000", result.Report.Income.Total.Cents)
	}
	if result.Report.Needs.Total.Cents != 150000 {
		t.Errorf("needs = %d, want 150000", result.Report.Needs.Total.Cents)
	}
	if result.Report.Savings.Total.Cents != 347500 {
		t.Errorf("savings = %d, want 347500", result.Report.Savings.Total.Cents)
	}
	if result.Commentary != "Looking good." {
		t.Errorf("commentary = %q", result.Commentary)
	}
	if result.Statuses.Needs.Level == "" {
		t.Error("statuses should be evaluated")
	}

	// Snapshot persisted and queued for sync
	snap, err := store.GetReport(context.Background(), "user-1", 2025, 6)
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	if snap.SyncStatus != storage.SyncPending {
		t.Errorf("snapshot status = %q, want pending", snap.SyncStatus)
	}
	if len(publisher.published) != 1 || publisher.published[0] != result.ID {
		t.Errorf("published = %v, want [%d]", publisher.published, result.ID)
	}
}

func TestGenerateReportSurvivesPublishFailure(t *testing.T) {
	store := newFakeStore()
	bankClient := &fakeBank{txns: []core.Transaction{
		{Name: "Paycheck", Amount: -1000.00, Date: "2025-06-01", Category: "income"},
	}}
	publisher := &fakePublisher{err: errors.New("broker down")}
	svc := NewBudgetService(store, bankClient, publisher, nil, 30)
	fixedClock(svc, 2025, time.June, 15)
	linkedUser(t, store)

	result, err := svc.GenerateReport(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GenerateReport should not fail on publish error: %v", err)
	}
	if result.ID == 0 {
		t.Error("snapshot should still be saved")
	}
}

func TestGenerateReportSurvivesCommentaryFailure(t *testing.T) {
	store := newFakeStore()
	bankClient := &fakeBank{txns: []core.Transaction{
		{Name: "Paycheck", Amount: -1000.00, Date: "2025-06-01", Category: "income"},
	}}
	commentator := &fakeCommentator{err: errors.New("model unavailable")}
	svc := NewBudgetService(store, bankClient, nil, commentator, 30)
	fixedClock(svc, 2025, time.June, 15)
	linkedUser(t, store)

	result, err := svc.GenerateReport(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GenerateReport should not fail on commentary error: %v", err)
	}
	if result.Commentary != "" {
		t.Errorf("commentary = %q, want empty on failure", result.Commentary)
	}
}

func TestGenerateReportFetchError(t *testing.T) {
	store := newFakeStore()
	bankClient := &fakeBank{fetchErr: errors.New("provider timeout")}
	svc := NewBudgetService(store, bankClient, nil, nil, 30)
	linkedUser(t, store)

	if _, err := svc.GenerateReport(context.Background(), "user-1"); err == nil {
		t.Error("expected fetch error to propagate")
	}
}
