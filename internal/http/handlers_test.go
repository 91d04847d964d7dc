package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"budgeteer/internal/core"
	"budgeteer/internal/services"
	"budgeteer/internal/storage"
)

type fakeService struct {
	user      storage.User
	linkToken string
	cfg       core.BudgetConfig
	result    *services.ReportResult
	snapshot  storage.ReportSnapshot

	createUserErr error
	linkTokenErr  error
	exchangeErr   error
	configErr     error
	updateErr     error
	rebalanceErr  error
	generateErr   error
	getReportErr  error

	// persisted, when set, is what UpdateBudgetConfig reports as stored.
	persisted *core.BudgetConfig

	getReportCalls int
	exchangedToken string
	createdEmail   string
	updatedConfig  core.BudgetConfig
}

func (f *fakeService) CreateUser(_ context.Context, email, displayName string) (storage.User, error) {
	f.createdEmail = email
	return f.user, f.createUserErr
}

func (f *fakeService) CreateLinkToken(_ context.Context, userID string) (string, error) {
	return f.linkToken, f.linkTokenErr
}

func (f *fakeService) ExchangePublicToken(_ context.Context, userID, publicToken string) error {
	f.exchangedToken = publicToken
	return f.exchangeErr
}

func (f *fakeService) GetBudgetConfig(_ context.Context, userID string) (core.BudgetConfig, error) {
	return f.cfg, f.configErr
}

func (f *fakeService) UpdateBudgetConfig(_ context.Context, userID string, cfg core.BudgetConfig) (core.BudgetConfig, error) {
	if f.updateErr != nil {
		return core.BudgetConfig{}, f.updateErr
	}
	f.updatedConfig = cfg
	if f.persisted != nil {
		return *f.persisted, nil
	}
	return cfg, nil
}

func (f *fakeService) RebalanceBudget(_ context.Context, userID string, bucket core.BucketType, percent int) (core.BudgetConfig, error) {
	if f.rebalanceErr != nil {
		return core.BudgetConfig{}, f.rebalanceErr
	}
	return f.cfg.Rebalance(bucket, percent)
}

func (f *fakeService) GenerateReport(_ context.Context, userID string) (*services.ReportResult, error) {
	return f.result, f.generateErr
}

func (f *fakeService) GetReport(_ context.Context, userID string, year, month int) (storage.ReportSnapshot, error) {
	f.getReportCalls++
	return f.snapshot, f.getReportErr
}

func newTestServer(t *testing.T, svc BudgetService) *Server {
	t.Helper()
	s := NewServer("127.0.0.1:0", svc)
	t.Cleanup(func() {
		_ = s.Shutdown(context.Background())
	})
	return s
}

func doRequest(s *Server, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHandleCreateUser(t *testing.T) {
	svc := &fakeService{user: storage.User{ID: "u-1", Config: core.DefaultBudgetConfig()}}
	s := newTestServer(t, svc)

	rec := doRequest(s, http.MethodPost, "/users", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["user_id"] != "u-1" {
		t.Errorf("expected user_id u-1, got %v", body["user_id"])
	}
	cfg, ok := body["config"].(map[string]any)
	if !ok || cfg["needs"] != float64(50) {
		t.Errorf("expected default config in response, got %v", body["config"])
	}
}

func TestHandleCreateUserWithProfile(t *testing.T) {
	svc := &fakeService{user: storage.User{ID: "u-2", Email: "ada@example.com"}}
	s := newTestServer(t, svc)

	rec := doRequest(s, http.MethodPost, "/users",
		`{"email":"ada@example.com","display_name":"Ada"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.createdEmail != "ada@example.com" {
		t.Errorf("expected email forwarded to service, got %q", svc.createdEmail)
	}
	if body := decodeBody(t, rec); body["email"] != "ada@example.com" {
		t.Errorf("expected email echoed in response, got %v", body["email"])
	}
}

func TestHandleCreateUserMethodNotAllowed(t *testing.T) {
	s := newTestServer(t, &fakeService{})

	rec := doRequest(s, http.MethodGet, "/users", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); allow != http.MethodPost {
		t.Errorf("expected Allow: POST header, got %q", allow)
	}
}

func TestHandleLinkToken(t *testing.T) {
	svc := &fakeService{linkToken: "link-sandbox-abc"}
	s := newTestServer(t, svc)

	rec := doRequest(s, http.MethodPost, "/link/token", `{"user_id":"u-1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if body := decodeBody(t, rec); body["link_token"] != "link-sandbox-abc" {
		t.Errorf("expected link token in response, got %v", body)
	}
}

func TestHandleLinkTokenValidation(t *testing.T) {
	s := newTestServer(t, &fakeService{})

	tests := []struct {
		name string
		body string
	}{
		{name: "missing user_id", body: `{}`},
		{name: "blank user_id", body: `{"user_id":"  "}`},
		{name: "malformed json", body: `{"user_id":`},
		{name: "unknown field", body: `{"user_id":"u-1","extra":true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(s, http.MethodPost, "/link/token", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestHandleLinkExchange(t *testing.T) {
	svc := &fakeService{}
	s := newTestServer(t, svc)

	rec := doRequest(s, http.MethodPost, "/link/exchange",
		`{"user_id":"u-1","public_token":"public-sandbox-xyz"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.exchangedToken != "public-sandbox-xyz" {
		t.Errorf("expected public token forwarded to service, got %q", svc.exchangedToken)
	}
}

func TestHandleLinkExchangeUnknownUser(t *testing.T) {
	svc := &fakeService{exchangeErr: fmt.Errorf("get user: %w", storage.ErrNotFound)}
	s := newTestServer(t, svc)

	rec := doRequest(s, http.MethodPost, "/link/exchange",
		`{"user_id":"nope","public_token":"public-sandbox-xyz"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleGetBudgetConfig(t *testing.T) {
	svc := &fakeService{cfg: core.BudgetConfig{NeedsPercent: 60, WantsPercent: 25, SavingsPercent: 15}}
	s := newTestServer(t, svc)

	rec := doRequest(s, http.MethodGet, "/budget/config?user_id=u-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if body := decodeBody(t, rec); body["needs"] != float64(60) {
		t.Errorf("expected needs 60, got %v", body["needs"])
	}

	rec = doRequest(s, http.MethodGet, "/budget/config", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without user_id, got %d", rec.Code)
	}
}

func TestHandleUpdateBudgetConfig(t *testing.T) {
	svc := &fakeService{}
	s := newTestServer(t, svc)

	rec := doRequest(s, http.MethodPut, "/budget/config",
		`{"user_id":"u-1","config":{"needs":55,"wants":25,"savings":20}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	want := core.BudgetConfig{NeedsPercent: 55, WantsPercent: 25, SavingsPercent: 20}
	if svc.updatedConfig != want {
		t.Errorf("expected config %+v saved, got %+v", want, svc.updatedConfig)
	}
	if body := decodeBody(t, rec); body["needs"] != float64(55) {
		t.Errorf("expected response needs 55, got %v", body["needs"])
	}
}

func TestHandleUpdateBudgetConfigReturnsStoredValue(t *testing.T) {
	stored := core.BudgetConfig{
		NeedsPercent:          55,
		WantsPercent:          25,
		SavingsPercent:        20,
		MonthlyIncomeOverride: core.Money{Cents: 123400},
	}
	svc := &fakeService{persisted: &stored}
	s := newTestServer(t, svc)

	rec := doRequest(s, http.MethodPut, "/budget/config",
		`{"user_id":"u-1","config":{"needs":55,"wants":25,"savings":20}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// The response reflects what was stored, not the request payload.
	if body := decodeBody(t, rec); body["monthly_income_override_cents"] != float64(123400) {
		t.Errorf("expected stored override 123400 in response, got %v", body["monthly_income_override_cents"])
	}
}

func TestHandleUpdateBudgetConfigMonthlyIncome(t *testing.T) {
	t.Run("standalone", func(t *testing.T) {
		svc := &fakeService{cfg: core.DefaultBudgetConfig()}
		s := newTestServer(t, svc)

		rec := doRequest(s, http.MethodPut, "/budget/config",
			`{"user_id":"u-1","monthly_income":"3250.50"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got := svc.updatedConfig.MonthlyIncomeOverride.Cents; got != 325050 {
			t.Errorf("expected override 325050 cents saved, got %d", got)
		}
		if body := decodeBody(t, rec); body["monthly_income_override_cents"] != float64(325050) {
			t.Errorf("expected override in response, got %v", body["monthly_income_override_cents"])
		}
	})

	t.Run("with full config", func(t *testing.T) {
		svc := &fakeService{}
		s := newTestServer(t, svc)

		rec := doRequest(s, http.MethodPut, "/budget/config",
			`{"user_id":"u-1","config":{"needs":55,"wants":25,"savings":20},"monthly_income":"1200,00"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got := svc.updatedConfig.MonthlyIncomeOverride.Cents; got != 120000 {
			t.Errorf("expected override 120000 cents saved, got %d", got)
		}
		if got := svc.updatedConfig.NeedsPercent; got != 55 {
			t.Errorf("expected needs 55 saved, got %d", got)
		}
	})

	t.Run("with rebalance", func(t *testing.T) {
		svc := &fakeService{cfg: core.DefaultBudgetConfig()}
		s := newTestServer(t, svc)

		rec := doRequest(s, http.MethodPut, "/budget/config",
			`{"user_id":"u-1","bucket":"needs","percent":60,"monthly_income":"500"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		body := decodeBody(t, rec)
		if body["needs"] != float64(60) {
			t.Errorf("expected rebalanced needs 60, got %v", body["needs"])
		}
		if body["monthly_income_override_cents"] != float64(50000) {
			t.Errorf("expected override 50000 in response, got %v", body["monthly_income_override_cents"])
		}
	})
}

func TestHandleUpdateBudgetConfigMonthlyIncomeInvalid(t *testing.T) {
	cases := []struct {
		name   string
		income string
	}{
		{"not a number", "abc"},
		{"negative", "-50.00"},
		{"double separator", "1.2.3"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(t, &fakeService{})
			rec := doRequest(s, http.MethodPut, "/budget/config",
				`{"user_id":"u-1","monthly_income":"`+tc.income+`"}`)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestHandleUpdateBudgetConfigInvalid(t *testing.T) {
	svc := &fakeService{updateErr: fmt.Errorf("%w: percentages must sum to 100, got 90", core.ErrInvalidBudgetConfig)}
	s := newTestServer(t, svc)

	rec := doRequest(s, http.MethodPut, "/budget/config",
		`{"user_id":"u-1","config":{"needs":50,"wants":20,"savings":20}}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["code"] != "invalid_budget_config" {
		t.Errorf("expected invalid_budget_config code, got %v", body["code"])
	}
}

func TestHandleRebalanceBudgetConfig(t *testing.T) {
	svc := &fakeService{cfg: core.DefaultBudgetConfig()}
	s := newTestServer(t, svc)

	rec := doRequest(s, http.MethodPut, "/budget/config",
		`{"user_id":"u-1","bucket":"needs","percent":60}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["needs"] != float64(60) {
		t.Errorf("expected rebalanced needs 60, got %v", body["needs"])
	}
	if got := body["wants"].(float64) + body["savings"].(float64); got != 40 {
		t.Errorf("expected wants+savings to absorb remaining 40, got %v", got)
	}
}

func TestHandleUpdateBudgetConfigNeitherShape(t *testing.T) {
	s := newTestServer(t, &fakeService{})

	rec := doRequest(s, http.MethodPut, "/budget/config", `{"user_id":"u-1"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleGenerateReport(t *testing.T) {
	svc := &fakeService{result: &services.ReportResult{
		ID:    7,
		Year:  2025,
		Month: 6,
	}}
	s := newTestServer(t, svc)

	rec := doRequest(s, http.MethodPost, "/budget/report", `{"user_id":"u-1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if body := decodeBody(t, rec); body["year"] != float64(2025) {
		t.Errorf("expected year 2025 in response, got %v", body["year"])
	}
}

func TestHandleGenerateReportErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantTag  string
	}{
		{
			name:     "bank not linked",
			err:      services.ErrBankNotLinked,
			wantCode: http.StatusConflict,
			wantTag:  "bank_not_linked",
		},
		{
			name:     "no transactions",
			err:      fmt.Errorf("aggregate: %w", core.ErrNoTransactions),
			wantCode: http.StatusNotFound,
			wantTag:  "no_transactions",
		},
		{
			name:     "unknown user",
			err:      fmt.Errorf("get user: %w", storage.ErrNotFound),
			wantCode: http.StatusNotFound,
			wantTag:  "not_found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, &fakeService{generateErr: tt.err})

			rec := doRequest(s, http.MethodPost, "/budget/report", `{"user_id":"u-1"}`)
			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rec.Code)
			}
			if body := decodeBody(t, rec); body["code"] != tt.wantTag {
				t.Errorf("expected code %q, got %v", tt.wantTag, body["code"])
			}
		})
	}
}

func TestHandleGetReport(t *testing.T) {
	svc := &fakeService{snapshot: storage.ReportSnapshot{
		ID:         3,
		UserID:     "u-1",
		Year:       2025,
		Month:      6,
		SyncStatus: storage.SyncSynced,
		SheetRef:   "2025 Budget!A10:E17",
		UpdatedAt:  time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC),
	}}
	s := newTestServer(t, svc)

	rec := doRequest(s, http.MethodGet, "/budget?user_id=u-1&year=2025&month=6", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["sync_status"] != storage.SyncSynced {
		t.Errorf("expected synced status, got %v", body["sync_status"])
	}
	if body["sheet_ref"] != "2025 Budget!A10:E17" {
		t.Errorf("expected sheet ref, got %v", body["sheet_ref"])
	}
}

func TestHandleGetReportCaching(t *testing.T) {
	svc := &fakeService{snapshot: storage.ReportSnapshot{UserID: "u-1", Year: 2025, Month: 6}}
	s := newTestServer(t, svc)

	for i := 0; i < 3; i++ {
		rec := doRequest(s, http.MethodGet, "/budget?user_id=u-1&year=2025&month=6", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 on request %d, got %d", i, rec.Code)
		}
	}
	if svc.getReportCalls != 1 {
		t.Errorf("expected snapshot served from cache after first hit, got %d store reads", svc.getReportCalls)
	}
}

func TestGenerateReportInvalidatesCache(t *testing.T) {
	svc := &fakeService{
		snapshot: storage.ReportSnapshot{UserID: "u-1", Year: 2025, Month: 6},
		result:   &services.ReportResult{ID: 4, Year: 2025, Month: 6},
	}
	s := newTestServer(t, svc)

	doRequest(s, http.MethodGet, "/budget?user_id=u-1&year=2025&month=6", "")
	doRequest(s, http.MethodPost, "/budget/report", `{"user_id":"u-1"}`)
	doRequest(s, http.MethodGet, "/budget?user_id=u-1&year=2025&month=6", "")

	if svc.getReportCalls != 2 {
		t.Errorf("expected cache invalidation to force a second store read, got %d", svc.getReportCalls)
	}
}

func TestHandleGetReportValidation(t *testing.T) {
	s := newTestServer(t, &fakeService{})

	tests := []struct {
		name   string
		target string
	}{
		{name: "missing user_id", target: "/budget"},
		{name: "bad year", target: "/budget?user_id=u-1&year=twenty"},
		{name: "month out of range", target: "/budget?user_id=u-1&month=13"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(s, http.MethodGet, tt.target, "")
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, &fakeService{})

	for _, target := range []string{"/healthz", "/readyz"} {
		rec := doRequest(s, http.MethodGet, target, "")
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200 for %s, got %d", target, rec.Code)
		}
	}
}

func TestRateLimitOnMutatingRequests(t *testing.T) {
	svc := &fakeService{linkToken: "link-sandbox-abc"}
	s := newTestServer(t, svc)

	var limited bool
	for i := 0; i < maxRequestsPerWindow+1; i++ {
		rec := doRequest(s, http.MethodPost, "/link/token", `{"user_id":"u-1"}`)
		if rec.Code == http.StatusTooManyRequests {
			limited = true
			if retry := rec.Header().Get("Retry-After"); retry != "60" {
				t.Errorf("expected Retry-After 60, got %q", retry)
			}
			break
		}
	}
	if !limited {
		t.Error("expected rate limiter to reject request past the window budget")
	}
}

func TestSecurityHeaders(t *testing.T) {
	s := newTestServer(t, &fakeService{cfg: core.DefaultBudgetConfig()})

	rec := doRequest(s, http.MethodGet, "/budget/config?user_id=u-1", "")
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("expected nosniff header, got %q", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got == "" {
		t.Error("expected X-Frame-Options header to be set")
	}
}
