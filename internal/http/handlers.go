package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"budgeteer/internal/core"
	"budgeteer/internal/services"
	"budgeteer/internal/storage"
)

// maxBodyBytes caps request bodies; every payload here is tiny.
const maxBodyBytes = 1 << 16

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

// writeServiceError maps domain errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "Resource not found.")
	case errors.Is(err, core.ErrInvalidBudgetConfig):
		writeError(w, http.StatusBadRequest, "invalid_budget_config", err.Error())
	case errors.Is(err, services.ErrBankNotLinked):
		writeError(w, http.StatusConflict, "bank_not_linked", "Link a bank account before generating a report.")
	case errors.Is(err, core.ErrNoTransactions):
		writeError(w, http.StatusNotFound, "no_transactions", "No transactions in the reporting window yet.")
	default:
		slog.ErrorContext(r.Context(), "Request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "Internal server error.")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body.")
		return false
	}
	return true
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed.")
		return false
	}
	return true
}

type createUserRequest struct {
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	// Both fields are optional; an empty body provisions an anonymous user.
	var req createUserRequest
	if r.ContentLength > 0 && !decodeJSON(w, r, &req) {
		return
	}

	u, err := s.service.CreateUser(r.Context(), strings.TrimSpace(req.Email), strings.TrimSpace(req.DisplayName))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"user_id": u.ID,
		"email":   u.Email,
		"config":  u.Config,
	})
}

type linkTokenRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) handleLinkToken(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req linkTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "user_id is required.")
		return
	}

	token, err := s.service.CreateLinkToken(r.Context(), req.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"link_token": token})
}

type linkExchangeRequest struct {
	UserID      string `json:"user_id"`
	PublicToken string `json:"public_token"`
}

func (s *Server) handleLinkExchange(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req linkExchangeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.PublicToken) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "user_id and public_token are required.")
		return
	}

	if err := s.service.ExchangePublicToken(r.Context(), req.UserID, req.PublicToken); err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "linked"})
}

// budgetConfigRequest updates the split either wholesale or by pinning one
// bucket and letting the others rebalance. MonthlyIncome is a user-entered
// decimal dollar amount ("3250.50"); it sets the income override on its own
// or alongside either shape.
type budgetConfigRequest struct {
	UserID string `json:"user_id"`

	Config *core.BudgetConfig `json:"config,omitempty"`

	Bucket  string `json:"bucket,omitempty"`
	Percent *int   `json:"percent,omitempty"`

	MonthlyIncome string `json:"monthly_income,omitempty"`
}

func (s *Server) handleBudgetConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleGetBudgetConfig(w, r)
	case http.MethodPut:
		s.handleUpdateBudgetConfig(w, r)
	default:
		w.Header().Set("Allow", "GET, PUT")
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed.")
	}
}

func (s *Server) handleGetBudgetConfig(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "user_id is required.")
		return
	}

	cfg, err := s.service.GetBudgetConfig(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleUpdateBudgetConfig(w http.ResponseWriter, r *http.Request) {
	var req budgetConfigRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "user_id is required.")
		return
	}

	var income *core.Money
	if strings.TrimSpace(req.MonthlyIncome) != "" {
		cents, err := core.ParseDecimalToCents(req.MonthlyIncome)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "monthly_income must be a non-negative decimal amount.")
			return
		}
		income = &core.Money{Cents: cents}
	}

	switch {
	case req.Config != nil:
		cfg := *req.Config
		if income != nil {
			cfg.MonthlyIncomeOverride = *income
		}
		saved, err := s.service.UpdateBudgetConfig(r.Context(), req.UserID, cfg)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, saved)
	case req.Bucket != "" && req.Percent != nil:
		next, err := s.service.RebalanceBudget(r.Context(), req.UserID, core.BucketType(req.Bucket), *req.Percent)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if income != nil {
			next.MonthlyIncomeOverride = *income
			if next, err = s.service.UpdateBudgetConfig(r.Context(), req.UserID, next); err != nil {
				writeServiceError(w, r, err)
				return
			}
		}
		writeJSON(w, http.StatusOK, next)
	case income != nil:
		current, err := s.service.GetBudgetConfig(r.Context(), req.UserID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		current.MonthlyIncomeOverride = *income
		saved, err := s.service.UpdateBudgetConfig(r.Context(), req.UserID, current)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, saved)
	default:
		writeError(w, http.StatusBadRequest, "bad_request", "Provide config, bucket with percent, or monthly_income.")
	}
}

type generateReportRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) handleGenerateReport(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req generateReportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "user_id is required.")
		return
	}

	result, err := s.service.GenerateReport(r.Context(), req.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	// A fresh report supersedes whatever is cached for that month.
	s.reportCache.Delete(reportCacheKey(req.UserID, result.Year, result.Month))

	writeJSON(w, http.StatusOK, result)
}

type reportResponse struct {
	UserID     string              `json:"user_id"`
	Year       int                 `json:"year"`
	Month      int                 `json:"month"`
	Report     core.BudgetReport   `json:"report"`
	Statuses   core.ReportStatuses `json:"statuses"`
	Commentary string              `json:"commentary,omitempty"`
	SyncStatus string              `json:"sync_status"`
	SheetRef   string              `json:"sheet_ref,omitempty"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	q := r.URL.Query()
	userID := strings.TrimSpace(q.Get("user_id"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "user_id is required.")
		return
	}

	now := time.Now()
	year, month := now.Year(), int(now.Month())
	var err error
	if v := q.Get("year"); v != "" {
		if year, err = strconv.Atoi(v); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "year must be a number.")
			return
		}
	}
	if v := q.Get("month"); v != "" {
		if month, err = strconv.Atoi(v); err != nil || month < 1 || month > 12 {
			writeError(w, http.StatusBadRequest, "bad_request", "month must be 1-12.")
			return
		}
	}

	key := reportCacheKey(userID, year, month)
	snap, ok := s.reportCache.Get(key)
	if !ok {
		snap, err = s.service.GetReport(r.Context(), userID, year, month)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		s.reportCache.Set(key, snap)
	}

	writeJSON(w, http.StatusOK, reportResponse{
		UserID:     snap.UserID,
		Year:       snap.Year,
		Month:      snap.Month,
		Report:     snap.Report,
		Statuses:   snap.Statuses,
		Commentary: snap.Commentary,
		SyncStatus: snap.SyncStatus,
		SheetRef:   snap.SheetRef,
		UpdatedAt:  snap.UpdatedAt,
	})
}
