package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/segyhp/microcredit-engine/internal/allocation"
	"github.com/segyhp/microcredit-engine/internal/domain"
	"github.com/segyhp/microcredit-engine/internal/handler"
	"github.com/segyhp/microcredit-engine/internal/repository"
	"github.com/segyhp/microcredit-engine/internal/service"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Code    string          `json:"code"`
}

// setupTestServer wires the full router against an in-memory SQLite database.
func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	log := zaptest.NewLogger(t)

	db, err := repository.Open(ctx, repository.DriverSQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(ctx, db))
	t.Cleanup(func() { db.Close() })

	loanRepo := repository.NewLoanRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	configRepo := repository.NewConfigurationRepository(db)
	tx := repository.NewTransactor(db)
	locker := repository.NewMemoryLocker(time.Second)
	cache := repository.NewMemoryScheduleCache()

	loans := service.NewLoanService(loanRepo, paymentRepo, configRepo, tx, locker, cache, log)
	payments := service.NewPaymentService(loanRepo, paymentRepo, tx, locker, cache, allocation.New(allocation.ExcessAsContribution, log), log)

	router := setupRoutes(
		log,
		handler.NewLoanHandler(loans, payments),
		handler.NewConfigurationHandler(service.NewConfigurationService(configRepo, log)),
		handler.NewReportHandler(service.NewReportService(loanRepo, log), 3),
		handler.NewHealthHandler(db, nil, time.Second),
	)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func call(t *testing.T, method, url string, body interface{}, wantStatus int, dst interface{}) envelope {
	t.Helper()

	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}
	req, err := http.NewRequest(method, url, &payload)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	require.Equal(t, wantStatus, resp.StatusCode, "code=%s", env.Code)
	if dst != nil {
		require.NoError(t, json.Unmarshal(env.Data, dst))
	}
	return env
}

func TestLoanLifecycleEndToEnd(t *testing.T) {
	server := setupTestServer(t)
	api := server.URL + "/api/v1"

	// Health check
	call(t, http.MethodGet, server.URL+"/health/ready", nil, http.StatusOK, nil)

	var cfg domain.LoanConfiguration
	call(t, http.MethodPost, api+"/configurations", map[string]interface{}{
		"name":                 "German 12%",
		"annual_interest_rate": "12",
		"method":               "alemán",
	}, http.StatusCreated, &cfg)

	var created domain.CreateLoanResponse
	call(t, http.MethodPost, api+"/loans", map[string]interface{}{
		"client_id":        "client-42",
		"configuration_id": cfg.ID,
		"principal":        "12000",
		"term_months":      12,
		"start_date":       "2024-01-10T00:00:00Z",
	}, http.StatusCreated, &created)

	loanURL := fmt.Sprintf("%s/loans/%s", api, created.Loan.ID)
	require.Len(t, created.Schedule, 12)
	assert.True(t, created.Loan.MonthlyInstallment.Equal(decimal.NewFromInt(1120)))
	assert.Equal(t, domain.LoanStateDraft, created.Loan.State)

	pay := map[string]interface{}{
		"amount":                "2230",
		"method":                "transfer",
		"kind":                  "installment_settlement",
		"installments_to_cover": 2,
	}

	// Draft loans cannot receive payments
	env := call(t, http.MethodPost, loanURL+"/payments", pay, http.StatusConflict, nil)
	assert.Equal(t, "INVALID_STATE", env.Code)

	var approved domain.Loan
	call(t, http.MethodPost, loanURL+"/approval", map[string]string{"decision": "approved"}, http.StatusOK, &approved)
	assert.Equal(t, domain.LoanStateValidated, approved.State)

	env = call(t, http.MethodPost, loanURL+"/approval", map[string]string{"decision": "rejected"}, http.StatusConflict, nil)
	assert.Equal(t, "APPROVAL_ALREADY_RESPONDED", env.Code)

	var result domain.PaymentResult
	call(t, http.MethodPost, loanURL+"/payments", pay, http.StatusCreated, &result)
	assert.Equal(t, domain.LoanStateActive, result.Loan.State)
	assert.True(t, result.Loan.AmountPaid.Equal(decimal.NewFromInt(2230)))

	var schedule domain.ScheduleResponse
	call(t, http.MethodGet, loanURL+"/schedule", nil, http.StatusOK, &schedule)
	require.Len(t, schedule.Schedule, 12)
	assert.True(t, schedule.Schedule[0].Settled)
	assert.True(t, schedule.Schedule[1].Settled)
	assert.False(t, schedule.Schedule[2].Settled)

	// Schedule is locked once money has been received
	env = call(t, http.MethodPut, loanURL+"/terms", map[string]interface{}{"term_months": 6}, http.StatusConflict, nil)
	assert.Equal(t, "SCHEDULE_LOCKED", env.Code)

	var summary domain.LoanSummary
	call(t, http.MethodGet, loanURL+"/summary", nil, http.StatusOK, &summary)
	assert.True(t, summary.Outstanding.Equal(decimal.NewFromInt(10000)), summary.Outstanding.String())
	assert.True(t, summary.TotalPaid.Equal(decimal.NewFromInt(2230)))
	assert.Equal(t, 2, summary.SettledCount)
	assert.Equal(t, domain.LoanStateOverdue, summary.EffectiveState)

	var paid []*domain.Payment
	call(t, http.MethodGet, loanURL+"/payments", nil, http.StatusOK, &paid)
	assert.Len(t, paid, 1)

	var overdue []*domain.OverdueLoan
	call(t, http.MethodGet, api+"/reports/overdue", nil, http.StatusOK, &overdue)
	require.Len(t, overdue, 1)
	assert.Equal(t, created.Loan.ID, overdue[0].LoanID)
	assert.Equal(t, 10, overdue[0].OverdueCount)

	var listed []*domain.Loan
	call(t, http.MethodGet, api+"/loans?state=overdue", nil, http.StatusOK, &listed)
	assert.Len(t, listed, 1)
}
