package handler

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/segyhp/microcredit-engine/internal/domain"
	"github.com/segyhp/microcredit-engine/pkg/response"
)

type LoanHandler struct {
	loans     LoanService
	payments  PaymentService
	validator *validator.Validate
}

func NewLoanHandler(loans LoanService, payments PaymentService) *LoanHandler {
	return &LoanHandler{
		loans:     loans,
		payments:  payments,
		validator: newValidator(),
	}
}

// CreateLoan handles POST /loans
func (h *LoanHandler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var request domain.CreateLoanRequest
	if err := decode(w, r, h.validator, &request); err != nil {
		response.FromError(w, err)
		return
	}

	created, err := h.loans.CreateLoan(r.Context(), &request)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Created(w, created)
}

// ListLoans handles GET /loans?state=
func (h *LoanHandler) ListLoans(w http.ResponseWriter, r *http.Request) {
	filter := domain.LoanFilter{State: domain.LoanState(r.URL.Query().Get("state"))}

	loans, err := h.loans.ListLoans(r.Context(), filter)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, loans)
}

func (h *LoanHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	h.withLoanID(w, r, func(loanID uuid.UUID) (interface{}, error) {
		return h.loans.GetLoan(r.Context(), loanID)
	})
}

func (h *LoanHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	h.withLoanID(w, r, func(loanID uuid.UUID) (interface{}, error) {
		installments, err := h.loans.GetSchedule(r.Context(), loanID)
		if err != nil {
			return nil, err
		}
		return domain.ScheduleResponse{LoanID: loanID, Schedule: installments}, nil
	})
}

func (h *LoanHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	h.withLoanID(w, r, func(loanID uuid.UUID) (interface{}, error) {
		return h.loans.GetSummary(r.Context(), loanID)
	})
}

func (h *LoanHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	h.withLoanID(w, r, func(loanID uuid.UUID) (interface{}, error) {
		return h.loans.ListPayments(r.Context(), loanID)
	})
}

func (h *LoanHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.withLoanID(w, r, func(loanID uuid.UUID) (interface{}, error) {
		return h.loans.Activate(r.Context(), loanID)
	})
}

// UpdateTerms handles PUT /loans/{loanId}/terms
func (h *LoanHandler) UpdateTerms(w http.ResponseWriter, r *http.Request) {
	var request domain.UpdateTermsRequest
	h.withBody(w, r, &request, func(loanID uuid.UUID) (interface{}, error) {
		return h.loans.RecalculateForConfigurationChange(r.Context(), loanID, &request)
	})
}

// MakePayment handles POST /loans/{loanId}/payments
func (h *LoanHandler) MakePayment(w http.ResponseWriter, r *http.Request) {
	var request domain.MakePaymentRequest
	loanID, err := pathID(r, "loanId")
	if err == nil {
		err = decode(w, r, h.validator, &request)
	}
	if err != nil {
		response.FromError(w, err)
		return
	}

	result, err := h.payments.ApplyPayment(r.Context(), loanID, &request)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Created(w, result)
}

// RespondApproval handles POST /loans/{loanId}/approval
func (h *LoanHandler) RespondApproval(w http.ResponseWriter, r *http.Request) {
	var request domain.ApprovalRequest
	h.withBody(w, r, &request, func(loanID uuid.UUID) (interface{}, error) {
		return h.loans.RespondApproval(r.Context(), loanID, request.Decision)
	})
}

// OverrideState handles PUT /loans/{loanId}/state
func (h *LoanHandler) OverrideState(w http.ResponseWriter, r *http.Request) {
	var request domain.OverrideStateRequest
	h.withBody(w, r, &request, func(loanID uuid.UUID) (interface{}, error) {
		return h.loans.OverrideState(r.Context(), loanID, request.State)
	})
}

func (h *LoanHandler) withLoanID(w http.ResponseWriter, r *http.Request, fn func(loanID uuid.UUID) (interface{}, error)) {
	loanID, err := pathID(r, "loanId")
	if err != nil {
		response.FromError(w, err)
		return
	}

	data, err := fn(loanID)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, data)
}

func (h *LoanHandler) withBody(w http.ResponseWriter, r *http.Request, dst interface{}, fn func(loanID uuid.UUID) (interface{}, error)) {
	h.withLoanID(w, r, func(loanID uuid.UUID) (interface{}, error) {
		if err := decode(w, r, h.validator, dst); err != nil {
			return nil, err
		}
		return fn(loanID)
	})
}
