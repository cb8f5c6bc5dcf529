package handler

import (
	"net/http"
	"strconv"
	"time"

	customError "github.com/segyhp/microcredit-engine/pkg/errors"
	"github.com/segyhp/microcredit-engine/pkg/response"
)

type ReportHandler struct {
	service     ReportService
	defaultDays int
	now         func() time.Time
}

// NewReportHandler serves portfolio reports. defaultDays is the upcoming window when the request
// does not set one.
func NewReportHandler(service ReportService, defaultDays int) *ReportHandler {
	return &ReportHandler{service: service, defaultDays: defaultDays, now: time.Now}
}

// Overdue handles GET /reports/overdue
func (h *ReportHandler) Overdue(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.OverdueLoans(r.Context(), h.now())
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, report)
}

// Upcoming handles GET /reports/upcoming?days=
func (h *ReportHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	days := h.defaultDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			response.FromError(w, customError.WrapInvalidArgument("days must be an integer"))
			return
		}
		days = parsed
	}

	installments, err := h.service.UpcomingInstallments(r.Context(), h.now(), days)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, installments)
}
