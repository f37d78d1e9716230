package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/plutusgrip/backend/src/logger"
	"github.com/plutusgrip/backend/src/model"
	"github.com/plutusgrip/backend/src/security/validation"
	"github.com/plutusgrip/backend/src/services"
)

type ReportHandler struct {
	reportService *services.ReportService
}

func NewReportHandler(reportService *services.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

// dateRange reads optional start_date/end_date query parameters.
func dateRange(r *http.Request) (string, string, error) {
	startDate := r.URL.Query().Get("start_date")
	endDate := r.URL.Query().Get("end_date")

	if startDate != "" {
		if err := validation.ValidateDate(startDate, "start_date"); err != nil {
			return "", "", err
		}
	}
	if endDate != "" {
		if err := validation.ValidateDate(endDate, "end_date"); err != nil {
			return "", "", err
		}
	}
	return startDate, endDate, nil
}

func (h *ReportHandler) GetDashboardHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	summary, err := h.reportService.GetDashboardSummary(userID)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to build dashboard summary", "userID", userID, "error", err)
		sendJSONError(w, "Failed to build dashboard summary", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

func (h *ReportHandler) GetFinancialSummaryHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	startDate, endDate, err := dateRange(r)
	if err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	summary, err := h.reportService.GetFinancialSummary(userID, startDate, endDate)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to build financial summary", "userID", userID, "error", err)
		sendJSONError(w, "Failed to build financial summary", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

func (h *ReportHandler) GetCategoryBreakdownHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	txType := r.URL.Query().Get("type")
	if txType == "" {
		txType = string(model.TypeExpense)
	}
	if !model.TransactionType(txType).IsValid() {
		sendJSONError(w, "Type must be 'income' or 'expense'", http.StatusBadRequest)
		return
	}

	startDate, endDate, err := dateRange(r)
	if err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	breakdown, err := h.reportService.GetCategoryBreakdown(userID, model.TransactionType(txType), startDate, endDate)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to build category breakdown", "userID", userID, "error", err)
		sendJSONError(w, "Failed to build category breakdown", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(breakdown)
}

func (h *ReportHandler) GetMonthlyTrendsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	months := 6
	if monthsStr := r.URL.Query().Get("months"); monthsStr != "" {
		parsed, err := strconv.Atoi(monthsStr)
		if err != nil || parsed < 1 || parsed > 24 {
			sendJSONError(w, "Months must be between 1 and 24", http.StatusBadRequest)
			return
		}
		months = parsed
	}

	trends, err := h.reportService.GetMonthlyTrends(userID, months)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to build monthly trends", "userID", userID, "error", err)
		sendJSONError(w, "Failed to build monthly trends", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(trends)
}

func (h *ReportHandler) GetSpendingPatternsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	patterns, err := h.reportService.GetSpendingPatterns(userID)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to build spending patterns", "userID", userID, "error", err)
		sendJSONError(w, "Failed to build spending patterns", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(patterns)
}
