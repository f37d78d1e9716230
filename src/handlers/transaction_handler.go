package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/plutusgrip/backend/src/database"
	"github.com/plutusgrip/backend/src/logger"
	"github.com/plutusgrip/backend/src/model"
	"github.com/plutusgrip/backend/src/security/validation"
	"github.com/plutusgrip/backend/src/services"
	"github.com/shopspring/decimal"
)

type TransactionHandler struct {
	reportService *services.ReportService
}

func NewTransactionHandler(reportService *services.ReportService) *TransactionHandler {
	return &TransactionHandler{reportService: reportService}
}

type transactionPayload struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Date        string          `json:"date"`
	Type        string          `json:"type"`
	CategoryID  *int64          `json:"category_id"`
	Notes       string          `json:"notes"`
}

// validateTransactionPayload sanitizes and validates the shared fields of
// create and update requests.
func validateTransactionPayload(p *transactionPayload, userID int64) (string, int) {
	p.Description = validation.SanitizeText(strings.TrimSpace(p.Description))
	p.Notes = validation.SanitizeText(strings.TrimSpace(p.Notes))
	p.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))

	if err := validation.ValidateStringNotEmpty(p.Description, "Description"); err != nil {
		return err.Error(), http.StatusBadRequest
	}
	if err := validation.ValidateStringMaxLength(p.Description, validation.MaxDescriptionLength, "Description"); err != nil {
		return err.Error(), http.StatusBadRequest
	}
	if err := validation.ValidateStringMaxLength(p.Notes, validation.MaxNotesLength, "Notes"); err != nil {
		return err.Error(), http.StatusBadRequest
	}
	if err := validation.ValidatePositiveAmount(p.Amount, "Amount"); err != nil {
		return err.Error(), http.StatusBadRequest
	}
	if err := validation.ValidateCurrencyCode(p.Currency); err != nil {
		return err.Error(), http.StatusBadRequest
	}
	if err := validation.ValidateDate(p.Date, "Date"); err != nil {
		return err.Error(), http.StatusBadRequest
	}
	if !model.TransactionType(p.Type).IsValid() {
		return "Type must be 'income' or 'expense'", http.StatusBadRequest
	}

	if p.CategoryID != nil {
		visible, err := model.CategoryVisibleToUser(database.DB, *p.CategoryID, userID)
		if err != nil {
			logger.L.Error("Failed to check category visibility", "categoryID", *p.CategoryID, "error", err)
			return "Failed to validate category", http.StatusInternalServerError
		}
		if !visible {
			return "Category not found", http.StatusNotFound
		}
	}

	return "", 0
}

func (h *TransactionHandler) CreateTransactionHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	var payload transactionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if msg, code := validateTransactionPayload(&payload, userID); msg != "" {
		sendJSONError(w, msg, code)
		return
	}

	transaction := &model.Transaction{
		UserID:      userID,
		Description: payload.Description,
		Amount:      payload.Amount,
		Currency:    payload.Currency,
		Date:        payload.Date,
		Type:        model.TransactionType(payload.Type),
		Notes:       payload.Notes,
	}
	if payload.CategoryID != nil {
		transaction.CategoryID = model.ValidInt64(*payload.CategoryID)
	}

	if err := transaction.Create(database.DB); err != nil {
		logger.FromContext(r.Context()).Error("Failed to create transaction", "userID", userID, "error", err)
		sendJSONError(w, "Failed to create transaction", http.StatusInternalServerError)
		return
	}

	h.reportService.InvalidateUserCache(userID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(transaction)
}

func (h *TransactionHandler) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	filter := model.TransactionFilter{
		Type:      r.URL.Query().Get("type"),
		StartDate: r.URL.Query().Get("start_date"),
		EndDate:   r.URL.Query().Get("end_date"),
		Limit:     100,
	}

	if filter.Type != "" && !model.TransactionType(filter.Type).IsValid() {
		sendJSONError(w, "Type must be 'income' or 'expense'", http.StatusBadRequest)
		return
	}
	for _, dateParam := range []struct {
		value string
		name  string
	}{{filter.StartDate, "start_date"}, {filter.EndDate, "end_date"}} {
		if dateParam.value != "" {
			if err := validation.ValidateDate(dateParam.value, dateParam.name); err != nil {
				sendJSONError(w, err.Error(), http.StatusBadRequest)
				return
			}
		}
	}

	if categoryIDStr := r.URL.Query().Get("category_id"); categoryIDStr != "" {
		categoryID, err := strconv.ParseInt(categoryIDStr, 10, 64)
		if err != nil {
			sendJSONError(w, "Invalid category_id format", http.StatusBadRequest)
			return
		}
		filter.CategoryID = categoryID
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 || limit > 500 {
			sendJSONError(w, "Limit must be between 1 and 500", http.StatusBadRequest)
			return
		}
		filter.Limit = limit
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			sendJSONError(w, "Invalid offset format", http.StatusBadRequest)
			return
		}
		filter.Offset = offset
	}

	transactions, err := model.ListTransactions(database.DB, userID, filter)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to list transactions", "userID", userID, "error", err)
		sendJSONError(w, "Failed to fetch transactions", http.StatusInternalServerError)
		return
	}

	total, err := model.CountTransactions(database.DB, userID, filter)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to count transactions", "userID", userID, "error", err)
		sendJSONError(w, "Failed to fetch transactions", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"transactions": transactions,
		"total":        total,
		"limit":        filter.Limit,
		"offset":       filter.Offset,
	})
}

func (h *TransactionHandler) GetTransactionHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	id, err := parseIDParam(r)
	if err != nil {
		sendJSONError(w, "Invalid transaction ID format", http.StatusBadRequest)
		return
	}

	transaction, err := model.GetTransactionByID(database.DB, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			sendJSONError(w, "Transaction not found", http.StatusNotFound)
			return
		}
		logger.FromContext(r.Context()).Error("Failed to fetch transaction", "transactionID", id, "error", err)
		sendJSONError(w, "Failed to fetch transaction", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(transaction)
}

func (h *TransactionHandler) UpdateTransactionHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	id, err := parseIDParam(r)
	if err != nil {
		sendJSONError(w, "Invalid transaction ID format", http.StatusBadRequest)
		return
	}

	transaction, err := model.GetTransactionByID(database.DB, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			sendJSONError(w, "Transaction not found", http.StatusNotFound)
			return
		}
		logger.FromContext(r.Context()).Error("Failed to fetch transaction for update", "transactionID", id, "error", err)
		sendJSONError(w, "Failed to fetch transaction", http.StatusInternalServerError)
		return
	}

	var payload transactionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if msg, code := validateTransactionPayload(&payload, userID); msg != "" {
		sendJSONError(w, msg, code)
		return
	}

	transaction.Description = payload.Description
	transaction.Amount = payload.Amount
	transaction.Currency = payload.Currency
	transaction.Date = payload.Date
	transaction.Type = model.TransactionType(payload.Type)
	transaction.Notes = payload.Notes
	transaction.CategoryID = model.NullInt64{}
	if payload.CategoryID != nil {
		transaction.CategoryID = model.ValidInt64(*payload.CategoryID)
	}

	if err := transaction.Update(database.DB); err != nil {
		logger.FromContext(r.Context()).Error("Failed to update transaction", "transactionID", id, "error", err)
		sendJSONError(w, "Failed to update transaction", http.StatusInternalServerError)
		return
	}

	h.reportService.InvalidateUserCache(userID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(transaction)
}

func (h *TransactionHandler) DeleteTransactionHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	id, err := parseIDParam(r)
	if err != nil {
		sendJSONError(w, "Invalid transaction ID format", http.StatusBadRequest)
		return
	}

	if err := model.DeleteTransaction(database.DB, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			sendJSONError(w, "Transaction not found", http.StatusNotFound)
			return
		}
		logger.FromContext(r.Context()).Error("Failed to delete transaction", "transactionID", id, "error", err)
		sendJSONError(w, "Failed to delete transaction", http.StatusInternalServerError)
		return
	}

	h.reportService.InvalidateUserCache(userID)

	w.WriteHeader(http.StatusNoContent)
}

// parseIDParam extracts the numeric {id} path parameter.
func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
