package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/plutusgrip/backend/src/database"
	"github.com/plutusgrip/backend/src/logger"
	"github.com/plutusgrip/backend/src/model"
	"github.com/plutusgrip/backend/src/security/validation"
	"github.com/plutusgrip/backend/src/services"
	"github.com/shopspring/decimal"
)

type RecurringHandler struct {
	recurringService *services.RecurringService
}

func NewRecurringHandler(recurringService *services.RecurringService) *RecurringHandler {
	return &RecurringHandler{recurringService: recurringService}
}

type recurringPayload struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Type        string          `json:"type"`
	CategoryID  *int64          `json:"category_id"`
	Frequency   string          `json:"frequency"`
	StartDate   string          `json:"start_date"`
	EndDate     string          `json:"end_date"`
	Notes       string          `json:"notes"`
}

func validateRecurringPayload(p *recurringPayload, userID int64) (string, int) {
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
	if !model.TransactionType(p.Type).IsValid() {
		return "Type must be 'income' or 'expense'", http.StatusBadRequest
	}
	if !model.Frequency(p.Frequency).IsValid() {
		return "Frequency must be one of: daily, weekly, biweekly, monthly, quarterly, yearly", http.StatusBadRequest
	}
	if err := validation.ValidateDate(p.StartDate, "Start date"); err != nil {
		return err.Error(), http.StatusBadRequest
	}
	if p.EndDate != "" {
		if err := validation.ValidateDate(p.EndDate, "End date"); err != nil {
			return err.Error(), http.StatusBadRequest
		}
		if p.EndDate < p.StartDate {
			return "End date cannot be before start date", http.StatusBadRequest
		}
	}

	if p.CategoryID != nil {
		visible, err := model.CategoryVisibleToUser(database.DB, *p.CategoryID, userID)
		if err != nil {
			logger.L.Error("Failed to check category visibility for recurring template", "categoryID", *p.CategoryID, "error", err)
			return "Failed to validate category", http.StatusInternalServerError
		}
		if !visible {
			return "Category not found", http.StatusNotFound
		}
	}

	return "", 0
}

func (h *RecurringHandler) CreateRecurringHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	var payload recurringPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if msg, code := validateRecurringPayload(&payload, userID); msg != "" {
		sendJSONError(w, msg, code)
		return
	}

	nextExecution, err := services.InitialNextExecution(payload.StartDate, model.Frequency(payload.Frequency))
	if err != nil {
		sendJSONError(w, "Invalid start date", http.StatusBadRequest)
		return
	}

	template := &model.RecurringTransaction{
		UserID:            userID,
		Description:       payload.Description,
		Amount:            payload.Amount,
		Currency:          payload.Currency,
		Type:              model.TransactionType(payload.Type),
		Frequency:         model.Frequency(payload.Frequency),
		StartDate:         payload.StartDate,
		EndDate:           payload.EndDate,
		NextExecutionDate: nextExecution,
		IsActive:          true,
		Notes:             payload.Notes,
	}
	if payload.CategoryID != nil {
		template.CategoryID = model.ValidInt64(*payload.CategoryID)
	}

	if err := template.Create(database.DB); err != nil {
		logger.FromContext(r.Context()).Error("Failed to create recurring template", "userID", userID, "error", err)
		sendJSONError(w, "Failed to create recurring transaction", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(template)
}

func (h *RecurringHandler) ListRecurringHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	var isActive *bool
	if activeStr := r.URL.Query().Get("is_active"); activeStr != "" {
		switch activeStr {
		case "true":
			v := true
			isActive = &v
		case "false":
			v := false
			isActive = &v
		default:
			sendJSONError(w, "is_active must be 'true' or 'false'", http.StatusBadRequest)
			return
		}
	}

	templates, err := model.ListRecurring(database.DB, userID, isActive)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to list recurring templates", "userID", userID, "error", err)
		sendJSONError(w, "Failed to fetch recurring transactions", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(templates)
}

func (h *RecurringHandler) GetRecurringHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	id, err := parseIDParam(r)
	if err != nil {
		sendJSONError(w, "Invalid recurring transaction ID format", http.StatusBadRequest)
		return
	}

	template, err := model.GetRecurringByID(database.DB, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			sendJSONError(w, "Recurring transaction not found", http.StatusNotFound)
			return
		}
		logger.FromContext(r.Context()).Error("Failed to fetch recurring template", "templateID", id, "error", err)
		sendJSONError(w, "Failed to fetch recurring transaction", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(template)
}

func (h *RecurringHandler) UpdateRecurringHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	id, err := parseIDParam(r)
	if err != nil {
		sendJSONError(w, "Invalid recurring transaction ID format", http.StatusBadRequest)
		return
	}

	template, err := model.GetRecurringByID(database.DB, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			sendJSONError(w, "Recurring transaction not found", http.StatusNotFound)
			return
		}
		logger.FromContext(r.Context()).Error("Failed to fetch recurring template for update", "templateID", id, "error", err)
		sendJSONError(w, "Failed to fetch recurring transaction", http.StatusInternalServerError)
		return
	}

	var payload struct {
		recurringPayload
		IsActive *bool `json:"is_active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if msg, code := validateRecurringPayload(&payload.recurringPayload, userID); msg != "" {
		sendJSONError(w, msg, code)
		return
	}

	// A changed start date or frequency resets the schedule from the new
	// start.
	if payload.StartDate != template.StartDate || model.Frequency(payload.Frequency) != template.Frequency {
		nextExecution, err := services.InitialNextExecution(payload.StartDate, model.Frequency(payload.Frequency))
		if err != nil {
			sendJSONError(w, "Invalid start date", http.StatusBadRequest)
			return
		}
		template.NextExecutionDate = nextExecution
	}

	template.Description = payload.Description
	template.Amount = payload.Amount
	template.Currency = payload.Currency
	template.Type = model.TransactionType(payload.Type)
	template.Frequency = model.Frequency(payload.Frequency)
	template.StartDate = payload.StartDate
	template.EndDate = payload.EndDate
	template.Notes = payload.Notes
	template.CategoryID = model.NullInt64{}
	if payload.CategoryID != nil {
		template.CategoryID = model.ValidInt64(*payload.CategoryID)
	}
	if payload.IsActive != nil {
		template.IsActive = *payload.IsActive
	}

	if err := template.Update(database.DB); err != nil {
		logger.FromContext(r.Context()).Error("Failed to update recurring template", "templateID", id, "error", err)
		sendJSONError(w, "Failed to update recurring transaction", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(template)
}

func (h *RecurringHandler) DeleteRecurringHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	id, err := parseIDParam(r)
	if err != nil {
		sendJSONError(w, "Invalid recurring transaction ID format", http.StatusBadRequest)
		return
	}

	if err := model.DeleteRecurring(database.DB, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			sendJSONError(w, "Recurring transaction not found", http.StatusNotFound)
			return
		}
		logger.FromContext(r.Context()).Error("Failed to delete recurring template", "templateID", id, "error", err)
		sendJSONError(w, "Failed to delete recurring transaction", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RunRecurringPassHandler triggers a due pass immediately instead of waiting
// for the next scheduler tick. Admin only.
func (h *RecurringHandler) RunRecurringPassHandler(w http.ResponseWriter, r *http.Request) {
	today := time.Now().Format("2006-01-02")
	created, err := h.recurringService.RunDuePass(today)
	if err != nil {
		logger.FromContext(r.Context()).Error("Manual recurring pass failed", "error", err)
		sendJSONError(w, "Failed to process recurring transactions", http.StatusInternalServerError)
		return
	}

	logger.FromContext(r.Context()).Info("Manual recurring pass completed", "created", created)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"processed_date":       today,
		"transactions_created": created,
	})
}
