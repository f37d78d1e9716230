package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/plutusgrip/backend/src/database"
	"github.com/plutusgrip/backend/src/logger"
	"github.com/plutusgrip/backend/src/model"
	"github.com/plutusgrip/backend/src/security/validation"
	"github.com/shopspring/decimal"
)

type BudgetHandler struct{}

func NewBudgetHandler() *BudgetHandler {
	return &BudgetHandler{}
}

type budgetPayload struct {
	CategoryID           int64           `json:"category_id"`
	Amount               decimal.Decimal `json:"amount"`
	Period               string          `json:"period"`
	StartDate            string          `json:"start_date"`
	NotificationsEnabled *bool           `json:"notifications_enabled"`
}

func validateBudgetPayload(p *budgetPayload, userID int64) (string, int) {
	if err := validation.ValidatePositiveAmount(p.Amount, "Amount"); err != nil {
		return err.Error(), http.StatusBadRequest
	}
	if !model.BudgetPeriod(p.Period).IsValid() {
		return "Period must be 'monthly', 'quarterly' or 'yearly'", http.StatusBadRequest
	}
	if err := validation.ValidateDate(p.StartDate, "Start date"); err != nil {
		return err.Error(), http.StatusBadRequest
	}

	visible, err := model.CategoryVisibleToUser(database.DB, p.CategoryID, userID)
	if err != nil {
		logger.L.Error("Failed to check category visibility for budget", "categoryID", p.CategoryID, "error", err)
		return "Failed to validate category", http.StatusInternalServerError
	}
	if !visible {
		return "Category not found", http.StatusNotFound
	}

	return "", 0
}

func (h *BudgetHandler) CreateBudgetHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	var payload budgetPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if msg, code := validateBudgetPayload(&payload, userID); msg != "" {
		sendJSONError(w, msg, code)
		return
	}

	budget := &model.Budget{
		UserID:               userID,
		CategoryID:           payload.CategoryID,
		Amount:               payload.Amount,
		Period:               model.BudgetPeriod(payload.Period),
		StartDate:            payload.StartDate,
		NotificationsEnabled: true,
	}
	if payload.NotificationsEnabled != nil {
		budget.NotificationsEnabled = *payload.NotificationsEnabled
	}

	if err := budget.Create(database.DB); err != nil {
		logger.FromContext(r.Context()).Error("Failed to create budget", "userID", userID, "error", err)
		sendJSONError(w, "Failed to create budget", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(budget)
}

func (h *BudgetHandler) ListBudgetsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	budgets, err := model.ListBudgets(database.DB, userID)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to list budgets", "userID", userID, "error", err)
		sendJSONError(w, "Failed to fetch budgets", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(budgets)
}

func (h *BudgetHandler) GetBudgetHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	id, err := parseIDParam(r)
	if err != nil {
		sendJSONError(w, "Invalid budget ID format", http.StatusBadRequest)
		return
	}

	budget, err := model.GetBudgetByID(database.DB, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			sendJSONError(w, "Budget not found", http.StatusNotFound)
			return
		}
		logger.FromContext(r.Context()).Error("Failed to fetch budget", "budgetID", id, "error", err)
		sendJSONError(w, "Failed to fetch budget", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(budget)
}

// GetBudgetStatusHandler reports spending in the budget's category against
// its limit.
func (h *BudgetHandler) GetBudgetStatusHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	id, err := parseIDParam(r)
	if err != nil {
		sendJSONError(w, "Invalid budget ID format", http.StatusBadRequest)
		return
	}

	status, err := model.GetBudgetStatus(database.DB, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			sendJSONError(w, "Budget not found", http.StatusNotFound)
			return
		}
		logger.FromContext(r.Context()).Error("Failed to compute budget status", "budgetID", id, "error", err)
		sendJSONError(w, "Failed to compute budget status", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

func (h *BudgetHandler) UpdateBudgetHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	id, err := parseIDParam(r)
	if err != nil {
		sendJSONError(w, "Invalid budget ID format", http.StatusBadRequest)
		return
	}

	budget, err := model.GetBudgetByID(database.DB, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			sendJSONError(w, "Budget not found", http.StatusNotFound)
			return
		}
		logger.FromContext(r.Context()).Error("Failed to fetch budget for update", "budgetID", id, "error", err)
		sendJSONError(w, "Failed to fetch budget", http.StatusInternalServerError)
		return
	}

	var payload budgetPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if msg, code := validateBudgetPayload(&payload, userID); msg != "" {
		sendJSONError(w, msg, code)
		return
	}

	budget.CategoryID = payload.CategoryID
	budget.Amount = payload.Amount
	budget.Period = model.BudgetPeriod(payload.Period)
	budget.StartDate = payload.StartDate
	if payload.NotificationsEnabled != nil {
		budget.NotificationsEnabled = *payload.NotificationsEnabled
	}

	if err := budget.Update(database.DB); err != nil {
		logger.FromContext(r.Context()).Error("Failed to update budget", "budgetID", id, "error", err)
		sendJSONError(w, "Failed to update budget", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(budget)
}

func (h *BudgetHandler) DeleteBudgetHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	id, err := parseIDParam(r)
	if err != nil {
		sendJSONError(w, "Invalid budget ID format", http.StatusBadRequest)
		return
	}

	if err := model.DeleteBudget(database.DB, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			sendJSONError(w, "Budget not found", http.StatusNotFound)
			return
		}
		logger.FromContext(r.Context()).Error("Failed to delete budget", "budgetID", id, "error", err)
		sendJSONError(w, "Failed to delete budget", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
