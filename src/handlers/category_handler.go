package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/plutusgrip/backend/src/database"
	"github.com/plutusgrip/backend/src/logger"
	"github.com/plutusgrip/backend/src/model"
)

type CategoryHandler struct{}

func NewCategoryHandler() *CategoryHandler {
	return &CategoryHandler{}
}

// ListCategoriesHandler returns the default categories plus the caller's own,
// optionally filtered by type.
func (h *CategoryHandler) ListCategoriesHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	categoryType := r.URL.Query().Get("type")
	if categoryType != "" && !model.TransactionType(categoryType).IsValid() {
		sendJSONError(w, "Type must be 'income' or 'expense'", http.StatusBadRequest)
		return
	}

	categories, err := model.ListCategories(database.DB, userID, categoryType)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to list categories", "userID", userID, "error", err)
		sendJSONError(w, "Failed to fetch categories", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(categories)
}

func (h *CategoryHandler) GetCategoryHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	id, err := parseIDParam(r)
	if err != nil {
		sendJSONError(w, "Invalid category ID format", http.StatusBadRequest)
		return
	}

	visible, err := model.CategoryVisibleToUser(database.DB, id, userID)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to check category visibility", "categoryID", id, "error", err)
		sendJSONError(w, "Failed to fetch category", http.StatusInternalServerError)
		return
	}
	if !visible {
		sendJSONError(w, "Category not found", http.StatusNotFound)
		return
	}

	category, err := model.GetCategoryByID(database.DB, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			sendJSONError(w, "Category not found", http.StatusNotFound)
			return
		}
		logger.FromContext(r.Context()).Error("Failed to fetch category", "categoryID", id, "error", err)
		sendJSONError(w, "Failed to fetch category", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(category)
}
