package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/plutusgrip/backend/src/logger"
	"github.com/plutusgrip/backend/src/model"
	"github.com/plutusgrip/backend/src/security/validation"
	"github.com/plutusgrip/backend/src/services"
)

type WhitelistHandler struct {
	whitelistService *services.WhitelistService
}

func NewWhitelistHandler(whitelistService *services.WhitelistService) *WhitelistHandler {
	return &WhitelistHandler{whitelistService: whitelistService}
}

func (h *WhitelistHandler) CreateWhitelistEntryHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	var payload struct {
		IPAddress   string `json:"ip_address"`
		Description string `json:"description"`
		ExpiresAt   string `json:"expires_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	payload.IPAddress = strings.TrimSpace(payload.IPAddress)
	payload.Description = validation.SanitizeText(strings.TrimSpace(payload.Description))

	if err := validation.ValidateIPAddress(payload.IPAddress); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidateStringMaxLength(payload.Description, validation.MaxDescriptionLength, "Description"); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	entry := &model.WhitelistEntry{
		IPAddress:   payload.IPAddress,
		Description: payload.Description,
		CreatedBy:   model.ValidInt64(userID),
	}
	if payload.ExpiresAt != "" {
		expiresAt, err := time.Parse(time.RFC3339, payload.ExpiresAt)
		if err != nil {
			sendJSONError(w, "expires_at must be an RFC 3339 timestamp", http.StatusBadRequest)
			return
		}
		if expiresAt.Before(time.Now()) {
			sendJSONError(w, "expires_at must be in the future", http.StatusBadRequest)
			return
		}
		entry.ExpiresAt = model.NullTime{Time: expiresAt, Valid: true}
	}

	if err := h.whitelistService.AddEntry(entry); err != nil {
		logger.FromContext(r.Context()).Error("Failed to create whitelist entry", "ip", payload.IPAddress, "error", err)
		sendJSONError(w, "Failed to create whitelist entry", http.StatusInternalServerError)
		return
	}

	logger.FromContext(r.Context()).Info("Whitelist entry created", "ip", entry.IPAddress, "entryID", entry.ID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(entry)
}

func (h *WhitelistHandler) ListWhitelistEntriesHandler(w http.ResponseWriter, r *http.Request) {
	entries, err := h.whitelistService.ListEntries()
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to list whitelist entries", "error", err)
		sendJSONError(w, "Failed to fetch whitelist entries", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

// DeactivateWhitelistEntryHandler soft-deletes an entry so the audit trail
// survives.
func (h *WhitelistHandler) DeactivateWhitelistEntryHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		sendJSONError(w, "Invalid whitelist entry ID format", http.StatusBadRequest)
		return
	}

	if err := h.whitelistService.DeactivateEntry(id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			sendJSONError(w, "Whitelist entry not found", http.StatusNotFound)
			return
		}
		logger.FromContext(r.Context()).Error("Failed to deactivate whitelist entry", "entryID", id, "error", err)
		sendJSONError(w, "Failed to deactivate whitelist entry", http.StatusInternalServerError)
		return
	}

	logger.FromContext(r.Context()).Info("Whitelist entry deactivated", "entryID", id)

	w.WriteHeader(http.StatusNoContent)
}

func (h *WhitelistHandler) DeleteWhitelistEntryHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		sendJSONError(w, "Invalid whitelist entry ID format", http.StatusBadRequest)
		return
	}

	if err := h.whitelistService.DeleteEntry(id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			sendJSONError(w, "Whitelist entry not found", http.StatusNotFound)
			return
		}
		logger.FromContext(r.Context()).Error("Failed to delete whitelist entry", "entryID", id, "error", err)
		sendJSONError(w, "Failed to delete whitelist entry", http.StatusInternalServerError)
		return
	}

	logger.FromContext(r.Context()).Info("Whitelist entry deleted", "entryID", id)

	w.WriteHeader(http.StatusNoContent)
}

// CheckWhitelistedHandler reports whether an IP currently bypasses the rate
// limiter, as seen through the cache.
func (h *WhitelistHandler) CheckWhitelistedHandler(w http.ResponseWriter, r *http.Request) {
	ip := chi.URLParam(r, "ip")
	if err := validation.ValidateIPAddress(ip); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"ip_address":  ip,
		"whitelisted": h.whitelistService.IsWhitelisted(ip),
	})
}
