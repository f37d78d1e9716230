package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/plutusgrip/backend/src/database"
	"github.com/plutusgrip/backend/src/logger"
	"github.com/plutusgrip/backend/src/model"
	"github.com/plutusgrip/backend/src/security/validation"
	"github.com/shopspring/decimal"
)

type GoalHandler struct{}

func NewGoalHandler() *GoalHandler {
	return &GoalHandler{}
}

var validPriorities = map[string]bool{
	"low":    true,
	"medium": true,
	"high":   true,
}

type goalPayload struct {
	Name          string           `json:"name"`
	Description   string           `json:"description"`
	TargetAmount  decimal.Decimal  `json:"target_amount"`
	CurrentAmount *decimal.Decimal `json:"current_amount"`
	Deadline      string           `json:"deadline"`
	Category      string           `json:"category"`
	Priority      string           `json:"priority"`
}

func validateGoalPayload(p *goalPayload) (string, int) {
	p.Name = validation.SanitizeText(strings.TrimSpace(p.Name))
	p.Description = validation.SanitizeText(strings.TrimSpace(p.Description))
	p.Category = validation.SanitizeText(strings.TrimSpace(p.Category))
	p.Priority = strings.ToLower(strings.TrimSpace(p.Priority))
	if p.Priority == "" {
		p.Priority = "medium"
	}

	if err := validation.ValidateStringNotEmpty(p.Name, "Name"); err != nil {
		return err.Error(), http.StatusBadRequest
	}
	if err := validation.ValidateStringMaxLength(p.Name, validation.MaxDescriptionLength, "Name"); err != nil {
		return err.Error(), http.StatusBadRequest
	}
	if err := validation.ValidatePositiveAmount(p.TargetAmount, "Target amount"); err != nil {
		return err.Error(), http.StatusBadRequest
	}
	if p.CurrentAmount != nil && p.CurrentAmount.IsNegative() {
		return "Current amount cannot be negative", http.StatusBadRequest
	}
	if p.Deadline != "" {
		if err := validation.ValidateDate(p.Deadline, "Deadline"); err != nil {
			return err.Error(), http.StatusBadRequest
		}
	}
	if !validPriorities[p.Priority] {
		return "Priority must be 'low', 'medium' or 'high'", http.StatusBadRequest
	}

	return "", 0
}

func (h *GoalHandler) CreateGoalHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	var payload goalPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if msg, code := validateGoalPayload(&payload); msg != "" {
		sendJSONError(w, msg, code)
		return
	}

	goal := &model.Goal{
		UserID:       userID,
		Name:         payload.Name,
		Description:  payload.Description,
		TargetAmount: payload.TargetAmount,
		Deadline:     payload.Deadline,
		Category:     payload.Category,
		Priority:     payload.Priority,
	}
	if payload.CurrentAmount != nil {
		goal.CurrentAmount = *payload.CurrentAmount
		goal.IsCompleted = goal.CurrentAmount.GreaterThanOrEqual(goal.TargetAmount)
	}

	if err := goal.Create(database.DB); err != nil {
		logger.FromContext(r.Context()).Error("Failed to create goal", "userID", userID, "error", err)
		sendJSONError(w, "Failed to create goal", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(goal)
}

func (h *GoalHandler) ListGoalsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	var isCompleted *bool
	if completedStr := r.URL.Query().Get("is_completed"); completedStr != "" {
		switch completedStr {
		case "true":
			v := true
			isCompleted = &v
		case "false":
			v := false
			isCompleted = &v
		default:
			sendJSONError(w, "is_completed must be 'true' or 'false'", http.StatusBadRequest)
			return
		}
	}

	goals, err := model.ListGoals(database.DB, userID, isCompleted)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to list goals", "userID", userID, "error", err)
		sendJSONError(w, "Failed to fetch goals", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(goals)
}

func (h *GoalHandler) GetGoalHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	id, err := parseIDParam(r)
	if err != nil {
		sendJSONError(w, "Invalid goal ID format", http.StatusBadRequest)
		return
	}

	goal, err := model.GetGoalByID(database.DB, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			sendJSONError(w, "Goal not found", http.StatusNotFound)
			return
		}
		logger.FromContext(r.Context()).Error("Failed to fetch goal", "goalID", id, "error", err)
		sendJSONError(w, "Failed to fetch goal", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"goal":     goal,
		"progress": goal.Progress(),
	})
}

func (h *GoalHandler) UpdateGoalHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	id, err := parseIDParam(r)
	if err != nil {
		sendJSONError(w, "Invalid goal ID format", http.StatusBadRequest)
		return
	}

	goal, err := model.GetGoalByID(database.DB, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			sendJSONError(w, "Goal not found", http.StatusNotFound)
			return
		}
		logger.FromContext(r.Context()).Error("Failed to fetch goal for update", "goalID", id, "error", err)
		sendJSONError(w, "Failed to fetch goal", http.StatusInternalServerError)
		return
	}

	var payload goalPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if msg, code := validateGoalPayload(&payload); msg != "" {
		sendJSONError(w, msg, code)
		return
	}

	goal.Name = payload.Name
	goal.Description = payload.Description
	goal.TargetAmount = payload.TargetAmount
	goal.Deadline = payload.Deadline
	goal.Category = payload.Category
	goal.Priority = payload.Priority
	if payload.CurrentAmount != nil {
		goal.CurrentAmount = *payload.CurrentAmount
	}
	goal.IsCompleted = goal.CurrentAmount.GreaterThanOrEqual(goal.TargetAmount)

	if err := goal.Update(database.DB); err != nil {
		logger.FromContext(r.Context()).Error("Failed to update goal", "goalID", id, "error", err)
		sendJSONError(w, "Failed to update goal", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(goal)
}

// AddGoalProgressHandler adds a contribution to the goal's saved amount and
// marks it completed when the target is reached.
func (h *GoalHandler) AddGoalProgressHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	id, err := parseIDParam(r)
	if err != nil {
		sendJSONError(w, "Invalid goal ID format", http.StatusBadRequest)
		return
	}

	var payload struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := validation.ValidatePositiveAmount(payload.Amount, "Amount"); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	goal, err := model.GetGoalByID(database.DB, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			sendJSONError(w, "Goal not found", http.StatusNotFound)
			return
		}
		logger.FromContext(r.Context()).Error("Failed to fetch goal for progress", "goalID", id, "error", err)
		sendJSONError(w, "Failed to fetch goal", http.StatusInternalServerError)
		return
	}

	if err := goal.AddProgress(database.DB, payload.Amount); err != nil {
		logger.FromContext(r.Context()).Error("Failed to add goal progress", "goalID", id, "error", err)
		sendJSONError(w, "Failed to update goal progress", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"goal":     goal,
		"progress": goal.Progress(),
	})
}

// CompleteGoalHandler marks a goal completed regardless of the saved amount.
func (h *GoalHandler) CompleteGoalHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	id, err := parseIDParam(r)
	if err != nil {
		sendJSONError(w, "Invalid goal ID format", http.StatusBadRequest)
		return
	}

	goal, err := model.GetGoalByID(database.DB, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			sendJSONError(w, "Goal not found", http.StatusNotFound)
			return
		}
		logger.FromContext(r.Context()).Error("Failed to fetch goal for completion", "goalID", id, "error", err)
		sendJSONError(w, "Failed to fetch goal", http.StatusInternalServerError)
		return
	}

	goal.IsCompleted = true
	if err := goal.Update(database.DB); err != nil {
		logger.FromContext(r.Context()).Error("Failed to complete goal", "goalID", id, "error", err)
		sendJSONError(w, "Failed to complete goal", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(goal)
}

// GetGoalsProgressSummaryHandler aggregates progress across all of the
// caller's goals.
func (h *GoalHandler) GetGoalsProgressSummaryHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	goals, err := model.ListGoals(database.DB, userID, nil)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to list goals for summary", "userID", userID, "error", err)
		sendJSONError(w, "Failed to fetch goals", http.StatusInternalServerError)
		return
	}

	totalTarget := decimal.Zero
	totalSaved := decimal.Zero
	completed := 0
	type goalProgress struct {
		ID       int64   `json:"id"`
		Name     string  `json:"name"`
		Progress float64 `json:"progress"`
	}
	progress := make([]goalProgress, 0, len(goals))
	for i := range goals {
		g := &goals[i]
		totalTarget = totalTarget.Add(g.TargetAmount)
		totalSaved = totalSaved.Add(g.CurrentAmount)
		if g.IsCompleted {
			completed++
		}
		progress = append(progress, goalProgress{ID: g.ID, Name: g.Name, Progress: g.Progress()})
	}

	overall := 0.0
	if totalTarget.IsPositive() {
		overall, _ = totalSaved.Div(totalTarget).Mul(decimal.NewFromInt(100)).Round(2).Float64()
		if overall > 100 {
			overall = 100
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"total_goals":      len(goals),
		"completed_goals":  completed,
		"total_target":     totalTarget,
		"total_saved":      totalSaved,
		"overall_progress": overall,
		"goals":            progress,
	})
}

func (h *GoalHandler) DeleteGoalHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	id, err := parseIDParam(r)
	if err != nil {
		sendJSONError(w, "Invalid goal ID format", http.StatusBadRequest)
		return
	}

	if err := model.DeleteGoal(database.DB, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			sendJSONError(w, "Goal not found", http.StatusNotFound)
			return
		}
		logger.FromContext(r.Context()).Error("Failed to delete goal", "goalID", id, "error", err)
		sendJSONError(w, "Failed to delete goal", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
