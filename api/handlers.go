/*
handlers.go - HTTP API handlers for the milestone balancer

PURPOSE:
  Exposes the milestone service via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to milestone.Service.

ENDPOINTS:
  Milestones:
    GET    /api/milestones                 List milestones (?active=true)
    POST   /api/milestones                 Create milestone
    GET    /api/milestones/{id}            Get milestone
    PUT    /api/milestones/{id}            Update milestone
    DELETE /api/milestones/{id}            Delete milestone and its goals

  Linked goals:
    GET    /api/milestones/{id}/goals      List linked goals
    POST   /api/milestones/{id}/goals      Link a goal
    PUT    /api/goals/{id}                 Update a linked goal

  Balancer:
    GET    /api/milestones/{id}/preview    Day-by-day distribution
    GET    /api/milestones/{id}/plan       Today's targets and status
    POST   /api/milestones/{id}/balance    Run redistribution

  Scenarios:
    GET    /api/scenarios                  List demo scenarios
    POST   /api/scenarios/load             Load a demo scenario

TIMEZONE:
  Balancer endpoints and ?active=true take an optional tz_offset query
  parameter (minutes from UTC). It defaults to the configured offset.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, period already ended
  - 404: Milestone or linked goal not found
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/coppermind/milestone-engine/balancer"
	"github.com/coppermind/milestone-engine/milestone"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Resetter clears all stored data. Used by demo scenarios.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *milestone.Service
	Logger  *zap.Logger

	// Minutes from UTC used when a request carries no tz_offset.
	TimezoneOffset int

	resetter Resetter

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler over svc. resetter may be nil, in which case
// loading scenarios appends to existing data.
func NewHandler(svc *milestone.Service, resetter Resetter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Service:  svc,
		Logger:   logger,
		resetter: resetter,
	}
}

// =============================================================================
// MILESTONE HANDLERS
// =============================================================================

// ListMilestones returns all milestones, or only active ones with ?active=true.
func (h *Handler) ListMilestones(w http.ResponseWriter, r *http.Request) {
	tz, ok := h.tzOffset(w, r)
	if !ok {
		return
	}
	activeOnly := r.URL.Query().Get("active") == "true"

	milestones, err := h.Service.List(r.Context(), activeOnly, tz)
	if err != nil {
		h.writeServiceError(w, r, "Failed to list milestones", err)
		return
	}

	dtos := make([]MilestoneDTO, len(milestones))
	for i, m := range milestones {
		dtos[i] = toMilestoneDTO(m)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateMilestone creates a new milestone.
func (h *Handler) CreateMilestone(w http.ResponseWriter, r *http.Request) {
	var req CreateMilestoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in := milestone.CreateInput{
		TargetMetric: req.TargetMetric,
		TargetValue:  decimal.NewFromFloat(req.TargetValue),
		PeriodStart:  req.PeriodStart,
		PeriodEnd:    req.PeriodEnd,
		Strategy:     balancer.Strategy(req.Strategy),
		Label:        req.Label,
		Unit:         req.Unit,
		DailyAmount:  decimal.NewFromFloat(req.DailyAmount),
	}
	m, err := h.Service.Create(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, "Failed to create milestone", err)
		return
	}

	writeJSON(w, http.StatusCreated, toMilestoneDTO(*m))
}

// GetMilestone returns a single milestone.
func (h *Handler) GetMilestone(w http.ResponseWriter, r *http.Request) {
	m, err := h.Service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, "Failed to get milestone", err)
		return
	}
	writeJSON(w, http.StatusOK, toMilestoneDTO(*m))
}

// UpdateMilestone applies a partial update.
func (h *Handler) UpdateMilestone(w http.ResponseWriter, r *http.Request) {
	var req UpdateMilestoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in := milestone.UpdateInput{
		TargetMetric: req.TargetMetric,
		TargetValue:  floatPtrToDecimal(req.TargetValue),
		CurrentValue: floatPtrToDecimal(req.CurrentValue),
		Label:        req.Label,
		Unit:         req.Unit,
		DailyAmount:  floatPtrToDecimal(req.DailyAmount),
	}
	if req.Strategy != nil {
		s := balancer.Strategy(*req.Strategy)
		in.Strategy = &s
	}

	m, err := h.Service.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeServiceError(w, r, "Failed to update milestone", err)
		return
	}
	writeJSON(w, http.StatusOK, toMilestoneDTO(*m))
}

// DeleteMilestone removes a milestone and its linked goals.
func (h *Handler) DeleteMilestone(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, r, "Failed to delete milestone", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// LINKED GOAL HANDLERS
// =============================================================================

// ListGoals returns a milestone's linked goals.
func (h *Handler) ListGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := h.Service.Goals(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, "Failed to list goals", err)
		return
	}

	dtos := make([]LinkedGoalDTO, len(goals))
	for i, g := range goals {
		dtos[i] = toLinkedGoalDTO(g)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateGoal links a new goal to a milestone.
func (h *Handler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	var req CreateGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	g, err := h.Service.AddGoal(r.Context(), chi.URLParam(r, "id"), milestone.GoalInput{
		Text:      req.Text,
		DueDate:   req.DueDate,
		Completed: req.Completed,
		Metrics:   fromMetricDTOs(req.Metrics),
	})
	if err != nil {
		h.writeServiceError(w, r, "Failed to create goal", err)
		return
	}
	writeJSON(w, http.StatusCreated, toLinkedGoalDTO(*g))
}

// UpdateGoal edits a linked goal, typically to mark it completed.
func (h *Handler) UpdateGoal(w http.ResponseWriter, r *http.Request) {
	var req UpdateGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	g, err := h.Service.UpdateGoal(r.Context(), chi.URLParam(r, "id"), milestone.GoalUpdate{
		Text:      req.Text,
		DueDate:   req.DueDate,
		Completed: req.Completed,
		Metrics:   fromMetricDTOs(req.Metrics),
	})
	if err != nil {
		h.writeServiceError(w, r, "Failed to update goal", err)
		return
	}
	writeJSON(w, http.StatusOK, toLinkedGoalDTO(*g))
}

// =============================================================================
// BALANCER HANDLERS
// =============================================================================

// GetPreview returns the day-by-day distribution table.
func (h *Handler) GetPreview(w http.ResponseWriter, r *http.Request) {
	tz, ok := h.tzOffset(w, r)
	if !ok {
		return
	}

	days, err := h.Service.Preview(r.Context(), chi.URLParam(r, "id"), tz)
	if err != nil {
		h.writeServiceError(w, r, "Failed to build preview", err)
		return
	}
	writeJSON(w, http.StatusOK, toDailyDistributionDTOs(days))
}

// GetPlan returns today's target, status and estimate.
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	tz, ok := h.tzOffset(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	plan, err := h.Service.Plan(r.Context(), id, tz)
	if err != nil {
		h.writeServiceError(w, r, "Failed to build plan", err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanDTO(id, plan))
}

// RunBalancer redistributes a milestone across its remaining days.
func (h *Handler) RunBalancer(w http.ResponseWriter, r *http.Request) {
	tz, ok := h.tzOffset(w, r)
	if !ok {
		return
	}

	result, err := h.Service.Run(r.Context(), chi.URLParam(r, "id"), tz)
	if err != nil {
		h.writeServiceError(w, r, "Failed to run balancer", err)
		return
	}
	writeJSON(w, http.StatusOK, toBalancerResultDTO(*result))
}

// =============================================================================
// HELPERS
// =============================================================================

// tzOffset reads ?tz_offset, writing a 400 and returning false when invalid.
func (h *Handler) tzOffset(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("tz_offset")
	if raw == "" {
		return h.TimezoneOffset, true
	}
	tz, err := strconv.Atoi(raw)
	if err != nil || tz < -14*60 || tz > 14*60 {
		writeError(w, http.StatusBadRequest, "Invalid tz_offset", fmt.Sprintf("%q is not a minute offset within ±14h", raw))
		return 0, false
	}
	return tz, true
}

// writeServiceError maps service errors to HTTP status codes.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, message string, err error) {
	switch {
	case balancer.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err.Error())
	case balancer.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err.Error())
	default:
		h.Logger.Error(message,
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, message, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, details any) {
	resp := ErrorResponse{Error: message}
	if err, ok := details.(error); ok {
		resp.Details = err.Error()
	} else if details != nil {
		resp.Details = details
	}
	writeJSON(w, status, resp)
}
