// Package api exposes HTTP handlers for the itinerary service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"example.com/itinerary/internal/auth"
	"example.com/itinerary/internal/domain"
	"example.com/itinerary/internal/persistence"
)

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/plans", h.plans)
	mux.HandleFunc("/v1/plans/", h.planSubtree)
	mux.HandleFunc("/v1/activities/", h.activitySubtree)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) plans(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createPlan(w, r)
	case http.MethodGet:
		h.listPlans(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

// planSubtree handles /v1/plans/{id} and /v1/plans/{id}/days/{dayID}/activities.
func (h *Handler) planSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/plans/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")

	switch {
	case len(parts) == 1 && parts[0] != "":
		switch r.Method {
		case http.MethodGet:
			h.getPlan(w, r, parts[0])
		case http.MethodDelete:
			h.deletePlan(w, r, parts[0])
		default:
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		}
	case len(parts) == 4 && parts[1] == "days" && parts[3] == "activities":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
			return
		}
		h.createActivity(w, r, parts[2])
	default:
		writeError(w, http.StatusNotFound, "not_found", "unknown resource")
	}
}

// activitySubtree handles /v1/activities/{id} and /v1/activities/{id}/move.
func (h *Handler) activitySubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/activities/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")

	switch {
	case len(parts) == 1 && parts[0] != "":
		switch r.Method {
		case http.MethodGet:
			h.getActivity(w, r, parts[0])
		case http.MethodDelete:
			h.deleteActivity(w, r, parts[0])
		default:
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		}
	case len(parts) == 2 && parts[1] == "move":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
			return
		}
		h.moveActivity(w, r, parts[0])
	default:
		writeError(w, http.StatusNotFound, "not_found", "unknown resource")
	}
}

func (h *Handler) moveActivity(w http.ResponseWriter, r *http.Request, activityID string) {
	claims, ok := requireScope(w, r, auth.ScopePlansWrite)
	if !ok {
		return
	}

	var req MoveActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	activity, err := h.service.MoveActivity(r.Context(), domain.MoveActivityInput{
		OwnerID:        claims.Subject,
		ActivityID:     activityID,
		TargetDayID:    req.TargetDayID,
		TargetPosition: req.TargetPosition,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toActivityView(*activity))
}

func (h *Handler) createPlan(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopePlansWrite)
	if !ok {
		return
	}

	var req CreatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	starts, ends, err := req.dates()
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	tree, err := h.service.CreatePlan(r.Context(), domain.CreatePlanInput{
		OwnerID:  claims.Subject,
		Title:    req.Title,
		StartsOn: starts,
		EndsOn:   ends,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toPlanTreeView(*tree))
}

func (h *Handler) listPlans(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopePlansRead, auth.ScopePlansWrite)
	if !ok {
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	plans, next, err := h.service.ListPlans(r.Context(), claims.Subject, cursor, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	items := make([]PlanView, 0, len(plans))
	for _, plan := range plans {
		items = append(items, toPlanView(plan))
	}

	writeJSON(w, http.StatusOK, ListPlansResponse{
		Items:      items,
		NextCursor: persistence.EncodeCursor(next),
	})
}

func (h *Handler) getPlan(w http.ResponseWriter, r *http.Request, planID string) {
	claims, ok := requireScope(w, r, auth.ScopePlansRead, auth.ScopePlansWrite)
	if !ok {
		return
	}

	tree, err := h.service.GetPlanTree(r.Context(), claims.Subject, planID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPlanTreeView(*tree))
}

func (h *Handler) deletePlan(w http.ResponseWriter, r *http.Request, planID string) {
	claims, ok := requireScope(w, r, auth.ScopePlansWrite)
	if !ok {
		return
	}

	if err := h.service.DeletePlan(r.Context(), claims.Subject, planID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) createActivity(w http.ResponseWriter, r *http.Request, dayID string) {
	claims, ok := requireScope(w, r, auth.ScopePlansWrite)
	if !ok {
		return
	}

	var req CreateActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	activity, err := h.service.CreateActivity(r.Context(), domain.CreateActivityInput{
		OwnerID:     claims.Subject,
		DayID:       dayID,
		Title:       req.Title,
		DurationMin: req.DurationMin,
		TransitMin:  req.TransitMin,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toActivityView(*activity))
}

func (h *Handler) getActivity(w http.ResponseWriter, r *http.Request, activityID string) {
	claims, ok := requireScope(w, r, auth.ScopePlansRead, auth.ScopePlansWrite)
	if !ok {
		return
	}

	activity, err := h.service.GetActivity(r.Context(), claims.Subject, activityID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toActivityView(*activity))
}

func (h *Handler) deleteActivity(w http.ResponseWriter, r *http.Request, activityID string) {
	claims, ok := requireScope(w, r, auth.ScopePlansWrite)
	if !ok {
		return
	}

	if err := h.service.DeleteActivity(r.Context(), claims.Subject, activityID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func requireScope(w http.ResponseWriter, r *http.Request, scopes ...string) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	for _, scope := range scopes {
		if claims.HasScope(scope) {
			return claims, true
		}
	}
	writeError(w, http.StatusForbidden, "forbidden", "scope "+scopes[0]+" required")
	return nil, false
}

// MoveActivityRequest is the payload for POST /v1/activities/{id}/move.
type MoveActivityRequest struct {
	TargetDayID    string `json:"target_day_id"`
	TargetPosition int    `json:"target_position"`
}

// Validate ensures request correctness. Range checks against the configured
// per-day cap happen in the domain gate; this only rejects shapes that can
// never be valid.
func (r MoveActivityRequest) Validate() error {
	if strings.TrimSpace(r.TargetDayID) == "" {
		return errors.New("target_day_id is required")
	}
	if r.TargetPosition < 1 {
		return errors.New("target_position must be >= 1")
	}
	return nil
}

// CreatePlanRequest is the payload for POST /v1/plans.
type CreatePlanRequest struct {
	Title    string `json:"title"`
	StartsOn string `json:"starts_on"`
	EndsOn   string `json:"ends_on"`
}

func (r CreatePlanRequest) dates() (time.Time, time.Time, error) {
	starts, err := time.Parse(time.DateOnly, r.StartsOn)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("starts_on must be a YYYY-MM-DD date")
	}
	ends, err := time.Parse(time.DateOnly, r.EndsOn)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("ends_on must be a YYYY-MM-DD date")
	}
	return starts, ends, nil
}

// CreateActivityRequest is the payload for appending an activity to a day.
type CreateActivityRequest struct {
	Title       string `json:"title"`
	DurationMin int    `json:"duration_min"`
	TransitMin  int    `json:"transit_min"`
}

// Validate ensures request correctness.
func (r CreateActivityRequest) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return errors.New("title is required")
	}
	if r.DurationMin <= 0 {
		return errors.New("duration_min must be > 0")
	}
	if r.TransitMin < 0 {
		return errors.New("transit_min must be >= 0")
	}
	return nil
}

// ActivityView exposes full details about an activity.
type ActivityView struct {
	ActivityID  string    `json:"activity_id"`
	DayID       string    `json:"day_id"`
	Position    int       `json:"position"`
	Title       string    `json:"title"`
	DurationMin int       `json:"duration_min"`
	TransitMin  int       `json:"transit_min"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DayView is a day with its ordered activities.
type DayView struct {
	DayID      string         `json:"day_id"`
	Seq        int            `json:"seq"`
	Date       time.Time      `json:"date"`
	Activities []ActivityView `json:"activities"`
}

// PlanView exposes plan metadata without the day tree.
type PlanView struct {
	PlanID    string    `json:"plan_id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	StartsOn  time.Time `json:"starts_on"`
	EndsOn    time.Time `json:"ends_on"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PlanTreeView is the denormalized plan -> day -> activity tree.
type PlanTreeView struct {
	PlanID    string    `json:"plan_id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	StartsOn  time.Time `json:"starts_on"`
	EndsOn    time.Time `json:"ends_on"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Days      []DayView `json:"days"`
}

// ListPlansResponse packages list results.
type ListPlansResponse struct {
	Items      []PlanView `json:"items"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", "plan is owned by another user")
	default:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func toActivityView(a domain.Activity) ActivityView {
	return ActivityView{
		ActivityID:  a.ID,
		DayID:       a.DayID,
		Position:    a.Position,
		Title:       a.Title,
		DurationMin: a.DurationMin,
		TransitMin:  a.TransitMin,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func toPlanView(p domain.Plan) PlanView {
	return PlanView{
		PlanID:    p.ID,
		OwnerID:   p.OwnerID,
		Title:     p.Title,
		StartsOn:  p.StartsOn,
		EndsOn:    p.EndsOn,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func toPlanTreeView(tree domain.PlanTree) PlanTreeView {
	view := PlanTreeView{
		PlanID:    tree.Plan.ID,
		OwnerID:   tree.Plan.OwnerID,
		Title:     tree.Plan.Title,
		StartsOn:  tree.Plan.StartsOn,
		EndsOn:    tree.Plan.EndsOn,
		CreatedAt: tree.Plan.CreatedAt,
		UpdatedAt: tree.Plan.UpdatedAt,
		Days:      make([]DayView, 0, len(tree.Days)),
	}
	for _, day := range tree.Days {
		dv := DayView{
			DayID:      day.Day.ID,
			Seq:        day.Day.Seq,
			Date:       day.Day.Date,
			Activities: make([]ActivityView, 0, len(day.Activities)),
		}
		for _, a := range day.Activities {
			dv.Activities = append(dv.Activities, toActivityView(a))
		}
		view.Days = append(view.Days, dv)
	}
	return view
}
