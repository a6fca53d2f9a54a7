/*
handlers.go - HTTP API handlers for the room ledger

PURPOSE:
  Exposes the session cost engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Locations:
    GET    /api/locations                     List locations with rate tables
    POST   /api/locations                     Create location with rate table
    GET    /api/locations/{id}                Get location details
    PUT    /api/locations/{id}/rates          Replace rate table

  Participants:
    GET    /api/participants                  List participants
    POST   /api/participants                  Create participant

  Sessions:
    GET    /api/sessions                      List recent sessions
    POST   /api/sessions                      Start session
    GET    /api/sessions/{id}                 Session with memberships
    POST   /api/sessions/{id}/end             End session, compute costs
    GET    /api/sessions/{id}/preview         Preview costs while open
    POST   /api/sessions/{id}/recompute       Recompute final costs
    POST   /api/sessions/{id}/settlement      Record collected amount
    GET    /api/sessions/{id}/reconciliation  Billed vs collected report

  Check-in:
    POST   /api/checkin/join                  Participant joins a session
    POST   /api/checkin/leave                 Participant leaves a session

  Memberships:
    PUT    /api/memberships/{id}/adjusted-cost  Administrative cost override

  Admin:
    GET    /api/dashboard                     Aggregate statistics
    GET    /api/scenarios                     List demo scenarios
    POST   /api/scenarios/load                Load a demo scenario

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed input
  - 404: Resource not found
  - 409: Sequencing conflicts (ended session, duplicate join, settled)
  - 422: Data errors (invalid intervals, rate table gaps)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/venueworks/roomledger/billing"
	"github.com/venueworks/roomledger/checkin"
	"github.com/venueworks/roomledger/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   *sqlite.Store
	Service *checkin.Service

	// DefaultCutoff applies when a new location omits night_cutoff_hour.
	DefaultCutoff int

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler with the given store and service.
func NewHandler(store *sqlite.Store, service *checkin.Service, defaultCutoff int) *Handler {
	return &Handler{
		Store:         store,
		Service:       service,
		DefaultCutoff: defaultCutoff,
	}
}

// =============================================================================
// LOCATION ENDPOINTS
// =============================================================================

// ListLocations returns all locations with their rate tables.
// GET /api/locations
func (h *Handler) ListLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := h.Store.ListLocations(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list locations", err)
		return
	}

	dtos := make([]LocationDTO, len(locations))
	for i, loc := range locations {
		dtos[i] = toLocationDTO(loc)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetLocation returns a single location.
// GET /api/locations/{id}
func (h *Handler) GetLocation(w http.ResponseWriter, r *http.Request) {
	id := billing.LocationID(chi.URLParam(r, "id"))
	loc, err := h.Store.GetLocation(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get location", err)
		return
	}
	if loc == nil {
		writeError(w, http.StatusNotFound, "Location not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toLocationDTO(*loc))
}

// CreateLocation creates a location with its rate table.
// POST /api/locations
func (h *Handler) CreateLocation(w http.ResponseWriter, r *http.Request) {
	var req CreateLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}

	tiers, err := parseTiers(req.Tiers)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rate amount", err)
		return
	}
	if err := billing.ValidateTiers(tiers); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Invalid rate table", err)
		return
	}

	cutoff := h.DefaultCutoff
	if req.NightCutoffHour != nil {
		cutoff = *req.NightCutoffHour
	}
	if cutoff < 0 || cutoff > 23 {
		writeError(w, http.StatusBadRequest, "night_cutoff_hour must be between 0 and 23", nil)
		return
	}

	loc := billing.Location{
		ID:              billing.LocationID(req.ID),
		Name:            req.Name,
		Tiers:           tiers,
		NightCutoffHour: cutoff,
	}
	if err := h.Store.SaveLocation(r.Context(), loc); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create location", err)
		return
	}
	writeJSON(w, http.StatusCreated, toLocationDTO(loc))
}

// UpdateRates replaces a location's rate table. Already-computed session
// costs keep their values; only future computations see the new rates.
// PUT /api/locations/{id}/rates
func (h *Handler) UpdateRates(w http.ResponseWriter, r *http.Request) {
	id := billing.LocationID(chi.URLParam(r, "id"))
	loc, err := h.Store.GetLocation(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get location", err)
		return
	}
	if loc == nil {
		writeError(w, http.StatusNotFound, "Location not found", nil)
		return
	}

	var req UpdateRatesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	tiers, err := parseTiers(req.Tiers)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rate amount", err)
		return
	}
	if err := billing.ValidateTiers(tiers); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Invalid rate table", err)
		return
	}

	loc.Tiers = tiers
	if err := h.Store.SaveLocation(r.Context(), *loc); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update rates", err)
		return
	}
	writeJSON(w, http.StatusOK, toLocationDTO(*loc))
}

// =============================================================================
// PARTICIPANT ENDPOINTS
// =============================================================================

// ListParticipants returns all participants.
// GET /api/participants
func (h *Handler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	participants, err := h.Store.ListParticipants(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list participants", err)
		return
	}

	dtos := make([]ParticipantDTO, len(participants))
	for i, p := range participants {
		dtos[i] = ParticipantDTO{
			ID:        string(p.ID),
			Name:      p.Name,
			Gender:    p.Gender,
			CreatedAt: p.CreatedAt.Format("2006-01-02"),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateParticipant creates or updates a participant.
// POST /api/participants
func (h *Handler) CreateParticipant(w http.ResponseWriter, r *http.Request) {
	var req CreateParticipantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}

	p := sqlite.Participant{
		ID:     billing.ParticipantID(req.ID),
		Name:   req.Name,
		Gender: req.Gender,
	}
	if err := h.Store.SaveParticipant(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create participant", err)
		return
	}
	writeJSON(w, http.StatusCreated, ParticipantDTO{ID: req.ID, Name: req.Name, Gender: req.Gender})
}

// =============================================================================
// SESSION ENDPOINTS
// =============================================================================

// ListSessions returns recent sessions, newest first.
// GET /api/sessions
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.Store.ListSessions(r.Context(), 100)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions", err)
		return
	}

	dtos := make([]SessionDTO, len(sessions))
	for i, s := range sessions {
		dtos[i] = toSessionDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// StartSession opens a new session at a location.
// POST /api/sessions
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.LocationID == "" {
		writeError(w, http.StatusBadRequest, "location_id is required", nil)
		return
	}
	if req.NightCutoffHour != nil && (*req.NightCutoffHour < 0 || *req.NightCutoffHour > 23) {
		writeError(w, http.StatusBadRequest, "night_cutoff_hour must be between 0 and 23", nil)
		return
	}

	session, err := h.Service.StartSession(r.Context(), billing.LocationID(req.LocationID), req.NightCutoffHour)
	if err != nil {
		writeServiceError(w, "Failed to start session", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionDTO(session))
}

// GetSession returns a session with its membership rows.
// GET /api/sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := billing.SessionID(chi.URLParam(r, "id"))
	session, err := h.Store.GetSession(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get session", err)
		return
	}
	if session == nil {
		writeError(w, http.StatusNotFound, "Session not found", nil)
		return
	}

	records, err := h.Store.ListMemberships(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list memberships", err)
		return
	}

	detail := SessionDetailDTO{
		SessionDTO:  toSessionDTO(*session),
		Memberships: make([]MembershipDTO, len(records)),
	}
	for i, rec := range records {
		detail.Memberships[i] = toMembershipDTO(rec)
	}
	writeJSON(w, http.StatusOK, detail)
}

// EndSession closes a session, closes open memberships, and computes costs.
// POST /api/sessions/{id}/end
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	id := billing.SessionID(chi.URLParam(r, "id"))
	result, err := h.Service.EndSession(r.Context(), id)
	if err != nil {
		writeServiceError(w, "Failed to end session", err)
		return
	}
	writeJSON(w, http.StatusOK, toCostResultDTO(id, result))
}

// PreviewCosts returns what the session would cost if it ended now.
// GET /api/sessions/{id}/preview
func (h *Handler) PreviewCosts(w http.ResponseWriter, r *http.Request) {
	id := billing.SessionID(chi.URLParam(r, "id"))
	result, err := h.Service.PreviewCosts(r.Context(), id)
	if err != nil {
		writeServiceError(w, "Failed to preview costs", err)
		return
	}
	writeJSON(w, http.StatusOK, toCostResultDTO(id, result))
}

// RecomputeCosts reruns the cost computation for an ended session.
// POST /api/sessions/{id}/recompute
func (h *Handler) RecomputeCosts(w http.ResponseWriter, r *http.Request) {
	id := billing.SessionID(chi.URLParam(r, "id"))

	var req RecomputeRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	result, err := h.Service.RecomputeCosts(r.Context(), id, req.Override)
	if err != nil {
		writeServiceError(w, "Failed to recompute costs", err)
		return
	}
	writeJSON(w, http.StatusOK, toCostResultDTO(id, result))
}

// RecordSettlement records the amount actually collected for a session.
// POST /api/sessions/{id}/settlement
func (h *Handler) RecordSettlement(w http.ResponseWriter, r *http.Request) {
	id := billing.SessionID(chi.URLParam(r, "id"))

	var req SettlementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	collected, err := decimal.NewFromString(req.Collected)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid collected amount", err)
		return
	}
	if collected.IsNegative() {
		writeError(w, http.StatusBadRequest, "Collected amount cannot be negative", nil)
		return
	}

	if err := h.Service.RecordSettlement(r.Context(), id, collected, req.Final); err != nil {
		writeServiceError(w, "Failed to record settlement", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": string(id),
		"collected":  collected.StringFixed(billing.CurrencyPlaces),
		"final":      req.Final,
	})
}

// Reconcile reports billed vs collected for a settled session.
// GET /api/sessions/{id}/reconciliation
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	id := billing.SessionID(chi.URLParam(r, "id"))
	report, err := h.Service.Reconcile(r.Context(), id)
	if err != nil {
		writeServiceError(w, "Failed to reconcile session", err)
		return
	}
	writeJSON(w, http.StatusOK, ReconciliationDTO{
		SessionID:   string(report.SessionID),
		BilledTotal: report.BilledTotal.StringFixed(billing.CurrencyPlaces),
		Collected:   report.Collected.StringFixed(billing.CurrencyPlaces),
		Difference:  report.Difference.StringFixed(billing.CurrencyPlaces),
	})
}

// =============================================================================
// CHECK-IN ENDPOINTS
// =============================================================================

// Join adds a participant to an open session.
// POST /api/checkin/join
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	var req CheckinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.SessionID == "" || req.ParticipantID == "" {
		writeError(w, http.StatusBadRequest, "session_id and participant_id are required", nil)
		return
	}

	m, err := h.Service.Join(r.Context(),
		billing.SessionID(req.SessionID), billing.ParticipantID(req.ParticipantID))
	if err != nil {
		writeServiceError(w, "Failed to join session", err)
		return
	}
	writeJSON(w, http.StatusCreated, toMembershipDTO(checkin.MembershipRecord{Membership: m}))
}

// Leave closes a participant's open membership.
// POST /api/checkin/leave
func (h *Handler) Leave(w http.ResponseWriter, r *http.Request) {
	var req CheckinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.SessionID == "" || req.ParticipantID == "" {
		writeError(w, http.StatusBadRequest, "session_id and participant_id are required", nil)
		return
	}

	err := h.Service.Leave(r.Context(),
		billing.SessionID(req.SessionID), billing.ParticipantID(req.ParticipantID))
	if err != nil {
		writeServiceError(w, "Failed to leave session", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "left"})
}

// =============================================================================
// MEMBERSHIP ENDPOINTS
// =============================================================================

// SetAdjustedCost records an administrative override for one membership.
// The computed cost is retained for audit; the adjusted value is billed.
// PUT /api/memberships/{id}/adjusted-cost
func (h *Handler) SetAdjustedCost(w http.ResponseWriter, r *http.Request) {
	id := billing.MembershipID(chi.URLParam(r, "id"))

	var req AdjustCostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	if amount.IsNegative() {
		writeError(w, http.StatusBadRequest, "Amount cannot be negative", nil)
		return
	}

	if err := h.Service.SetAdjustedCost(r.Context(), id, amount); err != nil {
		writeServiceError(w, "Failed to set adjusted cost", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"membership_id": string(id),
		"amount":        amount.StringFixed(billing.CurrencyPlaces),
	})
}

// =============================================================================
// ADMIN ENDPOINTS
// =============================================================================

// Dashboard returns aggregate statistics for the admin UI.
// GET /api/dashboard
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Store.DashboardStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute dashboard", err)
		return
	}
	writeJSON(w, http.StatusOK, toDashboardDTO(stats))
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

// writeServiceError maps domain errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, checkin.ErrSessionNotFound),
		errors.Is(err, checkin.ErrLocationNotFound),
		errors.Is(err, checkin.ErrMembershipNotFound),
		errors.Is(err, checkin.ErrNoSettlement):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, checkin.ErrSessionEnded),
		errors.Is(err, checkin.ErrAlreadyPresent),
		errors.Is(err, checkin.ErrNotPresent),
		errors.Is(err, billing.ErrNotEnded),
		errors.Is(err, billing.ErrAlreadySettled):
		writeError(w, http.StatusConflict, message, err)
	case billing.IsDataError(err):
		writeError(w, http.StatusUnprocessableEntity, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
