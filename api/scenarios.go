/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates locations, rate
	tables, participants, and sessions that demonstrate specific billing
	behavior.

AVAILABLE SCENARIOS:

	quiet-afternoon:  One ended day session, two participants, equal split
	evening-straddle: Session crossing the night cutoff, blended rates
	staggered-group:  Participants joining and leaving at different times
	settled-history:  Ended, adjusted, and settled sessions plus a live one

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create locations with rate tables
 3. Create participants
 4. Insert sessions and memberships at fixed historical times
 5. Recompute costs through the service so rows carry billed amounts

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "evening-straddle"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Dashboard and session handlers
  - server.go: Scenario routes
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/venueworks/roomledger/billing"
	"github.com/venueworks/roomledger/store/sqlite"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "quiet-afternoon",
		Name:        "Quiet Afternoon",
		Description: "One ended day session with two participants splitting evenly",
	},
	{
		ID:          "evening-straddle",
		Name:        "Evening Straddle",
		Description: "Session crossing the night cutoff, billed at blended rates",
	},
	{
		ID:          "staggered-group",
		Name:        "Staggered Group",
		Description: "Participants arriving and leaving at different times",
	},
	{
		ID:          "settled-history",
		Name:        "Settled History",
		Description: "A month of ended sessions with adjustments and settlements, plus one live session",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:   h.currentScenario,
		Name: h.currentScenario,
	})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	var err error
	switch req.ScenarioID {
	case "quiet-afternoon":
		err = h.loadQuietAfternoonScenario(ctx)
	case "evening-straddle":
		err = h.loadEveningStraddleScenario(ctx)
	case "staggered-group":
		err = h.loadStaggeredGroupScenario(ctx)
	case "settled-history":
		err = h.loadSettledHistoryScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown scenario: %s", req.ScenarioID), nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]any{"status": "loaded", "scenario_id": req.ScenarioID})
}

// ResetDatabase clears all data.
// POST /api/scenarios/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]any{"status": "reset"})
}

// =============================================================================
// SCENARIO BUILDING BLOCKS
// =============================================================================

// scenarioBase is the shared location and participant set for all scenarios.
func (h *Handler) scenarioBase(ctx context.Context) (billing.LocationID, error) {
	loc := billing.Location{
		ID:              "studio-main",
		Name:            "Main Studio",
		NightCutoffHour: 18,
		Tiers: []billing.RateTier{
			{GroupMin: 1, GroupMax: 3, DayRate: decimal.NewFromInt(30), NightRate: decimal.NewFromInt(45)},
			{GroupMin: 4, GroupMax: 6, DayRate: decimal.NewFromInt(40), NightRate: decimal.NewFromInt(60)},
			{GroupMin: 7, GroupMax: 10, DayRate: decimal.NewFromInt(55), NightRate: decimal.NewFromInt(80)},
		},
	}
	if err := h.Store.SaveLocation(ctx, loc); err != nil {
		return "", err
	}

	people := []sqlite.Participant{
		{ID: "p-ana", Name: "Ana Silva", Gender: "Female"},
		{ID: "p-bruno", Name: "Bruno Costa", Gender: "Male"},
		{ID: "p-carla", Name: "Carla Mendes", Gender: "Female"},
		{ID: "p-diego", Name: "Diego Rocha", Gender: "Male"},
		{ID: "p-elena", Name: "Elena Freitas", Gender: "Female"},
		{ID: "p-felipe", Name: "Felipe Nunes", Gender: "Male"},
	}
	for _, p := range people {
		if err := h.Store.SaveParticipant(ctx, p); err != nil {
			return "", err
		}
	}
	return loc.ID, nil
}

// seedSession inserts an ended session with the given membership windows
// and computes its costs. Participant ids index into the scenario base set.
type seedMember struct {
	participant billing.ParticipantID
	join        time.Time
	leave       *time.Time
}

func (h *Handler) seedSession(ctx context.Context, locID billing.LocationID, start time.Time, end *time.Time, members []seedMember) (billing.SessionID, error) {
	session := billing.Session{
		ID:         billing.SessionID(uuid.NewString()),
		LocationID: locID,
		StartTime:  start,
	}
	if err := h.Store.CreateSession(ctx, session); err != nil {
		return "", err
	}

	for _, m := range members {
		row := billing.Membership{
			ID:            billing.MembershipID(uuid.NewString()),
			SessionID:     session.ID,
			ParticipantID: m.participant,
			JoinTime:      m.join,
		}
		if err := h.Store.OpenMembership(ctx, row); err != nil {
			return "", err
		}
		if m.leave != nil {
			if err := h.Store.CloseMembership(ctx, row.ID, *m.leave); err != nil {
				return "", err
			}
		}
	}

	if end != nil {
		if err := h.Store.SetSessionEnd(ctx, session.ID, *end); err != nil {
			return "", err
		}
		if err := h.Store.CloseOpenMemberships(ctx, session.ID, *end); err != nil {
			return "", err
		}
		if _, err := h.Service.RecomputeCosts(ctx, session.ID, false); err != nil {
			return "", err
		}
	}
	return session.ID, nil
}

func tp(t time.Time) *time.Time { return &t }

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// loadQuietAfternoonScenario: two participants share a two hour day
// session. Each owes one person-share of the tier 1-3 day rate.
func (h *Handler) loadQuietAfternoonScenario(ctx context.Context) error {
	locID, err := h.scenarioBase(ctx)
	if err != nil {
		return err
	}

	day := time.Now().UTC().AddDate(0, 0, -1).Truncate(24 * time.Hour)
	start := day.Add(14 * time.Hour)
	end := day.Add(16 * time.Hour)

	_, err = h.seedSession(ctx, locID, start, tp(end), []seedMember{
		{participant: "p-ana", join: start},
		{participant: "p-bruno", join: start},
	})
	return err
}

// loadEveningStraddleScenario: a 17:00 to 19:00 session crossing the
// 18:00 cutoff, one hour at the day rate and one at the night rate.
func (h *Handler) loadEveningStraddleScenario(ctx context.Context) error {
	locID, err := h.scenarioBase(ctx)
	if err != nil {
		return err
	}

	day := time.Now().UTC().AddDate(0, 0, -1).Truncate(24 * time.Hour)
	start := day.Add(17 * time.Hour)
	end := day.Add(19 * time.Hour)

	_, err = h.seedSession(ctx, locID, start, tp(end), []seedMember{
		{participant: "p-ana", join: start},
		{participant: "p-bruno", join: start},
	})
	return err
}

// loadStaggeredGroupScenario: occupancy shifting between tiers as
// participants arrive and leave across the afternoon.
func (h *Handler) loadStaggeredGroupScenario(ctx context.Context) error {
	locID, err := h.scenarioBase(ctx)
	if err != nil {
		return err
	}

	day := time.Now().UTC().AddDate(0, 0, -1).Truncate(24 * time.Hour)
	start := day.Add(13 * time.Hour)
	end := day.Add(17 * time.Hour)

	_, err = h.seedSession(ctx, locID, start, tp(end), []seedMember{
		{participant: "p-ana", join: start},
		{participant: "p-bruno", join: start.Add(30 * time.Minute)},
		{participant: "p-carla", join: start.Add(time.Hour), leave: tp(start.Add(3 * time.Hour))},
		{participant: "p-diego", join: start.Add(90 * time.Minute)},
		{participant: "p-elena", join: start.Add(2 * time.Hour)},
	})
	return err
}

// loadSettledHistoryScenario: several weeks of ended sessions feeding the
// dashboard, one with an adjusted cost, one settled short, and a live
// session still accepting check-ins.
func (h *Handler) loadSettledHistoryScenario(ctx context.Context) error {
	locID, err := h.scenarioBase(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	roster := [][]seedMember{
		{{participant: "p-ana"}, {participant: "p-bruno"}},
		{{participant: "p-carla"}, {participant: "p-diego"}, {participant: "p-elena"}},
		{{participant: "p-ana"}, {participant: "p-carla"}, {participant: "p-felipe"}, {participant: "p-bruno"}},
		{{participant: "p-elena"}, {participant: "p-felipe"}},
	}

	var firstID billing.SessionID
	for i := 0; i < 12; i++ {
		day := now.AddDate(0, 0, -(i*2 + 2)).Truncate(24 * time.Hour)
		start := day.Add(time.Duration(14+i%4) * time.Hour)
		end := start.Add(time.Duration(90+30*(i%3)) * time.Minute)

		members := make([]seedMember, len(roster[i%len(roster)]))
		for j, m := range roster[i%len(roster)] {
			members[j] = seedMember{participant: m.participant, join: start}
		}

		id, err := h.seedSession(ctx, locID, start, tp(end), members)
		if err != nil {
			return err
		}
		if firstID == "" {
			firstID = id
		}
	}

	// Adjust one membership on the oldest session, then settle it short
	// so reconciliation shows a shortfall.
	records, err := h.Store.ListMemberships(ctx, firstID)
	if err != nil {
		return err
	}
	if len(records) > 0 {
		comp := decimal.Zero
		if records[0].ComputedCost != nil {
			comp = *records[0].ComputedCost
		}
		adjusted := comp.Sub(decimal.NewFromInt(5))
		if adjusted.IsNegative() {
			adjusted = decimal.Zero
		}
		if err := h.Service.SetAdjustedCost(ctx, records[0].ID, adjusted); err != nil {
			return err
		}
	}
	records, err = h.Store.ListMemberships(ctx, firstID)
	if err != nil {
		return err
	}
	billed := decimal.Zero
	for _, rec := range records {
		switch {
		case rec.AdjustedCost != nil:
			billed = billed.Add(*rec.AdjustedCost)
		case rec.ComputedCost != nil:
			billed = billed.Add(*rec.ComputedCost)
		}
	}
	collected := billed.Sub(decimal.NewFromInt(3))
	if collected.IsNegative() {
		collected = decimal.Zero
	}
	if err := h.Service.RecordSettlement(ctx, firstID, collected, true); err != nil {
		return err
	}

	// One live session accepting check-ins right now.
	liveStart := now.Add(-45 * time.Minute)
	_, err = h.seedSession(ctx, locID, liveStart, nil, []seedMember{
		{participant: "p-ana", join: liveStart},
		{participant: "p-felipe", join: liveStart.Add(10 * time.Minute)},
	})
	return err
}
