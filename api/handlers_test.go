/*
handlers_test.go - Unit tests for API handlers

Tests for:
- Location creation and rate table validation
- Check-in lifecycle over HTTP
- Settlement and reconciliation endpoints
- Error status mapping
- Scenario loading
*/
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/venueworks/roomledger/checkin"
	"github.com/venueworks/roomledger/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	service := checkin.NewService(store)
	handler := NewHandler(store, service, 18)
	srv := httptest.NewServer(NewRouter(handler, RouterOptions{}))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any, out any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
	}
	return resp
}

func createTestLocation(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	req := CreateLocationRequest{
		ID:   "studio-1",
		Name: "Studio One",
		Tiers: []RateTierDTO{
			{GroupMin: 1, GroupMax: 3, DayRate: "30", NightRate: "45"},
			{GroupMin: 4, GroupMax: 6, DayRate: "40", NightRate: "60"},
		},
	}
	var dto LocationDTO
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/locations", req, &dto)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Create location status = %d", resp.StatusCode)
	}
	return dto.ID
}

// =============================================================================
// LOCATION TESTS
// =============================================================================

func TestCreateLocation_GappyRateTable_Rejected(t *testing.T) {
	// GIVEN: A rate table with a hole between tiers
	// WHEN: Creating the location
	// THEN: 422 with the validation detail
	srv := newTestServer(t)

	req := CreateLocationRequest{
		ID:   "bad",
		Name: "Bad",
		Tiers: []RateTierDTO{
			{GroupMin: 1, GroupMax: 3, DayRate: "30", NightRate: "45"},
			{GroupMin: 5, GroupMax: 8, DayRate: "40", NightRate: "60"},
		},
	}
	var errResp ErrorResponse
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/locations", req, &errResp)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("Status = %d, want 422", resp.StatusCode)
	}
	if errResp.Details == "" {
		t.Error("Expected validation details in error response")
	}
}

func TestCreateLocation_DefaultCutoffApplied(t *testing.T) {
	srv := newTestServer(t)
	id := createTestLocation(t, srv)

	var dto LocationDTO
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/locations/"+id, nil, &dto)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Get location status = %d", resp.StatusCode)
	}
	if dto.NightCutoffHour != 18 {
		t.Errorf("NightCutoffHour = %d, want server default 18", dto.NightCutoffHour)
	}
}

// =============================================================================
// SESSION LIFECYCLE TESTS
// =============================================================================

func TestSession_JoinEndAndFetch(t *testing.T) {
	// GIVEN: A session with two participants
	// WHEN: Ending it over HTTP
	// THEN: The cost result conserves the grand total and the session
	//       detail carries computed costs per membership
	srv := newTestServer(t)
	locID := createTestLocation(t, srv)

	var session SessionDTO
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/sessions",
		StartSessionRequest{LocationID: locID}, &session)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Start session status = %d", resp.StatusCode)
	}

	for _, p := range []string{"alice", "bob"} {
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/checkin/join",
			CheckinRequest{SessionID: session.ID, ParticipantID: p}, nil)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("Join %s status = %d", p, resp.StatusCode)
		}
	}

	var result CostResultDTO
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/sessions/"+session.ID+"/end", nil, &result)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("End session status = %d", resp.StatusCode)
	}
	if len(result.Costs) != 2 {
		t.Errorf("Costs count = %d, want 2", len(result.Costs))
	}

	var detail SessionDetailDTO
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/sessions/"+session.ID, nil, &detail)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Get session status = %d", resp.StatusCode)
	}
	if !detail.Ended {
		t.Error("Session should be ended")
	}
	for _, m := range detail.Memberships {
		if m.ComputedCost == nil {
			t.Errorf("Membership %s missing computed cost", m.ID)
		}
		if m.LeaveTime == nil {
			t.Errorf("Membership %s left open after end", m.ID)
		}
	}
}

func TestSession_EndTwice_Conflict(t *testing.T) {
	srv := newTestServer(t)
	locID := createTestLocation(t, srv)

	var session SessionDTO
	doJSON(t, http.MethodPost, srv.URL+"/api/sessions", StartSessionRequest{LocationID: locID}, &session)
	doJSON(t, http.MethodPost, srv.URL+"/api/sessions/"+session.ID+"/end", nil, nil)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/sessions/"+session.ID+"/end", nil, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Second end status = %d, want 409", resp.StatusCode)
	}
}

func TestSession_NotFound(t *testing.T) {
	srv := newTestServer(t)
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/sessions/nope", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Status = %d, want 404", resp.StatusCode)
	}
}

func TestCheckin_DuplicateJoin_Conflict(t *testing.T) {
	srv := newTestServer(t)
	locID := createTestLocation(t, srv)

	var session SessionDTO
	doJSON(t, http.MethodPost, srv.URL+"/api/sessions", StartSessionRequest{LocationID: locID}, &session)

	join := CheckinRequest{SessionID: session.ID, ParticipantID: "alice"}
	doJSON(t, http.MethodPost, srv.URL+"/api/checkin/join", join, nil)
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/checkin/join", join, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Duplicate join status = %d, want 409", resp.StatusCode)
	}
}

// =============================================================================
// SETTLEMENT AND RECONCILIATION TESTS
// =============================================================================

func TestSettlement_AndReconciliation(t *testing.T) {
	// GIVEN: An ended session with recorded collection
	// WHEN: Fetching reconciliation
	// THEN: Difference equals collected minus billed
	srv := newTestServer(t)
	locID := createTestLocation(t, srv)

	var session SessionDTO
	doJSON(t, http.MethodPost, srv.URL+"/api/sessions", StartSessionRequest{LocationID: locID}, &session)
	doJSON(t, http.MethodPost, srv.URL+"/api/checkin/join",
		CheckinRequest{SessionID: session.ID, ParticipantID: "alice"}, nil)
	doJSON(t, http.MethodPost, srv.URL+"/api/sessions/"+session.ID+"/end", nil, nil)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/sessions/"+session.ID+"/settlement",
		SettlementRequest{Collected: "10.00", Final: false}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Settlement status = %d", resp.StatusCode)
	}

	var report ReconciliationDTO
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/sessions/"+session.ID+"/reconciliation", nil, &report)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Reconciliation status = %d", resp.StatusCode)
	}
	if report.Collected != "10.00" {
		t.Errorf("Collected = %s, want 10.00", report.Collected)
	}
	// An instant session bills zero, so the whole collection is surplus.
	if report.BilledTotal != "0.00" || report.Difference != "10.00" {
		t.Errorf("Billed = %s, difference = %s", report.BilledTotal, report.Difference)
	}
}

func TestSettlement_OpenSession_Conflict(t *testing.T) {
	srv := newTestServer(t)
	locID := createTestLocation(t, srv)

	var session SessionDTO
	doJSON(t, http.MethodPost, srv.URL+"/api/sessions", StartSessionRequest{LocationID: locID}, &session)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/sessions/"+session.ID+"/settlement",
		SettlementRequest{Collected: "10.00"}, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Status = %d, want 409", resp.StatusCode)
	}
}

func TestRecompute_FinalSettlement_ConflictWithoutOverride(t *testing.T) {
	srv := newTestServer(t)
	locID := createTestLocation(t, srv)

	var session SessionDTO
	doJSON(t, http.MethodPost, srv.URL+"/api/sessions", StartSessionRequest{LocationID: locID}, &session)
	doJSON(t, http.MethodPost, srv.URL+"/api/sessions/"+session.ID+"/end", nil, nil)
	doJSON(t, http.MethodPost, srv.URL+"/api/sessions/"+session.ID+"/settlement",
		SettlementRequest{Collected: "0.00", Final: true}, nil)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/sessions/"+session.ID+"/recompute",
		RecomputeRequest{Override: false}, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Recompute status = %d, want 409", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/sessions/"+session.ID+"/recompute",
		RecomputeRequest{Override: true}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Override recompute status = %d, want 200", resp.StatusCode)
	}
}

// =============================================================================
// SCENARIO TESTS
// =============================================================================

func TestScenarios_LoadAll(t *testing.T) {
	// Every published scenario must load cleanly and leave a queryable
	// dashboard behind.
	srv := newTestServer(t)

	var list []ScenarioDTO
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/scenarios", nil, &list)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("List scenarios status = %d", resp.StatusCode)
	}
	if len(list) == 0 {
		t.Fatal("No scenarios published")
	}

	for _, s := range list {
		t.Run(s.ID, func(t *testing.T) {
			resp := doJSON(t, http.MethodPost, srv.URL+"/api/scenarios/load",
				LoadScenarioRequest{ScenarioID: s.ID}, nil)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("Load %s status = %d", s.ID, resp.StatusCode)
			}

			var dash DashboardDTO
			resp = doJSON(t, http.MethodGet, srv.URL+"/api/dashboard", nil, &dash)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("Dashboard status = %d", resp.StatusCode)
			}
			if dash.TotalParticipants == 0 {
				t.Error("Dashboard shows no participants after scenario load")
			}
		})
	}
}

func TestScenarios_UnknownID(t *testing.T) {
	srv := newTestServer(t)
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/scenarios/load",
		LoadScenarioRequest{ScenarioID: "nope"}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400", resp.StatusCode)
	}
}

// =============================================================================
// ADJUSTED COST TESTS
// =============================================================================

func TestAdjustedCost_RoundTrip(t *testing.T) {
	srv := newTestServer(t)
	locID := createTestLocation(t, srv)

	var session SessionDTO
	doJSON(t, http.MethodPost, srv.URL+"/api/sessions", StartSessionRequest{LocationID: locID}, &session)
	doJSON(t, http.MethodPost, srv.URL+"/api/checkin/join",
		CheckinRequest{SessionID: session.ID, ParticipantID: "alice"}, nil)
	doJSON(t, http.MethodPost, srv.URL+"/api/sessions/"+session.ID+"/end", nil, nil)

	var detail SessionDetailDTO
	doJSON(t, http.MethodGet, srv.URL+"/api/sessions/"+session.ID, nil, &detail)
	if len(detail.Memberships) != 1 {
		t.Fatalf("Memberships = %d, want 1", len(detail.Memberships))
	}
	mID := detail.Memberships[0].ID

	url := fmt.Sprintf("%s/api/memberships/%s/adjusted-cost", srv.URL, mID)
	resp := doJSON(t, http.MethodPut, url, AdjustCostRequest{Amount: "12.50"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Adjust status = %d", resp.StatusCode)
	}

	doJSON(t, http.MethodGet, srv.URL+"/api/sessions/"+session.ID, nil, &detail)
	if detail.Memberships[0].AdjustedCost == nil || *detail.Memberships[0].AdjustedCost != "12.50" {
		t.Errorf("AdjustedCost = %v, want 12.50", detail.Memberships[0].AdjustedCost)
	}
}
