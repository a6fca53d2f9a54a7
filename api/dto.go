/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  All money fields are decimal strings with two places ("37.50"), never
  JSON floats. Timestamps are RFC 3339.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/venueworks/roomledger/billing"
	"github.com/venueworks/roomledger/checkin"
	"github.com/venueworks/roomledger/store/sqlite"
)

// =============================================================================
// LOCATIONS
// =============================================================================

// RateTierDTO is one group-size tier of a location's rate table.
type RateTierDTO struct {
	GroupMin  int    `json:"group_min"`
	GroupMax  int    `json:"group_max"`
	DayRate   string `json:"day_rate"`
	NightRate string `json:"night_rate"`
}

// LocationDTO represents a location in API responses.
type LocationDTO struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	NightCutoffHour int           `json:"night_cutoff_hour"`
	Tiers           []RateTierDTO `json:"tiers"`
}

// CreateLocationRequest creates or replaces a location with its rate table.
type CreateLocationRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// NightCutoffHour is optional; the server default applies when nil.
	NightCutoffHour *int          `json:"night_cutoff_hour,omitempty"`
	Tiers           []RateTierDTO `json:"tiers"`
}

// UpdateRatesRequest replaces a location's rate table.
type UpdateRatesRequest struct {
	Tiers []RateTierDTO `json:"tiers"`
}

// =============================================================================
// PARTICIPANTS
// =============================================================================

// ParticipantDTO represents a participant in API responses.
type ParticipantDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Gender    string `json:"gender,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CreateParticipantRequest creates or updates a participant.
type CreateParticipantRequest struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Gender string `json:"gender,omitempty"`
}

// =============================================================================
// SESSIONS & MEMBERSHIPS
// =============================================================================

// StartSessionRequest opens a session at a location. NightCutoffHour,
// when set, overrides the location's cutoff for this session.
type StartSessionRequest struct {
	LocationID      string `json:"location_id"`
	NightCutoffHour *int   `json:"night_cutoff_hour,omitempty"`
}

// SessionDTO represents a session in API responses.
type SessionDTO struct {
	ID              string  `json:"id"`
	LocationID      string  `json:"location_id"`
	StartTime       string  `json:"start_time"`
	EndTime         *string `json:"end_time,omitempty"`
	Ended           bool    `json:"ended"`
	NightCutoffHour *int    `json:"night_cutoff_hour,omitempty"`
}

// MembershipDTO is one presence row with its cost fields.
type MembershipDTO struct {
	ID            string  `json:"id"`
	ParticipantID string  `json:"participant_id"`
	JoinTime      string  `json:"join_time"`
	LeaveTime     *string `json:"leave_time,omitempty"`
	ComputedCost  *string `json:"computed_cost,omitempty"`
	AdjustedCost  *string `json:"adjusted_cost,omitempty"`
}

// SessionDetailDTO is a session with its membership rows.
type SessionDetailDTO struct {
	SessionDTO
	Memberships []MembershipDTO `json:"memberships"`
}

// CheckinRequest joins or leaves a participant.
type CheckinRequest struct {
	SessionID     string `json:"session_id"`
	ParticipantID string `json:"participant_id"`
}

// =============================================================================
// COSTS, SETTLEMENT, RECONCILIATION
// =============================================================================

// CostResultDTO is the engine's output for finalize/preview/recompute.
type CostResultDTO struct {
	SessionID  string            `json:"session_id"`
	GrandTotal string            `json:"grand_total"`
	Costs      map[string]string `json:"costs"` // membership id -> cost
}

// AdjustCostRequest sets an administrative cost override.
type AdjustCostRequest struct {
	Amount string `json:"amount"`
}

// RecomputeRequest allows recomputation past a final settlement.
type RecomputeRequest struct {
	Override bool `json:"override"`
}

// SettlementRequest records the amount actually collected.
type SettlementRequest struct {
	Collected string `json:"collected"`
	Final     bool   `json:"final"`
}

// ReconciliationDTO is the billed-versus-collected report.
type ReconciliationDTO struct {
	SessionID   string `json:"session_id"`
	BilledTotal string `json:"billed_total"`
	Collected   string `json:"collected"`
	Difference  string `json:"difference"`
}

// =============================================================================
// DASHBOARD & SCENARIOS
// =============================================================================

// DashboardDTO mirrors the original admin dashboard payload.
type DashboardDTO struct {
	TotalParticipants   int                       `json:"total_participants"`
	MaleCount           int                       `json:"male_count"`
	FemaleCount         int                       `json:"female_count"`
	TotalSpent          string                    `json:"total_spent"`
	AvgCost             string                    `json:"avg_cost"`
	TopParticipants     []TopParticipantDTO       `json:"top_participants"`
	SessionDates        []string                  `json:"session_dates"`
	DailyRevenueByMonth map[string][]DailyCostDTO `json:"daily_chart_by_month"`
	GroupSizeLabels     []string                  `json:"group_size_labels"`
	GroupSizeMale       []int                     `json:"group_size_male"`
	GroupSizeFemale     []int                     `json:"group_size_female"`
}

// TopParticipantDTO is one row of the top-participants chart.
type TopParticipantDTO struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// DailyCostDTO is one day's billed total.
type DailyCostDTO struct {
	Day   string `json:"day"`
	Total string `json:"total"`
}

// ScenarioDTO describes a loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a demo scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toSessionDTO(s billing.Session) SessionDTO {
	dto := SessionDTO{
		ID:         string(s.ID),
		LocationID: string(s.LocationID),
		StartTime:  s.StartTime.Format(time.RFC3339),
		Ended:      s.Ended(),
	}
	if s.EndTime != nil {
		end := s.EndTime.Format(time.RFC3339)
		dto.EndTime = &end
	}
	if s.CutoffOverride != nil {
		v := *s.CutoffOverride
		dto.NightCutoffHour = &v
	}
	return dto
}

func toMembershipDTO(r checkin.MembershipRecord) MembershipDTO {
	dto := MembershipDTO{
		ID:            string(r.ID),
		ParticipantID: string(r.ParticipantID),
		JoinTime:      r.JoinTime.Format(time.RFC3339),
	}
	if r.LeaveTime != nil {
		leave := r.LeaveTime.Format(time.RFC3339)
		dto.LeaveTime = &leave
	}
	if r.ComputedCost != nil {
		c := r.ComputedCost.StringFixed(billing.CurrencyPlaces)
		dto.ComputedCost = &c
	}
	if r.AdjustedCost != nil {
		a := r.AdjustedCost.StringFixed(billing.CurrencyPlaces)
		dto.AdjustedCost = &a
	}
	return dto
}

func toLocationDTO(loc billing.Location) LocationDTO {
	dto := LocationDTO{
		ID:              string(loc.ID),
		Name:            loc.Name,
		NightCutoffHour: loc.NightCutoffHour,
		Tiers:           make([]RateTierDTO, len(loc.Tiers)),
	}
	for i, t := range loc.Tiers {
		dto.Tiers[i] = RateTierDTO{
			GroupMin:  t.GroupMin,
			GroupMax:  t.GroupMax,
			DayRate:   t.DayRate.String(),
			NightRate: t.NightRate.String(),
		}
	}
	return dto
}

func toCostResultDTO(sessionID billing.SessionID, result billing.CostResult) CostResultDTO {
	dto := CostResultDTO{
		SessionID:  string(sessionID),
		GrandTotal: result.GrandTotal.StringFixed(billing.CurrencyPlaces),
		Costs:      make(map[string]string, len(result.Costs)),
	}
	for id, cost := range result.Costs {
		dto.Costs[string(id)] = cost.StringFixed(billing.CurrencyPlaces)
	}
	return dto
}

func toDashboardDTO(stats *sqlite.DashboardStats) DashboardDTO {
	dto := DashboardDTO{
		TotalParticipants:   stats.TotalParticipants,
		MaleCount:           stats.MaleCount,
		FemaleCount:         stats.FemaleCount,
		TotalSpent:          stats.TotalSpent.StringFixed(2),
		AvgCost:             stats.AvgCost.StringFixed(2),
		SessionDates:        stats.SessionDates,
		DailyRevenueByMonth: make(map[string][]DailyCostDTO, len(stats.DailyRevenueByMonth)),
	}
	for _, v := range stats.TopParticipants {
		dto.TopParticipants = append(dto.TopParticipants, TopParticipantDTO{Name: v.Name, Count: v.Sessions})
	}
	for month, days := range stats.DailyRevenueByMonth {
		for _, d := range days {
			dto.DailyRevenueByMonth[month] = append(dto.DailyRevenueByMonth[month],
				DailyCostDTO{Day: d.Day, Total: d.Total.StringFixed(2)})
		}
	}
	for _, b := range stats.GroupSizeBuckets {
		dto.GroupSizeLabels = append(dto.GroupSizeLabels, b.Label)
		dto.GroupSizeMale = append(dto.GroupSizeMale, b.Male)
		dto.GroupSizeFemale = append(dto.GroupSizeFemale, b.Female)
	}
	return dto
}

func parseTiers(dtos []RateTierDTO) ([]billing.RateTier, error) {
	tiers := make([]billing.RateTier, len(dtos))
	for i, t := range dtos {
		day, err := decimal.NewFromString(t.DayRate)
		if err != nil {
			return nil, err
		}
		night, err := decimal.NewFromString(t.NightRate)
		if err != nil {
			return nil, err
		}
		tiers[i] = billing.RateTier{
			GroupMin:  t.GroupMin,
			GroupMax:  t.GroupMax,
			DayRate:   day,
			NightRate: night,
		}
	}
	return tiers, nil
}
