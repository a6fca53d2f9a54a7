/*
dashboard.go - Admin dashboard aggregate queries

PURPOSE:
  Chart-ready aggregates for the admin dashboard: participant counts,
  spend totals, top participants, a daily revenue trend grouped by month,
  and group-size distribution bucketed by gender.

BILLED COST:
  Every spend aggregate uses COALESCE(adjusted_cost, computed_cost): the
  admin override supersedes the computed value for billing, and the
  computed value is preserved for audit.

These are thin read-only queries with no invariants of their own; the
billing engine never touches them.
*/
package sqlite

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DASHBOARD TYPES
// =============================================================================

// DashboardStats is the admin dashboard payload.
type DashboardStats struct {
	TotalParticipants int
	MaleCount         int
	FemaleCount       int
	TotalSpent        decimal.Decimal
	AvgCost           decimal.Decimal
	TopParticipants   []ParticipantVisits
	SessionDates      []string
	// DailyRevenueByMonth groups daily totals under a "YYYY-MM" key.
	DailyRevenueByMonth map[string][]DailyRevenue
	GroupSizeBuckets    []GroupSizeBucket
}

// ParticipantVisits counts how many sessions a participant attended.
type ParticipantVisits struct {
	Name     string
	Sessions int
}

// DailyRevenue is one day's billed total.
type DailyRevenue struct {
	Day   string // YYYY-MM-DD
	Total decimal.Decimal
}

// GroupSizeBucket is one group-size range with per-gender attendance.
type GroupSizeBucket struct {
	Label  string
	Male   int
	Female int
}

// groupSizeBuckets are the dashboard's fixed group-size ranges.
var groupSizeBuckets = []struct {
	label    string
	min, max int
}{
	{"1-3", 1, 3},
	{"4-5", 4, 5},
	{"6-8", 6, 8},
	{"9-10", 9, 10},
	{"11-15", 11, 15},
	{"16-20", 16, 20},
}

// =============================================================================
// DASHBOARD QUERY
// =============================================================================

// DashboardStats computes all dashboard aggregates in one pass.
func (s *Store) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &DashboardStats{
		TotalSpent:          decimal.Zero,
		AvgCost:             decimal.Zero,
		DailyRevenueByMonth: make(map[string][]DailyRevenue),
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE gender = 'Male'),
		        COUNT(*) FILTER (WHERE gender = 'Female')
		 FROM participants`,
	).Scan(&stats.TotalParticipants, &stats.MaleCount, &stats.FemaleCount); err != nil {
		return nil, fmt.Errorf("failed to count participants: %w", err)
	}

	// Spend totals over billed cost (adjusted overrides computed).
	var totalSpent, avgCost sqlDecimal
	if err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CAST(COALESCE(adjusted_cost, computed_cost) AS REAL)), 0),
		       COALESCE(AVG(CAST(COALESCE(adjusted_cost, computed_cost) AS REAL)), 0)
		FROM memberships
		WHERE COALESCE(adjusted_cost, computed_cost) IS NOT NULL
	`).Scan(&totalSpent, &avgCost); err != nil {
		return nil, fmt.Errorf("failed to sum spend: %w", err)
	}
	stats.TotalSpent = totalSpent.Decimal.Round(2)
	stats.AvgCost = avgCost.Decimal.Round(2)

	if err := s.topParticipants(ctx, stats); err != nil {
		return nil, err
	}
	if err := s.dailyRevenue(ctx, stats); err != nil {
		return nil, err
	}
	if err := s.sessionDates(ctx, stats); err != nil {
		return nil, err
	}
	if err := s.groupSizes(ctx, stats); err != nil {
		return nil, err
	}

	return stats, nil
}

func (s *Store) topParticipants(ctx context.Context, stats *DashboardStats) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.name, COUNT(DISTINCT m.session_id) AS count
		FROM participants p
		JOIN memberships m ON p.id = m.participant_id
		GROUP BY p.id, p.name
		ORDER BY count DESC, p.name ASC
		LIMIT 10
	`)
	if err != nil {
		return fmt.Errorf("failed to query top participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var v ParticipantVisits
		if err := rows.Scan(&v.Name, &v.Sessions); err != nil {
			return fmt.Errorf("failed to scan top participant: %w", err)
		}
		stats.TopParticipants = append(stats.TopParticipants, v)
	}
	return rows.Err()
}

func (s *Store) dailyRevenue(ctx context.Context, stats *DashboardStats) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT strftime('%Y-%m-%d', s.start_time) AS day,
		       strftime('%Y-%m', s.start_time) AS month,
		       SUM(CAST(COALESCE(m.adjusted_cost, m.computed_cost) AS REAL)) AS total
		FROM memberships m
		JOIN sessions s ON m.session_id = s.id
		WHERE COALESCE(m.adjusted_cost, m.computed_cost) IS NOT NULL
		GROUP BY day, month
		ORDER BY day ASC
	`)
	if err != nil {
		return fmt.Errorf("failed to query daily revenue: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var day, month string
		var total sqlDecimal
		if err := rows.Scan(&day, &month, &total); err != nil {
			return fmt.Errorf("failed to scan daily revenue: %w", err)
		}
		stats.DailyRevenueByMonth[month] = append(stats.DailyRevenueByMonth[month],
			DailyRevenue{Day: day, Total: total.Decimal.Round(2)})
	}
	return rows.Err()
}

func (s *Store) sessionDates(ctx context.Context, stats *DashboardStats) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT strftime('%Y-%m-%d', start_time) AS session_date
		FROM sessions
		ORDER BY session_date ASC
	`)
	if err != nil {
		return fmt.Errorf("failed to query session dates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var date string
		if err := rows.Scan(&date); err != nil {
			return fmt.Errorf("failed to scan session date: %w", err)
		}
		stats.SessionDates = append(stats.SessionDates, date)
	}
	return rows.Err()
}

func (s *Store) groupSizes(ctx context.Context, stats *DashboardStats) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.session_id,
		       COUNT(DISTINCT m.participant_id) FILTER (WHERE p.gender = 'Male') AS male_count,
		       COUNT(DISTINCT m.participant_id) FILTER (WHERE p.gender = 'Female') AS female_count
		FROM memberships m
		JOIN participants p ON m.participant_id = p.id
		GROUP BY m.session_id
	`)
	if err != nil {
		return fmt.Errorf("failed to query group sizes: %w", err)
	}
	defer rows.Close()

	buckets := make([]GroupSizeBucket, len(groupSizeBuckets))
	for i, b := range groupSizeBuckets {
		buckets[i] = GroupSizeBucket{Label: b.label}
	}

	for rows.Next() {
		var sessionID string
		var male, female int
		if err := rows.Scan(&sessionID, &male, &female); err != nil {
			return fmt.Errorf("failed to scan group size: %w", err)
		}
		total := male + female
		for i, b := range groupSizeBuckets {
			if total >= b.min && total <= b.max {
				buckets[i].Male += male
				buckets[i].Female += female
				break
			}
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	stats.GroupSizeBuckets = buckets
	return nil
}

// sqlDecimal scans a SQLite numeric (REAL or TEXT) into a decimal.
type sqlDecimal struct {
	Decimal decimal.Decimal
}

func (d *sqlDecimal) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		d.Decimal = decimal.Zero
	case float64:
		d.Decimal = decimal.NewFromFloat(v)
	case int64:
		d.Decimal = decimal.NewFromInt(v)
	case string:
		d.Decimal = mustDecimal(v)
	case []byte:
		d.Decimal = mustDecimal(string(v))
	default:
		return fmt.Errorf("cannot scan %T into decimal", value)
	}
	return nil
}
