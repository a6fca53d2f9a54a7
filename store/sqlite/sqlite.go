/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements checkin.Store plus the location/participant administration
  queries the admin surface needs. In production, the same patterns apply
  to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  locations:     Room locations with a day/night cutoff
  rate_tiers:    Per-location group-size tiers (day/night hourly rates)
  participants:  Opaque participant records (name + demographics)
  sessions:      Timed room bookings; end_time immutable once set
  memberships:   Presence intervals; computed_cost and adjusted_cost live here
  settlements:   Session-level amount actually collected

INVARIANTS ENFORCED AT THE SCHEMA LEVEL:
  - idx_memberships_open: at most one open membership per participant
    per session (partial unique index on leave_time IS NULL)
  - SetSessionEnd only updates rows with end_time IS NULL; an end time
    can never be overwritten

MONEY COLUMNS:
  Costs and rates are stored as TEXT holding decimal strings, never REAL.
  decimal.Decimal round-trips exactly; floats don't.

WAL MODE:
  SQLite is opened with WAL for better concurrency: readers don't block,
  single writer at a time, better crash recovery.

USAGE:
  store, err := sqlite.New("./data/roomledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - checkin/types.go: Interface definition
  - store/memory: In-memory implementation for tests
  - dashboard.go: Admin aggregate queries
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/venueworks/roomledger/billing"
	"github.com/venueworks/roomledger/checkin"
)

// Store implements checkin.Store and the admin queries using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ checkin.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Locations
	CREATE TABLE IF NOT EXISTS locations (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		night_cutoff_hour INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Rate tiers (partition [1, max group size] per location)
	CREATE TABLE IF NOT EXISTS rate_tiers (
		location_id TEXT NOT NULL REFERENCES locations(id) ON DELETE CASCADE,
		group_min INTEGER NOT NULL,
		group_max INTEGER NOT NULL,
		day_rate TEXT NOT NULL,
		night_rate TEXT NOT NULL,
		PRIMARY KEY (location_id, group_min)
	);

	-- Participants (identity resolution is external; this is profile data)
	CREATE TABLE IF NOT EXISTS participants (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		gender TEXT,
		created_at TEXT NOT NULL
	);

	-- Sessions
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		location_id TEXT NOT NULL REFERENCES locations(id),
		start_time TEXT NOT NULL,
		end_time TEXT,
		cutoff_override INTEGER,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_location
		ON sessions(location_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_open
		ON sessions(start_time) WHERE end_time IS NULL;
	CREATE INDEX IF NOT EXISTS idx_sessions_start
		ON sessions(start_time);

	-- Memberships (one row per presence; rejoin creates a new row)
	CREATE TABLE IF NOT EXISTS memberships (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES sessions(id),
		participant_id TEXT NOT NULL,
		join_time TEXT NOT NULL,
		leave_time TEXT,
		computed_cost TEXT,
		adjusted_cost TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_memberships_session
		ON memberships(session_id);
	CREATE INDEX IF NOT EXISTS idx_memberships_participant
		ON memberships(participant_id);

	-- CRITICAL: at most one open membership per participant per session
	CREATE UNIQUE INDEX IF NOT EXISTS idx_memberships_open
		ON memberships(session_id, participant_id) WHERE leave_time IS NULL;

	-- Settlements (one per session; amount actually collected)
	CREATE TABLE IF NOT EXISTS settlements (
		session_id TEXT PRIMARY KEY REFERENCES sessions(id),
		collected TEXT NOT NULL,
		final BOOLEAN NOT NULL DEFAULT FALSE,
		recorded_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// LOCATIONS
// =============================================================================

// SaveLocation upserts a location and replaces its rate table atomically.
// The rate table is validated by the caller (billing.ValidateTiers).
func (s *Store) SaveLocation(ctx context.Context, loc billing.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = sqlTx.ExecContext(ctx, `
		INSERT INTO locations (id, name, night_cutoff_hour, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			night_cutoff_hour = excluded.night_cutoff_hour
	`, loc.ID, loc.Name, loc.NightCutoffHour, now)
	if err != nil {
		return fmt.Errorf("failed to save location: %w", err)
	}

	if _, err := sqlTx.ExecContext(ctx, `DELETE FROM rate_tiers WHERE location_id = ?`, loc.ID); err != nil {
		return fmt.Errorf("failed to clear rate tiers: %w", err)
	}
	for _, t := range loc.Tiers {
		_, err := sqlTx.ExecContext(ctx, `
			INSERT INTO rate_tiers (location_id, group_min, group_max, day_rate, night_rate)
			VALUES (?, ?, ?, ?, ?)
		`, loc.ID, t.GroupMin, t.GroupMax, t.DayRate.String(), t.NightRate.String())
		if err != nil {
			return fmt.Errorf("failed to save rate tier: %w", err)
		}
	}

	return sqlTx.Commit()
}

// GetLocation returns a location with its ordered rate table, or nil.
func (s *Store) GetLocation(ctx context.Context, id billing.LocationID) (*billing.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var loc billing.Location
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, night_cutoff_hour FROM locations WHERE id = ?`, id,
	).Scan(&loc.ID, &loc.Name, &loc.NightCutoffHour)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get location: %w", err)
	}

	tiers, err := s.loadTiers(ctx, id)
	if err != nil {
		return nil, err
	}
	loc.Tiers = tiers
	return &loc, nil
}

// ListLocations returns all locations with their rate tables.
func (s *Store) ListLocations(ctx context.Context) ([]billing.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, night_cutoff_hour FROM locations ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	defer rows.Close()

	var locations []billing.Location
	for rows.Next() {
		var loc billing.Location
		if err := rows.Scan(&loc.ID, &loc.Name, &loc.NightCutoffHour); err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		locations = append(locations, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range locations {
		tiers, err := s.loadTiers(ctx, locations[i].ID)
		if err != nil {
			return nil, err
		}
		locations[i].Tiers = tiers
	}
	return locations, nil
}

func (s *Store) loadTiers(ctx context.Context, id billing.LocationID) ([]billing.RateTier, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT group_min, group_max, day_rate, night_rate
		FROM rate_tiers
		WHERE location_id = ?
		ORDER BY group_min ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load rate tiers: %w", err)
	}
	defer rows.Close()

	var tiers []billing.RateTier
	for rows.Next() {
		var t billing.RateTier
		var day, night string
		if err := rows.Scan(&t.GroupMin, &t.GroupMax, &day, &night); err != nil {
			return nil, fmt.Errorf("failed to scan rate tier: %w", err)
		}
		t.DayRate = mustDecimal(day)
		t.NightRate = mustDecimal(night)
		tiers = append(tiers, t)
	}
	return tiers, rows.Err()
}

// =============================================================================
// PARTICIPANTS
// =============================================================================

// Participant is a stored participant profile. The billing core treats
// participant identity as an opaque key; this record serves the admin UI.
type Participant struct {
	ID        billing.ParticipantID
	Name      string
	Gender    string
	CreatedAt time.Time
}

// SaveParticipant upserts a participant.
func (s *Store) SaveParticipant(ctx context.Context, p Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO participants (id, name, gender, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			gender = excluded.gender
	`, p.ID, p.Name, nullString(p.Gender), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save participant: %w", err)
	}
	return nil
}

// GetParticipant returns a participant or nil.
func (s *Store) GetParticipant(ctx context.Context, id billing.ParticipantID) (*Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p Participant
	var gender sql.NullString
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, gender, created_at FROM participants WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &gender, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	p.Gender = gender.String
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &p, nil
}

// ListParticipants returns all participants ordered by name.
func (s *Store) ListParticipants(ctx context.Context) ([]Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, gender, created_at FROM participants ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	var participants []Participant
	for rows.Next() {
		var p Participant
		var gender sql.NullString
		var createdAt string
		if err := rows.Scan(&p.ID, &p.Name, &gender, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		p.Gender = gender.String
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

// =============================================================================
// SESSIONS (checkin.Store)
// =============================================================================

// CreateSession inserts a new session.
func (s *Store) CreateSession(ctx context.Context, session billing.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, location_id, start_time, end_time, cutoff_override, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		session.ID, session.LocationID,
		session.StartTime.UTC().Format(time.RFC3339Nano),
		nullTime(session.EndTime),
		nullInt(session.CutoffOverride),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetSession returns a session or nil.
func (s *Store) GetSession(ctx context.Context, id billing.SessionID) (*billing.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, location_id, start_time, end_time, cutoff_override FROM sessions WHERE id = ?`, id)
	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

// SetSessionEnd sets end_time once. A session whose end_time is already
// set is never updated (immutability).
func (s *Store) SetSessionEnd(ctx context.Context, id billing.SessionID, end time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET end_time = ? WHERE id = ? AND end_time IS NULL`,
		end.UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists int
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM sessions WHERE id = ?`, id).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return checkin.ErrSessionNotFound
		}
		return checkin.ErrSessionEnded
	}
	return nil
}

// ListOpenSessions returns sessions without an end time, oldest first.
func (s *Store) ListOpenSessions(ctx context.Context) ([]billing.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, location_id, start_time, end_time, cutoff_override
		FROM sessions
		WHERE end_time IS NULL
		ORDER BY start_time ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list open sessions: %w", err)
	}
	defer rows.Close()
	return collectSessions(rows)
}

// ListSessions returns the most recent sessions, newest first.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]billing.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, location_id, start_time, end_time, cutoff_override
		FROM sessions
		ORDER BY start_time DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()
	return collectSessions(rows)
}

// =============================================================================
// MEMBERSHIPS (checkin.Store)
// =============================================================================

// OpenMembership inserts a new open membership. The partial unique index
// rejects a second open membership for the same participant and session.
func (s *Store) OpenMembership(ctx context.Context, m billing.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memberships (id, session_id, participant_id, join_time, leave_time, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		m.ID, m.SessionID, m.ParticipantID,
		m.JoinTime.UTC().Format(time.RFC3339Nano),
		nullTime(m.LeaveTime),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return checkin.ErrAlreadyPresent
		}
		return fmt.Errorf("failed to open membership: %w", err)
	}
	return nil
}

// CloseMembership sets leave_time on one membership.
func (s *Store) CloseMembership(ctx context.Context, id billing.MembershipID, leave time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE memberships SET leave_time = ? WHERE id = ?`,
		leave.UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("failed to close membership: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return checkin.ErrMembershipNotFound
	}
	return nil
}

// CloseOpenMemberships force-closes every open membership of a session.
func (s *Store) CloseOpenMemberships(ctx context.Context, sessionID billing.SessionID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE memberships SET leave_time = ? WHERE session_id = ? AND leave_time IS NULL`,
		at.UTC().Format(time.RFC3339Nano), sessionID)
	if err != nil {
		return fmt.Errorf("failed to close open memberships: %w", err)
	}
	return nil
}

// FindOpenMembership returns the participant's open membership or nil.
func (s *Store) FindOpenMembership(ctx context.Context, sessionID billing.SessionID, participantID billing.ParticipantID) (*billing.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, participant_id, join_time, leave_time
		FROM memberships
		WHERE session_id = ? AND participant_id = ? AND leave_time IS NULL
	`, sessionID, participantID)

	m, err := scanMembership(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ListMemberships returns all membership rows of a session with their
// cost fields, ordered by join time.
func (s *Store) ListMemberships(ctx context.Context, sessionID billing.SessionID) ([]checkin.MembershipRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, participant_id, join_time, leave_time, computed_cost, adjusted_cost
		FROM memberships
		WHERE session_id = ?
		ORDER BY join_time ASC, id ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var records []checkin.MembershipRecord
	for rows.Next() {
		var r checkin.MembershipRecord
		var join string
		var leave, computed, adjusted sql.NullString
		err := rows.Scan(&r.ID, &r.SessionID, &r.ParticipantID, &join, &leave, &computed, &adjusted)
		if err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		r.JoinTime, _ = time.Parse(time.RFC3339Nano, join)
		r.LeaveTime = parseNullTime(leave)
		r.ComputedCost = parseNullDecimal(computed)
		r.AdjustedCost = parseNullDecimal(adjusted)
		records = append(records, r)
	}
	return records, rows.Err()
}

// =============================================================================
// COSTS & SETTLEMENT (checkin.Store)
// =============================================================================

// SaveComputedCosts replaces the session's computed costs atomically.
// Stale costs from a previous run are cleared first, so a recompute is a
// full replacement, never a blend.
func (s *Store) SaveComputedCosts(ctx context.Context, sessionID billing.SessionID, costs map[billing.MembershipID]decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if _, err := sqlTx.ExecContext(ctx,
		`UPDATE memberships SET computed_cost = NULL WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to clear computed costs: %w", err)
	}
	for id, cost := range costs {
		res, err := sqlTx.ExecContext(ctx,
			`UPDATE memberships SET computed_cost = ? WHERE id = ? AND session_id = ?`,
			cost.String(), id, sessionID)
		if err != nil {
			return fmt.Errorf("failed to save computed cost: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("cost for unknown membership %s in session %s", id, sessionID)
		}
	}

	return sqlTx.Commit()
}

// SetAdjustedCost records an admin override. computed_cost is untouched.
func (s *Store) SetAdjustedCost(ctx context.Context, id billing.MembershipID, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE memberships SET adjusted_cost = ? WHERE id = ?`,
		amount.String(), id)
	if err != nil {
		return fmt.Errorf("failed to set adjusted cost: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return checkin.ErrMembershipNotFound
	}
	return nil
}

// SaveSettlement upserts the session's settlement record.
func (s *Store) SaveSettlement(ctx context.Context, record billing.SettlementRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settlements (session_id, collected, final, recorded_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			collected = excluded.collected,
			final = excluded.final,
			recorded_at = excluded.recorded_at
	`, record.SessionID, record.Collected.String(), record.Final, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save settlement: %w", err)
	}
	return nil
}

// GetSettlement returns the session's settlement record or nil.
func (s *Store) GetSettlement(ctx context.Context, sessionID billing.SessionID) (*billing.SettlementRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var record billing.SettlementRecord
	var collected string
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, collected, final FROM settlements WHERE session_id = ?`, sessionID,
	).Scan(&record.SessionID, &collected, &record.Final)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settlement: %w", err)
	}
	record.Collected = mustDecimal(collected)
	return &record, nil
}

// =============================================================================
// MAINTENANCE
// =============================================================================

// Reset clears all data. Dev/demo only.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"settlements", "memberships", "sessions", "rate_tiers", "participants", "locations"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// SCAN HELPERS
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*billing.Session, error) {
	var session billing.Session
	var start string
	var end sql.NullString
	var cutoff sql.NullInt64
	if err := row.Scan(&session.ID, &session.LocationID, &start, &end, &cutoff); err != nil {
		return nil, err
	}
	session.StartTime, _ = time.Parse(time.RFC3339Nano, start)
	session.EndTime = parseNullTime(end)
	if cutoff.Valid {
		v := int(cutoff.Int64)
		session.CutoffOverride = &v
	}
	return &session, nil
}

func collectSessions(rows *sql.Rows) ([]billing.Session, error) {
	var sessions []billing.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *session)
	}
	return sessions, rows.Err()
}

func scanMembership(row rowScanner) (*billing.Membership, error) {
	var m billing.Membership
	var join string
	var leave sql.NullString
	if err := row.Scan(&m.ID, &m.SessionID, &m.ParticipantID, &join, &leave); err != nil {
		return nil, err
	}
	m.JoinTime, _ = time.Parse(time.RFC3339Nano, join)
	m.LeaveTime = parseNullTime(leave)
	return &m, nil
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func parseNullDecimal(s sql.NullString) *decimal.Decimal {
	if !s.Valid || s.String == "" {
		return nil
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return nil
	}
	return &d
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
