// Package memory provides an in-memory checkin.Store for tests and dev.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/venueworks/roomledger/billing"
	"github.com/venueworks/roomledger/checkin"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Store struct {
	mu          sync.RWMutex
	locations   map[billing.LocationID]billing.Location
	sessions    map[billing.SessionID]billing.Session
	memberships map[billing.MembershipID]checkin.MembershipRecord
	settlements map[billing.SessionID]billing.SettlementRecord
}

var _ checkin.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		locations:   make(map[billing.LocationID]billing.Location),
		sessions:    make(map[billing.SessionID]billing.Session),
		memberships: make(map[billing.MembershipID]checkin.MembershipRecord),
		settlements: make(map[billing.SessionID]billing.SettlementRecord),
	}
}

// =============================================================================
// LOCATIONS
// =============================================================================

// SaveLocation upserts a location with its rate table.
func (s *Store) SaveLocation(_ context.Context, loc billing.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locations[loc.ID] = loc
	return nil
}

func (s *Store) GetLocation(_ context.Context, id billing.LocationID) (*billing.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	loc, ok := s.locations[id]
	if !ok {
		return nil, nil
	}
	return &loc, nil
}

// =============================================================================
// SESSIONS
// =============================================================================

func (s *Store) CreateSession(_ context.Context, session billing.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.sessions[session.ID]; dup {
		return fmt.Errorf("session %s already exists", session.ID)
	}
	s.sessions[session.ID] = session
	return nil
}

func (s *Store) GetSession(_ context.Context, id billing.SessionID) (*billing.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	return &session, nil
}

func (s *Store) SetSessionEnd(_ context.Context, id billing.SessionID, end time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return checkin.ErrSessionNotFound
	}
	// End times are immutable once set.
	if session.EndTime != nil {
		return checkin.ErrSessionEnded
	}
	session.EndTime = &end
	s.sessions[id] = session
	return nil
}

func (s *Store) ListOpenSessions(_ context.Context) ([]billing.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var open []billing.Session
	for _, session := range s.sessions {
		if session.EndTime == nil {
			open = append(open, session)
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i].StartTime.Before(open[j].StartTime) })
	return open, nil
}

// =============================================================================
// MEMBERSHIPS
// =============================================================================

func (s *Store) OpenMembership(_ context.Context, m billing.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.memberships[m.ID]; dup {
		return fmt.Errorf("membership %s already exists", m.ID)
	}
	s.memberships[m.ID] = checkin.MembershipRecord{Membership: m}
	return nil
}

func (s *Store) CloseMembership(_ context.Context, id billing.MembershipID, leave time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.memberships[id]
	if !ok {
		return checkin.ErrMembershipNotFound
	}
	record.LeaveTime = &leave
	s.memberships[id] = record
	return nil
}

func (s *Store) CloseOpenMemberships(_ context.Context, sessionID billing.SessionID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, record := range s.memberships {
		if record.SessionID == sessionID && record.LeaveTime == nil {
			leave := at
			record.LeaveTime = &leave
			s.memberships[id] = record
		}
	}
	return nil
}

func (s *Store) FindOpenMembership(_ context.Context, sessionID billing.SessionID, participantID billing.ParticipantID) (*billing.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, record := range s.memberships {
		if record.SessionID == sessionID && record.ParticipantID == participantID && record.LeaveTime == nil {
			m := record.Membership
			return &m, nil
		}
	}
	return nil, nil
}

func (s *Store) ListMemberships(_ context.Context, sessionID billing.SessionID) ([]checkin.MembershipRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var records []checkin.MembershipRecord
	for _, record := range s.memberships {
		if record.SessionID == sessionID {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].JoinTime.Equal(records[j].JoinTime) {
			return records[i].JoinTime.Before(records[j].JoinTime)
		}
		return records[i].ID < records[j].ID
	})
	return records, nil
}

// =============================================================================
// COSTS & SETTLEMENT
// =============================================================================

func (s *Store) SaveComputedCosts(_ context.Context, sessionID billing.SessionID, costs map[billing.MembershipID]decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Recomputation replaces, never blends: clear the session's costs first
	// so memberships that billed nothing this run don't keep stale values.
	for id, record := range s.memberships {
		if record.SessionID == sessionID {
			record.ComputedCost = nil
			s.memberships[id] = record
		}
	}
	for id, cost := range costs {
		record, ok := s.memberships[id]
		if !ok || record.SessionID != sessionID {
			return fmt.Errorf("cost for unknown membership %s in session %s", id, sessionID)
		}
		c := cost
		record.ComputedCost = &c
		s.memberships[id] = record
	}
	return nil
}

func (s *Store) SetAdjustedCost(_ context.Context, id billing.MembershipID, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.memberships[id]
	if !ok {
		return checkin.ErrMembershipNotFound
	}
	record.AdjustedCost = &amount
	s.memberships[id] = record
	return nil
}

func (s *Store) SaveSettlement(_ context.Context, record billing.SettlementRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settlements[record.SessionID] = record
	return nil
}

func (s *Store) GetSettlement(_ context.Context, sessionID billing.SessionID) (*billing.SettlementRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.settlements[sessionID]
	if !ok {
		return nil, nil
	}
	return &record, nil
}
