package app

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/aradsms/routing_engine/internal/routing_service/domain"
)

// Snapshot is an immutable view of rules, gateways and country codes at one point in
// time. Nothing reachable from a Snapshot is modified after NewSnapshot returns.
type Snapshot struct {
	globalRules   []*domain.RoutingRule
	customerRules map[int64][]*domain.RoutingRule
	gateways      map[int64]*domain.GatewayConnection
	defaults      []*domain.GatewayConnection
	countries     domain.CountryCodes
	ruleCount     int
	loadedAt      time.Time
}

// NewSnapshot indexes the given data. Inactive rules are dropped.
func NewSnapshot(rules []*domain.RoutingRule, gateways []*domain.GatewayConnection, countries domain.CountryCodes, loadedAt time.Time) *Snapshot {
	s := &Snapshot{
		customerRules: make(map[int64][]*domain.RoutingRule),
		gateways:      make(map[int64]*domain.GatewayConnection, len(gateways)),
		countries:     countries,
		loadedAt:      loadedAt,
	}
	for _, r := range rules {
		if r == nil || !r.IsActive {
			continue
		}
		s.ruleCount++
		if r.CustomerID == nil {
			s.globalRules = append(s.globalRules, r)
			continue
		}
		s.customerRules[*r.CustomerID] = append(s.customerRules[*r.CustomerID], r)
	}
	for _, g := range gateways {
		if g == nil {
			continue
		}
		s.gateways[g.ID] = g
		if g.IsDefaultRoute {
			s.defaults = append(s.defaults, g)
		}
	}
	return s
}

// RulesFor returns the customer's rules followed by global rules in a new slice.
func (s *Snapshot) RulesFor(customerID *int64) []*domain.RoutingRule {
	var own []*domain.RoutingRule
	if customerID != nil {
		own = s.customerRules[*customerID]
	}
	merged := make([]*domain.RoutingRule, 0, len(own)+len(s.globalRules))
	merged = append(merged, own...)
	return append(merged, s.globalRules...)
}

func (s *Snapshot) RuleCount() int      { return s.ruleCount }
func (s *Snapshot) GatewayCount() int   { return len(s.gateways) }
func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }
func (s *Snapshot) CountryCount() int   { return len(s.countries) }

// SnapshotStore publishes the current Snapshot to concurrent readers. Readers always
// see a complete snapshot; a refresh swaps the pointer and never edits in place.
// It serves as the engine's RuleSource, ConnectionSource and CountryTable.
type SnapshotStore struct {
	current atomic.Pointer[Snapshot]
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{}
}

// Store replaces the current snapshot.
func (s *SnapshotStore) Store(snap *Snapshot) {
	s.current.Store(snap)
}

// Current returns the current snapshot, or nil before the first load.
func (s *SnapshotStore) Current() *Snapshot {
	return s.current.Load()
}

func (s *SnapshotStore) Ready() bool {
	return s.current.Load() != nil
}

func (s *SnapshotStore) ActiveRulesFor(_ context.Context, customerID *int64) ([]*domain.RoutingRule, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, domain.ErrSnapshotNotReady
	}
	return snap.RulesFor(customerID), nil
}

func (s *SnapshotStore) Get(_ context.Context, gatewayID int64) (*domain.GatewayConnection, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, domain.ErrSnapshotNotReady
	}
	conn, ok := snap.gateways[gatewayID]
	if !ok {
		return nil, domain.ErrGatewayNotFound
	}
	return conn, nil
}

func (s *SnapshotStore) DefaultRoutes(_ context.Context) ([]*domain.GatewayConnection, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, domain.ErrSnapshotNotReady
	}
	return append([]*domain.GatewayConnection(nil), snap.defaults...), nil
}

func (s *SnapshotStore) LookupByPrefix(address string) (string, bool) {
	snap := s.current.Load()
	if snap == nil {
		return "", false
	}
	return snap.countries.LookupByPrefix(address)
}
