package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aradsms/routing_engine/internal/routing_service/domain"
)

type MockRuleRepository struct {
	mock.Mock
}

func (m *MockRuleRepository) ListActiveRules(ctx context.Context) ([]*domain.RoutingRule, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.RoutingRule), args.Error(1)
}

type MockGatewayRepository struct {
	mock.Mock
}

func (m *MockGatewayRepository) ListGateways(ctx context.Context) ([]*domain.GatewayConnection, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.GatewayConnection), args.Error(1)
}

type MockCountryRepository struct {
	mock.Mock
}

func (m *MockCountryRepository) ListCountryCodes(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockHealthOverlay struct {
	mock.Mock
}

func (m *MockHealthOverlay) Apply(ctx context.Context, gateways []*domain.GatewayConnection) ([]*domain.GatewayConnection, error) {
	args := m.Called(ctx, gateways)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.GatewayConnection), args.Error(1)
}

func TestSnapshot_IndexesRulesAndGateways(t *testing.T) {
	customer := int64(7)
	own := prefixRule(1, "OWN", 1, "98", 1)
	own.CustomerID = &customer
	inactive := prefixRule(3, "OFF", 1, "98", 1)
	inactive.IsActive = false
	def := connected(9, "DEFAULT")
	def.IsDefaultRoute = true

	snap := NewSnapshot(
		[]*domain.RoutingRule{prefixRule(2, "GLOBAL", 5, "98", 1), own, inactive, nil},
		[]*domain.GatewayConnection{connected(1, "GW_A"), def, nil},
		domain.NewCountryCodes("98"),
		ruleEpoch,
	)

	assert.Equal(t, 2, snap.RuleCount())
	assert.Equal(t, 2, snap.GatewayCount())
	assert.Equal(t, 1, snap.CountryCount())
	assert.Equal(t, ruleEpoch, snap.LoadedAt())

	forCustomer := snap.RulesFor(&customer)
	require.Len(t, forCustomer, 2)
	assert.Equal(t, "OWN", forCustomer[0].Code)
	assert.Equal(t, "GLOBAL", forCustomer[1].Code)
	assert.Len(t, snap.RulesFor(nil), 1)

	store := NewSnapshotStore()
	assert.False(t, store.Ready())
	assert.Nil(t, store.Current())
	_, err := store.Get(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrSnapshotNotReady)
	_, found := store.LookupByPrefix("98912")
	assert.False(t, found)

	store.Store(snap)
	assert.True(t, store.Ready())
	conn, err := store.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "GW_A", conn.Code)
	_, err = store.Get(context.Background(), 404)
	assert.ErrorIs(t, err, domain.ErrGatewayNotFound)
	defaults, err := store.DefaultRoutes(context.Background())
	require.NoError(t, err)
	require.Len(t, defaults, 1)
	assert.Equal(t, int64(9), defaults[0].ID)
	defaults[0] = nil
	again, err := store.DefaultRoutes(context.Background())
	require.NoError(t, err)
	require.NotNil(t, again[0], "callers get their own copy of the default routes")
	assert.Equal(t, int64(9), again[0].ID)
	code, found := store.LookupByPrefix("98912")
	assert.True(t, found)
	assert.Equal(t, "98", code)
}

func newRefresherMocks() (*MockRuleRepository, *MockGatewayRepository, *MockCountryRepository) {
	return new(MockRuleRepository), new(MockGatewayRepository), new(MockCountryRepository)
}

func TestRefresher_Refresh(t *testing.T) {
	rules, gateways, countries := newRefresherMocks()
	health := new(MockHealthOverlay)
	stored := []*domain.GatewayConnection{connected(1, "GW_A")}
	overlaid := []*domain.GatewayConnection{disconnected(1, "GW_A")}

	rules.On("ListActiveRules", mock.Anything).Return([]*domain.RoutingRule{prefixRule(1, "IR", 1, "98", 1)}, nil)
	gateways.On("ListGateways", mock.Anything).Return(stored, nil)
	health.On("Apply", mock.Anything, stored).Return(overlaid, nil)
	countries.On("ListCountryCodes", mock.Anything).Return([]string{"98"}, nil)

	store := NewSnapshotStore()
	refresher := NewRefresher(rules, gateways, countries, health, store, testLogger())
	readyCalls := 0
	refresher.OnReady(func() { readyCalls++ })

	require.NoError(t, refresher.Refresh(context.Background()))
	require.NoError(t, refresher.Refresh(context.Background()))

	assert.Equal(t, 1, readyCalls)
	conn, err := store.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDisconnected, conn.Status, "health overlay wins over stored status")
	assert.Equal(t, 1, store.Current().RuleCount())
	rules.AssertExpectations(t)
	health.AssertExpectations(t)
}

func TestRefresher_FailureKeepsPreviousSnapshot(t *testing.T) {
	rules, gateways, countries := newRefresherMocks()
	rules.On("ListActiveRules", mock.Anything).Return([]*domain.RoutingRule{prefixRule(1, "IR", 1, "98", 1)}, nil).Once()
	rules.On("ListActiveRules", mock.Anything).Return(nil, errors.New("connection reset")).Once()
	gateways.On("ListGateways", mock.Anything).Return([]*domain.GatewayConnection{connected(1, "GW_A")}, nil)
	countries.On("ListCountryCodes", mock.Anything).Return([]string{"98"}, nil)

	store := NewSnapshotStore()
	refresher := NewRefresher(rules, gateways, countries, nil, store, testLogger())

	require.NoError(t, refresher.Refresh(context.Background()))
	first := store.Current()

	err := refresher.Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Same(t, first, store.Current())
}

func TestRefresher_HealthOverlayFailureUsesStoredStatus(t *testing.T) {
	rules, gateways, countries := newRefresherMocks()
	health := new(MockHealthOverlay)
	rules.On("ListActiveRules", mock.Anything).Return([]*domain.RoutingRule{}, nil)
	gateways.On("ListGateways", mock.Anything).Return([]*domain.GatewayConnection{connected(1, "GW_A")}, nil)
	health.On("Apply", mock.Anything, mock.Anything).Return(nil, errors.New("redis timeout"))
	countries.On("ListCountryCodes", mock.Anything).Return([]string{}, nil)

	store := NewSnapshotStore()
	refresher := NewRefresher(rules, gateways, countries, health, store, testLogger())

	require.NoError(t, refresher.Refresh(context.Background()))
	conn, err := store.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConnected, conn.Status)

	// an empty country table falls back to the built-in calling codes
	code, ok := store.LookupByPrefix("962788123456")
	assert.True(t, ok)
	assert.Equal(t, "962", code)
}

func TestRefresher_StartRejectsBadSchedule(t *testing.T) {
	rules, gateways, countries := newRefresherMocks()
	rules.On("ListActiveRules", mock.Anything).Return([]*domain.RoutingRule{}, nil)
	gateways.On("ListGateways", mock.Anything).Return([]*domain.GatewayConnection{}, nil)
	countries.On("ListCountryCodes", mock.Anything).Return([]string{"98"}, nil)

	store := NewSnapshotStore()
	refresher := NewRefresher(rules, gateways, countries, nil, store, testLogger())

	err := refresher.Start(context.Background(), "every now and then")
	assert.Error(t, err)
	assert.True(t, store.Ready(), "the initial refresh runs before scheduling")
	refresher.Stop()
}

func TestRefresher_StartAndStop(t *testing.T) {
	rules, gateways, countries := newRefresherMocks()
	rules.On("ListActiveRules", mock.Anything).Return([]*domain.RoutingRule{}, nil)
	gateways.On("ListGateways", mock.Anything).Return([]*domain.GatewayConnection{}, nil)
	countries.On("ListCountryCodes", mock.Anything).Return([]string{"98"}, nil)

	refresher := NewRefresher(rules, gateways, countries, nil, NewSnapshotStore(), testLogger())
	ready := make(chan struct{})
	refresher.OnReady(func() { close(ready) })

	require.NoError(t, refresher.Start(context.Background(), "@every 1h"))
	<-ready
	refresher.Stop()
}
