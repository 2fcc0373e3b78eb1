package domain

import "context"

// RuleSource supplies the active rules visible to a customer: the customer's own
// rules plus global ones, in no particular order. The returned slice and rules are
// shared and must not be modified.
type RuleSource interface {
	ActiveRulesFor(ctx context.Context, customerID *int64) ([]*RoutingRule, error)
}

// ConnectionSource supplies gateway connection snapshots.
// Get returns ErrGatewayNotFound for unknown ids.
type ConnectionSource interface {
	Get(ctx context.Context, gatewayID int64) (*GatewayConnection, error)
	DefaultRoutes(ctx context.Context) ([]*GatewayConnection, error)
}

// CountryTable derives a country calling code from a destination address.
type CountryTable interface {
	LookupByPrefix(address string) (string, bool)
}

// DecisionSink accepts decision records for the audit log.
type DecisionSink interface {
	Append(ctx context.Context, decision RoutingDecision) error
}

// DecisionStore persists decision records and answers statistics queries.
type DecisionStore interface {
	InsertBatch(ctx context.Context, decisions []RoutingDecision) error
	CountOutcomes(ctx context.Context, filter StatisticsFilter) (OutcomeCounts, error)
}

// RuleRepository loads the persisted active rule set.
type RuleRepository interface {
	ListActiveRules(ctx context.Context) ([]*RoutingRule, error)
}

// GatewayRepository loads the persisted gateway connection registry.
type GatewayRepository interface {
	ListGateways(ctx context.Context) ([]*GatewayConnection, error)
}

// CountryRepository loads the active country calling codes.
type CountryRepository interface {
	ListCountryCodes(ctx context.Context) ([]string, error)
}

// HealthOverlay refreshes connection health fields from the health monitor's store.
// It returns updated copies and never modifies its input.
type HealthOverlay interface {
	Apply(ctx context.Context, gateways []*GatewayConnection) ([]*GatewayConnection, error)
}
