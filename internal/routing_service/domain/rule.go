package domain

import (
	"sort"
	"time"
)

// RoutingRule maps a message condition to a target gateway connection.
// Lower Priority values are evaluated first; ties go to the rule created first.
type RoutingRule struct {
	ID         int64     `json:"rule_id"`
	Code       string    `json:"rule_code"`
	Name       string    `json:"rule_name"`
	CustomerID *int64    `json:"customer_id,omitempty"` // nil for global rules
	Condition  Condition `json:"-"`
	Priority   int       `json:"priority"`

	TargetGatewayID   int64  `json:"smsc_id"`
	FallbackGatewayID *int64 `json:"fallback_smsc_id,omitempty"`

	IsActive bool        `json:"is_active"`
	Window   *TimeWindow `json:"-"`

	// LoadBalance, when non-empty, replaces TargetGatewayID as the primary candidate set.
	LoadBalance       []WeightedGateway `json:"load_balance,omitempty"`
	MaxCostPerMessage *float64          `json:"max_cost_per_sms,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// IsGlobal reports whether the rule applies to every customer.
func (r *RoutingRule) IsGlobal() bool {
	return r.CustomerID == nil
}

// WeightedGateway is one member of a rule's load-balance group.
type WeightedGateway struct {
	GatewayID int64 `json:"smsc_id"`
	Weight    int   `json:"weight"`
}

// WithinCost reports whether a gateway charging cost per message respects the rule's ceiling.
func (r *RoutingRule) WithinCost(cost float64) bool {
	return r.MaxCostPerMessage == nil || cost <= *r.MaxCostPerMessage
}

// SortRules returns a copy of rules in evaluation order: ascending priority, then
// creation time, then id. The input slice is left untouched.
func SortRules(rules []*RoutingRule) []*RoutingRule {
	ordered := make([]*RoutingRule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return ordered
}
