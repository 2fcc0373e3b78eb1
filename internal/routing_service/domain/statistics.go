package domain

import (
	"math"
	"time"
)

// StatisticsFilter narrows the decisions that statistics are computed over.
// Zero-valued fields do not filter.
type StatisticsFilter struct {
	CustomerID *int64
	GatewayID  *int64
	CampaignID string
	From       *time.Time
	To         *time.Time
}

// Includes reports whether d passes the filter. From and To are inclusive.
func (f StatisticsFilter) Includes(d RoutingDecision) bool {
	if f.CustomerID != nil && (d.CustomerID == nil || *d.CustomerID != *f.CustomerID) {
		return false
	}
	if f.GatewayID != nil && (d.GatewayID == nil || *d.GatewayID != *f.GatewayID) {
		return false
	}
	if f.CampaignID != "" && d.CampaignID != f.CampaignID {
		return false
	}
	if f.From != nil && d.DecidedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && d.DecidedAt.After(*f.To) {
		return false
	}
	return true
}

// OutcomeCounts is the raw tally that statistics are derived from.
type OutcomeCounts struct {
	Total             int64
	Success           int64
	Fallback          int64
	Failed            int64
	NoRoute           int64
	AvgDecisionTimeMs float64
}

// Statistics summarises recorded routing decisions.
type Statistics struct {
	Total             int64   `json:"total_routes"`
	Successful        int64   `json:"successful"`
	Fallback          int64   `json:"fallback_used"`
	Failed            int64   `json:"failed"`
	NoRoute           int64   `json:"no_route"`
	SuccessRate       float64 `json:"success_rate"`
	FallbackRate      float64 `json:"fallback_rate"`
	AvgDecisionTimeMs float64 `json:"avg_routing_time_ms"`
}

// NewStatistics derives rates from counts. Rates are percentages of Total rounded
// to two decimals, and zero when there are no decisions.
func NewStatistics(c OutcomeCounts) Statistics {
	s := Statistics{
		Total:             c.Total,
		Successful:        c.Success,
		Fallback:          c.Fallback,
		Failed:            c.Failed,
		NoRoute:           c.NoRoute,
		AvgDecisionTimeMs: round2(c.AvgDecisionTimeMs),
	}
	if c.Total > 0 {
		s.SuccessRate = round2(float64(c.Success) / float64(c.Total) * 100)
		s.FallbackRate = round2(float64(c.Fallback) / float64(c.Total) * 100)
	}
	return s
}

// Aggregate tallies the decisions that pass filter.
func Aggregate(decisions []RoutingDecision, filter StatisticsFilter) Statistics {
	var (
		c       OutcomeCounts
		elapsed float64
	)
	for _, d := range decisions {
		if !filter.Includes(d) {
			continue
		}
		c.Total++
		elapsed += d.ElapsedMillis()
		switch d.Outcome {
		case OutcomeSuccess:
			c.Success++
		case OutcomeFallback:
			c.Fallback++
		case OutcomeFailed:
			c.Failed++
		case OutcomeNoRoute:
			c.NoRoute++
		}
	}
	if c.Total > 0 {
		c.AvgDecisionTimeMs = elapsed / float64(c.Total)
	}
	return NewStatistics(c)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
