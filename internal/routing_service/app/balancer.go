package app

import (
	"github.com/cespare/xxhash/v2"

	"github.com/aradsms/routing_engine/internal/routing_service/domain"
)

type weightedCandidate struct {
	conn   *domain.GatewayConnection
	weight int
}

// pickWeighted chooses one candidate with probability proportional to its weight.
// The choice is a pure function of key, so the same message always lands on the same
// member while the candidate set is unchanged.
func pickWeighted(candidates []weightedCandidate, key string) *domain.GatewayConnection {
	var total uint64
	for _, c := range candidates {
		if c.weight > 0 {
			total += uint64(c.weight)
		}
	}
	if total == 0 {
		return nil
	}

	point := xxhash.Sum64String(key) % total
	for _, c := range candidates {
		if c.weight <= 0 {
			continue
		}
		w := uint64(c.weight)
		if point < w {
			return c.conn
		}
		point -= w
	}
	return nil
}

func balanceKey(rule *domain.RoutingRule, req domain.RoutingRequest) string {
	return rule.Code + "|" + req.MessageID + "|" + req.DestinationAddress
}
