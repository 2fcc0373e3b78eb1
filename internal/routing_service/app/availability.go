package app

import "github.com/aradsms/routing_engine/internal/routing_service/domain"

// IsAvailable reports whether a connection may carry traffic according to its last
// health snapshot. A delivery rate of zero means not yet measured and skips the
// threshold check.
func IsAvailable(conn *domain.GatewayConnection) bool {
	if conn == nil {
		return false
	}
	if conn.Status != domain.StatusConnected {
		return false
	}
	if conn.Mode != domain.RouteModeActive && conn.Mode != domain.RouteModeStandby {
		return false
	}
	if conn.DeliveryRate > 0 && conn.DeliveryRate < 100-conn.ErrorRateThreshold {
		return false
	}
	return true
}

// isDefaultCandidate is stricter than IsAvailable: default routes must be ACTIVE,
// and delivery rate is not considered.
func isDefaultCandidate(conn *domain.GatewayConnection) bool {
	return conn != nil &&
		conn.IsDefaultRoute &&
		conn.Status == domain.StatusConnected &&
		conn.Mode == domain.RouteModeActive
}

// SelectDefaultRoute returns the eligible default-route connection with the lowest
// priority value, ties broken by id. It returns nil when none qualifies.
func SelectDefaultRoute(conns []*domain.GatewayConnection) *domain.GatewayConnection {
	var best *domain.GatewayConnection
	for _, c := range conns {
		if !isDefaultCandidate(c) {
			continue
		}
		if best == nil || c.Priority < best.Priority || (c.Priority == best.Priority && c.ID < best.ID) {
			best = c
		}
	}
	return best
}
