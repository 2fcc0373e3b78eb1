package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aradsms/routing_engine/internal/routing_service/domain"
)

// HealthKeyPrefix prefixes the hash the health monitor maintains per gateway code.
const HealthKeyPrefix = "smsc:health:"

// Hash fields written by the health monitor. All are optional.
const (
	fieldStatus        = "status"
	fieldRouteMode     = "route_mode"
	fieldDeliveryRate  = "delivery_rate"
	fieldCurrentTPS    = "current_tps"
	fieldLastHeartbeat = "last_heartbeat" // RFC 3339 or unix seconds
)

// HealthOverlay replaces the stored status of each gateway with the live values the
// health monitor publishes in Redis.
type HealthOverlay struct {
	rdb        redis.UniversalClient
	staleAfter time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// NewHealthOverlay creates a new HealthOverlay. A gateway whose heartbeat is older than
// staleAfter is reported DISCONNECTED; zero disables the check.
func NewHealthOverlay(rdb redis.UniversalClient, staleAfter time.Duration, logger *slog.Logger) *HealthOverlay {
	return &HealthOverlay{
		rdb:        rdb,
		staleAfter: staleAfter,
		now:        time.Now,
		logger:     logger.With("component", "health_overlay_redis"),
	}
}

// Apply returns copies of gateways with health fields taken from Redis. Gateways with
// no health hash keep their stored values.
func (h *HealthOverlay) Apply(ctx context.Context, gateways []*domain.GatewayConnection) ([]*domain.GatewayConnection, error) {
	if len(gateways) == 0 {
		return nil, nil
	}

	pipe := h.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(gateways))
	for i, g := range gateways {
		cmds[i] = pipe.HGetAll(ctx, HealthKeyPrefix+g.Code)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("reading gateway health: %w", err)
	}

	now := h.now()
	out := make([]*domain.GatewayConnection, len(gateways))
	overlaid := 0
	for i, g := range gateways {
		conn := *g
		fields, err := cmds[i].Result()
		if err == nil && len(fields) > 0 {
			h.apply(ctx, &conn, fields, now)
			overlaid++
		}
		out[i] = &conn
	}

	h.logger.DebugContext(ctx, "Applied gateway health overlay", "gateways", len(gateways), "overlaid", overlaid)
	return out, nil
}

func (h *HealthOverlay) apply(ctx context.Context, conn *domain.GatewayConnection, fields map[string]string, now time.Time) {
	if v, ok := fields[fieldStatus]; ok && v != "" {
		conn.Status = domain.ConnectionStatus(v)
	}
	if v, ok := fields[fieldRouteMode]; ok && v != "" {
		conn.Mode = domain.RouteMode(v)
	}
	if v, ok := fields[fieldDeliveryRate]; ok {
		if rate, err := strconv.ParseFloat(v, 64); err == nil {
			conn.DeliveryRate = rate
		} else {
			h.logger.WarnContext(ctx, "Ignoring malformed delivery rate", "smsc_code", conn.Code, "value", v)
		}
	}
	if v, ok := fields[fieldCurrentTPS]; ok {
		if tps, err := strconv.ParseFloat(v, 64); err == nil {
			conn.CurrentTPS = tps
		}
	}
	if v, ok := fields[fieldLastHeartbeat]; ok {
		if hb, err := parseHeartbeat(v); err == nil {
			conn.LastHeartbeat = &hb
		} else {
			h.logger.WarnContext(ctx, "Ignoring malformed heartbeat", "smsc_code", conn.Code, "value", v)
		}
	}

	if h.staleAfter > 0 && conn.LastHeartbeat != nil && now.Sub(*conn.LastHeartbeat) > h.staleAfter {
		if conn.Status == domain.StatusConnected {
			h.logger.WarnContext(ctx, "Gateway heartbeat is stale, treating as disconnected",
				"smsc_code", conn.Code, "last_heartbeat", conn.LastHeartbeat.Format(time.RFC3339))
		}
		conn.Status = domain.StatusDisconnected
	}
}

func parseHeartbeat(v string) (time.Time, error) {
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Parse(time.RFC3339, v)
}
