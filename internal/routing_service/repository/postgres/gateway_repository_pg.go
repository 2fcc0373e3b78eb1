package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aradsms/routing_engine/internal/routing_service/domain"
)

const listGatewaysQuery = `
	SELECT smsc_id, smsc_code, smsc_name,
	       COALESCE(status, 'DISCONNECTED'), COALESCE(route_mode, 'ACTIVE'),
	       COALESCE(delivery_rate, 0)::float8, COALESCE(error_rate_threshold, 0)::float8,
	       COALESCE(priority, 100), COALESCE(is_default_route, FALSE),
	       COALESCE(cost_per_sms, 0)::float8, COALESCE(currency, 'USD'),
	       COALESCE(max_tps, 0), COALESCE(current_tps, 0)::float8,
	       last_heartbeat
	FROM tbl_smsc_connections
	ORDER BY smsc_id ASC
`

// PgXGatewayRepository reads the gateway connection registry from tbl_smsc_connections.
type PgXGatewayRepository struct {
	db     DBTX
	logger *slog.Logger
}

// NewPgXGatewayRepository creates a new PostgreSQL gateway repository.
func NewPgXGatewayRepository(db DBTX, logger *slog.Logger) *PgXGatewayRepository {
	return &PgXGatewayRepository{db: db, logger: logger.With("component", "gateway_repository_pg")}
}

// ListGateways returns every configured gateway, including disabled ones; availability is
// decided at routing time.
func (r *PgXGatewayRepository) ListGateways(ctx context.Context) ([]*domain.GatewayConnection, error) {
	rows, err := r.db.Query(ctx, listGatewaysQuery)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error querying gateway connections", "error", err)
		return nil, fmt.Errorf("querying gateway connections: %w", err)
	}
	defer rows.Close()

	var gateways []*domain.GatewayConnection
	for rows.Next() {
		var (
			g      domain.GatewayConnection
			status string
			mode   string
		)
		if err := rows.Scan(
			&g.ID, &g.Code, &g.Name,
			&status, &mode,
			&g.DeliveryRate, &g.ErrorRateThreshold,
			&g.Priority, &g.IsDefaultRoute,
			&g.CostPerMessage, &g.Currency,
			&g.MaxTPS, &g.CurrentTPS,
			&g.LastHeartbeat,
		); err != nil {
			r.logger.ErrorContext(ctx, "Error scanning gateway connection row", "error", err)
			continue
		}
		g.Status = domain.ConnectionStatus(status)
		g.Mode = domain.RouteMode(mode)
		gateways = append(gateways, &g)
	}

	if err := rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "Error after iterating gateway connection rows", "error", err)
		return nil, fmt.Errorf("iterating gateway connection rows: %w", err)
	}
	return gateways, nil
}
