package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/aradsms/routing_engine/internal/routing_service/domain"
)

var routingLogColumns = []string{
	"decision_id", "message_id", "campaign_id", "customer_id",
	"msisdn", "sender_id", "message_type",
	"rule_id", "rule_code", "selected_smsc_id", "smsc_code",
	"is_fallback", "fallback_reason", "original_smsc_id",
	"routing_status", "routing_time_ms", "created_at",
}

// PgXDecisionRepository stores routing decisions in tbl_routing_logs and computes
// statistics over them.
type PgXDecisionRepository struct {
	db     DBTX
	logger *slog.Logger
}

// NewPgXDecisionRepository creates a new PostgreSQL decision repository.
func NewPgXDecisionRepository(db DBTX, logger *slog.Logger) *PgXDecisionRepository {
	return &PgXDecisionRepository{db: db, logger: logger.With("component", "decision_repository_pg")}
}

const insertRoutingLogQuery = `
	INSERT INTO tbl_routing_logs (
		decision_id, message_id, campaign_id, customer_id,
		msisdn, sender_id, message_type,
		rule_id, rule_code, selected_smsc_id, smsc_code,
		is_fallback, fallback_reason, original_smsc_id,
		routing_status, routing_time_ms, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

// InsertBatch copies decisions into tbl_routing_logs in a single round trip. COPY is
// all-or-nothing, so when a row is rejected for its data the batch is retried one
// row at a time and only the offending rows are dropped.
func (r *PgXDecisionRepository) InsertBatch(ctx context.Context, decisions []domain.RoutingDecision) error {
	if len(decisions) == 0 {
		return nil
	}
	n, err := r.db.CopyFrom(ctx, pgx.Identifier{"tbl_routing_logs"}, routingLogColumns,
		pgx.CopyFromSlice(len(decisions), func(i int) ([]any, error) {
			return routingLogRow(decisions[i]), nil
		}))
	if err != nil {
		if isDataError(err) {
			r.logger.WarnContext(ctx, "Routing log batch rejected, inserting rows individually", "error", err, "count", len(decisions))
			return r.insertEach(ctx, decisions)
		}
		return fmt.Errorf("copying routing decisions: %w", err)
	}
	r.logger.DebugContext(ctx, "Persisted routing decisions", "count", n)
	return nil
}

func (r *PgXDecisionRepository) insertEach(ctx context.Context, decisions []domain.RoutingDecision) error {
	skipped := 0
	for _, d := range decisions {
		_, err := r.db.Exec(ctx, insertRoutingLogQuery, routingLogRow(d)...)
		if err == nil {
			continue
		}
		if !isDataError(err) {
			return fmt.Errorf("inserting routing decision %s: %w", d.ID, err)
		}
		skipped++
		r.logger.ErrorContext(ctx, "Dropped routing decision the log table rejects",
			"error", err, "decision_id", d.ID, "message_id", d.MessageID)
	}
	r.logger.DebugContext(ctx, "Persisted routing decisions row by row", "count", len(decisions)-skipped, "skipped", skipped)
	return nil
}

func routingLogRow(d domain.RoutingDecision) []any {
	return []any{
		d.ID, d.MessageID, nullIfEmpty(d.CampaignID), d.CustomerID,
		d.DestinationAddress, nullIfEmpty(d.SenderID), nullIfEmpty(d.MessageType),
		d.RuleID, nullIfEmpty(d.RuleCode), d.GatewayID, nullIfEmpty(d.GatewayCode),
		d.IsFallback, nullIfEmpty(d.Reason), d.OriginalGatewayID,
		string(d.Outcome), d.ElapsedMillis(), d.DecidedAt,
	}
}

// isDataError reports a rejection caused by the row itself: a data exception
// (class 22) or an integrity constraint violation (class 23).
func isDataError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return strings.HasPrefix(pgErr.Code, "22") || strings.HasPrefix(pgErr.Code, "23")
}

// CountOutcomes tallies decisions by outcome for the rows matching filter.
func (r *PgXDecisionRepository) CountOutcomes(ctx context.Context, filter domain.StatisticsFilter) (domain.OutcomeCounts, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.CustomerID != nil {
		add("customer_id = $%d", *filter.CustomerID)
	}
	if filter.GatewayID != nil {
		add("selected_smsc_id = $%d", *filter.GatewayID)
	}
	if filter.CampaignID != "" {
		add("campaign_id = $%d", filter.CampaignID)
	}
	if filter.From != nil {
		add("created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("created_at <= $%d", *filter.To)
	}

	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE routing_status = 'SUCCESS'),
		       COUNT(*) FILTER (WHERE routing_status = 'FALLBACK'),
		       COUNT(*) FILTER (WHERE routing_status = 'FAILED'),
		       COUNT(*) FILTER (WHERE routing_status = 'NO_ROUTE'),
		       COALESCE(AVG(routing_time_ms), 0)::float8
		FROM tbl_routing_logs`
	if len(conds) > 0 {
		query += "\n\t\tWHERE " + strings.Join(conds, " AND ")
	}

	var c domain.OutcomeCounts
	err := r.db.QueryRow(ctx, query, args...).Scan(&c.Total, &c.Success, &c.Fallback, &c.Failed, &c.NoRoute, &c.AvgDecisionTimeMs)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error counting routing outcomes", "error", err)
		return domain.OutcomeCounts{}, fmt.Errorf("counting routing outcomes: %w", err)
	}
	return c, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
