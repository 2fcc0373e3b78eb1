package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aradsms/routing_engine/internal/routing_service/domain"
)

// Engine picks a gateway connection for each outbound message.
// It keeps no per-call state, so Route is safe for concurrent use.
type Engine struct {
	rules     domain.RuleSource
	gateways  domain.ConnectionSource
	countries domain.CountryTable
	sink      domain.DecisionSink
	now       func() time.Time
	logger    *slog.Logger
}

// EngineOption customises an Engine.
type EngineOption func(*Engine)

// WithClock sets the source of the evaluation instant used for time windows.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a new Engine. sink may be nil, in which case decisions are not recorded.
func NewEngine(
	rules domain.RuleSource,
	gateways domain.ConnectionSource,
	countries domain.CountryTable,
	sink domain.DecisionSink,
	logger *slog.Logger,
	opts ...EngineOption,
) *Engine {
	e := &Engine{
		rules:     rules,
		gateways:  gateways,
		countries: countries,
		sink:      sink,
		now:       time.Now,
		logger:    logger.With("component", "routing_engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Route decides which gateway carries req and hands the decision to the sink.
// It always returns a decision; failures are reported through its Outcome.
func (e *Engine) Route(ctx context.Context, req domain.RoutingRequest) domain.RoutingDecision {
	started := time.Now()
	now := e.now()

	decision := e.evaluate(ctx, req, now).decision
	decision.ID = uuid.New()
	decision.DecidedAt = now
	decision.Elapsed = time.Since(started)

	routingDecisionsCounter.WithLabelValues(string(decision.Outcome)).Inc()
	routingDecisionDurationHist.Observe(decision.Elapsed.Seconds())

	e.record(ctx, decision)
	return decision
}

func (e *Engine) record(ctx context.Context, decision domain.RoutingDecision) {
	if e.sink == nil {
		return
	}
	if err := e.sink.Append(ctx, decision); err != nil {
		e.logger.WarnContext(ctx, "Decision not recorded in audit log", "error", err, "message_id", decision.MessageID)
	}
}

// Reject records a FAILED decision for a request that could not be routed at all,
// such as one that failed validation. Fields are cut to the routing log widths.
func (e *Engine) Reject(ctx context.Context, req domain.RoutingRequest, reason string) domain.RoutingDecision {
	decision := newDecision(req.Truncated())
	decision.ID = uuid.New()
	decision.Outcome = domain.OutcomeFailed
	decision.Reason = reason
	decision.DecidedAt = e.now()

	routingDecisionsCounter.WithLabelValues(string(decision.Outcome)).Inc()
	e.record(ctx, decision)
	return decision
}

// TestRoute runs the same evaluation as Route without recording a decision.
func (e *Engine) TestRoute(ctx context.Context, req domain.RoutingRequest) domain.RoutePreview {
	started := time.Now()
	now := e.now()

	ev := e.evaluate(ctx, req, now)
	ev.decision.DecidedAt = now
	ev.decision.Elapsed = time.Since(started)

	return domain.RoutePreview{
		Decision:          ev.decision,
		MatchedRule:       ev.rule,
		Target:            ev.target,
		TargetAvailable:   ev.targetAvailable,
		Fallback:          ev.fallback,
		FallbackAvailable: ev.fallbackAvailable,
		UsedDefaultRoute:  ev.usedDefault,
		SkippedRules:      ev.skipped,
	}
}

type evaluation struct {
	decision          domain.RoutingDecision
	rule              *domain.RoutingRule
	target            *domain.GatewayConnection
	targetAvailable   bool
	fallback          *domain.GatewayConnection
	fallbackAvailable bool
	usedDefault       bool
	skipped           []string
}

func (e *Engine) evaluate(ctx context.Context, req domain.RoutingRequest, now time.Time) (ev evaluation) {
	ev.decision = newDecision(req)
	defer func() {
		if r := recover(); r != nil {
			ev = e.fail(ctx, req, ev, fmt.Errorf("routing panic: %v", r))
		}
	}()

	rules, err := e.rules.ActiveRulesFor(ctx, req.CustomerID)
	if err != nil {
		return e.fail(ctx, req, ev, fmt.Errorf("rule source: %w", err))
	}

	ev.rule, ev.skipped = e.matchRule(ctx, rules, req, now)
	if ev.rule == nil {
		conn, err := e.defaultRoute(ctx)
		if err != nil {
			return e.fail(ctx, req, ev, err)
		}
		if conn == nil {
			e.logger.WarnContext(ctx, "No rule matched and no default route available", "message_id", req.MessageID, "msisdn", req.DestinationAddress)
			ev.decision.Outcome = domain.OutcomeNoRoute
			ev.decision.Reason = "no rule matched; no default route available"
			return ev
		}
		ev.usedDefault = true
		selectGateway(&ev.decision, conn)
		ev.decision.Outcome = domain.OutcomeSuccess
		e.logger.DebugContext(ctx, "No rule matched, using default route", "message_id", req.MessageID, "smsc_code", conn.Code)
		return ev
	}

	rule := ev.rule
	ev.decision.RuleID = int64Ptr(rule.ID)
	ev.decision.RuleCode = rule.Code

	if err := e.resolvePrimary(ctx, &ev, req); err != nil {
		return e.fail(ctx, req, ev, err)
	}
	if ev.targetAvailable {
		selectGateway(&ev.decision, ev.target)
		ev.decision.Outcome = domain.OutcomeSuccess
		e.logger.DebugContext(ctx, "Routed message", "message_id", req.MessageID, "rule_code", rule.Code, "smsc_code", ev.target.Code)
		return ev
	}

	original := int64Ptr(rule.TargetGatewayID)
	if ev.target != nil {
		original = int64Ptr(ev.target.ID)
	}

	if rule.FallbackGatewayID != nil {
		fb, err := e.lookup(ctx, *rule.FallbackGatewayID)
		if err != nil {
			return e.fail(ctx, req, ev, err)
		}
		ev.fallback = fb
		ev.fallbackAvailable = e.eligible(rule, fb)
		if ev.fallbackAvailable {
			selectGateway(&ev.decision, fb)
			ev.decision.IsFallback = true
			ev.decision.OriginalGatewayID = original
			ev.decision.Outcome = domain.OutcomeFallback
			ev.decision.Reason = "primary gateway unavailable"
			e.logger.WarnContext(ctx, "Primary gateway unavailable, using rule fallback",
				"message_id", req.MessageID, "rule_code", rule.Code, "smsc_code", fb.Code)
			return ev
		}
	}

	conn, err := e.defaultRoute(ctx)
	if err != nil {
		return e.fail(ctx, req, ev, err)
	}
	if conn == nil {
		e.logger.WarnContext(ctx, "Matched rule has no available gateway and no default route",
			"message_id", req.MessageID, "rule_code", rule.Code)
		ev.decision.Outcome = domain.OutcomeNoRoute
		ev.decision.Reason = "rule gateways unavailable; no default route available"
		return ev
	}
	ev.usedDefault = true
	selectGateway(&ev.decision, conn)
	ev.decision.IsFallback = true
	ev.decision.OriginalGatewayID = original
	ev.decision.Outcome = domain.OutcomeFallback
	ev.decision.Reason = "rule gateways unavailable; default route used"
	e.logger.WarnContext(ctx, "Rule gateways unavailable, using default route",
		"message_id", req.MessageID, "rule_code", rule.Code, "smsc_code", conn.Code)
	return ev
}

// matchRule returns the first rule, in evaluation order, whose window and condition pass,
// along with the codes of rules skipped because of their window.
func (e *Engine) matchRule(ctx context.Context, rules []*domain.RoutingRule, req domain.RoutingRequest, now time.Time) (*domain.RoutingRule, []string) {
	candidates := make([]*domain.RoutingRule, 0, len(rules))
	for _, r := range rules {
		if r != nil && r.IsActive && visibleTo(r, req.CustomerID) {
			candidates = append(candidates, r)
		}
	}

	var skipped []string
	for _, rule := range domain.SortRules(candidates) {
		if !InWindow(rule, now) {
			skipped = append(skipped, rule.Code)
			continue
		}
		if rule.Condition == nil {
			e.logger.WarnContext(ctx, "Skipping rule without condition", "rule_code", rule.Code)
			continue
		}
		if Matches(rule, req, e.countries) {
			return rule, skipped
		}
	}
	return nil, skipped
}

func (e *Engine) resolvePrimary(ctx context.Context, ev *evaluation, req domain.RoutingRequest) error {
	rule := ev.rule
	if len(rule.LoadBalance) == 0 {
		conn, err := e.lookup(ctx, rule.TargetGatewayID)
		if err != nil {
			return err
		}
		ev.target = conn
		ev.targetAvailable = e.eligible(rule, conn)
		return nil
	}

	candidates := make([]weightedCandidate, 0, len(rule.LoadBalance))
	for _, member := range rule.LoadBalance {
		conn, err := e.lookup(ctx, member.GatewayID)
		if err != nil {
			return err
		}
		if e.eligible(rule, conn) {
			candidates = append(candidates, weightedCandidate{conn: conn, weight: member.Weight})
		}
	}
	if picked := pickWeighted(candidates, balanceKey(rule, req)); picked != nil {
		ev.target, ev.targetAvailable = picked, true
	}
	return nil
}

// lookup returns nil without error for gateways the source does not know.
func (e *Engine) lookup(ctx context.Context, gatewayID int64) (*domain.GatewayConnection, error) {
	conn, err := e.gateways.Get(ctx, gatewayID)
	if errors.Is(err, domain.ErrGatewayNotFound) {
		e.logger.WarnContext(ctx, "Rule references unknown gateway", "smsc_id", gatewayID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("connection source: gateway %d: %w", gatewayID, err)
	}
	return conn, nil
}

func (e *Engine) defaultRoute(ctx context.Context) (*domain.GatewayConnection, error) {
	conns, err := e.gateways.DefaultRoutes(ctx)
	if err != nil {
		return nil, fmt.Errorf("connection source: default routes: %w", err)
	}
	return SelectDefaultRoute(conns), nil
}

func (e *Engine) eligible(rule *domain.RoutingRule, conn *domain.GatewayConnection) bool {
	return IsAvailable(conn) && rule.WithinCost(conn.CostPerMessage)
}

func (e *Engine) fail(ctx context.Context, req domain.RoutingRequest, ev evaluation, err error) evaluation {
	e.logger.ErrorContext(ctx, "Routing failed", "error", err, "message_id", req.MessageID)
	d := ev.decision
	d.GatewayID = nil
	d.GatewayCode = ""
	d.IsFallback = false
	d.OriginalGatewayID = nil
	d.Outcome = domain.OutcomeFailed
	d.Reason = err.Error()
	return evaluation{decision: d, rule: ev.rule, skipped: ev.skipped}
}

func visibleTo(rule *domain.RoutingRule, customerID *int64) bool {
	if rule.CustomerID == nil {
		return true
	}
	return customerID != nil && *rule.CustomerID == *customerID
}

func newDecision(req domain.RoutingRequest) domain.RoutingDecision {
	d := domain.RoutingDecision{
		MessageID:          req.MessageID,
		CampaignID:         req.CampaignID,
		DestinationAddress: req.DestinationAddress,
		SenderID:           req.SenderID,
		MessageType:        req.MessageType,
	}
	if req.CustomerID != nil {
		d.CustomerID = int64Ptr(*req.CustomerID)
	}
	return d
}

func selectGateway(d *domain.RoutingDecision, conn *domain.GatewayConnection) {
	d.GatewayID = int64Ptr(conn.ID)
	d.GatewayCode = conn.Code
}

func int64Ptr(v int64) *int64 {
	return &v
}
