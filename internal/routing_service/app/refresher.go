package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aradsms/routing_engine/internal/routing_service/domain"
)

const refreshTimeout = 10 * time.Second

// Refresher rebuilds the routing snapshot from the rule store and the health monitor.
// A failed refresh leaves the previous snapshot in place.
type Refresher struct {
	rules     domain.RuleRepository
	gateways  domain.GatewayRepository
	countries domain.CountryRepository
	health    domain.HealthOverlay // optional
	store     *SnapshotStore
	logger    *slog.Logger

	mu        sync.Mutex // serialises refreshes
	scheduler *cron.Cron
	onReady   func()
	readyOnce sync.Once
}

// NewRefresher creates a new Refresher. health may be nil.
func NewRefresher(
	rules domain.RuleRepository,
	gateways domain.GatewayRepository,
	countries domain.CountryRepository,
	health domain.HealthOverlay,
	store *SnapshotStore,
	logger *slog.Logger,
) *Refresher {
	return &Refresher{
		rules:     rules,
		gateways:  gateways,
		countries: countries,
		health:    health,
		store:     store,
		logger:    logger.With("component", "snapshot_refresher"),
	}
}

// OnReady registers fn to run once, after the first successful refresh.
func (r *Refresher) OnReady(fn func()) {
	r.onReady = fn
}

// Refresh loads a new snapshot and publishes it.
func (r *Refresher) Refresh(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap, err := r.load(ctx)
	if err != nil {
		snapshotRefreshCounter.WithLabelValues("error").Inc()
		r.logger.ErrorContext(ctx, "Snapshot refresh failed, keeping previous snapshot", "error", err)
		return err
	}

	r.store.Store(snap)
	snapshotRefreshCounter.WithLabelValues("ok").Inc()
	snapshotRulesGauge.Set(float64(snap.RuleCount()))
	snapshotGatewaysGauge.Set(float64(snap.GatewayCount()))
	r.logger.InfoContext(ctx, "Routing snapshot refreshed",
		"rules", snap.RuleCount(), "gateways", snap.GatewayCount(), "countries", snap.CountryCount())

	if r.onReady != nil {
		r.readyOnce.Do(r.onReady)
	}
	return nil
}

func (r *Refresher) load(ctx context.Context) (*Snapshot, error) {
	rules, err := r.rules.ListActiveRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading rules: %w", err)
	}

	gateways, err := r.gateways.ListGateways(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading gateways: %w", err)
	}
	if r.health != nil {
		overlaid, err := r.health.Apply(ctx, gateways)
		if err != nil {
			// fall back to the status columns stored with the gateway
			r.logger.WarnContext(ctx, "Health overlay unavailable, using stored gateway status", "error", err)
		} else {
			gateways = overlaid
		}
	}

	codes, err := r.countries.ListCountryCodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading country codes: %w", err)
	}
	countries := domain.NewCountryCodes(codes...)
	if len(countries) == 0 {
		countries = BuiltinCountryCodes()
	}

	return NewSnapshot(rules, gateways, countries, time.Now().UTC()), nil
}

// Start performs an initial refresh and then refreshes on the given cron spec
// (for example "@every 15s"). A failed initial refresh is logged, not returned.
func (r *Refresher) Start(ctx context.Context, spec string) error {
	initCtx, cancel := context.WithTimeout(ctx, refreshTimeout)
	_ = r.Refresh(initCtx)
	cancel()

	r.scheduler = cron.New()
	_, err := r.scheduler.AddFunc(spec, func() {
		jobCtx, cancel := context.WithTimeout(ctx, refreshTimeout)
		defer cancel()
		_ = r.Refresh(jobCtx)
	})
	if err != nil {
		return fmt.Errorf("invalid snapshot refresh schedule %q: %w", spec, err)
	}
	r.scheduler.Start()
	r.logger.InfoContext(ctx, "Snapshot refresh scheduled", "schedule", spec)
	return nil
}

// Stop halts scheduled refreshes and waits for a running one to finish.
func (r *Refresher) Stop() {
	if r.scheduler == nil {
		return
	}
	<-r.scheduler.Stop().Done()
}
