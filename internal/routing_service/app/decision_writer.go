package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/aradsms/routing_engine/internal/routing_service/domain"
)

const (
	drainTimeout = 5 * time.Second
	flushTimeout = 10 * time.Second
)

// DecisionPublisher broadcasts decision events. *messagebroker.NatsClient satisfies it.
type DecisionPublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// DecisionWriterConfig tunes the asynchronous decision log.
type DecisionWriterConfig struct {
	QueueSize          int
	BatchSize          int
	FlushInterval      time.Duration
	Subject            string // empty disables publishing
	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration
}

func (c DecisionWriterConfig) withDefaults() DecisionWriterConfig {
	if c.QueueSize <= 0 {
		c.QueueSize = 10000
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 200
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = time.Second
	}
	if c.BreakerMaxFailures == 0 {
		c.BreakerMaxFailures = 5
	}
	if c.BreakerOpenTimeout <= 0 {
		c.BreakerOpenTimeout = 30 * time.Second
	}
	return c
}

// DecisionWriter is the engine's DecisionSink. Append hands the decision to a bounded
// queue and returns immediately; Run writes queued decisions to the store in batches.
type DecisionWriter struct {
	queue     chan domain.RoutingDecision
	store     domain.DecisionStore
	publisher DecisionPublisher
	cfg       DecisionWriterConfig
	breaker   *gobreaker.CircuitBreaker
	logger    *slog.Logger
}

// NewDecisionWriter creates a new DecisionWriter. publisher may be nil.
func NewDecisionWriter(store domain.DecisionStore, publisher DecisionPublisher, cfg DecisionWriterConfig, logger *slog.Logger) *DecisionWriter {
	cfg = cfg.withDefaults()
	l := logger.With("component", "decision_writer")
	return &DecisionWriter{
		queue:     make(chan domain.RoutingDecision, cfg.QueueSize),
		store:     store,
		publisher: publisher,
		cfg:       cfg,
		logger:    l,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "decision_store",
			MaxRequests: 1,
			Timeout:     cfg.BreakerOpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.BreakerMaxFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				l.Warn("Decision store circuit breaker changed state", "breaker", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

// Append queues d without blocking. It returns ErrDecisionQueueFull when the queue is full.
func (w *DecisionWriter) Append(_ context.Context, d domain.RoutingDecision) error {
	select {
	case w.queue <- d:
		return nil
	default:
		decisionLogDroppedCounter.Inc()
		return domain.ErrDecisionQueueFull
	}
}

// Pending is the number of queued decisions not yet written.
func (w *DecisionWriter) Pending() int {
	return len(w.queue)
}

// Run writes queued decisions until ctx is cancelled, then drains what is left.
// Cancelling ctx never aborts a batch write already in progress.
func (w *DecisionWriter) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	writeCtx := context.WithoutCancel(ctx)
	batch := make([]domain.RoutingDecision, 0, w.cfg.BatchSize)
	for {
		select {
		case d := <-w.queue:
			batch = append(batch, d)
			if len(batch) >= w.cfg.BatchSize {
				w.flushWithTimeout(writeCtx, batch)
				batch = make([]domain.RoutingDecision, 0, w.cfg.BatchSize)
			}
		case <-ticker.C:
			if len(batch) > 0 {
				w.flushWithTimeout(writeCtx, batch)
				batch = make([]domain.RoutingDecision, 0, w.cfg.BatchSize)
			}
		case <-ctx.Done():
			w.drain(batch)
			return
		}
	}
}

func (w *DecisionWriter) drain(batch []domain.RoutingDecision) {
drainLoop:
	for {
		select {
		case d := <-w.queue:
			batch = append(batch, d)
		default:
			break drainLoop
		}
	}
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	w.logger.InfoContext(ctx, "Draining decision log", "count", len(batch))
	for start := 0; start < len(batch); start += w.cfg.BatchSize {
		end := start + w.cfg.BatchSize
		if end > len(batch) {
			end = len(batch)
		}
		w.flush(ctx, batch[start:end])
	}
}

func (w *DecisionWriter) flushWithTimeout(ctx context.Context, batch []domain.RoutingDecision) {
	ctx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()
	w.flush(ctx, batch)
}

func (w *DecisionWriter) flush(ctx context.Context, batch []domain.RoutingDecision) {
	_, err := w.breaker.Execute(func() (interface{}, error) {
		return nil, w.store.InsertBatch(ctx, batch)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		decisionLogFlushCounter.WithLabelValues("breaker_open").Inc()
		w.logger.WarnContext(ctx, "Decision store unavailable, batch not persisted", "count", len(batch))
	case err != nil:
		decisionLogFlushCounter.WithLabelValues("error").Inc()
		w.logger.ErrorContext(ctx, "Failed to persist decision batch", "error", err, "count", len(batch))
	default:
		decisionLogFlushCounter.WithLabelValues("ok").Inc()
	}

	w.publish(ctx, batch)
}

func (w *DecisionWriter) publish(ctx context.Context, batch []domain.RoutingDecision) {
	if w.publisher == nil || w.cfg.Subject == "" {
		return
	}
	failed := 0
	var lastErr error
	for _, d := range batch {
		data, err := json.Marshal(d)
		if err == nil {
			err = w.publisher.Publish(ctx, w.cfg.Subject, data)
		}
		if err != nil {
			failed++
			lastErr = err
		}
	}
	if failed > 0 {
		w.logger.WarnContext(ctx, "Failed to publish decision events", "error", lastErr, "failed", failed, "subject", w.cfg.Subject)
	}
}
