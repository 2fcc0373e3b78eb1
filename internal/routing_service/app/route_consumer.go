package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/aradsms/routing_engine/internal/routing_service/domain"
)

const routeRequestTimeout = 2 * time.Second

// Router is the part of Engine the transports depend on.
type Router interface {
	Route(ctx context.Context, req domain.RoutingRequest) domain.RoutingDecision
	TestRoute(ctx context.Context, req domain.RoutingRequest) domain.RoutePreview
}

// RequestRouter also records requests that never reach evaluation.
type RequestRouter interface {
	Router
	Reject(ctx context.Context, req domain.RoutingRequest, reason string) domain.RoutingDecision
}

// RequestSubscriber registers queue-group handlers. *messagebroker.NatsClient satisfies it.
type RequestSubscriber interface {
	QueueSubscribe(subject, queueGroup string, handler nats.MsgHandler) (*nats.Subscription, error)
}

// RouteConsumer answers routing requests received over NATS request/reply.
type RouteConsumer struct {
	router RequestRouter
	logger *slog.Logger
	sub    *nats.Subscription
}

func NewRouteConsumer(router RequestRouter, logger *slog.Logger) *RouteConsumer {
	return &RouteConsumer{
		router: router,
		logger: logger.With("component", "route_consumer"),
	}
}

// Start subscribes to subject within queueGroup. Each request is answered with the
// JSON-encoded RoutingDecision.
func (c *RouteConsumer) Start(ctx context.Context, subscriber RequestSubscriber, subject, queueGroup string) error {
	c.logger.InfoContext(ctx, "Starting routing request consumer", "subject", subject, "queue_group", queueGroup)

	sub, err := subscriber.QueueSubscribe(subject, queueGroup, func(msg *nats.Msg) {
		reqCtx, cancel := context.WithTimeout(ctx, routeRequestTimeout)
		defer cancel()

		reply := c.HandleRequest(reqCtx, msg.Data)
		if msg.Reply == "" {
			return
		}
		if err := msg.Respond(reply); err != nil {
			c.logger.ErrorContext(reqCtx, "Failed to reply to routing request", "error", err, "subject", msg.Subject)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to NATS subject '%s': %w", subject, err)
	}
	c.sub = sub
	return nil
}

// Stop drains the subscription so in-flight requests are still answered.
func (c *RouteConsumer) Stop() {
	if c.sub == nil {
		return
	}
	if err := c.sub.Drain(); err != nil {
		c.logger.Warn("Failed to drain routing request subscription", "error", err)
	}
}

// HandleRequest decodes a RoutingRequest, routes it and encodes the decision.
// A payload that cannot be decoded or does not fit the routing log yields a
// recorded FAILED decision rather than no reply.
func (c *RouteConsumer) HandleRequest(ctx context.Context, data []byte) []byte {
	var req domain.RoutingRequest
	var decision domain.RoutingDecision

	if err := json.Unmarshal(data, &req); err != nil {
		c.logger.ErrorContext(ctx, "Failed to unmarshal routing request", "error", err, "data", string(data))
		decision = c.router.Reject(ctx, domain.RoutingRequest{}, "malformed routing request: "+err.Error())
	} else if err := req.Validate(); err != nil {
		c.logger.WarnContext(ctx, "Rejected routing request", "error", err, "message_id", req.MessageID)
		decision = c.router.Reject(ctx, req, err.Error())
	} else {
		decision = c.router.Route(ctx, req)
	}

	out, err := json.Marshal(decision)
	if err != nil {
		// RoutingDecision holds only plain values; this is unreachable in practice.
		c.logger.ErrorContext(ctx, "Failed to marshal routing decision", "error", err)
		return []byte(`{"routing_status":"FAILED"}`)
	}
	return out
}
