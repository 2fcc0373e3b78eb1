package app

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aradsms/routing_engine/internal/routing_service/domain"
)

type MockRouter struct {
	mock.Mock
}

func (m *MockRouter) Route(ctx context.Context, req domain.RoutingRequest) domain.RoutingDecision {
	args := m.Called(ctx, req)
	return args.Get(0).(domain.RoutingDecision)
}

func (m *MockRouter) TestRoute(ctx context.Context, req domain.RoutingRequest) domain.RoutePreview {
	args := m.Called(ctx, req)
	return args.Get(0).(domain.RoutePreview)
}

func (m *MockRouter) Reject(ctx context.Context, req domain.RoutingRequest, reason string) domain.RoutingDecision {
	args := m.Called(ctx, req, reason)
	return args.Get(0).(domain.RoutingDecision)
}

type fakeSubscriber struct {
	subject, queue string
	handler        nats.MsgHandler
	err            error
}

func (f *fakeSubscriber) QueueSubscribe(subject, queueGroup string, handler nats.MsgHandler) (*nats.Subscription, error) {
	f.subject, f.queue, f.handler = subject, queueGroup, handler
	return nil, f.err
}

func TestRouteConsumer_HandleRequest(t *testing.T) {
	router := new(MockRouter)
	gatewayID := int64(3)
	router.On("Route", mock.Anything, domain.RoutingRequest{MessageID: "m-1", DestinationAddress: "989121234567", SenderID: "3000"}).
		Return(domain.RoutingDecision{MessageID: "m-1", GatewayID: &gatewayID, GatewayCode: "GW_C", Outcome: domain.OutcomeSuccess}).Once()

	consumer := NewRouteConsumer(router, testLogger())
	out := consumer.HandleRequest(context.Background(), []byte(`{"message_id":"m-1","msisdn":"989121234567","sender_id":"3000"}`))

	var decision domain.RoutingDecision
	require.NoError(t, json.Unmarshal(out, &decision))
	assert.Equal(t, domain.OutcomeSuccess, decision.Outcome)
	assert.Equal(t, "GW_C", decision.GatewayCode)
	require.NotNil(t, decision.GatewayID)
	assert.Equal(t, gatewayID, *decision.GatewayID)
	router.AssertExpectations(t)
}

func TestRouteConsumer_HandleRequest_Malformed(t *testing.T) {
	router := new(MockRouter)
	router.On("Reject", mock.Anything, domain.RoutingRequest{}, mock.MatchedBy(func(reason string) bool {
		return strings.HasPrefix(reason, "malformed routing request")
	})).Return(domain.RoutingDecision{Outcome: domain.OutcomeFailed, Reason: "malformed routing request: unexpected end of JSON input"}).Once()
	consumer := NewRouteConsumer(router, testLogger())

	out := consumer.HandleRequest(context.Background(), []byte(`{"message_id":`))

	var decision domain.RoutingDecision
	require.NoError(t, json.Unmarshal(out, &decision))
	assert.Equal(t, domain.OutcomeFailed, decision.Outcome)
	assert.Contains(t, decision.Reason, "malformed routing request")
	assert.Nil(t, decision.GatewayID)
	router.AssertNotCalled(t, "Route", mock.Anything, mock.Anything)
	router.AssertExpectations(t)
}

func TestRouteConsumer_HandleRequest_OversizedField(t *testing.T) {
	router := new(MockRouter)
	msisdn := strings.Repeat("9", domain.MaxAddressLength+5)
	router.On("Reject", mock.Anything, domain.RoutingRequest{MessageID: "m-2", DestinationAddress: msisdn}, mock.MatchedBy(func(reason string) bool {
		return strings.Contains(reason, "msisdn")
	})).Return(domain.RoutingDecision{MessageID: "m-2", Outcome: domain.OutcomeFailed, Reason: "invalid routing request: msisdn"}).Once()
	consumer := NewRouteConsumer(router, testLogger())

	out := consumer.HandleRequest(context.Background(), []byte(`{"message_id":"m-2","msisdn":"`+msisdn+`"}`))

	var decision domain.RoutingDecision
	require.NoError(t, json.Unmarshal(out, &decision))
	assert.Equal(t, domain.OutcomeFailed, decision.Outcome)
	assert.Equal(t, "m-2", decision.MessageID)
	router.AssertNotCalled(t, "Route", mock.Anything, mock.Anything)
	router.AssertExpectations(t)
}

func TestRouteConsumer_Start(t *testing.T) {
	router := new(MockRouter)
	router.On("Route", mock.Anything, mock.AnythingOfType("domain.RoutingRequest")).
		Return(domain.RoutingDecision{Outcome: domain.OutcomeNoRoute}).Once()
	sub := &fakeSubscriber{}
	consumer := NewRouteConsumer(router, testLogger())

	require.NoError(t, consumer.Start(context.Background(), sub, "routing.requests", "routing_service"))
	assert.Equal(t, "routing.requests", sub.subject)
	assert.Equal(t, "routing_service", sub.queue)
	require.NotNil(t, sub.handler)

	// fire-and-forget messages have no reply subject
	sub.handler(&nats.Msg{Subject: "routing.requests", Data: []byte(`{"message_id":"m-9","msisdn":"98912"}`)})
	router.AssertExpectations(t)

	consumer.Stop()
}

func TestRouteConsumer_StartSubscribeError(t *testing.T) {
	consumer := NewRouteConsumer(new(MockRouter), testLogger())
	err := consumer.Start(context.Background(), &fakeSubscriber{err: errors.New("nats: connection closed")}, "routing.requests", "routing_service")
	assert.Error(t, err)
}
