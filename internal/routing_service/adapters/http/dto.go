package http

import (
	"time"

	"github.com/aradsms/routing_engine/internal/routing_service/domain"
)

// TestRouteRequest is the body of POST /v1/routing/test.
type TestRouteRequest struct {
	MessageID   string `json:"message_id" validate:"omitempty,max=64"`
	CampaignID  string `json:"campaign_id" validate:"omitempty,max=64"`
	CustomerID  *int64 `json:"customer_id" validate:"omitempty,gt=0"`
	MSISDN      string `json:"msisdn" validate:"required,numeric,min=3,max=20"`
	SenderID    string `json:"sender_id" validate:"omitempty,max=20"`
	MessageType string `json:"message_type" validate:"omitempty,max=20"`
}

func (r TestRouteRequest) toDomain() domain.RoutingRequest {
	return domain.RoutingRequest{
		MessageID:          r.MessageID,
		CampaignID:         r.CampaignID,
		CustomerID:         r.CustomerID,
		DestinationAddress: r.MSISDN,
		SenderID:           r.SenderID,
		MessageType:        r.MessageType,
	}
}

// TestRouteResponse explains a routing decision without recording it.
type TestRouteResponse struct {
	domain.RoutePreview
	MatchedConditionKind string `json:"matched_condition_kind,omitempty"`
}

func newTestRouteResponse(p domain.RoutePreview) TestRouteResponse {
	resp := TestRouteResponse{RoutePreview: p}
	if p.MatchedRule != nil && p.MatchedRule.Condition != nil {
		resp.MatchedConditionKind = string(p.MatchedRule.Condition.Kind())
	}
	return resp
}

// SnapshotResponse describes the snapshot currently used for routing.
type SnapshotResponse struct {
	Rules     int       `json:"rules"`
	Gateways  int       `json:"gateways"`
	Countries int       `json:"countries"`
	LoadedAt  time.Time `json:"loaded_at"`
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status           string     `json:"status"`
	SnapshotLoadedAt *time.Time `json:"snapshot_loaded_at,omitempty"`
	BrokerConnected  bool       `json:"broker_connected"`
}

// GenericErrorResponse is the body of every error reply.
type GenericErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}
