package domain

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Outcome is the resolution of one routing call.
type Outcome string

const (
	OutcomeSuccess  Outcome = "SUCCESS"
	OutcomeFallback Outcome = "FALLBACK"
	OutcomeFailed   Outcome = "FAILED"
	OutcomeNoRoute  Outcome = "NO_ROUTE"
)

// RoutingRequest carries the addressing attributes of one outbound message.
// DestinationAddress is expected to be digits only.
type RoutingRequest struct {
	MessageID          string `json:"message_id"`
	CampaignID         string `json:"campaign_id,omitempty"`
	CustomerID         *int64 `json:"customer_id,omitempty"`
	DestinationAddress string `json:"msisdn"`
	SenderID           string `json:"sender_id,omitempty"`
	MessageType        string `json:"message_type,omitempty"`
}

// Column widths of the routing log, counted in characters.
const (
	MaxMessageIDLength   = 100
	MaxCampaignIDLength  = 100
	MaxAddressLength     = 20
	MaxSenderIDLength    = 50
	MaxMessageTypeLength = 30
)

// Validate reports the first field that does not fit the routing log.
func (r RoutingRequest) Validate() error {
	fields := []struct {
		name  string
		value string
		limit int
	}{
		{"message_id", r.MessageID, MaxMessageIDLength},
		{"campaign_id", r.CampaignID, MaxCampaignIDLength},
		{"msisdn", r.DestinationAddress, MaxAddressLength},
		{"sender_id", r.SenderID, MaxSenderIDLength},
		{"message_type", r.MessageType, MaxMessageTypeLength},
	}
	for _, f := range fields {
		if n := utf8.RuneCountInString(f.value); n > f.limit {
			return fmt.Errorf("%w: %s is %d characters, at most %d allowed", ErrInvalidRequest, f.name, n, f.limit)
		}
	}
	return nil
}

// Truncated returns a copy of r whose fields fit the routing log.
func (r RoutingRequest) Truncated() RoutingRequest {
	r.MessageID = truncateRunes(r.MessageID, MaxMessageIDLength)
	r.CampaignID = truncateRunes(r.CampaignID, MaxCampaignIDLength)
	r.DestinationAddress = truncateRunes(r.DestinationAddress, MaxAddressLength)
	r.SenderID = truncateRunes(r.SenderID, MaxSenderIDLength)
	r.MessageType = truncateRunes(r.MessageType, MaxMessageTypeLength)
	return r
}

func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}

// RoutingDecision is the immutable record of one routing call. RuleID is nil when the
// default route was used; GatewayID is nil when nothing was selected.
type RoutingDecision struct {
	ID                 uuid.UUID `json:"decision_id"`
	MessageID          string    `json:"message_id"`
	CampaignID         string    `json:"campaign_id,omitempty"`
	CustomerID         *int64    `json:"customer_id,omitempty"`
	DestinationAddress string    `json:"msisdn"`
	SenderID           string    `json:"sender_id,omitempty"`
	MessageType        string    `json:"message_type,omitempty"`

	RuleID      *int64 `json:"rule_id,omitempty"`
	RuleCode    string `json:"rule_code,omitempty"`
	GatewayID   *int64 `json:"smsc_id,omitempty"`
	GatewayCode string `json:"smsc_code,omitempty"`

	IsFallback        bool    `json:"is_fallback"`
	OriginalGatewayID *int64  `json:"original_smsc_id,omitempty"`
	Outcome           Outcome `json:"routing_status"`
	Reason            string  `json:"reason,omitempty"`

	Elapsed   time.Duration `json:"routing_time_ns"`
	DecidedAt time.Time     `json:"decided_at"`
}

// ElapsedMillis is Elapsed as fractional milliseconds.
func (d RoutingDecision) ElapsedMillis() float64 {
	return float64(d.Elapsed) / float64(time.Millisecond)
}

// RoutePreview explains what Route would decide, without recording anything.
type RoutePreview struct {
	Decision          RoutingDecision    `json:"decision"`
	MatchedRule       *RoutingRule       `json:"matched_rule,omitempty"`
	Target            *GatewayConnection `json:"target,omitempty"`
	TargetAvailable   bool               `json:"target_available"`
	Fallback          *GatewayConnection `json:"fallback,omitempty"`
	FallbackAvailable bool               `json:"fallback_available"`
	UsedDefaultRoute  bool               `json:"used_default_route"`
	// SkippedRules lists rule codes passed over because of their time window.
	SkippedRules []string `json:"skipped_rules,omitempty"`
}
