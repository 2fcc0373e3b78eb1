package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCountryCodes_LookupByPrefix(t *testing.T) {
	table := NewCountryCodes("1", "98", "971", "1268", "")

	tests := []struct {
		address string
		want    string
		found   bool
	}{
		{"989121234567", "98", true},
		{"971501234567", "971", true},
		{"12684601234", "1268", true},
		{"12025550123", "1", true},
		{"4420123456", "", false},
		{"", "", false},
		{"+98912", "", false},
		{"9", "", false},
	}
	for _, tt := range tests {
		got, ok := table.LookupByPrefix(tt.address)
		assert.Equal(t, tt.found, ok, tt.address)
		assert.Equal(t, tt.want, got, tt.address)
	}
	assert.Len(t, table, 4)
}

func TestSortRules(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rules := []*RoutingRule{
		{ID: 4, Code: "late", Priority: 10, CreatedAt: base.Add(time.Hour)},
		{ID: 3, Code: "low", Priority: 50, CreatedAt: base},
		{ID: 2, Code: "tie-b", Priority: 10, CreatedAt: base},
		{ID: 1, Code: "tie-a", Priority: 10, CreatedAt: base},
		{ID: 5, Code: "first", Priority: 1, CreatedAt: base.Add(2 * time.Hour)},
	}

	ordered := SortRules(rules)

	var codes []string
	for _, r := range ordered {
		codes = append(codes, r.Code)
	}
	assert.Equal(t, []string{"first", "tie-a", "tie-b", "late", "low"}, codes)
	assert.Equal(t, "late", rules[0].Code, "input must not be reordered")
}

func TestRoutingRule_WithinCost(t *testing.T) {
	ceiling := 0.05
	r := &RoutingRule{MaxCostPerMessage: &ceiling}
	assert.True(t, r.WithinCost(0.05))
	assert.False(t, r.WithinCost(0.051))
	assert.True(t, (&RoutingRule{}).WithinCost(100))
	assert.True(t, (&RoutingRule{}).IsGlobal())
}

func TestNewStatistics(t *testing.T) {
	s := NewStatistics(OutcomeCounts{Total: 3, Success: 2, Fallback: 1, AvgDecisionTimeMs: 0.12345})
	assert.Equal(t, 66.67, s.SuccessRate)
	assert.Equal(t, 33.33, s.FallbackRate)
	assert.Equal(t, 0.12, s.AvgDecisionTimeMs)

	empty := NewStatistics(OutcomeCounts{})
	assert.Zero(t, empty.SuccessRate)
	assert.Zero(t, empty.FallbackRate)
}

func TestAggregate(t *testing.T) {
	customer := int64(7)
	other := int64(8)
	gw := int64(1)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	decisions := []RoutingDecision{
		{CustomerID: &customer, GatewayID: &gw, Outcome: OutcomeSuccess, Elapsed: 2 * time.Millisecond, DecidedAt: at},
		{CustomerID: &customer, GatewayID: &gw, Outcome: OutcomeFallback, Elapsed: 4 * time.Millisecond, DecidedAt: at.Add(time.Hour)},
		{CustomerID: &customer, Outcome: OutcomeNoRoute, DecidedAt: at.Add(2 * time.Hour)},
		{CustomerID: &other, Outcome: OutcomeFailed, DecidedAt: at},
	}

	all := Aggregate(decisions, StatisticsFilter{})
	assert.Equal(t, int64(4), all.Total)
	assert.Equal(t, int64(1), all.Successful)
	assert.Equal(t, int64(1), all.Fallback)
	assert.Equal(t, int64(1), all.Failed)
	assert.Equal(t, int64(1), all.NoRoute)
	assert.Equal(t, 25.0, all.SuccessRate)
	assert.Equal(t, 1.5, all.AvgDecisionTimeMs)

	to := at.Add(time.Hour)
	scoped := Aggregate(decisions, StatisticsFilter{CustomerID: &customer, GatewayID: &gw, To: &to})
	assert.Equal(t, int64(2), scoped.Total)
	assert.Equal(t, 50.0, scoped.SuccessRate)
	assert.Equal(t, 50.0, scoped.FallbackRate)

	from := at.Add(90 * time.Minute)
	late := Aggregate(decisions, StatisticsFilter{From: &from})
	assert.Equal(t, int64(1), late.Total)
	assert.Equal(t, int64(1), late.NoRoute)

	none := Aggregate(decisions, StatisticsFilter{CampaignID: "spring"})
	assert.Zero(t, none.Total)
	assert.Zero(t, none.SuccessRate)
}

func TestRoutingRequest_Validate(t *testing.T) {
	ok := RoutingRequest{MessageID: "m-1", DestinationAddress: "989121234567", SenderID: "BANKMELLAT", MessageType: "OTP"}
	assert.NoError(t, ok.Validate())

	long := ok
	long.DestinationAddress = strings.Repeat("9", MaxAddressLength+1)
	err := long.Validate()
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Contains(t, err.Error(), "msisdn")

	// widths count characters, not bytes
	persian := ok
	persian.SenderID = strings.Repeat("ب", MaxSenderIDLength)
	assert.NoError(t, persian.Validate())
	persian.SenderID += "ب"
	assert.ErrorIs(t, persian.Validate(), ErrInvalidRequest)
}

func TestRoutingRequest_Truncated(t *testing.T) {
	req := RoutingRequest{
		MessageID:          strings.Repeat("x", MaxMessageIDLength+10),
		DestinationAddress: strings.Repeat("9", 40),
		SenderID:           strings.Repeat("ب", MaxSenderIDLength+5),
		MessageType:        "OTP",
	}

	got := req.Truncated()

	assert.NoError(t, got.Validate())
	assert.Len(t, got.MessageID, MaxMessageIDLength)
	assert.Len(t, got.DestinationAddress, MaxAddressLength)
	assert.Equal(t, strings.Repeat("ب", MaxSenderIDLength), got.SenderID)
	assert.Equal(t, "OTP", got.MessageType)
	assert.Len(t, req.DestinationAddress, 40, "the original request is left untouched")
}
