package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aradsms/routing_engine/internal/routing_service/domain"
)

const listActiveRulesQuery = `
	SELECT rule_id, rule_code, rule_name, customer_id,
	       condition_type, condition_value,
	       COALESCE(msisdn_prefix, ''), COALESCE(sender_id_pattern, ''), COALESCE(message_type, ''),
	       COALESCE(country_code, ''), COALESCE(regex_pattern, ''), combined_conditions,
	       smsc_id, fallback_smsc_id, priority, is_active,
	       enable_time_based,
	       COALESCE(to_char(active_hours_start, 'HH24:MI:SS'), ''),
	       COALESCE(to_char(active_hours_end, 'HH24:MI:SS'), ''),
	       active_days, COALESCE(timezone, 'UTC'),
	       enable_load_balance, load_balance_smsc_ids, load_balance_weights,
	       enable_cost_routing, max_cost_per_sms::float8,
	       created_at
	FROM tbl_routing_rules
	WHERE is_active = TRUE
	ORDER BY priority ASC, created_at ASC, rule_id ASC
`

// ruleRow mirrors one tbl_routing_rules row before decoding.
type ruleRow struct {
	ID                 int64
	Code               string
	Name               string
	CustomerID         *int64
	ConditionType      string
	ConditionValue     string
	MsisdnPrefix       string
	SenderIDPattern    string
	MessageType        string
	CountryCode        string
	RegexPattern       string
	CombinedConditions []byte
	GatewayID          *int64
	FallbackGatewayID  *int64
	Priority           int
	IsActive           bool
	EnableTimeBased    bool
	ActiveHoursStart   string
	ActiveHoursEnd     string
	ActiveDays         []byte
	Timezone           string
	EnableLoadBalance  bool
	LoadBalanceIDs     []byte
	LoadBalanceWeights []byte
	EnableCostRouting  bool
	MaxCostPerSMS      *float64
	CreatedAt          time.Time
}

// PgXRuleRepository reads routing rules from tbl_routing_rules.
type PgXRuleRepository struct {
	db     DBTX
	logger *slog.Logger
}

// NewPgXRuleRepository creates a new PostgreSQL rule repository.
func NewPgXRuleRepository(db DBTX, logger *slog.Logger) *PgXRuleRepository {
	return &PgXRuleRepository{db: db, logger: logger.With("component", "rule_repository_pg")}
}

// ListActiveRules returns every active rule. Rows that cannot be decoded are logged and skipped.
func (r *PgXRuleRepository) ListActiveRules(ctx context.Context) ([]*domain.RoutingRule, error) {
	rows, err := r.db.Query(ctx, listActiveRulesQuery)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error querying active routing rules", "error", err)
		return nil, fmt.Errorf("querying active routing rules: %w", err)
	}
	defer rows.Close()

	var rules []*domain.RoutingRule
	for rows.Next() {
		var row ruleRow
		if err := rows.Scan(
			&row.ID, &row.Code, &row.Name, &row.CustomerID,
			&row.ConditionType, &row.ConditionValue,
			&row.MsisdnPrefix, &row.SenderIDPattern, &row.MessageType,
			&row.CountryCode, &row.RegexPattern, &row.CombinedConditions,
			&row.GatewayID, &row.FallbackGatewayID, &row.Priority, &row.IsActive,
			&row.EnableTimeBased, &row.ActiveHoursStart, &row.ActiveHoursEnd,
			&row.ActiveDays, &row.Timezone,
			&row.EnableLoadBalance, &row.LoadBalanceIDs, &row.LoadBalanceWeights,
			&row.EnableCostRouting, &row.MaxCostPerSMS,
			&row.CreatedAt,
		); err != nil {
			r.logger.ErrorContext(ctx, "Error scanning routing rule row", "error", err)
			continue
		}

		rule, err := decodeRuleRow(row)
		if err != nil {
			r.logger.ErrorContext(ctx, "Skipping routing rule that cannot be decoded", "rule_id", row.ID, "rule_code", row.Code, "error", err)
			continue
		}
		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "Error after iterating routing rule rows", "error", err)
		return nil, fmt.Errorf("iterating routing rule rows: %w", err)
	}

	r.logger.DebugContext(ctx, "Fetched active routing rules", "count", len(rules))
	return rules, nil
}

func decodeRuleRow(row ruleRow) (*domain.RoutingRule, error) {
	combined, err := decodeCombinedConditions(row.CombinedConditions)
	if err != nil {
		return nil, err
	}
	cond, err := domain.ConditionSpec{
		Kind:          row.ConditionType,
		Value:         row.ConditionValue,
		AddressPrefix: row.MsisdnPrefix,
		SenderPattern: row.SenderIDPattern,
		MessageType:   row.MessageType,
		CountryCode:   row.CountryCode,
		RegexPattern:  row.RegexPattern,
		Combined:      combined,
	}.Decode()
	if err != nil {
		return nil, err
	}

	rule := &domain.RoutingRule{
		ID:                row.ID,
		Code:              row.Code,
		Name:              row.Name,
		CustomerID:        row.CustomerID,
		Condition:         cond,
		Priority:          row.Priority,
		FallbackGatewayID: row.FallbackGatewayID,
		IsActive:          row.IsActive,
		CreatedAt:         row.CreatedAt,
	}
	if row.GatewayID != nil {
		rule.TargetGatewayID = *row.GatewayID
	}

	if row.EnableTimeBased {
		days, err := decodeActiveDays(row.ActiveDays)
		if err != nil {
			return nil, err
		}
		rule.Window, err = domain.NewTimeWindow(row.ActiveHoursStart, row.ActiveHoursEnd, row.Timezone, days)
		if err != nil {
			return nil, err
		}
	}

	if row.EnableLoadBalance {
		rule.LoadBalance, err = decodeLoadBalance(row.LoadBalanceIDs, row.LoadBalanceWeights)
		if err != nil {
			return nil, err
		}
	}
	if len(rule.LoadBalance) == 0 && row.GatewayID == nil {
		return nil, errors.New("rule has no target gateway")
	}

	if row.EnableCostRouting && row.MaxCostPerSMS != nil {
		ceiling := *row.MaxCostPerSMS
		rule.MaxCostPerMessage = &ceiling
	}
	return rule, nil
}

// decodeCombinedConditions accepts a JSON object whose values are strings or numbers.
func decodeCombinedConditions(raw []byte) (map[string]string, error) {
	if isEmptyJSON(raw) {
		return nil, nil
	}
	var values map[string]any
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("combined_conditions: %w", err)
	}
	out := make(map[string]string, len(values))
	for k, v := range values {
		s, ok := jsonScalarString(v)
		if !ok {
			return nil, fmt.Errorf("combined_conditions: key %q is not a scalar", k)
		}
		out[k] = s
	}
	return out, nil
}

// decodeActiveDays accepts day names or ISO day numbers.
func decodeActiveDays(raw []byte) ([]string, error) {
	if isEmptyJSON(raw) {
		return nil, nil
	}
	var values []any
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("active_days: %w", err)
	}
	days := make([]string, 0, len(values))
	for _, v := range values {
		s, ok := jsonScalarString(v)
		if !ok {
			return nil, fmt.Errorf("active_days: unexpected value %v", v)
		}
		days = append(days, s)
	}
	return days, nil
}

// decodeLoadBalance pairs the member id array with the weight object keyed by id.
// Members without a weight get weight 1.
func decodeLoadBalance(rawIDs, rawWeights []byte) ([]domain.WeightedGateway, error) {
	if isEmptyJSON(rawIDs) {
		return nil, nil
	}
	var ids []int64
	if err := json.Unmarshal(rawIDs, &ids); err != nil {
		return nil, fmt.Errorf("load_balance_smsc_ids: %w", err)
	}
	weights := map[string]int{}
	if !isEmptyJSON(rawWeights) {
		if err := json.Unmarshal(rawWeights, &weights); err != nil {
			return nil, fmt.Errorf("load_balance_weights: %w", err)
		}
	}

	members := make([]domain.WeightedGateway, 0, len(ids))
	for _, id := range ids {
		weight, ok := weights[strconv.FormatInt(id, 10)]
		if !ok {
			weight = 1
		}
		members = append(members, domain.WeightedGateway{GatewayID: id, Weight: weight})
	}
	return members, nil
}

func jsonScalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}

func isEmptyJSON(raw []byte) bool {
	s := string(raw)
	return s == "" || s == "null" || s == "{}" || s == "[]"
}
