package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// ConditionKind names how a routing rule selects messages.
type ConditionKind string

const (
	ConditionAddressPrefix ConditionKind = "ADDRESS_PREFIX"
	ConditionSenderPattern ConditionKind = "SENDER_PATTERN"
	ConditionCustomerMatch ConditionKind = "CUSTOMER_MATCH"
	ConditionCountryMatch  ConditionKind = "COUNTRY_MATCH"
	ConditionMessageType   ConditionKind = "MESSAGE_TYPE"
	ConditionRegex         ConditionKind = "REGEX"
	ConditionCombined      ConditionKind = "COMBINED"
)

// Older rule rows were written with the short condition_type names.
var legacyConditionKinds = map[string]ConditionKind{
	"PREFIX":   ConditionAddressPrefix,
	"SENDER":   ConditionSenderPattern,
	"CUSTOMER": ConditionCustomerMatch,
	"COUNTRY":  ConditionCountryMatch,
}

// ParseConditionKind maps a persisted condition_type value to a ConditionKind.
func ParseConditionKind(s string) (ConditionKind, error) {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	switch k := ConditionKind(normalized); k {
	case ConditionAddressPrefix, ConditionSenderPattern, ConditionCustomerMatch,
		ConditionCountryMatch, ConditionMessageType, ConditionRegex, ConditionCombined:
		return k, nil
	}
	if k, ok := legacyConditionKinds[normalized]; ok {
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownConditionKind, s)
}

// Condition is one of the concrete condition types declared in this file.
// The set is closed: only this package can add a variant.
type Condition interface {
	Kind() ConditionKind
	isCondition()
}

// AddressPrefix matches destinations starting with Prefix.
type AddressPrefix struct {
	Prefix string
}

// SenderPattern matches sender ids against a regular expression anchored at the start.
type SenderPattern struct {
	Pattern string
	expr    *regexp.Regexp
}

// NewSenderPattern compiles pattern anchored at the start of the sender id.
func NewSenderPattern(pattern string) (SenderPattern, error) {
	expr, err := regexp.Compile(`^(?:` + pattern + `)`)
	if err != nil {
		return SenderPattern{}, fmt.Errorf("%w: sender pattern %q: %v", ErrInvalidCondition, pattern, err)
	}
	return SenderPattern{Pattern: pattern, expr: expr}, nil
}

// MatchString reports whether sender matches. A pattern that was never compiled matches nothing.
func (c SenderPattern) MatchString(sender string) bool {
	return c.expr != nil && c.expr.MatchString(sender)
}

// CustomerMatch matches requests from the customer that owns the rule.
type CustomerMatch struct{}

// CountryMatch matches destinations whose derived country code equals CountryCode.
type CountryMatch struct {
	CountryCode string
}

// MessageTypeMatch matches requests tagged with exactly MessageType.
type MessageTypeMatch struct {
	MessageType string
}

// RegexMatch matches destinations that fully match Pattern.
type RegexMatch struct {
	Pattern string
	expr    *regexp.Regexp
}

// NewRegexMatch compiles pattern anchored at both ends of the destination.
func NewRegexMatch(pattern string) (RegexMatch, error) {
	expr, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		return RegexMatch{}, fmt.Errorf("%w: regex %q: %v", ErrInvalidCondition, pattern, err)
	}
	return RegexMatch{Pattern: pattern, expr: expr}, nil
}

// MatchString reports whether address matches. A pattern that was never compiled matches nothing.
func (c RegexMatch) MatchString(address string) bool {
	return c.expr != nil && c.expr.MatchString(address)
}

// Combined is the logical AND of whichever sub-conditions are set.
// Sender is compared for equality, not as a pattern.
type Combined struct {
	Prefix      *string `json:"prefix,omitempty"`
	Sender      *string `json:"sender,omitempty"`
	MessageType *string `json:"message_type,omitempty"`
	Country     *string `json:"country,omitempty"`
}

// Empty reports whether no sub-condition is set. An empty Combined never matches.
func (c Combined) Empty() bool {
	return c.Prefix == nil && c.Sender == nil && c.MessageType == nil && c.Country == nil
}

func (AddressPrefix) Kind() ConditionKind    { return ConditionAddressPrefix }
func (SenderPattern) Kind() ConditionKind    { return ConditionSenderPattern }
func (CustomerMatch) Kind() ConditionKind    { return ConditionCustomerMatch }
func (CountryMatch) Kind() ConditionKind     { return ConditionCountryMatch }
func (MessageTypeMatch) Kind() ConditionKind { return ConditionMessageType }
func (RegexMatch) Kind() ConditionKind       { return ConditionRegex }
func (Combined) Kind() ConditionKind         { return ConditionCombined }

func (AddressPrefix) isCondition()    {}
func (SenderPattern) isCondition()    {}
func (CustomerMatch) isCondition()    {}
func (CountryMatch) isCondition()     {}
func (MessageTypeMatch) isCondition() {}
func (RegexMatch) isCondition()       {}
func (Combined) isCondition()         {}

// ConditionSpec is the persisted shape of a rule condition: the condition_type and
// condition_value columns plus the per-kind filter columns.
type ConditionSpec struct {
	Kind          string
	Value         string
	AddressPrefix string
	SenderPattern string
	MessageType   string
	CountryCode   string
	RegexPattern  string
	Combined      map[string]string
}

// Decode turns the persisted condition into a Condition. The kind-specific column wins
// over condition_value when both are set.
func (s ConditionSpec) Decode() (Condition, error) {
	kind, err := ParseConditionKind(s.Kind)
	if err != nil {
		return nil, err
	}

	switch kind {
	case ConditionAddressPrefix:
		prefix := firstNonEmpty(s.AddressPrefix, s.Value)
		if prefix == "" {
			return nil, fmt.Errorf("%w: empty address prefix", ErrInvalidCondition)
		}
		return AddressPrefix{Prefix: prefix}, nil
	case ConditionSenderPattern:
		pattern := firstNonEmpty(s.SenderPattern, s.Value)
		if pattern == "" {
			return nil, fmt.Errorf("%w: empty sender pattern", ErrInvalidCondition)
		}
		return NewSenderPattern(pattern)
	case ConditionCustomerMatch:
		return CustomerMatch{}, nil
	case ConditionCountryMatch:
		code := firstNonEmpty(s.CountryCode, s.Value)
		if code == "" {
			return nil, fmt.Errorf("%w: empty country code", ErrInvalidCondition)
		}
		return CountryMatch{CountryCode: code}, nil
	case ConditionMessageType:
		messageType := firstNonEmpty(s.MessageType, s.Value)
		if messageType == "" {
			return nil, fmt.Errorf("%w: empty message type", ErrInvalidCondition)
		}
		return MessageTypeMatch{MessageType: messageType}, nil
	case ConditionRegex:
		pattern := firstNonEmpty(s.RegexPattern, s.Value)
		if pattern == "" {
			return nil, fmt.Errorf("%w: empty regex", ErrInvalidCondition)
		}
		return NewRegexMatch(pattern)
	case ConditionCombined:
		return decodeCombined(s.Combined), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownConditionKind, s.Kind)
}

func decodeCombined(values map[string]string) Combined {
	var c Combined
	if v, ok := values["prefix"]; ok {
		c.Prefix = &v
	}
	if v, ok := values["sender"]; ok {
		c.Sender = &v
	}
	if v, ok := values["message_type"]; ok {
		c.MessageType = &v
	}
	if v, ok := values["country"]; ok {
		c.Country = &v
	}
	return c
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
