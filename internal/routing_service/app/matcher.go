package app

import (
	"strings"

	"github.com/aradsms/routing_engine/internal/routing_service/domain"
)

// Matches reports whether req satisfies the rule's condition. It has no side effects;
// a nil countries table means no destination has a derivable country.
func Matches(rule *domain.RoutingRule, req domain.RoutingRequest, countries domain.CountryTable) bool {
	if rule == nil {
		return false
	}

	switch c := rule.Condition.(type) {
	case domain.AddressPrefix:
		return strings.HasPrefix(req.DestinationAddress, c.Prefix)
	case domain.SenderPattern:
		return req.SenderID != "" && c.MatchString(req.SenderID)
	case domain.CustomerMatch:
		return rule.CustomerID != nil && req.CustomerID != nil && *rule.CustomerID == *req.CustomerID
	case domain.MessageTypeMatch:
		return req.MessageType == c.MessageType
	case domain.CountryMatch:
		code, ok := countryOf(req.DestinationAddress, countries)
		return ok && code == c.CountryCode
	case domain.RegexMatch:
		return c.MatchString(req.DestinationAddress)
	case domain.Combined:
		return matchesCombined(c, req, countries)
	}
	return false
}

func matchesCombined(c domain.Combined, req domain.RoutingRequest, countries domain.CountryTable) bool {
	if c.Empty() {
		return false
	}
	if c.Prefix != nil && !strings.HasPrefix(req.DestinationAddress, *c.Prefix) {
		return false
	}
	if c.Sender != nil && (req.SenderID == "" || req.SenderID != *c.Sender) {
		return false
	}
	if c.MessageType != nil && req.MessageType != *c.MessageType {
		return false
	}
	if c.Country != nil {
		code, ok := countryOf(req.DestinationAddress, countries)
		if !ok || code != *c.Country {
			return false
		}
	}
	return true
}

func countryOf(address string, countries domain.CountryTable) (string, bool) {
	if countries == nil {
		return "", false
	}
	return countries.LookupByPrefix(address)
}
