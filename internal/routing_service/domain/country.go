package domain

// CountryCodes is an immutable set of international calling codes.
type CountryCodes map[string]struct{}

// NewCountryCodes builds a table from codes, ignoring empty entries.
func NewCountryCodes(codes ...string) CountryCodes {
	table := make(CountryCodes, len(codes))
	for _, c := range codes {
		if c != "" {
			table[c] = struct{}{}
		}
	}
	return table
}

// LookupByPrefix derives the country code of address. Prefixes of 4, 3, 2 and 1
// characters are tried in that order; the first all-digit prefix present in the
// table wins.
func (t CountryCodes) LookupByPrefix(address string) (string, bool) {
	for length := 4; length >= 1; length-- {
		if len(address) < length {
			continue
		}
		prefix := address[:length]
		if !allDigits(prefix) {
			continue
		}
		if _, ok := t[prefix]; ok {
			return prefix, true
		}
	}
	return "", false
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
