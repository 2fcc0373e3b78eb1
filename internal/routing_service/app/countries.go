package app

import (
	"strconv"
	"sync"

	"github.com/nyaruka/phonenumbers"

	"github.com/aradsms/routing_engine/internal/routing_service/domain"
)

var (
	builtinCountriesOnce sync.Once
	builtinCountries     domain.CountryCodes
)

// BuiltinCountryCodes returns the calling codes known to libphonenumber. It is used
// when the country code table is empty.
func BuiltinCountryCodes() domain.CountryCodes {
	builtinCountriesOnce.Do(func() {
		regions := phonenumbers.GetSupportedRegions()
		codes := make([]string, 0, len(regions))
		for region := range regions {
			if cc := phonenumbers.GetCountryCodeForRegion(region); cc > 0 {
				codes = append(codes, strconv.Itoa(cc))
			}
		}
		builtinCountries = domain.NewCountryCodes(codes...)
	})
	return builtinCountries
}
