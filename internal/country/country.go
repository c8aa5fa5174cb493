// Package country converts between country code formats used by the
// verification provider and the upstream application.
package country

import "strings"

var iso2ToISO3 = map[string]string{
	"PK": "PAK",
	"IN": "IND",
	"US": "USA",
	"GB": "GBR",
	"UK": "GBR",
	"CA": "CAN",
	"AU": "AUS",
	"AE": "ARE",
	"SA": "SAU",
	"FR": "FRA",
	"DE": "DEU",
	"IT": "ITA",
	"ES": "ESP",
	"NL": "NLD",
	"SE": "SWE",
	"NO": "NOR",
	"DK": "DNK",
	"FI": "FIN",
}

// ToISO3 converts an ISO2 country code to ISO3. Unknown or empty codes
// return "".
func ToISO3(code string) string {
	if code == "" {
		return ""
	}
	return iso2ToISO3[strings.ToUpper(code)]
}
