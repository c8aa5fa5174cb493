package shufti

import (
	"strings"

	"github.com/MAnasLatif/kyc/internal/country"
)

// VerificationData is the normalized identity record pulled out of a
// provider payload. Every field is always present, defaulting to "".
type VerificationData struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	FullName    string `json:"full_name"`
	Country     string `json:"country"`
	CountryISO3 string `json:"country_iso3"`
}

// ExtractVerificationData pulls name and country out of an arbitrarily
// shaped provider payload. Missing path segments yield empty fields, never
// an error. When first or last name is missing, both are derived from the
// full name; fields the payload did supply are never overwritten.
func ExtractVerificationData(payload map[string]interface{}) VerificationData {
	doc := childMap(childMap(childMap(payload, "response"), "verification_data"), "document")
	name := childMap(doc, "name")

	first, hasFirst := stringField(name, "first_name")
	last, hasLast := stringField(name, "last_name")
	full, _ := stringField(name, "full_name")

	if !hasFirst || first == "" || !hasLast || last == "" {
		parts := strings.Fields(full)
		switch {
		case len(parts) == 1:
			if !hasFirst {
				first = parts[0]
			}
		case len(parts) >= 2:
			if !hasFirst {
				first = parts[0]
			}
			if !hasLast {
				last = strings.Join(parts[1:], " ")
			}
		}
	}

	iso2, _ := stringField(doc, "country")

	return VerificationData{
		FirstName:   first,
		LastName:    last,
		FullName:    full,
		Country:     iso2,
		CountryISO3: country.ToISO3(iso2),
	}
}

func childMap(m map[string]interface{}, key string) map[string]interface{} {
	if m == nil {
		return nil
	}
	child, _ := m[key].(map[string]interface{})
	return child
}

// stringField reports presence separately from value: a field that exists
// but is empty counts as present and must not be replaced by the fallback.
func stringField(m map[string]interface{}, key string) (string, bool) {
	if m == nil {
		return "", false
	}
	raw, ok := m[key]
	if !ok || raw == nil {
		return "", false
	}
	s, ok := raw.(string)
	if !ok {
		return "", false
	}
	return s, true
}
