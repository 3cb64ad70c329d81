package core

import "strings"

// alpha3to2 is the fixed ISO 3166-1 alpha-3 -> alpha-2 lookup used to
// normalise country codes at the boundary, as spec.md §3 requires.
// Only codes that appear in ICAO-issued trust material are listed;
// unknown codes pass through unchanged (callers treat that as "unable
// to normalise" rather than a hard failure, matching spec.md's
// "alpha-3 inputs are normalised at the boundary" without mandating a
// panic on an unrecognised one).
var alpha3to2 = map[string]string{
	"USA": "US", "DEU": "DE", "FRA": "FR", "GBR": "GB", "NLD": "NL",
	"BEL": "BE", "CHE": "CH", "AUT": "AT", "ITA": "IT", "ESP": "ES",
	"PRT": "PT", "SWE": "SE", "NOR": "NO", "DNK": "DK", "FIN": "FI",
	"POL": "PL", "CZE": "CZ", "SVK": "SK", "HUN": "HU", "ROU": "RO",
	"BGR": "BG", "GRC": "GR", "IRL": "IE", "LUX": "LU", "KOR": "KR",
	"JPN": "JP", "CHN": "CN", "IND": "IN", "AUS": "AU", "NZL": "NZ",
	"CAN": "CA", "MEX": "MX", "BRA": "BR", "ARG": "AR", "ZAF": "ZA",
	"RUS": "RU", "TUR": "TR", "ISR": "IL", "ARE": "AE", "SAU": "SA",
	"SGP": "SG", "MYS": "MY", "THA": "TH", "VNM": "VN", "IDN": "ID",
	"PHL": "PH", "HRV": "HR", "SVN": "SI", "EST": "EE", "LVA": "LV",
	"LTU": "LT", "ISL": "IS", "LIE": "LI", "MLT": "MT", "CYP": "CY",
}

// NormaliseCountry converts an alpha-3 code to alpha-2 via the fixed
// lookup table. Alpha-2 input, or any code not present in the table,
// is returned upper-cased and otherwise unchanged.
func NormaliseCountry(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) == 2 {
		return code
	}
	if a2, ok := alpha3to2[code]; ok {
		return a2
	}
	return code
}

// ExtractCountryFromDN pulls the first "C=" or "c=" RDN value out of a
// distinguished name string. Returns "" if none is present.
func ExtractCountryFromDN(dn string) string {
	for _, rdn := range splitDN(dn) {
		k, v, ok := splitRDN(rdn)
		if ok && strings.EqualFold(k, "C") {
			return NormaliseCountry(v)
		}
	}
	return ""
}

// ExtractSubjectCN pulls the first "CN=" RDN value out of a
// distinguished name string.
func ExtractSubjectCN(dn string) string {
	for _, rdn := range splitDN(dn) {
		k, v, ok := splitRDN(rdn)
		if ok && strings.EqualFold(k, "CN") {
			return v
		}
	}
	return ""
}

func splitDN(dn string) []string {
	var parts []string
	var cur strings.Builder
	escaped := false
	for _, r := range dn {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			cur.WriteRune(r)
			escaped = true
		case r == ',' || r == '+':
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		parts = append(parts, cur.String())
	}
	return parts
}

func splitRDN(rdn string) (key, value string, ok bool) {
	idx := strings.Index(rdn, "=")
	if idx < 0 {
		return "", "", false
	}
	return strings.TrimSpace(rdn[:idx]), strings.TrimSpace(rdn[idx+1:]), true
}
