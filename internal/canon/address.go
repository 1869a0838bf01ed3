// Package canon normalizes listing addresses into a stable parcel key so
// digest history rows for the same house line up across runs.
package canon

import (
	"regexp"
	"strings"

	"github.com/yourorg/ostrich-api/zillow"
)

var rePunct = regexp.MustCompile(`[^A-Za-z0-9\s]`)

// Address is a normalized street address.
type Address struct {
	Street string
	City   string
	State  string
	Zip    string
}

// Key is the lower-cased pipe-joined form used as listing_data.property_key.
func (a Address) Key() string {
	return strings.ToLower(a.Street + "|" + a.City + "|" + a.State + "|" + a.Zip)
}

// Empty reports whether nothing survived normalization.
func (a Address) Empty() bool {
	return a.Street == "" && a.City == "" && a.State == "" && a.Zip == ""
}

// Normalize upper-cases, strips unit designators and abbreviates street
// suffixes and state names. Units are ignored so a parcel has one key.
func Normalize(street, city, state, zip string) Address {
	s := stripUnit(strings.ToUpper(strings.TrimSpace(street)))
	s = collapse(rePunct.ReplaceAllString(s, " "))
	s = abbreviateSuffix(s)

	st := strings.ToUpper(strings.TrimSpace(state))
	if abbr, ok := states[st]; ok {
		st = abbr
	}
	return Address{
		Street: s,
		City:   collapse(rePunct.ReplaceAllString(strings.ToUpper(city), " ")),
		State:  st,
		Zip:    trimZIP(zip),
	}
}

// FromListing normalizes a detail record's address. ok is false when the
// record carries no usable address.
func FromListing(a *zillow.Address) (Address, bool) {
	if a == nil {
		return Address{}, false
	}
	n := Normalize(deref(a.StreetAddress), deref(a.City), deref(a.State), deref(a.Zipcode))
	if n.Street == "" {
		return n, false
	}
	return n, true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func trimZIP(z string) string {
	z = strings.TrimSpace(z)
	if len(z) > 5 {
		return z[:5]
	}
	return z
}

var unitMarkers = []string{" APT ", " UNIT ", " STE ", " SUITE ", " #"}

func stripUnit(s string) string {
	padded := " " + s + " "
	for _, m := range unitMarkers {
		if i := strings.Index(padded, m); i >= 0 {
			return strings.TrimSpace(padded[:i])
		}
	}
	return strings.TrimSpace(s)
}

// suffixes is applied on word boundaries only, so "STREETS" is left alone.
var suffixes = map[string]string{
	"STREET":    "ST",
	"ROAD":      "RD",
	"AVENUE":    "AVE",
	"BOULEVARD": "BLVD",
	"DRIVE":     "DR",
	"LANE":      "LN",
	"COURT":     "CT",
	"CIRCLE":    "CIR",
	"TERRACE":   "TER",
	"PLACE":     "PL",
	"PARKWAY":   "PKWY",
	"HIGHWAY":   "HWY",
}

func abbreviateSuffix(s string) string {
	words := strings.Fields(s)
	// the house number never gets abbreviated
	for i := 1; i < len(words); i++ {
		if v, ok := suffixes[words[i]]; ok {
			words[i] = v
		}
	}
	return strings.Join(words, " ")
}

var states = map[string]string{
	"ALABAMA": "AL", "ALASKA": "AK", "ARIZONA": "AZ", "ARKANSAS": "AR", "CALIFORNIA": "CA",
	"COLORADO": "CO", "CONNECTICUT": "CT", "DELAWARE": "DE", "FLORIDA": "FL", "GEORGIA": "GA",
	"HAWAII": "HI", "IDAHO": "ID", "ILLINOIS": "IL", "INDIANA": "IN", "IOWA": "IA",
	"KANSAS": "KS", "KENTUCKY": "KY", "LOUISIANA": "LA", "MAINE": "ME", "MARYLAND": "MD",
	"MASSACHUSETTS": "MA", "MICHIGAN": "MI", "MINNESOTA": "MN", "MISSISSIPPI": "MS", "MISSOURI": "MO",
	"MONTANA": "MT", "NEBRASKA": "NE", "NEVADA": "NV", "NEW HAMPSHIRE": "NH", "NEW JERSEY": "NJ",
	"NEW MEXICO": "NM", "NEW YORK": "NY", "NORTH CAROLINA": "NC", "NORTH DAKOTA": "ND", "OHIO": "OH",
	"OKLAHOMA": "OK", "OREGON": "OR", "PENNSYLVANIA": "PA", "RHODE ISLAND": "RI", "SOUTH CAROLINA": "SC",
	"SOUTH DAKOTA": "SD", "TENNESSEE": "TN", "TEXAS": "TX", "UTAH": "UT", "VERMONT": "VT",
	"VIRGINIA": "VA", "WASHINGTON": "WA", "WEST VIRGINIA": "WV", "WISCONSIN": "WI", "WYOMING": "WY",
	"DISTRICT OF COLUMBIA": "DC",
}
