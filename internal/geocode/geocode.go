// Package geocode resolves latitude/longitude pairs to place descriptions.
// The lookup is an injectable capability: callers that compose it treat
// failure as a missing annotation, never as a fatal error.
package geocode

import "context"

// Place is a reverse-geocoded description of a ground point. Open-water
// coordinates resolve to a zero Place with Ocean-like fields absent; the
// caller decides how to present that.
type Place struct {
	Country     string `json:"country,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
	Region      string `json:"region,omitempty"`
	County      string `json:"county,omitempty"`
	ISOCode     string `json:"iso_3166_2,omitempty"`
}

// Geocoder maps a latitude/longitude to a Place.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (Place, error)
}
