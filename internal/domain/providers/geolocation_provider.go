package providers

import (
	"context"
)

// GeoLocation is a best-effort location resolved from a network address
type GeoLocation struct {
	City      string  `json:"city"`
	Region    string  `json:"region"`
	Country   string  `json:"country"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
	Timezone  string  `json:"timezone"`
}

// UnknownLocation is returned when an address cannot be resolved. Unknown
// is represented explicitly rather than substituting a fabricated city.
func UnknownLocation() *GeoLocation {
	return &GeoLocation{City: "Unknown", Country: "Unknown", Timezone: "UTC"}
}

// GeolocationProvider resolves a network address to a location.
// Implementations must not fail the ingesting request: lookup errors and
// private/loopback addresses resolve to UnknownLocation.
type GeolocationProvider interface {
	Lookup(ctx context.Context, ip string) (*GeoLocation, error)
}
