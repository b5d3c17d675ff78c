package geolocation

import (
	"context"
	"hash/fnv"

	"github.com/storepulse/analytics-backend/internal/domain/providers"
)

// MockGeolocationProvider implements a deterministic geolocation provider for
// local development and testing. The same IP always resolves to the same city.
type MockGeolocationProvider struct{}

// NewMockGeolocationProvider creates a new mock geolocation provider
func NewMockGeolocationProvider() providers.GeolocationProvider {
	return &MockGeolocationProvider{}
}

var mockLocations = []providers.GeoLocation{
	{City: "New York", Region: "New York", Country: "United States", Latitude: 40.7128, Longitude: -74.0060, Timezone: "America/New_York"},
	{City: "Los Angeles", Region: "California", Country: "United States", Latitude: 34.0522, Longitude: -118.2437, Timezone: "America/Los_Angeles"},
	{City: "Chicago", Region: "Illinois", Country: "United States", Latitude: 41.8781, Longitude: -87.6298, Timezone: "America/Chicago"},
	{City: "London", Region: "England", Country: "United Kingdom", Latitude: 51.5074, Longitude: -0.1278, Timezone: "Europe/London"},
	{City: "Berlin", Region: "Berlin", Country: "Germany", Latitude: 52.5200, Longitude: 13.4050, Timezone: "Europe/Berlin"},
	{City: "Lagos", Region: "Lagos", Country: "Nigeria", Latitude: 6.5244, Longitude: 3.3792, Timezone: "Africa/Lagos"},
	{City: "Tokyo", Region: "Tokyo", Country: "Japan", Latitude: 35.6762, Longitude: 139.6503, Timezone: "Asia/Tokyo"},
	{City: "Sydney", Region: "New South Wales", Country: "Australia", Latitude: -33.8688, Longitude: 151.2093, Timezone: "Australia/Sydney"},
}

// Lookup resolves ip to one of a fixed set of cities, chosen by hashing the
// address so repeated lookups are stable.
func (m *MockGeolocationProvider) Lookup(ctx context.Context, ip string) (*providers.GeoLocation, error) {
	if ip == "" {
		return providers.UnknownLocation(), nil
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(ip))
	loc := mockLocations[int(h.Sum32())%len(mockLocations)]
	return &loc, nil
}
