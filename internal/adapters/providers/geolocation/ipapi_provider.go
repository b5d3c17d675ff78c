package geolocation

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/storepulse/analytics-backend/internal/domain/providers"
)

const (
	ipAPIBaseURL       = "http://ip-api.com/json"
	defaultHTTPTimeout = 3 * time.Second
	defaultCacheTTL    = 24 * time.Hour
)

// IPAPIGeolocationProvider resolves visitor IP addresses using the ip-api.com
// JSON endpoint. Lookups are memoized in the cache so repeated events from the
// same address cost one upstream call per day.
type IPAPIGeolocationProvider struct {
	httpClient *http.Client
	cache      providers.CacheProvider
	cacheTTL   time.Duration
	baseURL    string
}

// NewIPAPIGeolocationProvider creates a new ip-api.com geolocation provider.
// A non-positive timeout falls back to the default.
func NewIPAPIGeolocationProvider(cache providers.CacheProvider, cacheTTL, timeout time.Duration) providers.GeolocationProvider {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return NewIPAPIGeolocationProviderWithOptions(cache, cacheTTL, ipAPIBaseURL, &http.Client{Timeout: timeout})
}

// NewIPAPIGeolocationProviderWithOptions allows overriding base URL and HTTP client (used for tests).
func NewIPAPIGeolocationProviderWithOptions(cache providers.CacheProvider, cacheTTL time.Duration, baseURL string, httpClient *http.Client) providers.GeolocationProvider {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = ipAPIBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	return &IPAPIGeolocationProvider{
		httpClient: httpClient,
		cache:      cache,
		cacheTTL:   cacheTTL,
		baseURL:    baseURL,
	}
}

// Lookup resolves an IP address to a location. It never returns an error for
// unresolvable addresses: private, loopback, malformed and upstream-failed
// lookups all resolve to UnknownLocation so ingestion is never blocked.
func (p *IPAPIGeolocationProvider) Lookup(ctx context.Context, ip string) (*providers.GeoLocation, error) {
	trimmed := strings.TrimSpace(ip)
	if !isPublicAddress(trimmed) {
		return providers.UnknownLocation(), nil
	}

	cacheKey := "geo:ip:" + trimmed
	if p.cache != nil {
		if cached, err := p.cache.Get(ctx, cacheKey); err == nil && len(cached) > 0 {
			var loc providers.GeoLocation
			if err := json.Unmarshal(cached, &loc); err == nil && loc.City != "" {
				return &loc, nil
			}
		}
	}

	loc, err := p.doLookup(ctx, trimmed)
	if err != nil {
		log.Debug().Err(err).Str("ip", trimmed).Msg("Geolocation lookup failed")
		return providers.UnknownLocation(), nil
	}

	if p.cache != nil {
		if payload, err := json.Marshal(loc); err == nil {
			_ = p.cache.Set(ctx, cacheKey, payload, p.cacheTTL)
		}
	}

	return loc, nil
}

func (p *IPAPIGeolocationProvider) doLookup(ctx context.Context, ip string) (*providers.GeoLocation, error) {
	reqURL := fmt.Sprintf("%s/%s", p.baseURL, ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build geolocation request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geolocation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("geolocation request returned status %d", resp.StatusCode)
	}

	var payload ipAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode geolocation response: %w", err)
	}

	if payload.Status != "success" {
		return nil, fmt.Errorf("geolocation lookup failed: %s", payload.Message)
	}

	loc := &providers.GeoLocation{
		City:      payload.City,
		Region:    payload.RegionName,
		Country:   payload.Country,
		Latitude:  payload.Lat,
		Longitude: payload.Lon,
		Timezone:  payload.Timezone,
	}
	if loc.City == "" {
		loc.City = "Unknown"
	}
	if loc.Country == "" {
		loc.Country = "Unknown"
	}
	if loc.Timezone == "" {
		loc.Timezone = "UTC"
	}
	return loc, nil
}

// isPublicAddress reports whether ip is a routable address worth looking up.
func isPublicAddress(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	if parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified() || parsed.IsLinkLocalUnicast() {
		return false
	}
	return true
}

type ipAPIResponse struct {
	Status     string  `json:"status"`
	Message    string  `json:"message,omitempty"`
	Country    string  `json:"country"`
	RegionName string  `json:"regionName"`
	City       string  `json:"city"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Timezone   string  `json:"timezone"`
}
