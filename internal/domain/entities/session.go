package entities

import (
	"regexp"
	"strings"
	"time"
)

// DeviceType classifies the visitor's device
type DeviceType string

const (
	DeviceDesktop DeviceType = "desktop"
	DeviceMobile  DeviceType = "mobile"
	DeviceTablet  DeviceType = "tablet"
)

// SessionStatus represents where a session is in the shopping funnel
type SessionStatus string

const (
	SessionStatusBrowsing  SessionStatus = "browsing"
	SessionStatusCart      SessionStatus = "cart"
	SessionStatusCheckout  SessionStatus = "checkout"
	SessionStatusPurchased SessionStatus = "purchased"
	SessionStatusAbandoned SessionStatus = "abandoned"
)

// CartProduct is one line item in a session's cart
type CartProduct struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

// Session represents one browsing session from first contact to expiry.
// A session with LastActiveAt older than the active window is expired and
// must not appear in active queries.
type Session struct {
	SessionID string `json:"sessionId"`
	VisitorID string `json:"visitorId,omitempty"`

	// Location resolved from the network address at session start
	IP        string  `json:"ip,omitempty"`
	City      string  `json:"city,omitempty"`
	Region    string  `json:"region,omitempty"`
	Country   string  `json:"country,omitempty"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`

	Device    DeviceType `json:"device"`
	Browser   string     `json:"browser,omitempty"`
	UserAgent string     `json:"userAgent,omitempty"`

	CurrentPage string `json:"currentPage,omitempty"`
	Referrer    string `json:"referrer,omitempty"`
	UTMSource   string `json:"utmSource,omitempty"`
	UTMMedium   string `json:"utmMedium,omitempty"`
	UTMCampaign string `json:"utmCampaign,omitempty"`

	CartItems    int           `json:"cartItems"`
	CartValue    float64       `json:"cartValue"`
	CartProducts []CartProduct `json:"cartProducts,omitempty"`

	Status SessionStatus `json:"status"`

	StartedAt    time.Time  `json:"startedAt"`
	LastActiveAt time.Time  `json:"lastActiveAt"`
	EndedAt      *time.Time `json:"endedAt,omitempty"`

	PageViews int `json:"pageViews"`

	// Duration is derived as now - StartedAt, in seconds; it is annotated
	// on reads, never stored
	Duration int `json:"duration"`
}

// SessionPatch is the atomic merge unit applied by SessionRepository.Upsert.
// Storage adapters must apply it as a single field-level merge: scalar sets
// are latest-wins, deltas are clamped at zero, and LastActiveAt converges to
// max(existing, incoming) so concurrent updates never regress activity.
type SessionPatch struct {
	// Base seeds a session that does not exist yet; ignored otherwise
	Base *Session

	LastActiveAt time.Time

	CurrentPage *string
	Status      *SessionStatus
	EndedAt     *time.Time

	PageViewsDelta int
	CartItemsDelta int
	CartValueDelta float64

	AddCartProduct *CartProduct
	ClearCart      bool
}

// ApplyTo applies the patch to an in-memory session. It is the reference
// semantics for the merge; storage adapters implement the same rules with
// their native atomic operations.
func (p *SessionPatch) ApplyTo(s *Session) {
	if p.CurrentPage != nil {
		s.CurrentPage = *p.CurrentPage
	}
	if p.Status != nil {
		s.Status = *p.Status
	}
	if p.EndedAt != nil {
		ended := *p.EndedAt
		s.EndedAt = &ended
	}
	s.PageViews += p.PageViewsDelta
	s.CartItems += p.CartItemsDelta
	if s.CartItems < 0 {
		s.CartItems = 0
	}
	s.CartValue += p.CartValueDelta
	if s.CartValue < 0 {
		s.CartValue = 0
	}
	if p.ClearCart {
		s.CartItems = 0
		s.CartValue = 0
		s.CartProducts = nil
	}
	if p.AddCartProduct != nil {
		s.CartProducts = append(s.CartProducts, *p.AddCartProduct)
	}
	if p.LastActiveAt.After(s.LastActiveAt) {
		s.LastActiveAt = p.LastActiveAt
	}
}

var (
	tabletPattern = regexp.MustCompile(`(?i)tablet|ipad|playbook|silk`)
	mobilePattern = regexp.MustCompile(`(?i)mobile|iphone|ipod|android|blackberry|opera mini|iemobile`)
)

// DetectDevice classifies a user agent string
func DetectDevice(userAgent string) DeviceType {
	if tabletPattern.MatchString(userAgent) {
		return DeviceTablet
	}
	if mobilePattern.MatchString(userAgent) {
		return DeviceMobile
	}
	return DeviceDesktop
}

// DetectBrowser extracts a coarse browser name from a user agent string
func DetectBrowser(userAgent string) string {
	switch {
	case strings.Contains(userAgent, "Firefox"):
		return "Firefox"
	case strings.Contains(userAgent, "Edge"):
		return "Edge"
	case strings.Contains(userAgent, "Chrome"):
		return "Chrome"
	case strings.Contains(userAgent, "Safari"):
		return "Safari"
	case strings.Contains(userAgent, "Opera"):
		return "Opera"
	default:
		return "Other"
	}
}
