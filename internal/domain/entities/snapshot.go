package entities

import "time"

// DeviceBreakdown counts active sessions per device class
type DeviceBreakdown struct {
	Desktop int `json:"desktop"`
	Mobile  int `json:"mobile"`
	Tablet  int `json:"tablet"`
}

// CityCount is one entry of the top-cities ranking
type CityCount struct {
	City     string `json:"city"`
	Country  string `json:"country"`
	Visitors int    `json:"count"`
}

// Snapshot is a point-in-time summary of the active sessions
type Snapshot struct {
	ActiveVisitors  int             `json:"activeVisitors"`
	ActiveCarts     int             `json:"activeCarts"`
	ActiveCartValue float64         `json:"activeCartValue"`
	InCheckout      int             `json:"inCheckout"`
	DeviceBreakdown DeviceBreakdown `json:"deviceBreakdown"`
	TopCities       []CityCount     `json:"topCities"`
	Timestamp       time.Time       `json:"timestamp"`
}

// VisitorLocation is the dashboard view of a visitor's location
type VisitorLocation struct {
	City    string  `json:"city"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

// VisitorView is the dashboard projection of an active session
type VisitorView struct {
	ID          string          `json:"id"`
	Location    VisitorLocation `json:"location"`
	CurrentPage string          `json:"currentPage"`
	Device      DeviceType      `json:"device"`
	Duration    int             `json:"duration"`
	CartItems   int             `json:"cartItems"`
	CartValue   float64         `json:"cartValue"`
	Status      SessionStatus   `json:"status"`
	LastActive  time.Time       `json:"lastActive"`
	PageViews   int             `json:"pageViews"`
	Referrer    string          `json:"referrer,omitempty"`
}

// VisitorViewFrom projects a session for the dashboard, resolving missing
// location fields to an explicit Unknown
func VisitorViewFrom(s *Session, now time.Time) VisitorView {
	city, country := s.City, s.Country
	if city == "" {
		city = "Unknown"
	}
	if country == "" {
		country = "Unknown"
	}
	device := s.Device
	if device == "" {
		device = DeviceDesktop
	}
	status := s.Status
	if status == "" {
		status = SessionStatusBrowsing
	}
	return VisitorView{
		ID:          s.SessionID,
		Location:    VisitorLocation{City: city, Country: country, Lat: s.Latitude, Lng: s.Longitude},
		CurrentPage: s.CurrentPage,
		Device:      device,
		Duration:    int(now.Sub(s.StartedAt).Seconds()),
		CartItems:   s.CartItems,
		CartValue:   s.CartValue,
		Status:      status,
		LastActive:  s.LastActiveAt,
		PageViews:   s.PageViews,
		Referrer:    s.Referrer,
	}
}

// EventView is the dashboard projection of an event
type EventView struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Visitor   string    `json:"visitor"`
	Data      EventData `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// EventViewFrom projects an event for the live feed; the visitor label is
// the event's city snapshot
func EventViewFrom(e *Event) EventView {
	visitor := e.City
	if visitor == "" {
		visitor = "Unknown"
	}
	return EventView{
		ID:        e.ID,
		Type:      e.Type,
		Visitor:   visitor,
		Data:      e.Data,
		Timestamp: e.Timestamp,
	}
}

// StreamUpdate is one message on the dashboard stream
type StreamUpdate struct {
	Type      string        `json:"type"`
	Stats     *Snapshot     `json:"stats"`
	Visitors  []VisitorView `json:"visitors"`
	Events    []EventView   `json:"events"`
	Timestamp time.Time     `json:"timestamp"`
}
