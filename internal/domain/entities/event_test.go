package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEventTypeValid(t *testing.T) {
	valid := []EventType{
		EventSessionStart, EventSessionEnd, EventPageView, EventScroll, EventClick,
		EventAddToCart, EventRemoveFromCart, EventUpdateCart,
		EventCheckoutStart, EventCheckoutStep,
		EventPaymentStart, EventPaymentSuccess, EventPaymentFailed,
		EventPurchase, EventCartAbandon,
		EventSearch, EventProductView, EventCollectionView,
		EventWishlistAdd, EventWishlistRemove,
		EventCouponApply, EventCouponRemove,
	}
	for _, eventType := range valid {
		assert.True(t, eventType.Valid(), "expected %q to be valid", eventType)
	}

	for _, eventType := range []EventType{"", "PAGE_VIEW", "pageview", "telepathy"} {
		assert.False(t, eventType.Valid(), "expected %q to be invalid", eventType)
	}
}

func TestNewEvent(t *testing.T) {
	before := time.Now().UTC()
	event := NewEvent("s1", "v1", EventSearch, EventData{SearchQuery: "mug", SearchResults: 12})

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, "s1", event.SessionID)
	assert.Equal(t, "v1", event.VisitorID)
	assert.Equal(t, EventSearch, event.Type)
	assert.Equal(t, "mug", event.Data.SearchQuery)
	assert.False(t, event.Timestamp.Before(before))

	other := NewEvent("s1", "v1", EventSearch, EventData{})
	assert.NotEqual(t, event.ID, other.ID)
}

func TestDailyStatsColumnWhitelist(t *testing.T) {
	col, ok := DailyStatsColumn("revenue")
	assert.True(t, ok)
	assert.Equal(t, "revenue", col)

	col, ok = DailyStatsColumn("checkoutsStarted")
	assert.True(t, ok)
	assert.Equal(t, "checkouts_started", col)

	_, ok = DailyStatsColumn("date")
	assert.False(t, ok)
	_, ok = DailyStatsColumn("revenue; DROP TABLE live_stats_daily")
	assert.False(t, ok)
}

func TestDeviceField(t *testing.T) {
	assert.Equal(t, "devicesDesktop", DeviceField(DeviceDesktop))
	assert.Equal(t, "devicesMobile", DeviceField(DeviceMobile))
	assert.Equal(t, "devicesTablet", DeviceField(DeviceTablet))
	assert.Equal(t, "devicesDesktop", DeviceField(DeviceType("toaster")))
}

func TestDateKey(t *testing.T) {
	ts := time.Date(2026, 3, 9, 23, 30, 0, 0, time.FixedZone("UTC+2", 2*3600))
	// 23:30 UTC+2 is 21:30 UTC, still the same day.
	assert.Equal(t, "2026-03-09", DateKey(ts))
}
