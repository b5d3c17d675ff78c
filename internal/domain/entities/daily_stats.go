package entities

import "time"

// DateKey formats a time as the daily stats date key (YYYY-MM-DD, UTC)
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// DailyStats is the per-calendar-day aggregate record. Counters only
// accumulate within the day; a new date key starts a fresh row.
type DailyStats struct {
	Date string `json:"date"`

	TotalVisitors     int `json:"totalVisitors"`
	UniqueVisitors    int `json:"uniqueVisitors"`
	ReturningVisitors int `json:"returningVisitors"`

	TotalPageViews int `json:"totalPageViews"`

	CartsCreated   int     `json:"cartsCreated"`
	CartsAbandoned int     `json:"cartsAbandoned"`
	AbandonedValue float64 `json:"abandonedValue"`

	CheckoutsStarted   int `json:"checkoutsStarted"`
	CheckoutsCompleted int `json:"checkoutsCompleted"`

	OrdersCount int     `json:"ordersCount"`
	Revenue     float64 `json:"revenue"`

	DevicesDesktop int `json:"devicesDesktop"`
	DevicesMobile  int `json:"devicesMobile"`
	DevicesTablet  int `json:"devicesTablet"`

	TrafficDirect   int `json:"trafficDirect"`
	TrafficOrganic  int `json:"trafficOrganic"`
	TrafficSocial   int `json:"trafficSocial"`
	TrafficReferral int `json:"trafficReferral"`
	TrafficPaid     int `json:"trafficPaid"`
}

// dailyStatsColumns maps the external increment field names to their
// storage columns. Increments against any other name are rejected.
var dailyStatsColumns = map[string]string{
	"totalVisitors":      "total_visitors",
	"uniqueVisitors":     "unique_visitors",
	"returningVisitors":  "returning_visitors",
	"totalPageViews":     "total_page_views",
	"cartsCreated":       "carts_created",
	"cartsAbandoned":     "carts_abandoned",
	"abandonedValue":     "abandoned_value",
	"checkoutsStarted":   "checkouts_started",
	"checkoutsCompleted": "checkouts_completed",
	"ordersCount":        "orders_count",
	"revenue":            "revenue",
	"devicesDesktop":     "devices_desktop",
	"devicesMobile":      "devices_mobile",
	"devicesTablet":      "devices_tablet",
	"trafficDirect":      "traffic_direct",
	"trafficOrganic":     "traffic_organic",
	"trafficSocial":      "traffic_social",
	"trafficReferral":    "traffic_referral",
	"trafficPaid":        "traffic_paid",
}

// DailyStatsColumn resolves an increment field name to its storage column
func DailyStatsColumn(field string) (string, bool) {
	col, ok := dailyStatsColumns[field]
	return col, ok
}

// DailyStatsColumns returns a copy of the full field-to-column whitelist
func DailyStatsColumns() map[string]string {
	out := make(map[string]string, len(dailyStatsColumns))
	for field, col := range dailyStatsColumns {
		out[field] = col
	}
	return out
}

// DeviceField returns the daily stats increment field for a device class
func DeviceField(device DeviceType) string {
	switch device {
	case DeviceMobile:
		return "devicesMobile"
	case DeviceTablet:
		return "devicesTablet"
	default:
		return "devicesDesktop"
	}
}

// DailyComparison merges today's aggregates with yesterday's for the
// dashboard header cards. Percentage deltas with a zero base are 0.
type DailyComparison struct {
	TodayRevenue  float64 `json:"todayRevenue"`
	TodayOrders   int     `json:"todayOrders"`
	TodayVisitors int     `json:"todayVisitors"`

	AbandonedCarts int     `json:"abandonedCarts"`
	AbandonedValue float64 `json:"abandonedValue"`

	ConversionRate float64 `json:"conversionRate"`

	YesterdayRevenue float64 `json:"yesterdayRevenue"`
	RevenueChange    float64 `json:"revenueChange"`
	OrdersChange     float64 `json:"ordersChange"`
	VisitorsChange   float64 `json:"visitorsChange"`
}
