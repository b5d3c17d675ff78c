package entities

import (
	"time"

	"github.com/google/uuid"
)

// EventType is the closed enumeration of visitor actions
type EventType string

const (
	EventSessionStart   EventType = "session_start"
	EventSessionEnd     EventType = "session_end"
	EventPageView       EventType = "page_view"
	EventScroll         EventType = "scroll"
	EventClick          EventType = "click"
	EventAddToCart      EventType = "add_to_cart"
	EventRemoveFromCart EventType = "remove_from_cart"
	EventUpdateCart     EventType = "update_cart"
	EventCheckoutStart  EventType = "checkout_start"
	EventCheckoutStep   EventType = "checkout_step"
	EventPaymentStart   EventType = "payment_start"
	EventPaymentSuccess EventType = "payment_success"
	EventPaymentFailed  EventType = "payment_failed"
	EventPurchase       EventType = "purchase"
	EventCartAbandon    EventType = "cart_abandon"
	EventSearch         EventType = "search"
	EventProductView    EventType = "product_view"
	EventCollectionView EventType = "collection_view"
	EventWishlistAdd    EventType = "wishlist_add"
	EventWishlistRemove EventType = "wishlist_remove"
	EventCouponApply    EventType = "coupon_apply"
	EventCouponRemove   EventType = "coupon_remove"
)

var validEventTypes = map[EventType]struct{}{
	EventSessionStart:   {},
	EventSessionEnd:     {},
	EventPageView:       {},
	EventScroll:         {},
	EventClick:          {},
	EventAddToCart:      {},
	EventRemoveFromCart: {},
	EventUpdateCart:     {},
	EventCheckoutStart:  {},
	EventCheckoutStep:   {},
	EventPaymentStart:   {},
	EventPaymentSuccess: {},
	EventPaymentFailed:  {},
	EventPurchase:       {},
	EventCartAbandon:    {},
	EventSearch:         {},
	EventProductView:    {},
	EventCollectionView: {},
	EventWishlistAdd:    {},
	EventWishlistRemove: {},
	EventCouponApply:    {},
	EventCouponRemove:   {},
}

// Valid reports whether t is part of the closed enumeration
func (t EventType) Valid() bool {
	_, ok := validEventTypes[t]
	return ok
}

// EventData is the type-specific payload of an event. Fields are sparse;
// only the ones relevant to the event type are set.
type EventData struct {
	Page     string `json:"page,omitempty"`
	Title    string `json:"title,omitempty"`
	Referrer string `json:"referrer,omitempty"`

	ProductID    string  `json:"productId,omitempty"`
	ProductName  string  `json:"productName,omitempty"`
	ProductPrice float64 `json:"productPrice,omitempty"`
	Quantity     int     `json:"quantity,omitempty"`

	CartItems int     `json:"cartItems,omitempty"`
	CartValue float64 `json:"cartValue,omitempty"`

	SearchQuery   string `json:"searchQuery,omitempty"`
	SearchResults int    `json:"searchResults,omitempty"`

	CheckoutStep  string `json:"checkoutStep,omitempty"`
	PaymentMethod string `json:"paymentMethod,omitempty"`

	OrderID    string  `json:"orderId,omitempty"`
	OrderTotal float64 `json:"orderTotal,omitempty"`

	CouponCode     string  `json:"couponCode,omitempty"`
	DiscountAmount float64 `json:"discountAmount,omitempty"`
}

// Event is an immutable record of one visitor action
type Event struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	VisitorID string    `json:"visitorId,omitempty"`
	Type      EventType `json:"type"`
	Data      EventData `json:"data"`

	// Location snapshot at the time of the event
	City    string `json:"city,omitempty"`
	Country string `json:"country,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// NewEvent creates an event stamped with a fresh ID and the current time
func NewEvent(sessionID, visitorID string, eventType EventType, data EventData) *Event {
	return &Event{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		VisitorID: visitorID,
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}
