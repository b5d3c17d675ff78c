package services

import (
	"context"
	"strings"
	"time"

	"github.com/storepulse/analytics-backend/internal/domain/entities"
	"github.com/storepulse/analytics-backend/internal/domain/providers"
	"github.com/storepulse/analytics-backend/internal/domain/repositories"
	"github.com/storepulse/analytics-backend/internal/infrastructure/observability"
	apperrors "github.com/storepulse/analytics-backend/pkg/errors"
)

// TrackInput is one raw tracking beacon from the storefront pixel
type TrackInput struct {
	SessionID string
	VisitorID string
	Type      entities.EventType
	Data      entities.EventData

	IP          string
	UserAgent   string
	Referrer    string
	UTMSource   string
	UTMMedium   string
	UTMCampaign string
}

// TrackingService is the ingest pipeline: it validates a beacon, merges it
// into the session registry, appends it to the event log, publishes it on the
// event bus and feeds the daily aggregates. Only validation failures reach
// the caller; storage failures downstream of validation are logged and
// swallowed so a degraded backend never breaks the storefront.
type TrackingService struct {
	sessions repositories.SessionRepository
	events   repositories.EventRepository
	daily    repositories.DailyStatsRepository
	bus      providers.EventBus
	geo      providers.GeolocationProvider
}

// NewTrackingService creates a new tracking service
func NewTrackingService(
	sessions repositories.SessionRepository,
	events repositories.EventRepository,
	daily repositories.DailyStatsRepository,
	bus providers.EventBus,
	geo providers.GeolocationProvider,
) *TrackingService {
	return &TrackingService{
		sessions: sessions,
		events:   events,
		daily:    daily,
		bus:      bus,
		geo:      geo,
	}
}

// Track ingests one beacon. It returns the accepted event, or a validation
// error when the beacon is malformed.
func (s *TrackingService) Track(ctx context.Context, input *TrackInput) (*entities.Event, error) {
	if strings.TrimSpace(input.SessionID) == "" {
		return nil, apperrors.NewValidationError("sessionId is required")
	}
	if !input.Type.Valid() {
		return nil, apperrors.NewValidationError("unknown event type: " + string(input.Type))
	}

	now := time.Now().UTC()

	location := s.resolveLocation(ctx, input.IP)

	patch := s.buildPatch(input, location, now)
	increments := make(map[string]float64)
	s.applyEventSemantics(input, patch, increments)

	session, created, err := s.sessions.Upsert(ctx, input.SessionID, patch)
	if err != nil {
		// The beacon is still acknowledged; the event log below keeps the
		// record even when the registry is down.
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("session_id", input.SessionID).Msg("Session upsert failed")
		session, created = nil, false
	}

	if session != nil {
		s.applyPostMergeSemantics(ctx, input, session, increments)
	}

	if created {
		increments["totalVisitors"]++
		increments[entities.DeviceField(entities.DetectDevice(input.UserAgent))]++
		increments[trafficField(input.Referrer, input.UTMSource, input.UTMMedium)]++
	}

	event := entities.NewEvent(input.SessionID, input.VisitorID, input.Type, input.Data)
	event.City = location.City
	event.Country = location.Country
	event.Timestamp = now

	if err := s.events.Append(ctx, event); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("session_id", input.SessionID).Str("type", string(input.Type)).Msg("Event append failed")
	}

	if s.bus != nil {
		if err := s.bus.Publish(ctx, providers.EventChannelLive, event); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).Str("event_id", event.ID).Msg("Event publish failed")
		}
	}

	if len(increments) > 0 {
		if err := s.daily.IncrementFields(ctx, entities.DateKey(now), increments); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).Str("date", entities.DateKey(now)).Msg("Daily stats increment failed")
		}
	}

	return event, nil
}

func (s *TrackingService) resolveLocation(ctx context.Context, ip string) *providers.GeoLocation {
	if s.geo == nil {
		return providers.UnknownLocation()
	}
	location, err := s.geo.Lookup(ctx, ip)
	if err != nil || location == nil {
		return providers.UnknownLocation()
	}
	return location
}

// buildPatch seeds the session for implicit creation and stamps activity.
func (s *TrackingService) buildPatch(input *TrackInput, location *providers.GeoLocation, now time.Time) *entities.SessionPatch {
	return &entities.SessionPatch{
		Base: &entities.Session{
			SessionID:    input.SessionID,
			VisitorID:    input.VisitorID,
			IP:           input.IP,
			City:         location.City,
			Region:       location.Region,
			Country:      location.Country,
			Latitude:     location.Latitude,
			Longitude:    location.Longitude,
			Device:       entities.DetectDevice(input.UserAgent),
			Browser:      entities.DetectBrowser(input.UserAgent),
			UserAgent:    input.UserAgent,
			CurrentPage:  input.Data.Page,
			Referrer:     input.Referrer,
			UTMSource:    input.UTMSource,
			UTMMedium:    input.UTMMedium,
			UTMCampaign:  input.UTMCampaign,
			Status:       entities.SessionStatusBrowsing,
			StartedAt:    now,
			LastActiveAt: now,
		},
		LastActiveAt: now,
	}
}

// applyEventSemantics translates the event type into session mutations and
// the daily counters that do not depend on the merged session state.
func (s *TrackingService) applyEventSemantics(input *TrackInput, patch *entities.SessionPatch, increments map[string]float64) {
	switch input.Type {
	case entities.EventPageView:
		patch.PageViewsDelta = 1
		if input.Data.Page != "" {
			page := input.Data.Page
			patch.CurrentPage = &page
		}
		increments["totalPageViews"]++

	case entities.EventAddToCart:
		status := entities.SessionStatusCart
		patch.Status = &status
		quantity := input.Data.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		patch.CartItemsDelta = quantity
		patch.CartValueDelta = input.Data.ProductPrice * float64(quantity)
		if input.Data.ProductID != "" {
			patch.AddCartProduct = &entities.CartProduct{
				ProductID: input.Data.ProductID,
				Name:      input.Data.ProductName,
				Price:     input.Data.ProductPrice,
				Quantity:  quantity,
			}
		}

	case entities.EventRemoveFromCart:
		quantity := input.Data.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		patch.CartItemsDelta = -quantity
		patch.CartValueDelta = -input.Data.ProductPrice * float64(quantity)

	case entities.EventCheckoutStart:
		status := entities.SessionStatusCheckout
		patch.Status = &status
		increments["checkoutsStarted"]++

	case entities.EventPurchase:
		status := entities.SessionStatusPurchased
		patch.Status = &status
		patch.ClearCart = true
		increments["ordersCount"]++
		increments["checkoutsCompleted"]++
		if input.Data.OrderTotal > 0 {
			increments["revenue"] += input.Data.OrderTotal
		}

	case entities.EventCartAbandon:
		status := entities.SessionStatusAbandoned
		patch.Status = &status

	case entities.EventSessionEnd:
		ended := patch.LastActiveAt
		patch.EndedAt = &ended
	}
}

// applyPostMergeSemantics handles the counters and follow-up mutations that
// need the merged session, such as cart-created detection and the abandoned
// cart value.
func (s *TrackingService) applyPostMergeSemantics(ctx context.Context, input *TrackInput, session *entities.Session, increments map[string]float64) {
	switch input.Type {
	case entities.EventAddToCart:
		quantity := input.Data.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		// First item(s) in an empty cart means a cart came into existence.
		if session.CartItems == quantity {
			increments["cartsCreated"]++
		}

	case entities.EventRemoveFromCart:
		if session.CartItems == 0 && session.Status == entities.SessionStatusCart {
			status := entities.SessionStatusBrowsing
			if _, _, err := s.sessions.Upsert(ctx, session.SessionID, &entities.SessionPatch{
				LastActiveAt: session.LastActiveAt,
				Status:       &status,
				ClearCart:    true,
			}); err != nil {
				observability.LoggerFromContext(ctx).Warn().Err(err).Str("session_id", session.SessionID).Msg("Cart reset failed")
			}
		}

	case entities.EventCartAbandon:
		increments["cartsAbandoned"]++
		if session.CartValue > 0 {
			increments["abandonedValue"] += session.CartValue
		}
	}
}

// trafficField classifies the acquisition channel of a new session.
func trafficField(referrer, utmSource, utmMedium string) string {
	medium := strings.ToLower(utmMedium)
	source := strings.ToLower(utmSource)
	ref := strings.ToLower(referrer)

	switch {
	case medium == "cpc" || medium == "ppc" || medium == "paid":
		return "trafficPaid"
	case source == "facebook" || source == "instagram" || source == "twitter" || source == "tiktok" ||
		strings.Contains(ref, "facebook.") || strings.Contains(ref, "instagram.") ||
		strings.Contains(ref, "twitter.") || strings.Contains(ref, "t.co") || strings.Contains(ref, "tiktok."):
		return "trafficSocial"
	case strings.Contains(ref, "google.") || strings.Contains(ref, "bing.") || strings.Contains(ref, "duckduckgo."):
		return "trafficOrganic"
	case ref == "":
		return "trafficDirect"
	default:
		return "trafficReferral"
	}
}
