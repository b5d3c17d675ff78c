package handlers

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/storepulse/analytics-backend/internal/application/services"
	"github.com/storepulse/analytics-backend/internal/domain/entities"
	"github.com/storepulse/analytics-backend/internal/infrastructure/observability"
	apperrors "github.com/storepulse/analytics-backend/pkg/errors"
)

// TrackHandler accepts tracking beacons from the storefront pixel
type TrackHandler struct {
	tracking *services.TrackingService
	metrics  *observability.Metrics
}

// NewTrackHandler creates a new track handler
func NewTrackHandler(tracking *services.TrackingService, metrics *observability.Metrics) *TrackHandler {
	return &TrackHandler{
		tracking: tracking,
		metrics:  metrics,
	}
}

type trackRequest struct {
	SessionID   string             `json:"sessionId"`
	VisitorID   string             `json:"visitorId"`
	Type        entities.EventType `json:"type"`
	Data        entities.EventData `json:"data"`
	Referrer    string             `json:"referrer"`
	UTMSource   string             `json:"utmSource"`
	UTMMedium   string             `json:"utmMedium"`
	UTMCampaign string             `json:"utmCampaign"`
}

// Track handles POST /api/track. Malformed beacons get a 400; everything
// after validation is best-effort and still acknowledged with a 200 so a
// degraded backend never surfaces in the storefront.
func (h *TrackHandler) Track(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	input := &services.TrackInput{
		SessionID:   req.SessionID,
		VisitorID:   req.VisitorID,
		Type:        req.Type,
		Data:        req.Data,
		IP:          clientIP(r),
		UserAgent:   r.UserAgent(),
		Referrer:    req.Referrer,
		UTMSource:   req.UTMSource,
		UTMMedium:   req.UTMMedium,
		UTMCampaign: req.UTMCampaign,
	}

	event, err := h.tracking.Track(r.Context(), input)
	if err != nil {
		if h.metrics != nil {
			observability.RecordIngestMetric(r.Context(), h.metrics, string(req.Type), false)
		}
		if apperrors.IsValidation(err) {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Error().Err(err).Str("session_id", req.SessionID).Msg("Tracking failed")
		respondWithError(w, statusForError(err), "failed to track event")
		return
	}

	if h.metrics != nil {
		observability.RecordIngestMetric(r.Context(), h.metrics, string(event.Type), true)
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"eventId": event.ID,
	})
}

// clientIP resolves the originating address, preferring proxy headers
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return strings.TrimSpace(realIP)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
