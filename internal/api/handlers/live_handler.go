package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/storepulse/analytics-backend/internal/application/services"
	"github.com/storepulse/analytics-backend/internal/domain/entities"
	apperrors "github.com/storepulse/analytics-backend/pkg/errors"
)

const defaultEventQueryLimit = 20

// LiveHandler serves the dashboard's polling endpoints
type LiveHandler struct {
	stats *services.StatsService

	visitorLimit       int
	recentEventsWindow time.Duration
}

// NewLiveHandler creates a new live dashboard handler
func NewLiveHandler(stats *services.StatsService, visitorLimit int, recentEventsWindow time.Duration) *LiveHandler {
	return &LiveHandler{
		stats:              stats,
		visitorLimit:       visitorLimit,
		recentEventsWindow: recentEventsWindow,
	}
}

// GetStats handles GET /api/live/stats: the live snapshot merged with the
// daily comparison. When storage is degraded the dashboard still renders,
// so unavailable parts come back zeroed instead of failing the request.
func (h *LiveHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.stats.Snapshot(r.Context())
	if err != nil {
		log.Warn().Err(err).Msg("Snapshot unavailable, serving zeroed stats")
		snapshot = &entities.Snapshot{Timestamp: time.Now().UTC()}
	}

	comparison, err := h.stats.DailyComparison(r.Context())
	if err != nil {
		log.Warn().Err(err).Msg("Daily comparison unavailable, serving zeroed totals")
		comparison = &entities.DailyComparison{}
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"live":  snapshot,
		"today": comparison,
	})
}

// GetVisitors handles GET /api/live/visitors
func (h *LiveHandler) GetVisitors(w http.ResponseWriter, r *http.Request) {
	limit := h.visitorLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondWithError(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
		if parsed < limit {
			limit = parsed
		}
	}

	visitors, err := h.stats.ActiveVisitors(r.Context(), limit)
	if err != nil {
		log.Warn().Err(err).Msg("Visitor list unavailable")
		visitors = []entities.VisitorView{}
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"visitors": visitors,
		"count":    len(visitors),
	})
}

// GetEvents handles GET /api/live/events?limit=&types=
func (h *LiveHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit := defaultEventQueryLimit
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondWithError(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
		limit = parsed
	}

	var types []entities.EventType
	if raw := query.Get("types"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			eventType := entities.EventType(strings.TrimSpace(part))
			if !eventType.Valid() {
				respondWithError(w, http.StatusBadRequest, "unknown event type: "+string(eventType))
				return
			}
			types = append(types, eventType)
		}
	}

	events, err := h.stats.QueryEvents(r.Context(), types, limit)
	if err != nil {
		log.Warn().Err(err).Msg("Event query unavailable")
		events = []entities.EventView{}
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

type incrementRequest struct {
	Field  string  `json:"field"`
	Amount float64 `json:"amount"`
}

// Increment handles POST /api/live/increment: the write path used by the
// order system to feed the daily aggregates directly.
func (h *LiveHandler) Increment(w http.ResponseWriter, r *http.Request) {
	var req incrementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Amount == 0 {
		req.Amount = 1
	}

	if err := h.stats.RecordDailyIncrement(r.Context(), req.Field, req.Amount); err != nil {
		if apperrors.IsValidation(err) {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Error().Err(err).Str("field", req.Field).Msg("Daily increment failed")
		respondWithError(w, statusForError(err), "failed to record increment")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
	})
}
