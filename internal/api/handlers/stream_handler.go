package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/storepulse/analytics-backend/internal/application/services"
	"github.com/storepulse/analytics-backend/internal/domain/entities"
	"github.com/storepulse/analytics-backend/internal/domain/providers"
	"github.com/storepulse/analytics-backend/internal/infrastructure/observability"
)

// StreamHandler serves the dashboard SSE stream. Every connection gets its
// own publisher; there is no shared mutable state between connections.
type StreamHandler struct {
	stats   *services.StatsService
	bus     providers.EventBus
	metrics *observability.Metrics

	interval           time.Duration
	recentEventsWindow time.Duration
	visitorLimit       int
	eventLimit         int
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(
	stats *services.StatsService,
	bus providers.EventBus,
	metrics *observability.Metrics,
	interval time.Duration,
	recentEventsWindow time.Duration,
	visitorLimit int,
	eventLimit int,
) *StreamHandler {
	return &StreamHandler{
		stats:              stats,
		bus:                bus,
		metrics:            metrics,
		interval:           interval,
		recentEventsWindow: recentEventsWindow,
		visitorLimit:       visitorLimit,
		eventLimit:         eventLimit,
	}
}

// Stream handles GET /api/live/stream
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Set headers for SSE
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if h.metrics != nil {
		h.metrics.StreamClients.Add(r.Context(), 1)
		defer h.metrics.StreamClients.Add(context.Background(), -1)
	}

	publisher := &streamPublisher{
		stats:              h.stats,
		metrics:            h.metrics,
		interval:           h.interval,
		recentEventsWindow: h.recentEventsWindow,
		visitorLimit:       h.visitorLimit,
		eventLimit:         h.eventLimit,
	}
	publisher.run(r.Context(), h.bus, w, flusher)
}

// streamPublisher owns one SSE connection from subscribe to teardown
type streamPublisher struct {
	stats   *services.StatsService
	metrics *observability.Metrics

	interval           time.Duration
	recentEventsWindow time.Duration
	visitorLimit       int
	eventLimit         int

	ticker   *time.Ticker
	teardown sync.Once
}

func (p *streamPublisher) run(ctx context.Context, bus providers.EventBus, w http.ResponseWriter, flusher http.Flusher) {
	var eventChan <-chan *entities.Event
	if bus != nil {
		subscribed, err := bus.Subscribe(ctx, providers.EventChannelLive)
		if err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).Msg("Event bus subscribe failed, streaming periodic updates only")
		} else {
			eventChan = subscribed
		}
	}

	// First frame goes out immediately; the ticker paces the rest.
	p.publishUpdate(ctx, w, flusher)

	p.ticker = time.NewTicker(p.interval)
	defer p.stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("Dashboard stream client disconnected")
			return
		case <-p.ticker.C:
			p.publishUpdate(ctx, w, flusher)
		case event, ok := <-eventChan:
			if !ok {
				eventChan = nil
				continue
			}
			p.publishEvent(w, flusher, event)
		}
	}
}

// stop halts the ticker exactly once; no tick fires after it returns
func (p *streamPublisher) stop() {
	p.teardown.Do(func() {
		if p.ticker != nil {
			p.ticker.Stop()
		}
	})
}

// publishUpdate sends one full update frame. A failed aggregation skips the
// frame and keeps the stream alive.
func (p *streamPublisher) publishUpdate(ctx context.Context, w http.ResponseWriter, flusher http.Flusher) {
	start := time.Now()
	snapshot, err := p.stats.Snapshot(ctx)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("Snapshot failed, skipping stream tick")
		return
	}
	if p.metrics != nil {
		observability.RecordSnapshotMetric(ctx, p.metrics, time.Since(start))
	}

	visitors, err := p.stats.ActiveVisitors(ctx, p.visitorLimit)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("Visitor list failed, sending update without visitors")
		visitors = []entities.VisitorView{}
	}

	events, err := p.stats.RecentEvents(ctx, p.eventLimit, p.recentEventsWindow)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("Recent events failed, sending update without events")
		events = []entities.EventView{}
	}

	p.send(w, flusher, &entities.StreamUpdate{
		Type:      "update",
		Stats:     snapshot,
		Visitors:  visitors,
		Events:    events,
		Timestamp: time.Now().UTC(),
	})
}

// publishEvent forwards one ingested event between update frames
func (p *streamPublisher) publishEvent(w http.ResponseWriter, flusher http.Flusher, event *entities.Event) {
	if event == nil {
		return
	}
	p.send(w, flusher, map[string]interface{}{
		"type":      "event",
		"event":     entities.EventViewFrom(event),
		"timestamp": time.Now().UTC(),
	})
}

func (p *streamPublisher) send(w http.ResponseWriter, flusher http.Flusher, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to marshal stream frame")
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}
