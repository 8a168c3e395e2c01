// Package stream serves the live location of the spacecraft over
// Server-Sent Events: the nearest-to-now bundle, re-resolved on a fixed
// interval for as long as the client stays connected.
package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/orbtrack/orbtrack/internal/ephem"
	"github.com/orbtrack/orbtrack/internal/httputil"
	"github.com/orbtrack/orbtrack/internal/query"
)

// Config holds stream tuning.
type Config struct {
	MaxConcurrentPerIP int
	MaxConcurrentTotal int
	Interval           time.Duration
	TrustProxy         bool
}

// Handler streams location events to SSE clients.
type Handler struct {
	facade  *query.Facade
	cfg     Config
	limiter *limiter
	logger  *slog.Logger
}

// NewHandler creates a stream Handler over the query facade.
func NewHandler(facade *query.Facade, cfg Config, logger *slog.Logger) *Handler {
	if cfg.MaxConcurrentPerIP < 1 {
		cfg.MaxConcurrentPerIP = 10
	}
	if cfg.MaxConcurrentTotal < 1 {
		cfg.MaxConcurrentTotal = 1000
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	return &Handler{
		facade:  facade,
		cfg:     cfg,
		limiter: newLimiter(cfg.MaxConcurrentPerIP, cfg.MaxConcurrentTotal),
		logger:  logger,
	}
}

// ServeHTTP upgrades the request to an SSE stream. One location event is
// sent immediately, then one per interval. The stream ends when the client
// disconnects.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ip := httputil.ClientIP(r, h.cfg.TrustProxy)
	if !h.limiter.acquire(ip) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{"error": "too many concurrent streams"})
		return
	}
	defer h.limiter.release(ip)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	h.logger.Debug("stream opened", "remote_ip", ip, "concurrent", h.limiter.count(ip))

	ticker := time.NewTicker(h.cfg.Interval)
	defer ticker.Stop()

	h.emit(w, r)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			h.logger.Debug("stream closed", "remote_ip", ip)
			return
		case <-ticker.C:
			h.emit(w, r)
			flusher.Flush()
		}
	}
}

// emit writes one SSE event: a location event normally, an error event
// while the dataset is unavailable (the stream stays open so a restore
// resumes it).
func (h *Handler) emit(w http.ResponseWriter, r *http.Request) {
	bundle, err := h.facade.NearestToNow(r.Context())
	if err != nil {
		msg := "internal error"
		if errors.Is(err, ephem.ErrNotLoaded) {
			msg = "ephemeris not loaded"
		}
		fmt.Fprintf(w, "event: error\ndata: {\"error\":%q}\n\n", msg)
		return
	}

	data, err := json.Marshal(bundle)
	if err != nil {
		fmt.Fprint(w, "event: error\ndata: {\"error\":\"internal error\"}\n\n")
		return
	}
	fmt.Fprintf(w, "event: location\ndata: %s\n\n", data)
}
