package cachingproxy

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"
)

type adminStats struct {
	Stats
	Entries    int `json:"entries"`
	MaxObjects int `json:"maxObjects"`
}

// AdminHandler returns an HTTP handler for inspecting and purging the cache.
//
//	GET    /stats          counters and cache occupancy
//	GET    /cache          stored entries (keys, sizes, recency)
//	DELETE /cache?key=uri  purge one entry
func (p *Proxy) AdminHandler() http.Handler {
	r := chi.NewRouter()
	logger := p.log.With().Str("component", "admin").Logger()
	r.Use(hlog.NewHandler(logger))
	r.Use(hlog.RequestIDHandler("req_id", "Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Debug().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Admin request")
	}))

	r.Get("/stats", p.handleStats)
	r.Get("/cache", p.handleEntries)
	r.Delete("/cache", p.handlePurge)
	return r
}

func (p *Proxy) handleStats(w http.ResponseWriter, r *http.Request) {
	entries, err := p.cache.Entries()
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Could not list cache entries")
		http.Error(w, "could not list cache entries", http.StatusInternalServerError)
		return
	}
	writeJSON(w, r, adminStats{
		Stats:      p.Stats(),
		Entries:    len(entries),
		MaxObjects: p.cache.Limits().MaxObjectCount(),
	})
}

func (p *Proxy) handleEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := p.cache.Entries()
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Could not list cache entries")
		http.Error(w, "could not list cache entries", http.StatusInternalServerError)
		return
	}
	writeJSON(w, r, entries)
}

func (p *Proxy) handlePurge(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		http.Error(w, "missing key parameter", http.StatusBadRequest)
		return
	}
	purged, err := p.cache.Purge(key)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("key", key).Msg("Could not purge cache entry")
		http.Error(w, "could not purge cache entry", http.StatusInternalServerError)
		return
	}
	if !purged {
		http.NotFound(w, r)
		return
	}
	hlog.FromRequest(r).Info().Str("key", key).Msg("Purged cache entry")
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Could not write response")
	}
}
