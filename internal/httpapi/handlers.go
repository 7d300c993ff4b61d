package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/ReXooGen/bmkg-artikel-automation/internal/userlog"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/weather"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/wilayah"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 100
	defaultRandomCount = 4
	maxRandomCount     = 50
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"bot":    s.opts.BotName,
	})
}

func (s *Server) handleProvinces(w http.ResponseWriter, r *http.Request) {
	provinces := s.deps.Regions.AllProvinces(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"count":     len(provinces),
		"provinces": nonNil(provinces),
	})
}

func (s *Server) handleProvinceCities(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	cities := s.deps.Regions.CitiesByProvince(r.Context(), code)
	if len(cities) == 0 {
		writeError(w, http.StatusNotFound, "no cities for province "+code)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"province": code,
		"count":    len(cities),
		"cities":   cities,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}
	limit, err := intParam(r, "limit", defaultSearchLimit, maxSearchLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cities := s.deps.Regions.CitiesByKeyword(r.Context(), q, limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"query":  q,
		"count":  len(cities),
		"cities": nonNil(cities),
	})
}

func (s *Server) handleRandom(w http.ResponseWriter, r *http.Request) {
	count, err := intParam(r, "count", defaultRandomCount, maxRandomCount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var zone wilayah.Zone
	if raw := r.URL.Query().Get("zone"); raw != "" {
		if zone = wilayah.ParseZone(raw); zone == "" {
			writeError(w, http.StatusBadRequest, "zone must be WIB, WITA or WIT")
			return
		}
	}
	cities := s.deps.Regions.RandomCities(r.Context(), count, zone)
	writeJSON(w, http.StatusOK, map[string]any{
		"zone":   zone,
		"count":  len(cities),
		"cities": nonNil(cities),
	})
}

type statsResponse struct {
	Regions    wilayah.Stats          `json:"regions"`
	Users      *int                   `json:"users,omitempty"`
	Commands   []userlog.CommandCount `json:"commands,omitempty"`
	AI         string                 `json:"ai,omitempty"`
	WebhookURL string                 `json:"webhook_url,omitempty"`
}

func (s *Server) stats(r *http.Request) (statsResponse, error) {
	ctx := r.Context()
	st, err := s.deps.Regions.Stats(ctx)
	if err != nil {
		return statsResponse{}, err
	}
	resp := statsResponse{Regions: st, AI: s.opts.AIStatus, WebhookURL: s.opts.WebhookURL}
	if s.deps.Usage != nil {
		if n, err := s.deps.Usage.TotalUsers(ctx); err == nil {
			resp.Users = &n
		} else {
			s.logger.Warn("total users failed", "error", err)
		}
		if cmds, err := s.deps.Usage.CommandStats(ctx); err == nil {
			resp.Commands = cmds
		} else {
			s.logger.Warn("command stats failed", "error", err)
		}
	}
	return resp, nil
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	entries, err := s.deps.Forecasts.FetchRaw(r.Context(), code)
	switch {
	case errors.Is(err, weather.ErrNoForecast):
		writeError(w, http.StatusNotFound, "no forecast for "+code)
		return
	case err != nil:
		writeError(w, http.StatusBadGateway, "forecast unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"code":    code,
		"count":   len(entries),
		"entries": entries,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp, err := s.stats(r)
	if err != nil {
		s.logger.Error("stats failed", "error", err, "request_id", RequestID(r.Context()))
		writeError(w, http.StatusInternalServerError, "failed to read statistics")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func intParam(r *http.Request, name string, def, max int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, &paramError{name: name}
	}
	if n > max {
		n = max
	}
	return n, nil
}

type paramError struct {
	name string
}

func (e *paramError) Error() string {
	return e.name + " must be a positive integer"
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error":   http.StatusText(status),
		"message": msg,
	})
}
