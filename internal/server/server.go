// Package server exposes the command surface over HTTP as a small JSON
// API.
package server

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/yuin/goldmark"

	"socialpress/internal/engine"
	"socialpress/internal/errs"
	"socialpress/internal/logging"
	"socialpress/internal/provider"
	"socialpress/internal/scheduler"
	"socialpress/internal/store"
)

var md = goldmark.New()

// Server is the HTTP API server.
type Server struct {
	store       *store.Store
	sched       *scheduler.Scheduler
	fetchers    *provider.Registry[provider.Fetcher]
	translators *provider.Registry[provider.Translator]
	logger      *logging.Logger
	authToken   string
	router      chi.Router
}

// New creates a Server. An empty authToken disables authentication.
func New(st *store.Store, sched *scheduler.Scheduler, fetchers *provider.Registry[provider.Fetcher], translators *provider.Registry[provider.Translator], logger *logging.Logger, authToken string) *Server {
	s := &Server{
		store:       st,
		sched:       sched,
		fetchers:    fetchers,
		translators: translators,
		logger:      logger,
		authToken:   authToken,
	}
	s.routes()
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.authToken != "" {
			r.Use(s.requireAuth)
		}

		r.Get("/campaigns", s.handleListCampaigns)
		r.Get("/campaigns/{id}", s.handleGetCampaign)
		r.Post("/campaigns/{id}/run", s.handleRunCampaign)

		r.Get("/providers", s.handleListProviders)
		r.Post("/providers/test", s.handleTestProvider)

		r.Get("/artifacts", s.handleListArtifacts)
		r.Get("/artifacts/{id}/preview", s.handleArtifactPreview)

		r.Get("/logs", s.handleListLogs)
		r.Delete("/logs", s.handleClearLogs)

		r.Get("/stats", s.handleStats)
	})

	s.router = r
}

// requireAuth checks the Authorization header against the configured
// bearer token.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	expected := "Bearer " + s.authToken
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get("Authorization")
		if subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListCampaigns(w http.ResponseWriter, _ *http.Request) {
	campaigns, err := s.store.ListCampaigns()
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"campaigns": campaigns})
}

func (s *Server) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, err := s.store.GetCampaign(id)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "campaign not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleRunCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	result, err := s.sched.RunCampaign(r.Context(), id)
	if err != nil {
		writeKindError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runResponse(result))
}

func (s *Server) handleListProviders(w http.ResponseWriter, _ *http.Request) {
	type providerInfo struct {
		Type        string                  `json:"type"`
		Name        string                  `json:"name"`
		Description string                  `json:"description"`
		Settings    []provider.SettingField `json:"settings"`
	}

	out := map[string][]providerInfo{"fetchers": {}, "translators": {}}
	for _, d := range s.fetchers.Descriptors() {
		out["fetchers"] = append(out["fetchers"], providerInfo{d.Type, d.Name, d.Description, d.Settings})
	}
	for _, d := range s.translators.Descriptors() {
		out["translators"] = append(out["translators"], providerInfo{d.Type, d.Name, d.Description, d.Settings})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTestProvider(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind     string            `json:"kind"`
		Type     string            `json:"type"`
		Settings map[string]string `json:"settings"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var err error
	switch req.Kind {
	case "", "fetcher":
		err = s.fetchers.TestConnection(r.Context(), req.Type, req.Settings)
	case "translator":
		err = s.translators.TestConnection(r.Context(), req.Type, req.Settings)
	default:
		writeError(w, http.StatusBadRequest, "invalid provider kind: "+req.Kind)
		return
	}
	if err != nil {
		writeKindError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	var campaignID int64
	if v := r.URL.Query().Get("campaign_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid campaign_id")
			return
		}
		campaignID = id
	}

	artifacts, err := s.store.ListArtifacts(campaignID)
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"artifacts": artifacts})
}

func (s *Server) handleArtifactPreview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	a, err := s.store.GetArtifact(id)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if a == nil {
		writeError(w, http.StatusNotFound, "artifact not found")
		return
	}

	var buf bytes.Buffer
	if err := md.Convert([]byte(a.Content), &buf); err != nil {
		s.internalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	q := store.LogQuery{Level: r.URL.Query().Get("level")}
	if v := r.URL.Query().Get("campaign_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid campaign_id")
			return
		}
		q.CampaignID = id
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		q.Limit = n
	}

	entries, err := s.store.GetLogs(q)
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": entries})
}

func (s *Server) handleClearLogs(w http.ResponseWriter, r *http.Request) {
	level := r.URL.Query().Get("level")
	if level != "" && !logging.Level(level).Valid() {
		writeError(w, http.StatusBadRequest, "invalid level: "+level)
		return
	}

	deleted, err := s.store.ClearLogs(level)
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	stats, err := s.store.GetStats()
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.logger.Error("request failed", map[string]any{"error": err.Error()})
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func runResponse(result *engine.Result) map[string]any {
	return map[string]any{
		"campaign_id": result.CampaignID,
		"fetched":     result.Fetched,
		"filtered":    result.Filtered,
		"published":   result.Published,
		"duplicates":  result.Duplicates,
		"failed":      result.Failed,
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

// statusForKind maps the typed error taxonomy onto HTTP status codes.
func statusForKind(kind errs.Kind) int {
	switch kind {
	case errs.InvalidCampaign, errs.ProviderNotFound:
		return http.StatusNotFound
	case errs.InactiveCampaign:
		return http.StatusConflict
	case errs.MissingSettings:
		return http.StatusBadRequest
	case "":
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

func writeKindError(w http.ResponseWriter, err error) {
	status := statusForKind(errs.KindOf(err))
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"kind":  string(errs.KindOf(err)),
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
