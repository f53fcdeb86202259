// Package api exposes the HTTP interface for the presell engine.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/presellkit/presell-engine/internal/config"
	"github.com/presellkit/presell-engine/internal/deliver"
	"github.com/presellkit/presell-engine/internal/metrics"
	"github.com/presellkit/presell-engine/internal/orchestrator"
	"github.com/presellkit/presell-engine/internal/presell"
)

// ScreenshotReader serves stored screenshot bytes.
type ScreenshotReader interface {
	ReadObject(ctx context.Context, path string) ([]byte, error)
}

// Server wires HTTP handlers to the orchestrator, resolver, and stores.
type Server struct {
	router      chi.Router
	store       presell.CampaignStore
	orch        *orchestrator.Orchestrator
	resolver    *deliver.Resolver
	screenshots ScreenshotReader
	idGen       presell.IDGenerator
	clock       presell.Clock
	cfg         config.Config
	logger      *zap.Logger
}

// NewServer constructs a Server with middleware and routes. The screenshot
// reader may be nil when images are served elsewhere (a bucket or CDN).
func NewServer(
	store presell.CampaignStore,
	orch *orchestrator.Orchestrator,
	resolver *deliver.Resolver,
	screenshots ScreenshotReader,
	idGen presell.IDGenerator,
	clock presell.Clock,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		store:       store,
		orch:        orch,
		resolver:    resolver,
		screenshots: screenshots,
		idGen:       idGen,
		clock:       clock,
		cfg:         cfg,
		logger:      logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// Visitor-facing routes are never behind the API key.
	r.Get("/p/{campaign_id}", s.servePresell)
	r.Post("/campaigns/{campaign_id}/click", s.recordClick)
	r.Get("/screenshots/*", s.serveScreenshot)

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Route("/campaigns", func(r chi.Router) {
			r.Post("/", s.createCampaign)
			r.Route("/{campaign_id}", func(r chi.Router) {
				r.Get("/", s.getCampaign)
				r.Post("/reprocess", s.reprocessCampaign)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	// Loading a known-missing campaign exercises the store connection.
	if _, err := s.store.LoadCampaign(r.Context(), "readyz-probe"); err != nil &&
		!isNotFound(err) {
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type overlayRequest struct {
	Title           string `json:"title"`
	Message         string `json:"message"`
	AcceptLabel     string `json:"accept_label"`
	CloseLabel      string `json:"close_label"`
	AcceptPosition  string `json:"accept_position"`
	ClosePosition   string `json:"close_position"`
	AcceptShadow    *bool  `json:"accept_shadow"`
	CloseShadow     *bool  `json:"close_shadow"`
	BackgroundColor string `json:"background_color"`
	BorderColor     string `json:"border_color"`
	ShadowIntensity *int   `json:"shadow_intensity"`
	RedirectURL     string `json:"redirect_url"`
}

type createCampaignRequest struct {
	SourceURL      string          `json:"source_url"`
	ProcessingMode string          `json:"processing_mode"`
	Overlay        *overlayRequest `json:"overlay"`
}

func (s *Server) createCampaign(w http.ResponseWriter, r *http.Request) {
	var req createCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	campaign, err := s.toCampaign(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.store.CreateCampaign(r.Context(), campaign); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("create campaign: %v", err))
		return
	}

	queueCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.orch.Submit(queueCtx, campaign.ID); err != nil {
		// The campaign exists but processing never started; leave it
		// pending and let the operator reprocess.
		s.logger.Error("submit processing failed",
			zap.String("campaign_id", campaign.ID), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "processing queue is full")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"campaign_id": campaign.ID,
		"status":      string(campaign.Status),
	})
}

func (s *Server) getCampaign(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaign_id")
	campaign, err := s.store.LoadCampaign(r.Context(), campaignID)
	if err != nil {
		writeError(w, http.StatusNotFound, "campaign not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"campaign": campaign})
}

func (s *Server) reprocessCampaign(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaign_id")
	if err := s.orch.Reprocess(r.Context(), campaignID); err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "campaign not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"campaign_id": campaignID,
		"status":      string(presell.StatusPending),
	})
}

func (s *Server) servePresell(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaign_id")
	page, err := s.resolver.Resolve(r.Context(), campaignID, deliver.Visit{
		Referrer:   r.Referer(),
		UserAgent:  r.UserAgent(),
		RemoteAddr: remoteHost(r),
	})
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write([]byte(page.HTML)); err != nil {
		s.logger.Error("write presell page failed", zap.Error(err))
	}
}

type clickRequest struct {
	Control string `json:"control"`
}

func (s *Server) recordClick(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaign_id")
	var req clickRequest
	// The overlay sends the click as a fire-and-forget beacon with the
	// control in a query parameter and an empty body; a JSON body is also
	// accepted, and a malformed one still counts as a click.
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Control == "" {
		req.Control = r.URL.Query().Get("control")
	}

	err := s.resolver.RecordClick(r.Context(), campaignID, req.Control, deliver.Visit{
		Referrer:   r.Referer(),
		UserAgent:  r.UserAgent(),
		RemoteAddr: remoteHost(r),
	})
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "campaign not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) serveScreenshot(w http.ResponseWriter, r *http.Request) {
	if s.screenshots == nil {
		http.NotFound(w, r)
		return
	}
	path := chi.URLParam(r, "*")
	data, err := s.screenshots.ReadObject(r.Context(), path)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if _, err := w.Write(data); err != nil {
		s.logger.Error("write screenshot failed", zap.Error(err))
	}
}

func (s *Server) toCampaign(req createCampaignRequest) (presell.Campaign, error) {
	sourceURL := strings.TrimSpace(req.SourceURL)
	if sourceURL == "" {
		return presell.Campaign{}, errors.New("source_url is required")
	}
	parsed, err := url.Parse(sourceURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return presell.Campaign{}, errors.New("source_url must be an absolute http(s) URL")
	}

	mode := presell.ProcessingMode(req.ProcessingMode)
	if req.ProcessingMode == "" {
		mode = presell.ModeAutomatic
	}
	if !mode.Valid() {
		return presell.Campaign{}, fmt.Errorf("unknown processing_mode %q", req.ProcessingMode)
	}

	overlayCfg, err := toOverlayConfig(req.Overlay)
	if err != nil {
		return presell.Campaign{}, err
	}

	campaignID, err := s.idGen.NewID()
	if err != nil {
		return presell.Campaign{}, fmt.Errorf("generate campaign id: %w", err)
	}
	now := s.clock.Now()
	return presell.Campaign{
		ID:        campaignID,
		SourceURL: sourceURL,
		Mode:      mode,
		Status:    presell.StatusPending,
		Overlay:   overlayCfg,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func toOverlayConfig(req *overlayRequest) (presell.OverlayConfig, error) {
	if req == nil {
		return presell.OverlayConfig{}, errors.New("overlay is required")
	}
	redirect := strings.TrimSpace(req.RedirectURL)
	if redirect == "" {
		return presell.OverlayConfig{}, errors.New("overlay.redirect_url is required")
	}
	parsed, err := url.Parse(redirect)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return presell.OverlayConfig{}, errors.New("overlay.redirect_url must be an absolute http(s) URL")
	}

	cfg := presell.OverlayConfig{
		Title:           req.Title,
		Message:         req.Message,
		AcceptLabel:     req.AcceptLabel,
		CloseLabel:      req.CloseLabel,
		AcceptPosition:  presell.ButtonPosition(req.AcceptPosition),
		ClosePosition:   presell.ButtonPosition(req.ClosePosition),
		AcceptShadow:    boolOrDefault(req.AcceptShadow, true),
		CloseShadow:     boolOrDefault(req.CloseShadow, false),
		BackgroundColor: req.BackgroundColor,
		BorderColor:     req.BorderColor,
		ShadowIntensity: valueOrDefault(req.ShadowIntensity, 1),
		RedirectURL:     redirect,
	}
	if cfg.AcceptPosition == "" {
		cfg.AcceptPosition = presell.PositionBottomRight
	}
	if cfg.ClosePosition == "" {
		cfg.ClosePosition = presell.PositionBottomLeft
	}
	switch cfg.AcceptPosition {
	case presell.PositionBottomLeft, presell.PositionBottomRight:
	default:
		return presell.OverlayConfig{}, fmt.Errorf("invalid accept_position %q", req.AcceptPosition)
	}
	switch cfg.ClosePosition {
	case presell.PositionBottomLeft, presell.PositionBottomRight, presell.PositionTopRight:
	default:
		return presell.OverlayConfig{}, fmt.Errorf("invalid close_position %q", req.ClosePosition)
	}
	return cfg, nil
}

func valueOrDefault[T any](ptr *T, def T) T {
	if ptr == nil {
		return def
	}
	return *ptr
}

func boolOrDefault(ptr *bool, def bool) bool {
	if ptr == nil {
		return def
	}
	return *ptr
}

func isNotFound(err error) bool {
	return errors.Is(err, presell.ErrCampaignNotFound)
}

func remoteHost(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		duration := time.Since(start)
		metrics.ObserveHTTPRequest(r.Method, routePattern(r), ww.status, duration)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", duration.Milliseconds()),
		)
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
