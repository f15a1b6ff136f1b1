package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"weather-dashboard/dashboard"
	"weather-dashboard/datasource"
	"weather-dashboard/models"
	"weather-dashboard/sampling"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	readHeaderTimeout = 5 * time.Second
	heartbeatInterval = 15 * time.Second
	maxBodyBytes      = 1 << 16
)

// Dashboard is the refresh surface the server drives
type Dashboard interface {
	Snapshot() dashboard.Snapshot
	Locate(ctx context.Context) (dashboard.Snapshot, error)
	LocateAt(ctx context.Context, coords models.Coordinates) (dashboard.Snapshot, error)
	ReportLocationError(err *datasource.LocationPermissionError) dashboard.Snapshot
	Search(ctx context.Context, city string) (dashboard.Snapshot, error)
}

// CacheStats reports the hit and miss counts of a response cache
type CacheStats interface {
	CacheStats() (hits, misses int)
}

// Options configures the API server
type Options struct {
	Port      int
	Dashboard Dashboard
	Hub       *NotificationHub
	// LabelZone resolves the zone of the header line from the snapshot's UTC offset
	LabelZone func(utcOffset int) *time.Location
	// RefreshTimeout bounds a request-triggered refresh. Zero disables the bound.
	RefreshTimeout time.Duration
	// Caches are reported on the health endpoint under their names
	Caches map[string]CacheStats
	Now    func() time.Time
	Logger *slog.Logger
}

// Server represents the API server
type Server struct {
	dashboard      Dashboard
	hub            *NotificationHub
	labelZone      func(int) *time.Location
	refreshTimeout time.Duration
	caches         map[string]CacheStats
	now            func() time.Time
	logger         *slog.Logger
	server         *http.Server
}

// NewServer creates a new API server
func NewServer(opts Options) *Server {
	s := &Server{
		dashboard:      opts.Dashboard,
		hub:            opts.Hub,
		labelZone:      opts.LabelZone,
		refreshTimeout: opts.RefreshTimeout,
		caches:         opts.Caches,
		now:            opts.Now,
		logger:         opts.Logger,
	}
	if s.hub == nil {
		s.hub = NewNotificationHub(20)
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "api")

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           s.routes(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealthCheck)

		r.Get("/dashboard", s.handleGetDashboard)
		r.Post("/dashboard/search", s.handleSearch)
		r.Post("/dashboard/locate", s.handleLocate)

		r.Get("/notifications", s.handleGetNotifications)
		r.Get("/notifications/stream", s.handleNotificationStream)
	})
	return r
}

// Handler returns the server's root handler
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start begins the API server. It returns http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting API server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// dashboardView is the snapshot as rendered for clients
type dashboardView struct {
	dashboard.Snapshot
	Header      string    `json:"header"`
	GeneratedAt time.Time `json:"generatedAt"`
}

func (s *Server) view(snap dashboard.Snapshot) dashboardView {
	now := s.now()
	var zone *time.Location
	if s.labelZone != nil {
		zone = s.labelZone(snap.UTCOffset)
	}
	return dashboardView{
		Snapshot:    snap,
		Header:      sampling.HeaderLine(now, zone),
		GeneratedAt: now,
	}
}

// handleGetDashboard returns the latest snapshot
func (s *Server) handleGetDashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.view(s.dashboard.Snapshot()))
}

type searchRequest struct {
	City string `json:"city"`
}

// handleSearch refreshes the dashboard for a city name
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.City == "" {
		req.City = r.URL.Query().Get("city")
	}

	ctx, cancel := s.refreshContext(r)
	defer cancel()

	snap, err := s.dashboard.Search(ctx, req.City)
	s.writeRefresh(w, snap, err)
}

type locateRequest struct {
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	ErrorCode    *int     `json:"errorCode"`
	ErrorMessage string   `json:"errorMessage"`
}

// handleLocate refreshes the dashboard for the user's position. The body may
// carry coordinates from the client, a client-side geolocation failure, or
// nothing, in which case the server's locator decides.
func (s *Server) handleLocate(w http.ResponseWriter, r *http.Request) {
	var req locateRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.ErrorCode != nil {
		locErr := datasource.NewLocationPermissionError(*req.ErrorCode, req.ErrorMessage)
		writeJSON(w, http.StatusOK, s.view(s.dashboard.ReportLocationError(locErr)))
		return
	}
	if (req.Latitude == nil) != (req.Longitude == nil) {
		writeError(w, http.StatusBadRequest, "latitude and longitude must be sent together")
		return
	}

	ctx, cancel := s.refreshContext(r)
	defer cancel()

	var (
		snap dashboard.Snapshot
		err  error
	)
	if req.Latitude != nil {
		snap, err = s.dashboard.LocateAt(ctx, models.Coordinates{Latitude: *req.Latitude, Longitude: *req.Longitude})
	} else {
		snap, err = s.dashboard.Locate(ctx)
	}
	s.writeRefresh(w, snap, err)
}

// handleGetNotifications lists the recent notifications
func (s *Server) handleGetNotifications(w http.ResponseWriter, r *http.Request) {
	recent := s.hub.Recent()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": recent,
		"count":         len(recent),
	})
}

// handleNotificationStream pushes notifications as server-sent events
func (s *Server) handleNotificationStream(w http.ResponseWriter, r *http.Request) {
	flusher := prepareSSE(w)
	if flusher == nil {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ch, unsubscribe := s.hub.Subscribe()
	defer unsubscribe()

	w.WriteHeader(http.StatusOK)
	if err := writeComment(w, flusher, "connected"); err != nil {
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case n := <-ch:
			if err := writeEvent(w, flusher, "notification", n); err != nil {
				s.logger.Debug("notification stream closed", "error", err)
				return
			}
		case <-heartbeat.C:
			if err := writeComment(w, flusher, "keep-alive"); err != nil {
				return
			}
		}
	}
}

// handleHealthCheck provides a simple health check endpoint
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
	}
	if len(s.caches) > 0 {
		stats := make(map[string]map[string]int, len(s.caches))
		for name, c := range s.caches {
			hits, misses := c.CacheStats()
			stats[name] = map[string]int{"hits": hits, "misses": misses}
		}
		health["cache"] = stats
	}
	writeJSON(w, http.StatusOK, health)
}

func (s *Server) refreshContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.refreshTimeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), s.refreshTimeout)
}

// writeRefresh maps the outcome of a refresh onto a response
func (s *Server) writeRefresh(w http.ResponseWriter, snap dashboard.Snapshot, err error) {
	var (
		notFound *datasource.NotFoundError
		denied   *datasource.LocationPermissionError
		upstream *datasource.UpstreamError
	)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, s.view(snap))
	case errors.Is(err, dashboard.ErrEmptyQuery):
		writeError(w, http.StatusBadRequest, "city is required")
	case errors.Is(err, dashboard.ErrInvalidCoordinates):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, dashboard.ErrSuperseded):
		writeError(w, http.StatusConflict, "refresh superseded by a newer request")
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, fmt.Sprintf("City not found: %s", notFound.Query))
	case errors.As(err, &denied):
		writeError(w, http.StatusUnprocessableEntity, "Location not found. Please try again.")
	case errors.As(err, &upstream):
		writeError(w, http.StatusBadGateway, "weather service unavailable")
	default:
		s.logger.Error("refresh failed", "error", err)
		writeError(w, http.StatusInternalServerError, "refresh failed")
	}
}

// decodeBody decodes an optional JSON body into v. An empty body leaves v unchanged.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
