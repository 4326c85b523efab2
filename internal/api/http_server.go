package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"shareit/internal/clock"
	"shareit/internal/config"
	"shareit/internal/domain"
	"shareit/internal/models"

	"github.com/rs/zerolog"
)

// Pinger is satisfied by *database.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Services bundles what the HTTP layer calls into. Quota may be nil.
type Services struct {
	Users    domain.UserService
	Items    domain.ItemService
	Bookings domain.BookingService
	Quota    domain.QuotaRepository
	DB       Pinger
}

// HTTPServer exposes the sharing API over JSON/HTTP.
type HTTPServer struct {
	cfg     config.APIConfig
	booking config.BookingConfig
	svc     Services
	clock   clock.Clock
	logger  *zerolog.Logger
	limiter *rateLimiter
	handler http.Handler
	server  *http.Server
}

func NewHTTPServer(cfg config.APIConfig, booking config.BookingConfig, svc Services, clk clock.Clock,
	logger *zerolog.Logger,
) *HTTPServer {
	if clk == nil {
		clk = clock.Real{}
	}
	if cfg.UserHeader == "" {
		cfg.UserHeader = config.DefaultUserHeader
	}
	if booking.DefaultPageSize <= 0 {
		booking.DefaultPageSize = models.DefaultPageSize
	}

	srv := &HTTPServer{
		cfg:     cfg,
		booking: booking,
		svc:     svc,
		clock:   clk,
		logger:  logger,
		limiter: newRateLimiter(cfg.RateLimit, cfg.UserHeader),
	}

	mux := http.NewServeMux()
	srv.routes(mux)
	srv.handler = requestIDMiddleware(loggingMiddleware(logger, rateLimitMiddleware(srv.limiter, mux)))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
	return srv
}

func (s *HTTPServer) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)

	mux.HandleFunc("POST /users", s.handleCreateUser)
	mux.HandleFunc("GET /users", s.handleListUsers)
	mux.HandleFunc("GET /users/{id}", s.handleGetUser)
	mux.HandleFunc("PATCH /users/{id}", s.handleUpdateUser)
	mux.HandleFunc("DELETE /users/{id}", s.handleDeleteUser)

	mux.HandleFunc("POST /items", s.handleCreateItem)
	mux.HandleFunc("GET /items", s.handleOwnerItems)
	mux.HandleFunc("GET /items/{id}", s.handleGetItem)
	mux.HandleFunc("PATCH /items/{id}", s.handleUpdateItem)
	mux.HandleFunc("POST /items/{id}/comment", s.handleAddComment)
	mux.HandleFunc("GET /items/{id}/availability", s.handleAvailability)

	mux.HandleFunc("POST /bookings", s.handleCreateBooking)
	mux.HandleFunc("GET /bookings", s.handleBookerBookings)
	mux.HandleFunc("GET /bookings/owner", s.handleOwnerBookings)
	mux.HandleFunc("GET /bookings/owner/export", s.handleOwnerExport)
	mux.HandleFunc("GET /bookings/{id}", s.handleGetBooking)
	mux.HandleFunc("PATCH /bookings/{id}", s.handleApproveBooking)
}

// Handler returns the fully wrapped handler, used by tests and embedding servers.
func (s *HTTPServer) Handler() http.Handler {
	return s.handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.svc.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.svc.DB.PingContext(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("readiness check failed")
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// callerID reads the acting user from the identity header.
func (s *HTTPServer) callerID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := strings.TrimSpace(r.Header.Get(s.cfg.UserHeader))
	if raw == "" {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("header %s is required", s.cfg.UserHeader))
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s header", s.cfg.UserHeader))
		return 0, false
	}
	return id, true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// pageParams reads from/size, size falls back to the configured default.
func (s *HTTPServer) pageParams(w http.ResponseWriter, r *http.Request) (from, size int, ok bool) {
	q := r.URL.Query()
	from, size = 0, s.booking.DefaultPageSize

	if raw := strings.TrimSpace(q.Get("from")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			writeError(w, http.StatusBadRequest, "from must be a non-negative integer")
			return 0, 0, false
		}
		from = v
	}
	if raw := strings.TrimSpace(q.Get("size")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "size must be an integer")
			return 0, 0, false
		}
		size = v
	}
	return from, size, true
}

func stateParam(w http.ResponseWriter, r *http.Request) (models.State, bool) {
	raw := r.URL.Query().Get("state")
	state, ok := models.ParseState(raw)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown state: "+raw)
		return "", false
	}
	return state, true
}
