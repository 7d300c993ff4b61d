// Package httpapi serves the dashboard, the JSON API, the live article
// websocket and the chat webhooks.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/ReXooGen/bmkg-artikel-automation/internal/logging"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/pipeline"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/session"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/userlog"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/weather"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/wilayah"
)

const (
	readTimeout     = 15 * time.Second
	writeTimeout    = 30 * time.Second
	idleTimeout     = 60 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Regions is the region store surface the API reads.
type Regions interface {
	AllProvinces(ctx context.Context) []wilayah.Unit
	CitiesByProvince(ctx context.Context, provinceCode string) []wilayah.City
	CitiesByKeyword(ctx context.Context, keyword string, limit int) []wilayah.City
	RandomCities(ctx context.Context, count int, zone wilayah.Zone) []wilayah.City
	Stats(ctx context.Context) (wilayah.Stats, error)
}

// Builder produces an article for a session.
type Builder interface {
	Build(ctx context.Context, sess *session.Session, req pipeline.Request, rep pipeline.Reporter) (*pipeline.Result, error)
}

// Sessions hands out fresh, unpersisted sessions.
type Sessions interface {
	New() *session.Session
}

// Usage reports bot usage numbers.
type Usage interface {
	TotalUsers(ctx context.Context) (int, error)
	CommandStats(ctx context.Context) ([]userlog.CommandCount, error)
}

// Forecasts serves raw forecast slots. *weather.Client implements it.
type Forecasts interface {
	FetchRaw(ctx context.Context, code string) ([]weather.Entry, error)
}

// Options are the values shown on the dashboard and health check.
type Options struct {
	Addr       string
	BotName    string
	WebhookURL string
	AIStatus   string
}

// Deps are the server's collaborators. Usage, Forecasts, Builder, Telegram
// and WhatsApp may be nil; their routes are then disabled.
type Deps struct {
	Regions   Regions
	Usage     Usage
	Forecasts Forecasts
	Builder   Builder
	Sessions  Sessions
	// Telegram handles POST /telegram.
	Telegram http.Handler
	// WhatsAppVerify handles GET /whatsapp, WhatsApp handles POST /whatsapp.
	WhatsAppVerify http.Handler
	WhatsApp       http.Handler
}

// Server is the HTTP front end.
type Server struct {
	opts    Options
	deps    Deps
	logger  *slog.Logger
	handler http.Handler
}

// NewServer builds the router.
func NewServer(opts Options, deps Deps, logger *slog.Logger) *Server {
	s := &Server{
		opts:   opts,
		deps:   deps,
		logger: logging.Component(logger, "http"),
	}
	s.handler = requestID(requestLogger(s.logger)(s.routes()))
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleDashboard).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/provinces", s.handleProvinces).Methods(http.MethodGet)
	api.HandleFunc("/provinces/{code:[0-9]{2}}/cities", s.handleProvinceCities).Methods(http.MethodGet)
	api.HandleFunc("/cities/search", s.handleSearch).Methods(http.MethodGet)
	api.HandleFunc("/cities/random", s.handleRandom).Methods(http.MethodGet)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	if s.deps.Forecasts != nil {
		api.HandleFunc("/forecast/{code:[0-9.]+}", s.handleForecast).Methods(http.MethodGet)
	}

	if s.deps.Builder != nil && s.deps.Sessions != nil {
		r.HandleFunc("/ws/artikel", s.handleArticleSocket).Methods(http.MethodGet)
	}
	if s.deps.Telegram != nil {
		r.Handle("/telegram", s.deps.Telegram).Methods(http.MethodPost)
	}
	if s.deps.WhatsAppVerify != nil {
		r.Handle("/whatsapp", s.deps.WhatsAppVerify).Methods(http.MethodGet)
	}
	if s.deps.WhatsApp != nil {
		r.Handle("/whatsapp", s.deps.WhatsApp).Methods(http.MethodPost)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "no route for "+r.URL.Path)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, r.Method+" not allowed on "+r.URL.Path)
	})
	return r
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.opts.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
