// Package server serves the generated site from the output directory and
// upgrades live-reload requests into websocket connections.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/starford/ter/internal/journal"
	"github.com/starford/ter/internal/livereload"
	"github.com/starford/ter/internal/logfields"
	"github.com/starford/ter/internal/metrics"
)

// DefaultReloadSuffix is the path suffix that identifies push-channel requests.
const DefaultReloadSuffix = livereload.DefaultPath

// JournalReader lists recent rebuilds.
type JournalReader interface {
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
}

// Server owns the state of one serving run: the output root and the broker
// that live-reload connections subscribe to.
type Server struct {
	root   string
	broker *livereload.Broker
	suffix string

	journal JournalReader
	metrics *metrics.Recorder
	logger  *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

func WithJournal(j JournalReader) Option {
	return func(s *Server) { s.journal = j }
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(s *Server) { s.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithReloadSuffix changes the path suffix of the push endpoint.
func WithReloadSuffix(suffix string) Option {
	return func(s *Server) {
		if suffix != "" {
			s.suffix = suffix
		}
	}
}

// New returns a Server for the output directory root. broker may be nil, in
// which case no push endpoint is exposed.
func New(root string, broker *livereload.Broker, opts ...Option) *Server {
	s := &Server{
		root:   root,
		broker: broker,
		suffix: DefaultReloadSuffix,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes builds the router. Internal endpoints live under /_ter/; everything
// else maps to the output directory.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.GetHead)

	r.Get("/_ter/health", s.health)
	r.Get("/_ter/builds", s.builds)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/_ter/metrics", s.metrics.Handler())
	}

	r.Get("/*", s.serve)
	return r
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	if s.broker != nil && strings.HasSuffix(r.URL.Path, s.suffix) && livereload.IsUpgrade(r) {
		s.broker.ServeWS(w, r)
		return
	}
	s.serveFile(w, r)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		switch {
		case status == 0 && livereload.IsUpgrade(r):
			status = http.StatusSwitchingProtocols
		case status == 0:
			status = http.StatusOK
		}
		s.metrics.IncHTTPResponse(status)
		s.logger.Info("server: request",
			logfields.Status(status),
			logfields.Path(path),
			slog.String("method", r.Method),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			logfields.Duration(time.Since(start)),
		)
	})
}
