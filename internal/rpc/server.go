package rpc

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/ledgermsg/internal/engine"
	"github.com/roach88/ledgermsg/internal/store"
)

const shutdownTimeout = 5 * time.Second

// Options configures a Server.
type Options struct {
	// CORSOrigins lists allowed browser origins. Empty disables CORS.
	CORSOrigins []string
	// Registry collects HTTP metrics and backs /metrics. The engine's
	// collectors should be registered on the same registry. Default: a
	// fresh registry.
	Registry *prometheus.Registry
}

// Server serves the HTTP API for one engine.
type Server struct {
	eng      *engine.Engine
	store    *store.Store
	registry *prometheus.Registry
	metrics  *httpMetrics
	origins  []string
	validate *validator.Validate
}

// New creates a server. It does not start the engine loop; Serve does.
func New(eng *engine.Engine, st *store.Store, opts Options) *Server {
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &Server{
		eng:      eng,
		store:    st,
		registry: reg,
		metrics:  newHTTPMetrics(reg),
		origins:  opts.CORSOrigins,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.middleware)
	if len(s.origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/transactions", s.submitTransaction)
		r.Get("/accounts/{address}", s.getAccount)
		r.Get("/entries/{seq}", s.getEntry)
		r.Get("/head", s.getHead)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NotFound", "no route for "+r.URL.Path)
	})
	return r
}

// Serve runs the engine loop and the HTTP server on addr until ctx is
// cancelled, then drains in-flight requests before stopping the engine.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener is Serve on an existing listener.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	engDone := make(chan error, 1)
	go func() { engDone <- s.eng.Run(context.Background()) }()

	httpDone := make(chan error, 1)
	go func() { httpDone <- srv.Serve(ln) }()
	slog.Info("rpc listening", "addr", ln.Addr().String())

	var serveErr error
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		serveErr = srv.Shutdown(shutdownCtx)
		cancel()
	case err := <-httpDone:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	}

	// Handlers have returned, so nothing else can enqueue.
	s.eng.Stop()
	if err := <-engDone; err != nil && serveErr == nil {
		serveErr = err
	}
	slog.Info("rpc stopped")
	return serveErr
}
