// Package api serves the caption analysis and scheduling JSON API.
package api

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"inspiro/internal/config"
	"inspiro/internal/logging"
	"inspiro/internal/predict"
	"inspiro/internal/schedule"
	"inspiro/internal/suggest"
)

// Publisher posts a caption immediately and returns the platform post id.
type Publisher interface {
	Publish(ctx context.Context, message string) (string, error)
}

// Deps are the services the handlers call. Predict and Schedule are
// required; the rest may be nil.
type Deps struct {
	Predict  *predict.Service
	Schedule *schedule.Service
	Rewriter *suggest.Rewriter
	Polisher *suggest.Polisher
	// Nil disables /api/publish.
	Publisher Publisher
	// Last token health result; nil reports the token as unchecked.
	TokenHealthy *atomic.Bool
	Now          func() time.Time
}

type Server struct {
	cfg          config.ServerConfig
	deps         Deps
	modelsLoaded bool
	loc          *time.Location
	router       *mux.Router
	server       *http.Server
	limiter      *clientLimiter
}

// New builds the server. Model readiness is checked once here and cached.
func New(cfg config.ServerConfig, deps Deps) *Server {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Rewriter == nil {
		deps.Rewriter = suggest.NewRewriter(nil)
	}
	s := &Server{
		cfg:     cfg,
		deps:    deps,
		loc:     time.Local,
		router:  mux.NewRouter(),
		limiter: newClientLimiter(cfg.RateLimit, cfg.RateWindow),
	}
	if deps.Predict != nil {
		s.loc = deps.Predict.Location()
		if err := deps.Predict.Ready(); err != nil {
			logging.Error("models_not_ready", map[string]any{"error": err.Error()})
		} else {
			s.modelsLoaded = true
		}
	}
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.requestLoggingMiddleware)
	s.router.Use(s.corsMiddleware)
	s.router.Use(s.timeoutMiddleware)

	s.router.HandleFunc("/health", s.health).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.rateLimitMiddleware)
	post := []string{http.MethodPost, http.MethodOptions}
	api.HandleFunc("/analyze", s.analyze).Methods(post...)
	api.HandleFunc("/analyze/batch", s.analyzeBatch).Methods(post...)
	api.HandleFunc("/analyze_caption", s.analyzeCaption).Methods(post...)
	api.HandleFunc("/rewrite", s.rewrite).Methods(post...)
	api.HandleFunc("/best-time", s.bestTime).Methods(post...)
	api.HandleFunc("/schedule/confirm", s.confirmSchedule).Methods(post...)
	api.HandleFunc("/posts", s.createPost).Methods(post...)
	api.HandleFunc("/posts", s.listPosts).Methods(http.MethodGet)
	api.HandleFunc("/posts/{id}", s.deletePost).Methods(http.MethodDelete, http.MethodOptions)
	api.HandleFunc("/publish", s.publish).Methods(post...)

	s.router.NotFoundHandler = http.HandlerFunc(notFound)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// ModelsLoaded is the readiness result cached at startup.
func (s *Server) ModelsLoaded() bool { return s.modelsLoaded }

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	logging.Info("http_server_start", map[string]any{"addr": s.cfg.Addr, "models_loaded": s.modelsLoaded})
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("http_server_stop", nil)
	return s.server.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":        "running",
		"models_loaded": s.modelsLoaded,
		"timestamp":     s.deps.Now().Format(time.RFC3339),
	}
	if s.deps.TokenHealthy != nil {
		body["token_valid"] = s.deps.TokenHealthy.Load()
	} else {
		body["token_valid"] = nil
	}
	writeJSON(w, http.StatusOK, body)
}

// requireModels writes the standard 500 and returns false when the models
// failed to load at startup.
func (s *Server) requireModels(w http.ResponseWriter) bool {
	if s.modelsLoaded {
		return true
	}
	writeError(w, http.StatusInternalServerError, "Models not loaded",
		"Please ensure all model artifacts are in the models/ directory")
	return false
}
