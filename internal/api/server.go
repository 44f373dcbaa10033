package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dgallion1/aquasens/internal/account"
	"github.com/dgallion1/aquasens/internal/batch"
	"github.com/dgallion1/aquasens/internal/config"
	"github.com/dgallion1/aquasens/internal/history"
	"github.com/dgallion1/aquasens/internal/predictor"
)

// Server is the HTTP API server for aquasens.
type Server struct {
	router       chi.Router
	predictor    *predictor.Predictor
	history      *history.Store
	orchestrator *batch.Orchestrator
	accounts     *account.Store
	tokens       *account.Tokens
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(p *predictor.Predictor, h *history.Store, orch *batch.Orchestrator, accounts *account.Store, tokens *account.Tokens, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		predictor:    p,
		history:      h,
		orchestrator: orch,
		accounts:     accounts,
		tokens:       tokens,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         86400,
	}))

	limit := httprate.LimitByIP(s.cfg.RateLimitRequests, s.cfg.RateLimitWindow)

	// Public endpoints.
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.With(limit).Post("/predict", s.handlePredict)
	r.With(limit).Post("/api/auth/signup", s.handleSignup)
	r.With(limit).Post("/api/auth/login", s.handleLogin)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.tokens, s.log))

		r.Get("/api/auth/me", s.handleMe)

		r.With(limit).Post("/api/predictions", s.handleCreatePrediction)
		r.With(limit).Post("/api/predictions/batch", s.handleBatchSubmit)
		r.Get("/api/predictions/batch/{jobID}", s.handleBatchStatus)

		r.Get("/api/history", s.handleListHistory)
		r.Get("/api/history/{id}", s.handleGetHistory)
		r.Get("/api/history/{id}/report", s.handleReport)

		r.Get("/api/stats/predict", s.handlePredictStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
