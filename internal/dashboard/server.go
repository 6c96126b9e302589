// internal/dashboard/server.go
package dashboard

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"forgevision/internal/common/logger"
	"forgevision/internal/models"
	collectrequest "forgevision/internal/workers/design/collect-request"
	"forgevision/pkg/registry"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Runner is the pipeline as seen by the HTTP layer.
type Runner interface {
	Run(ctx context.Context, sess *models.Session, input *collectrequest.Input) (*models.RenderResult, error)
	Current(ctx context.Context, sess *models.Session) (*models.RenderResult, error)
}

// ReadyCheck reports whether a dependency can serve traffic.
type ReadyCheck func(ctx context.Context) error

// EngineStatus names the hosted models shown in the page header.
type EngineStatus struct {
	TextModel  string `json:"textModel"`
	ImageModel string `json:"imageModel"`
}

// Config holds runtime options for the dashboard HTTP server.
type Config struct {
	Address        string
	AppName        string
	Version        string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
	CookieName     string
	CookieTTL      time.Duration
	CookieSecure   bool
	MetricsEnabled bool
	MetricsPath    string
	Engine         EngineStatus
}

type Server struct {
	config   Config
	runner   Runner
	registry *registry.StageRegistry
	checks   map[string]ReadyCheck
	views    *renderer
	logger   logger.Logger
}

func NewServer(cfg Config, runner Runner, reg *registry.StageRegistry, checks map[string]ReadyCheck, log logger.Logger) (*Server, error) {
	views, err := newRenderer()
	if err != nil {
		return nil, err
	}
	if cfg.CookieName == "" {
		cfg.CookieName = "forgevision_session"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.AppName == "" {
		cfg.AppName = "ForgeVision"
	}

	return &Server{
		config:   cfg,
		runner:   runner,
		registry: reg,
		checks:   checks,
		views:    views,
		logger:   log.With(map[string]interface{}{"component": "dashboard"}),
	}, nil
}

// Routes builds the router with the middleware stack.
func (s *Server) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(RequestLogger(s.logger))
	router.Use(chimw.Recoverer)

	router.Get("/health", s.handleHealth)
	router.Get("/ready", s.handleReady)
	if s.config.MetricsEnabled {
		router.Handle(s.config.MetricsPath, promhttp.Handler())
	}

	router.Group(func(r chi.Router) {
		if s.config.RequestTimeout > 0 {
			r.Use(chimw.Timeout(s.config.RequestTimeout))
		}
		r.Use(NoStore())
		r.Use(Session(s.config.CookieName, s.config.CookieTTL, s.config.CookieSecure))

		r.Get("/", s.handleIndex)
		r.Post("/synthesize", s.handleSynthesize)
		r.Get("/result/image.png", s.handleImage)
		r.Get("/blueprint", s.handleBlueprint)

		r.Route("/api", func(r chi.Router) {
			r.Get("/result", s.handleAPIResult)
			r.Post("/synthesize", s.handleAPISynthesize)
		})
	})

	return router
}

// HTTPServer wraps Routes in an *http.Server with the configured timeouts.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.config.Address,
		Handler:           s.Routes(),
		ReadTimeout:       s.config.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}
}

func (s *Server) sessionOrFail(w http.ResponseWriter, r *http.Request) (*models.Session, bool) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		s.logger.Error("request reached handler without a session", map[string]interface{}{"path": r.URL.Path})
		http.Error(w, "session unavailable", http.StatusInternalServerError)
		return nil, false
	}
	return sess, true
}

func imageURL(result *models.RenderResult) string {
	return fmt.Sprintf("/result/image.png?v=%s", result.ID)
}
