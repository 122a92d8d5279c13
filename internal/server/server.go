// Package server exposes the answer service over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
	"unirag/config"
	"unirag/internal/domain"
	"unirag/internal/port"
	"unirag/internal/usecase"
)

// Answerer answers one question.
type Answerer interface {
	Answer(ctx context.Context, req usecase.AnswerRequest) (*usecase.Answer, error)
}

// Reloader replaces the active corpus from its snapshot.
type Reloader interface {
	Reload() (*domain.Corpus, error)
}

// Invalidator drops cached retrieval results after a reload.
type Invalidator interface {
	Invalidate()
}

// Deps are the collaborators behind the HTTP routes.
type Deps struct {
	Answers  Answerer
	Corpus   port.CorpusStore
	Reloader Reloader    // nil disables POST /reload
	Cache    Invalidator // optional
	Strategy string
	Apology  string
}

type Server struct {
	echo   *echo.Echo
	deps   Deps
	cfg    config.ServerConfig
	logger *slog.Logger
}

func New(cfg config.ServerConfig, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	if deps.Apology == "" {
		deps.Apology = config.DefaultConfig().LLM.Apology
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{echo: e, deps: deps, cfg: cfg, logger: logger}
	s.middleware()
	s.routes()
	return s
}

func (s *Server) middleware() {
	s.echo.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				s.logger.Error("request failed", append(attrs, "error", v.Error)...)
				return nil
			}
			s.logger.Info("request", attrs...)
			return nil
		},
	}))

	origins := s.cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
	}))

	if s.cfg.RateLimit > 0 {
		burst := int(s.cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		s.echo.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
			Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
				Rate:  rate.Limit(s.cfg.RateLimit),
				Burst: burst,
			}),
			DenyHandler: func(c echo.Context, _ string, _ error) error {
				return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "too many requests"})
			},
		}))
	}
}

func (s *Server) routes() {
	s.echo.GET("/health", s.health)
	s.echo.POST("/chat", s.chat)
	s.echo.POST("/reload", s.reload)
	s.echo.POST("/builddb", s.buildDB)
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until the server is shut down.
func (s *Server) Start() error {
	s.logger.Info("listening", "addr", s.cfg.Addr)
	if err := s.echo.Start(s.cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

type chatRequest struct {
	Query *string `json:"query"`
	K     *int    `json:"k"`
}

type chatResponse struct {
	Answer string `json:"answer"`
}

func (s *Server) chat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid json"})
	}
	if req.Query == nil || strings.TrimSpace(*req.Query) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no query"})
	}

	in := usecase.AnswerRequest{Query: *req.Query}
	if req.K != nil {
		if *req.K <= 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "k must be positive"})
		}
		in.K = *req.K
	}

	ans, err := s.deps.Answers.Answer(c.Request().Context(), in)
	if err != nil {
		if errors.Is(err, domain.ErrClientInput) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		s.logger.Error("answer failed", "error", err)
		return c.JSON(http.StatusOK, chatResponse{Answer: s.deps.Apology})
	}

	return c.JSON(http.StatusOK, chatResponse{Answer: ans.Text})
}

func (s *Server) health(c echo.Context) error {
	resp := echo.Map{"status": "ok"}
	if s.deps.Corpus != nil {
		resp["chunks"] = s.deps.Corpus.Corpus().Len()
		resp["generation"] = s.deps.Corpus.Generation()
	}
	if s.deps.Strategy != "" {
		resp["strategy"] = s.deps.Strategy
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) reload(c echo.Context) error {
	if s.deps.Reloader == nil {
		return c.JSON(http.StatusNotImplemented, echo.Map{"error": "reload not available"})
	}

	corpus, err := s.deps.Reloader.Reload()
	if err != nil {
		s.logger.Error("corpus reload failed", "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reload failed"})
	}
	if s.deps.Cache != nil {
		s.deps.Cache.Invalidate()
	}

	resp := echo.Map{"status": "reloaded", "chunks": corpus.Len()}
	if s.deps.Corpus != nil {
		resp["generation"] = s.deps.Corpus.Generation()
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) buildDB(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"status":  "disabled",
		"message": "Embedding building is disabled on the server. Build the snapshot offline with `unirag ingest`.",
	})
}
