package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"PortfolioSentinel/internal/model"
	"PortfolioSentinel/internal/recorder"
	"PortfolioSentinel/internal/scheduler"
)

// defaultHistoryDays is the lookback of /api/history without ?days.
const defaultHistoryDays = 7

// Source exposes the scheduler state served over HTTP.
type Source interface {
	LatestSummary() *model.BatchSummary
	Result(ticker string) (*model.PipelineResult, bool)
	Status() scheduler.Status
}

// APIResponse is the envelope of every JSON response.
type APIResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Server is the read-only status API.
type Server struct {
	echo    *echo.Echo
	addr    string
	source  Source
	history recorder.HistoryReader
	now     func() time.Time
	logger  zerolog.Logger
}

// Option customizes a Server.
type Option func(*Server)

// WithHistory serves stored recommendations from h.
func WithHistory(h recorder.HistoryReader) Option {
	return func(s *Server) { s.history = h }
}

// WithClock sets the clock the history lookback is measured from.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New builds the router. gatherer backs /metrics.
func New(addr string, source Source, gatherer prometheus.Gatherer, logger zerolog.Logger, opts ...Option) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:   e,
		addr:   addr,
		source: source,
		now:    time.Now,
		logger: logger.With().Str("component", "server").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	e.Use(middleware.Recover())
	e.Use(s.requestLogging())

	e.GET("/healthz", s.health)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	g := e.Group("/api")
	g.GET("/status", s.status)
	g.GET("/summary", s.summary)
	g.GET("/results/:ticker", s.result)
	g.GET("/history/:ticker", s.historyFor)
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.echo }

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.addr).Msg("status server listening")
	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) requestLogging() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			req := c.Request()
			s.logger.Debug().
				Str("method", req.Method).
				Str("uri", req.RequestURI).
				Int("status", c.Response().Status).
				Dur("latency", time.Since(start)).
				Msg("request")
			return nil
		}
	}
}

func respond(c echo.Context, code int, data any) error {
	return c.JSON(code, APIResponse{Status: code, Message: http.StatusText(code), Data: data})
}

func (s *Server) health(c echo.Context) error {
	return respond(c, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(c echo.Context) error {
	return respond(c, http.StatusOK, s.source.Status())
}

func (s *Server) summary(c echo.Context) error {
	summary := s.source.LatestSummary()
	if summary == nil {
		return respond(c, http.StatusNotFound, nil)
	}
	return respond(c, http.StatusOK, summary)
}

func tickerParam(c echo.Context) string {
	return strings.ToUpper(strings.TrimSpace(c.Param("ticker")))
}

// result serves the latest in-memory result, then the latest stored one.
func (s *Server) result(c echo.Context) error {
	ticker := tickerParam(c)
	if res, ok := s.source.Result(ticker); ok {
		return respond(c, http.StatusOK, res)
	}
	if s.history == nil {
		return respond(c, http.StatusNotFound, nil)
	}
	res, ok, err := s.history.Latest(c.Request().Context(), ticker)
	if err != nil {
		s.logger.Error().Err(err).Str("symbol", ticker).Msg("read latest result")
		return respond(c, http.StatusInternalServerError, nil)
	}
	if !ok {
		return respond(c, http.StatusNotFound, nil)
	}
	return respond(c, http.StatusOK, res)
}

func (s *Server) historyFor(c echo.Context) error {
	if s.history == nil {
		return respond(c, http.StatusServiceUnavailable, nil)
	}
	days := defaultHistoryDays
	if v := c.QueryParam("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return c.JSON(http.StatusBadRequest, APIResponse{
				Status:  http.StatusBadRequest,
				Message: "days must be a positive integer",
			})
		}
		days = n
	}

	ticker := tickerParam(c)
	since := s.now().AddDate(0, 0, -days)
	results, err := s.history.History(c.Request().Context(), ticker, since)
	if err != nil {
		s.logger.Error().Err(err).Str("symbol", ticker).Msg("read history")
		return respond(c, http.StatusInternalServerError, nil)
	}
	if results == nil {
		results = []*model.PipelineResult{}
	}
	return respond(c, http.StatusOK, results)
}
