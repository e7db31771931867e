// Package server — HTTP API errwatch: приём событий из браузера,
// дашборд алертов и аналитики, служебные эндпоинты.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Kargones/errwatch/internal/pipeline"
	"github.com/Kargones/errwatch/internal/pkg/apperrors"
	"github.com/Kargones/errwatch/internal/pkg/logging"
)

// Значения по умолчанию.
const (
	DefaultAddr            = ":8080"
	DefaultReadTimeout     = 10 * time.Second
	DefaultShutdownTimeout = 15 * time.Second
	DefaultKeepAlive       = 25 * time.Second
)

// Config — параметры HTTP-сервера.
type Config struct {
	Addr string
	// AuthSecret — HMAC-секрет токенов дашборда; пустой отключает проверку.
	AuthSecret   string
	AllowOrigins []string
	ReadTimeout  time.Duration
	// ShutdownTimeout ограничивает ожидание активных запросов при остановке.
	ShutdownTimeout time.Duration
	// KeepAlive — период комментариев-пингов в SSE.
	KeepAlive time.Duration
}

// DefaultConfig возвращает конфигурацию по умолчанию.
func DefaultConfig() Config {
	return Config{
		Addr:            DefaultAddr,
		AllowOrigins:    []string{"*"},
		ReadTimeout:     DefaultReadTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		KeepAlive:       DefaultKeepAlive,
	}
}

// Server обслуживает HTTP API поверх конвейера.
type Server struct {
	cfg      Config
	pipeline *pipeline.Pipeline
	logger   logging.Logger
	router   *gin.Engine
}

// New создаёт сервер и регистрирует маршруты.
func New(cfg Config, p *pipeline.Pipeline, logger logging.Logger) *Server {
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = DefaultKeepAlive
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	s := &Server{
		cfg:      cfg,
		pipeline: p,
		logger:   logger.With("component", "server"),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(recovery(s.logger), requestLogger(s.logger))
	r.Use(cors.New(s.corsConfig()))

	r.GET("/healthz", s.health)
	r.GET("/metrics", gin.WrapH(s.pipeline.Metrics().Handler()))

	v1 := r.Group("/api/v1")

	capture := v1.Group("")
	capture.POST("/errors", s.captureError)
	capture.POST("/actions", s.captureAction)
	capture.POST("/performance-issues", s.capturePerformanceIssue)
	capture.POST("/api-errors", s.captureAPIError)
	capture.POST("/validation-errors", s.captureValidationError)
	capture.POST("/beacons", s.captureBeacon)

	dash := v1.Group("", jwtAuth([]byte(s.cfg.AuthSecret)))
	dash.GET("/alerts", s.activeAlerts)
	dash.GET("/alerts/history", s.alertHistory)
	dash.POST("/alerts/:id/resolve", s.resolveAlert)
	dash.GET("/alerts/stream", s.alertStream)
	dash.GET("/alerts/feed", s.alertFeed)
	dash.GET("/stats", s.errorStats)
	dash.POST("/stats/resolve", s.resolveError)
	dash.GET("/analytics", s.analytics)
	dash.GET("/trends/:period", s.trends)
	dash.GET("/report", s.report)
	dash.GET("/sessions", s.sessions)
	dash.GET("/performance/summary", s.performanceSummary)
	return r
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", HeaderRequestID},
		ExposeHeaders: []string{HeaderRequestID},
		MaxAge:        12 * time.Hour,
	}
	if len(s.cfg.AllowOrigins) == 0 || (len(s.cfg.AllowOrigins) == 1 && s.cfg.AllowOrigins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = s.cfg.AllowOrigins
	}
	return cfg
}

// Handler возвращает http.Handler сервера.
func (s *Server) Handler() http.Handler { return s.router }

// Run слушает cfg.Addr до отмены ctx, затем корректно останавливает сервер.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return apperrors.NewAppError(apperrors.ErrServerStart, fmt.Sprintf("не удалось открыть %s", s.cfg.Addr), err)
	}
	return s.Serve(ctx, ln)
}

// Serve обслуживает запросы на ln до отмены ctx.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info("HTTP-сервер запущен", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return apperrors.NewAppError(apperrors.ErrServerStart, "HTTP-сервер остановился", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("HTTP-сервер остановлен принудительно", "error", err)
		_ = srv.Close() //nolint:errcheck // сервер уже останавливается
	}
	s.logger.Info("HTTP-сервер остановлен")
	return nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"activeAlerts": len(s.pipeline.Alerts().Active()),
		"points":       s.pipeline.Points().Size(),
	})
}
