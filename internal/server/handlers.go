package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Kargones/errwatch/internal/alertstate"
	"github.com/Kargones/errwatch/internal/entity/monitoring"
	"github.com/Kargones/errwatch/internal/perf"
)

type actionRequest struct {
	Action  string         `json:"action" binding:"required"`
	Success bool           `json:"success"`
	Extra   map[string]any `json:"extra,omitempty"`
}

type performanceIssueRequest struct {
	Metric    string         `json:"metric" binding:"required"`
	Value     float64        `json:"value"`
	Threshold float64        `json:"threshold"`
	Extra     map[string]any `json:"extra,omitempty"`
}

type apiErrorRequest struct {
	Endpoint     string  `json:"endpoint" binding:"required"`
	Method       string  `json:"method" binding:"required"`
	Status       int     `json:"status"`
	ResponseTime float64 `json:"responseTime"`
	Error        string  `json:"error,omitempty"`
}

type validationErrorRequest struct {
	Field string         `json:"field" binding:"required"`
	Value any            `json:"value"`
	Rule  string         `json:"rule" binding:"required"`
	Extra map[string]any `json:"extra,omitempty"`
}

type resolveErrorRequest struct {
	Signature string `json:"signature" binding:"required"`
}

func (s *Server) captureError(c *gin.Context) {
	var ev monitoring.ErrorEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		fail(c, http.StatusBadRequest, "Некорректное событие ошибки", err)
		return
	}
	st := s.pipeline.Tracker().TrackEvent(c.Request.Context(), ev)
	success(c, http.StatusAccepted, st)
}

func (s *Server) captureAction(c *gin.Context) {
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Некорректное действие пользователя", err)
		return
	}
	s.pipeline.Tracker().TrackUserAction(c.Request.Context(), req.Action, req.Success, req.Extra)
	c.Status(http.StatusAccepted)
}

func (s *Server) capturePerformanceIssue(c *gin.Context) {
	var req performanceIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Некорректная проблема производительности", err)
		return
	}
	s.pipeline.Tracker().TrackPerformanceIssue(c.Request.Context(), req.Metric, req.Value, req.Threshold, req.Extra)
	c.Status(http.StatusAccepted)
}

func (s *Server) captureAPIError(c *gin.Context) {
	var req apiErrorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Некорректная ошибка API", err)
		return
	}
	var cause error
	if req.Error != "" {
		cause = errors.New(req.Error)
	}
	s.pipeline.Tracker().TrackAPIError(c.Request.Context(), req.Endpoint, req.Method, req.Status, req.ResponseTime, cause)
	c.Status(http.StatusAccepted)
}

func (s *Server) captureValidationError(c *gin.Context) {
	var req validationErrorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Некорректная ошибка валидации", err)
		return
	}
	s.pipeline.Tracker().TrackValidationError(c.Request.Context(), req.Field, req.Value, req.Rule, req.Extra)
	c.Status(http.StatusAccepted)
}

// captureBeacon принимает beacon браузера. Переполненная очередь даёт 503,
// браузер может повторить отправку позже.
func (s *Server) captureBeacon(c *gin.Context) {
	var b perf.Beacon
	if err := c.ShouldBindJSON(&b); err != nil {
		fail(c, http.StatusBadRequest, "Некорректный beacon", err)
		return
	}
	session, err := s.pipeline.Collector().Observe(b)
	switch {
	case errors.Is(err, perf.ErrBeaconType):
		fail(c, http.StatusBadRequest, "Неизвестный тип beacon", err)
		return
	case errors.Is(err, perf.ErrQueueFull):
		fail(c, http.StatusServiceUnavailable, "Очередь beacon-ов переполнена", err)
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, "Не удалось принять beacon", err)
		return
	}
	success(c, http.StatusAccepted, gin.H{"session": session})
}

func (s *Server) activeAlerts(c *gin.Context) {
	success(c, http.StatusOK, s.pipeline.Alerts().Active())
}

func (s *Server) alertHistory(c *gin.Context) {
	limit := alertstate.DefaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			fail(c, http.StatusBadRequest, "limit должен быть неотрицательным целым", err)
			return
		}
		limit = n
	}
	success(c, http.StatusOK, s.pipeline.Alerts().History(limit))
}

func (s *Server) resolveAlert(c *gin.Context) {
	alert, ok := s.pipeline.ResolveAlert(c.Param("id"))
	if !ok {
		fail(c, http.StatusNotFound, "Алерт не найден", nil)
		return
	}
	success(c, http.StatusOK, alert)
}

func (s *Server) errorStats(c *gin.Context) {
	category := monitoring.Category(c.Query("category"))
	if category == "" {
		success(c, http.StatusOK, s.pipeline.Stats().Stats())
		return
	}
	if !category.Valid() {
		fail(c, http.StatusBadRequest, "Неизвестная категория "+string(category), nil)
		return
	}
	success(c, http.StatusOK, s.pipeline.Stats().ByCategory(category))
}

func (s *Server) resolveError(c *gin.Context) {
	var req resolveErrorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Не указана сигнатура ошибки", err)
		return
	}
	st, ok := s.pipeline.ResolveError(req.Signature)
	if !ok {
		fail(c, http.StatusNotFound, "Ошибка с такой сигнатурой не найдена", nil)
		return
	}
	success(c, http.StatusOK, st)
}

func (s *Server) analytics(c *gin.Context) {
	success(c, http.StatusOK, s.pipeline.Analyzer().Analytics())
}

func (s *Server) trends(c *gin.Context) {
	ta, err := s.pipeline.Analyzer().Analyze(monitoring.Period(c.Param("period")))
	if err != nil {
		if errors.Is(err, monitoring.ErrUnknownPeriod) {
			fail(c, http.StatusBadRequest, "Неизвестный период", err)
			return
		}
		fail(c, http.StatusInternalServerError, "Не удалось построить тренд", err)
		return
	}
	success(c, http.StatusOK, ta)
}

func (s *Server) report(c *gin.Context) {
	c.String(http.StatusOK, s.pipeline.Analyzer().Report())
}

// sessions отдаёт сессии браузеров; ?active=true оставляет только незавершённые.
func (s *Server) sessions(c *gin.Context) {
	sessions := s.pipeline.Collector().Sessions()
	if active, _ := strconv.ParseBool(c.Query("active")); active {
		success(c, http.StatusOK, sessions.Active())
		return
	}
	success(c, http.StatusOK, sessions.All())
}

func (s *Server) performanceSummary(c *gin.Context) {
	var window time.Duration
	if raw := c.Query("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			fail(c, http.StatusBadRequest, "window должен быть положительной длительностью", err)
			return
		}
		window = d
	}
	success(c, http.StatusOK, s.pipeline.Collector().Summary(window))
}
