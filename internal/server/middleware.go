package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Kargones/errwatch/internal/pkg/logging"
	"github.com/Kargones/errwatch/internal/pkg/tracing"
)

// Ключи gin.Context.
const (
	keyRequestID = "request_id"
	keySubject   = "subject"
)

// HeaderRequestID — заголовок идентификатора запроса.
const HeaderRequestID = "X-Request-ID"

// Ошибки проверки токена дашборда.
var (
	ErrInvalidToken = errors.New("недействительный токен")
	ErrExpiredToken = errors.New("срок действия токена истёк")
)

// requestLogger пишет в лог каждый запрос. Идентификатор запроса берётся
// из заголовка или генерируется и попадает в контекст как trace_id.
func requestLogger(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.New().String()[:8]
		}
		c.Set(keyRequestID, requestID)
		c.Header(HeaderRequestID, requestID)
		c.Request = c.Request.WithContext(tracing.WithTraceID(c.Request.Context(), requestID))

		c.Next()

		status := c.Writer.Status()
		args := []any{
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			args = append(args, "error", c.Errors.Last().Err)
		}
		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("запрос", args...)
		case status >= http.StatusBadRequest:
			logger.Warn("запрос", args...)
		default:
			logger.Debug("запрос", args...)
		}
	}
}

// recovery превращает панику обработчика в 500.
func recovery(logger logging.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, rec any) {
		logger.Error("паника в обработчике HTTP", "path", c.Request.URL.Path, "panic", rec)
		fail(c, http.StatusInternalServerError, "Внутренняя ошибка", nil)
	})
}

// jwtAuth пропускает запросы с действительным Bearer-токеном, подписанным
// HMAC-секретом. Пустой secret отключает проверку.
func jwtAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(secret) == 0 {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if header == "" {
			fail(c, http.StatusUnauthorized, "Нет заголовка Authorization", nil)
			return
		}
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || scheme != "Bearer" || token == "" {
			fail(c, http.StatusUnauthorized, "Неверный формат заголовка Authorization", nil)
			return
		}

		claims, err := verifyToken(token, secret)
		if err != nil {
			msg := "Недействительный токен"
			if errors.Is(err, ErrExpiredToken) {
				msg = "Срок действия токена истёк"
			}
			fail(c, http.StatusUnauthorized, msg, err)
			return
		}
		c.Set(keySubject, claims.Subject)
		c.Next()
	}
}

func verifyToken(raw string, secret []byte) (*jwt.RegisteredClaims, error) {
	token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
