package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIResponse — конверт ответа API.
type APIResponse struct {
	Data  any        `json:"data"`
	Error *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo — описание ошибки запроса.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func success(c *gin.Context, status int, data any) {
	c.JSON(status, APIResponse{Data: data})
}

// fail пишет ошибку и прерывает цепочку обработчиков.
// Подробности err отдаются клиенту только для 4xx.
func fail(c *gin.Context, status int, message string, err error) {
	info := &ErrorInfo{Code: errorCode(status), Message: message}
	if err != nil && status < http.StatusInternalServerError {
		info.Details = err.Error()
	}
	if err != nil {
		_ = c.Error(err) //nolint:errcheck // ошибка попадает в лог запроса
	}
	c.AbortWithStatusJSON(status, APIResponse{Error: info})
}

func errorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusServiceUnavailable:
		return "UNAVAILABLE"
	case http.StatusInternalServerError:
		return "INTERNAL_SERVER_ERROR"
	default:
		return "ERROR"
	}
}
