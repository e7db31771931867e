// Package tracing связывает логи errwatch с OpenTelemetry.
//
// Каждый цикл оценки алертов и каждая доставка в канал получают trace_id
// (32 hex символа, формат W3C Trace Context), который пишется в логи.
package tracing

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"
)

var fallbackCounter atomic.Uint64

// GenerateTraceID возвращает случайный 32-символьный hex идентификатор.
func GenerateTraceID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%016x%016x", uint64(time.Now().UnixNano()), fallbackCounter.Add(1))
	}
	return hex.EncodeToString(b)
}

type traceIDKey struct{}

// WithTraceID кладёт trace_id в контекст.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, id)
}

// TraceIDFromContext возвращает trace_id или пустую строку.
func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(traceIDKey{}).(string)
	return id
}
