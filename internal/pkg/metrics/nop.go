package metrics

import (
	"context"
	"net/http"
	"time"
)

// NopCollector ничего не собирает.
type NopCollector struct{}

// NewNopCollector создаёт NopCollector.
func NewNopCollector() *NopCollector { return &NopCollector{} }

func (*NopCollector) RecordEvent(string, string) {}
func (*NopCollector) RecordAlert(string, string) {}
func (*NopCollector) RecordDelivery(string, time.Duration, bool) {}
func (*NopCollector) SetTimeSeriesSize(int) {}
func (*NopCollector) SetActiveAlerts(int) {}
func (*NopCollector) Handler() http.Handler { return http.NotFoundHandler() }
func (*NopCollector) Push(context.Context) error { return nil }
