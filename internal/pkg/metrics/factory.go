package metrics

import "github.com/Kargones/errwatch/internal/pkg/logging"

// NewCollector возвращает PrometheusCollector или NopCollector при Enabled == false.
func NewCollector(cfg Config, logger logging.Logger) (Collector, error) {
	if !cfg.Enabled {
		return NewNopCollector(), nil
	}
	return NewPrometheusCollector(cfg, logger)
}
