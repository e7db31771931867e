package alerting

import "github.com/Kargones/errwatch/internal/entity/monitoring"

// NopNotifier отбрасывает все алерты. Используется в тестах и утилитах без доставки.
type NopNotifier struct{}

// Dispatch ничего не делает и сообщает об успехе.
func (NopNotifier) Dispatch(monitoring.AlertEvent) bool { return true }
