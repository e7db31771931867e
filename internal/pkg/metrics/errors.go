package metrics

import "errors"

var (
	ErrPushgatewayURLInvalid = errors.New("pushgateway URL has invalid format")
	ErrJobNameRequired       = errors.New("job name is required")
	ErrInvalidTimeout        = errors.New("timeout must be positive")
	ErrInvalidPushInterval   = errors.New("push interval must be positive when pushgateway is set")
)
