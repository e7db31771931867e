package alerting

import "errors"

// Ошибки валидации конфигурации каналов.
var (
	ErrSMTPHostRequired     = errors.New("alerting: smtp host is required when email channel is enabled")
	ErrFromRequired         = errors.New("alerting: from address is required when email channel is enabled")
	ErrToRequired           = errors.New("alerting: at least one recipient is required when email channel is enabled")
	ErrEmailAddressInvalid  = errors.New("alerting: email address contains control characters")
	ErrWebhookURLRequired   = errors.New("alerting: at least one url is required when webhook channel is enabled")
	ErrWebhookURLInvalid    = errors.New("alerting: url must be http(s) with host")
	ErrWebhookHeaderInvalid = errors.New("alerting: header contains control characters")
	ErrSlackURLRequired     = errors.New("alerting: webhook url is required when slack channel is enabled")
	ErrTeamsURLRequired     = errors.New("alerting: webhook url is required when teams channel is enabled")
	ErrInvalidQueueSize     = errors.New("alerting: queue size must be positive")
)

// Ошибки доставки.
var (
	ErrSMTPConnection = errors.New("alerting: failed to connect to SMTP server")
	ErrSMTPAuth       = errors.New("alerting: SMTP authentication failed")
	ErrSMTPSend       = errors.New("alerting: failed to send email")
	ErrNoPublisher    = errors.New("alerting: dashboard publisher is not configured")
)
