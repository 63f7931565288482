package service

import "errors"

var (
	ErrValidation         = errors.New("validation error")
	ErrNotFound           = errors.New("session not found")
	ErrGatewayUnavailable = errors.New("gateway unavailable")
	ErrUpstreamSend       = errors.New("upstream send failed")
	ErrWebhookDelivery    = errors.New("webhook delivery failed")
)
