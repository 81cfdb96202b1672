package events

import "errors"

var (
	ErrInvalidEndpoint  = errors.New("events: invalid endpoint url")
	ErrQueueClosed      = errors.New("events: queue closed")
	ErrDeliveryFailed   = errors.New("events: delivery failed")
	ErrInvalidSignature = errors.New("events: invalid signature")
	ErrMissingSecret    = errors.New("events: signing secret is required")
)
