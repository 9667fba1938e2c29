// Package push is the delivery gateway boundary. The engine only
// depends on the Gateway interface; the production implementation
// speaks web push with VAPID.
package push

import (
	"context"
	"errors"
	"fmt"

	"github.com/jobpulse/notifier/internal/model"
)

// ErrExpired marks a terminal per-token failure: the endpoint is gone
// and the token must be deactivated, never retried.
var ErrExpired = errors.New("push subscription expired")

// TransientError wraps provider failures worth retrying (timeouts,
// 429, 5xx).
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient push error: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient wraps err as retryable.
func Transient(err error) error {
	return &TransientError{Err: err}
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te) || errors.Is(err, context.DeadlineExceeded)
}

// Payload is the rendered notification sent to a device.
type Payload struct {
	Title string                 `json:"title"`
	Body  string                 `json:"body"`
	Tag   string                 `json:"tag,omitempty"`
	Data  map[string]interface{} `json:"data,omitempty"`
}

// Gateway delivers one payload to one device token.
type Gateway interface {
	Send(ctx context.Context, token *model.DeviceToken, payload Payload) error
}
