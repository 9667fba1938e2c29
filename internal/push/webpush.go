package push

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/jobpulse/notifier/internal/model"
)

// Config holds VAPID configuration.
type Config struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string
	TTL             int
}

// WebPushGateway sends notifications through the browser push services.
type WebPushGateway struct {
	cfg Config
}

func NewWebPushGateway(cfg Config) *WebPushGateway {
	if cfg.TTL <= 0 {
		cfg.TTL = 86400
	}
	return &WebPushGateway{cfg: cfg}
}

func (g *WebPushGateway) Send(ctx context.Context, token *model.DeviceToken, payload Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, data, &webpush.Subscription{
		Endpoint: token.Endpoint,
		Keys: webpush.Keys{
			P256dh: token.P256dh,
			Auth:   token.Auth,
		},
	}, &webpush.Options{
		VAPIDPublicKey:  g.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: g.cfg.VAPIDPrivateKey,
		Subscriber:      g.cfg.Subscriber,
		TTL:             g.cfg.TTL,
	})
	if err != nil {
		// Network-level failures are worth another attempt.
		return Transient(fmt.Errorf("send push: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return ErrExpired
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return Transient(fmt.Errorf("push service returned %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		return fmt.Errorf("push service returned %d", resp.StatusCode)
	}

	return nil
}
