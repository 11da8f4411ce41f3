// Package push sends web push notifications over the VAPID protocol.
package push

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/pedalhaus/clubnotify/internal/notify"
)

// Sender delivers notification payloads to browser push endpoints.
// Implements notify.PushSender.
type Sender struct {
	publicKey  string
	privateKey string
	subscriber string // contact mailto: for the push service
	client     *http.Client
	ttl        int
}

// New creates a Sender. Returns an error when either VAPID key is missing;
// generate a pair with `clubnotify-dispatch vapid-keygen`.
func New(publicKey, privateKey, subscriber string, timeout time.Duration) (*Sender, error) {
	if publicKey == "" || privateKey == "" {
		return nil, fmt.Errorf("VAPID keys are required (set VAPID_PUBLIC_KEY and VAPID_PRIVATE_KEY)")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Sender{
		publicKey:  publicKey,
		privateKey: privateKey,
		subscriber: subscriber,
		client:     &http.Client{Timeout: timeout},
		ttl:        3600,
	}, nil
}

// PublicKey returns the VAPID public key clients subscribe with.
func (s *Sender) PublicKey() string {
	return s.publicKey
}

// Send delivers one payload to one subscription. A 404 or 410 from the push
// service means the endpoint is gone for good and is reported by wrapping
// notify.ErrSubscriptionGone.
func (s *Sender) Send(ctx context.Context, sub notify.Subscription, p notify.Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, body, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &webpush.Options{
		HTTPClient:      s.client,
		Subscriber:      s.subscriber,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		TTL:             s.ttl,
	})
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return fmt.Errorf("push service returned %d: %w", resp.StatusCode, notify.ErrSubscriptionGone)
	case resp.StatusCode >= 400:
		return fmt.Errorf("push service returned %d", resp.StatusCode)
	}
	return nil
}

// GenerateVAPIDKeys returns a fresh (private, public) VAPID key pair.
func GenerateVAPIDKeys() (privateKey, publicKey string, err error) {
	return webpush.GenerateVAPIDKeys()
}
