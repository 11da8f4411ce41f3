package push

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pedalhaus/clubnotify/internal/notify"
)

func newSender(t *testing.T) *Sender {
	t.Helper()
	priv, pub, err := GenerateVAPIDKeys()
	require.NoError(t, err)
	s, err := New(pub, priv, "mailto:club@example.org", time.Second)
	require.NoError(t, err)
	return s
}

// testSubscription builds a subscription with a real P-256 key pair so the
// payload encryption succeeds.
func testSubscription(t *testing.T, endpoint string) notify.Subscription {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	auth := make([]byte, 16)
	_, err = rand.Read(auth)
	require.NoError(t, err)

	return notify.Subscription{
		ID:       "sub1",
		UserID:   "u1",
		Endpoint: endpoint,
		P256dh:   base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
		Auth:     base64.RawURLEncoding.EncodeToString(auth),
	}
}

func TestNew_RequiresKeys(t *testing.T) {
	_, err := New("", "", "mailto:club@example.org", time.Second)
	assert.Error(t, err)

	_, err = New("pub", "", "mailto:club@example.org", time.Second)
	assert.Error(t, err)
}

func TestPublicKey(t *testing.T) {
	s := newSender(t)
	assert.NotEmpty(t, s.PublicKey())
}

func TestSend_StatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantErr  bool
		wantGone bool
	}{
		{"created", http.StatusCreated, false, false},
		{"not found prunes", http.StatusNotFound, true, true},
		{"gone prunes", http.StatusGone, true, true},
		{"bad request is transient", http.StatusBadRequest, true, false},
		{"server error is transient", http.StatusInternalServerError, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.NotEmpty(t, r.Header.Get("Authorization"), "VAPID auth header present")
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			s := newSender(t)
			err := s.Send(context.Background(), testSubscription(t, srv.URL),
				notify.Payload{Title: "Ride", Body: "Meet up"})

			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantGone, errors.Is(err, notify.ErrSubscriptionGone))
		})
	}
}
