package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/pod-fulfillment/internal/idempotency"
)

const testSecret = "whsec_test"

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func eventBody(t *testing.T, eventType, eventID string) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"type":      eventType,
		"event_id":  eventID,
		"timestamp": 1756500000,
		"data":      map[string]any{"order": map[string]any{"id": "PF-1001", "status": "shipped"}},
	})
	require.NoError(t, err)
	return b
}

func TestHandleValidSignatureDispatches(t *testing.T) {
	r := NewReceiver(testSecret, idempotency.NewMemoryStore())
	var got json.RawMessage
	r.On(EventOrderShipped, func(_ context.Context, data json.RawMessage) error {
		got = data
		return nil
	})

	body := eventBody(t, EventOrderShipped, "evt-1")
	res, err := r.Handle(context.Background(), body, sign(testSecret, body))
	require.NoError(t, err)

	assert.True(t, res.Accepted)
	assert.NotNil(t, got)
}

func TestHandleRejectsTamperedBody(t *testing.T) {
	r := NewReceiver(testSecret, idempotency.NewMemoryStore())
	r.On(EventOrderShipped, func(_ context.Context, _ json.RawMessage) error {
		t.Fatal("handler must not run on a bad signature")
		return nil
	})

	body := eventBody(t, EventOrderShipped, "evt-2")
	sig := sign(testSecret, body)

	tampered := make([]byte, len(body))
	copy(tampered, body)
	tampered[len(tampered)/2] ^= 0x01

	res, err := r.Handle(context.Background(), tampered, sig)
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.Equal(t, "invalid signature", res.Reason)

	// Flipping a signature byte fails the same way.
	badSig := []byte(sig)
	badSig[0] ^= 0x01
	res, err = r.Handle(context.Background(), body, string(badSig))
	require.NoError(t, err)
	assert.False(t, res.Accepted)
}

func TestHandleWithoutSecretSkipsVerification(t *testing.T) {
	r := NewReceiver("", idempotency.NewMemoryStore())
	called := false
	r.On(EventOrderShipped, func(_ context.Context, _ json.RawMessage) error {
		called = true
		return nil
	})

	res, err := r.Handle(context.Background(), eventBody(t, EventOrderShipped, "evt-3"), "garbage")
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.True(t, called)
}

func TestHandleMalformedPayload(t *testing.T) {
	r := NewReceiver("", idempotency.NewMemoryStore())

	for _, body := range [][]byte{
		[]byte("not json"),
		[]byte(`{"data":{}}`), // no type
	} {
		res, err := r.Handle(context.Background(), body, "")
		require.NoError(t, err)
		assert.False(t, res.Accepted)
		assert.Equal(t, "malformed payload", res.Reason)
	}
}

func TestHandleUnrecognizedTypeIsAccepted(t *testing.T) {
	r := NewReceiver("", idempotency.NewMemoryStore())

	res, err := r.Handle(context.Background(), eventBody(t, "stock_updated", "evt-4"), "")
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.Equal(t, "unrecognized event type", res.Reason)
}

func TestHandleSuppressesDuplicateDeliveries(t *testing.T) {
	r := NewReceiver("", idempotency.NewMemoryStore())
	calls := 0
	r.On(EventOrderShipped, func(_ context.Context, _ json.RawMessage) error {
		calls++
		return nil
	})

	body := eventBody(t, EventOrderShipped, "evt-5")
	for i := 0; i < 3; i++ {
		res, err := r.Handle(context.Background(), body, "")
		require.NoError(t, err)
		assert.True(t, res.Accepted)
	}
	assert.Equal(t, 1, calls, "replayed deliveries must dispatch exactly once")
}

func TestHandleDedupsWithoutEventID(t *testing.T) {
	r := NewReceiver("", idempotency.NewMemoryStore())
	calls := 0
	r.On(EventOrderShipped, func(_ context.Context, _ json.RawMessage) error {
		calls++
		return nil
	})

	body := eventBody(t, EventOrderShipped, "")
	for i := 0; i < 2; i++ {
		_, err := r.Handle(context.Background(), body, "")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, calls)
}

func TestHandleSkipDeliveryIsAccepted(t *testing.T) {
	r := NewReceiver("", idempotency.NewMemoryStore())
	r.On(EventOrderShipped, func(_ context.Context, _ json.RawMessage) error {
		return ErrSkipDelivery
	})

	res, err := r.Handle(context.Background(), eventBody(t, EventOrderShipped, "evt-6"), "")
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.Equal(t, "not actionable", res.Reason)
}

func TestHandleHandlerInfrastructureError(t *testing.T) {
	r := NewReceiver("", idempotency.NewMemoryStore())
	boom := errors.New("db down")
	r.On(EventOrderShipped, func(_ context.Context, _ json.RawMessage) error {
		return boom
	})

	_, err := r.Handle(context.Background(), eventBody(t, EventOrderShipped, "evt-7"), "")
	assert.ErrorIs(t, err, boom)
}

func TestHandleRetryAfterHandlerFailureDispatches(t *testing.T) {
	r := NewReceiver("", idempotency.NewMemoryStore())
	calls := 0
	r.On(EventOrderShipped, func(_ context.Context, _ json.RawMessage) error {
		calls++
		if calls == 1 {
			return errors.New("db down")
		}
		return nil
	})

	body := eventBody(t, EventOrderShipped, "evt-8")

	_, err := r.Handle(context.Background(), body, "")
	require.Error(t, err, "the first delivery fails and surfaces a 5xx")

	// A handler failure must not consume the dedup key: the vendor retries
	// the identical delivery and it has to dispatch this time.
	res, err := r.Handle(context.Background(), body, "")
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.Empty(t, res.Reason)
	assert.Equal(t, 2, calls)

	// Once processed, further replays are suppressed as before.
	res, err = r.Handle(context.Background(), body, "")
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.Equal(t, "duplicate delivery", res.Reason)
	assert.Equal(t, 2, calls)
}
