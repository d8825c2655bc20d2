// Package webhook receives and verifies the vendor's signed callbacks.
//
// The receiver's contract with the vendor is deliberately forgiving: any
// parseable payload gets a 200 — including event types we do not understand
// and orders we cannot find — because a non-2xx makes the vendor retry-storm
// content it cannot fix. Only a bad signature or an unparseable body is the
// sender's fault and worth a 4xx.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jcmexdev/pod-fulfillment/internal/idempotency"
)

var (
	// ErrSignatureInvalid indicates the payload signature did not match the
	// HMAC over the raw body. Rejected outright with a 4xx.
	ErrSignatureInvalid = errors.New("webhook: invalid signature")

	// ErrMalformedPayload indicates the body is not a parseable event
	// envelope.
	ErrMalformedPayload = errors.New("webhook: malformed payload")
)

// Recognized event types.
const (
	EventOrderUpdated   = "order_updated"
	EventOrderShipped   = "order_shipped"
	EventOrderDelivered = "order_delivered"
	EventOrderCancelled = "order_cancelled"
	EventProductUpdated = "product_updated"
)

// Envelope is the vendor's event wrapper.
type Envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`

	// EventID is the vendor's delivery ID when present; the dedup key
	// falls back to (type, timestamp, body digest) without it.
	EventID string `json:"event_id,omitempty"`
}

// Result reports how a delivery was handled. Accepted=false only for
// signature or parse failures.
type Result struct {
	Accepted bool
	Reason   string
}

// Handler processes the data of one recognized event type.
type Handler func(ctx context.Context, data json.RawMessage) error

// ErrSkipDelivery is returned by handlers for content the system cannot act
// on but the vendor cannot fix (e.g. an order we have no record of). The
// delivery is accepted and dropped.
var ErrSkipDelivery = errors.New("webhook: delivery skipped")

// Receiver verifies, deduplicates and dispatches vendor webhooks. Stateless
// per request; deliveries are processed fully concurrently.
type Receiver struct {
	secret   []byte
	idem     idempotency.Store
	handlers map[string]Handler
}

// NewReceiver creates a receiver. An empty secret disables signature
// verification — a deliberate degraded mode for environments where the
// signing secret is not yet provisioned, logged loudly at startup.
func NewReceiver(secret string, idem idempotency.Store) *Receiver {
	if secret == "" {
		slog.Warn("webhook signing secret not configured; signature verification DISABLED")
	}
	return &Receiver{
		secret:   []byte(secret),
		idem:     idem,
		handlers: make(map[string]Handler),
	}
}

// On registers the handler for an event type. Not safe to call once the
// receiver is serving; registration happens during startup wiring.
func (r *Receiver) On(eventType string, h Handler) {
	r.handlers[eventType] = h
}

// Handle processes one delivery: verify, parse, dedup, dispatch.
//
// The returned error is non-nil only for infrastructure faults inside the
// receiver itself (the one case that warrants a 5xx); every content-level
// outcome is expressed through Result.
func (r *Receiver) Handle(ctx context.Context, rawBody []byte, signature string) (Result, error) {
	if len(r.secret) > 0 {
		if !r.verify(rawBody, signature) {
			return Result{Accepted: false, Reason: "invalid signature"}, nil
		}
	}

	var env Envelope
	if err := json.Unmarshal(rawBody, &env); err != nil || env.Type == "" {
		return Result{Accepted: false, Reason: "malformed payload"}, nil
	}

	dedupKey := idempotency.WebhookEventKey(r.eventKey(&env, rawBody))
	claimed, err := r.idem.Acquire(ctx, dedupKey, idempotency.TTLWebhookEvent)
	if err != nil {
		return Result{}, fmt.Errorf("webhook: dedup store: %w", err)
	}
	if !claimed {
		slog.InfoContext(ctx, "duplicate webhook delivery suppressed", "type", env.Type)
		return Result{Accepted: true, Reason: "duplicate delivery"}, nil
	}

	handler, ok := r.handlers[env.Type]
	if !ok {
		// Accepted but not dispatched; a 4xx here would make the vendor
		// hammer us with events we do not understand yet.
		slog.InfoContext(ctx, "unrecognized webhook event type accepted", "type", env.Type)
		return Result{Accepted: true, Reason: "unrecognized event type"}, nil
	}

	if err := handler(ctx, env.Data); err != nil {
		if errors.Is(err, ErrSkipDelivery) {
			return Result{Accepted: true, Reason: "not actionable"}, nil
		}
		// The delivery was not processed; free the dedup key so the vendor's
		// retry of this event can dispatch instead of being suppressed.
		if relErr := r.idem.Release(ctx, dedupKey); relErr != nil {
			slog.ErrorContext(ctx, "failed to release webhook dedup key", "type", env.Type, "error", relErr)
		}
		return Result{}, fmt.Errorf("webhook: dispatch %s: %w", env.Type, err)
	}
	return Result{Accepted: true}, nil
}

// verify compares the signature header against an HMAC-SHA256 over the
// exact raw body. hmac.Equal is constant-time; flipping one byte of body or
// signature flips the result.
func (r *Receiver) verify(rawBody []byte, signature string) bool {
	mac := hmac.New(sha256.New, r.secret)
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// eventKey builds the idempotency key for a delivery: the vendor's event ID
// when provided, otherwise type + timestamp + body digest.
func (r *Receiver) eventKey(env *Envelope, rawBody []byte) string {
	if env.EventID != "" {
		return env.EventID
	}
	digest := sha256.Sum256(rawBody)
	return fmt.Sprintf("%s:%d:%s", env.Type, env.Timestamp, hex.EncodeToString(digest[:8]))
}
