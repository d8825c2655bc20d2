package orderstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrderCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.Put(&Order{ID: "ord-1", CustomerEmail: "jane@example.com"})

	got, err := s.GetOrder(ctx, "ord-1")
	require.NoError(t, err)
	got.CustomerEmail = "mutated@example.com"

	again, err := s.GetOrder(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", again.CustomerEmail, "callers must not mutate stored state")

	_, err = s.GetOrder(ctx, "missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestLinkProviderOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.Put(&Order{ID: "ord-1"})

	require.NoError(t, s.LinkProviderOrder(ctx, "ord-1", "printful", "PF-1001"))

	got, err := s.FindByProviderOrderID(ctx, "PF-1001")
	require.NoError(t, err)
	assert.Equal(t, "ord-1", got.ID)
	assert.Equal(t, "printful", got.Fulfillment.ProviderName)

	_, err = s.FindByProviderOrderID(ctx, "PF-9999")
	assert.ErrorIs(t, err, ErrProviderOrderNotLinked)

	assert.ErrorIs(t, s.LinkProviderOrder(ctx, "missing", "printful", "PF-1"), ErrOrderNotFound)
}

func TestApplyStatus(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.Put(&Order{ID: "ord-1"})

	require.NoError(t, s.ApplyStatus(ctx, "ord-1", StatusShipped, &Tracking{Number: "1Z999", URL: "https://t.example/1Z999"}))

	got, err := s.GetOrder(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, got.Fulfillment.Status)
	assert.Equal(t, "1Z999", got.Fulfillment.TrackingNumber)
	assert.False(t, got.Fulfillment.UpdatedAt.IsZero())

	// Nil tracking leaves existing tracking fields alone.
	require.NoError(t, s.ApplyStatus(ctx, "ord-1", StatusDelivered, nil))
	got, err = s.GetOrder(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, got.Fulfillment.Status)
	assert.Equal(t, "1Z999", got.Fulfillment.TrackingNumber)
}

func TestStatusIsValid(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled} {
		assert.True(t, s.IsValid())
	}
	assert.False(t, Status("archived").IsValid())
}
