package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/pod-fulfillment/internal/fulfillment/runlog"
	"github.com/jcmexdev/pod-fulfillment/internal/orderstore"
	"github.com/jcmexdev/pod-fulfillment/internal/provider"
)

const testProviderName = "fakepod"

// fakeProvider is an in-memory provider.Provider whose failures are scripted
// per test.
type fakeProvider struct {
	createErr    error
	confirmErr   error
	createCalls  int
	confirmCalls int
}

func (f *fakeProvider) Name() string { return testProviderName }

func (f *fakeProvider) CreateOrder(_ context.Context, req *provider.FulfillmentRequest) (*provider.ProviderOrder, error) {
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &provider.ProviderOrder{ID: fmt.Sprintf("PF-%d", 1000+f.createCalls), Status: "draft"}, nil
}

func (f *fakeProvider) GetOrder(_ context.Context, providerOrderID string) (*provider.ProviderOrder, error) {
	return &provider.ProviderOrder{ID: providerOrderID, Status: "draft"}, nil
}

func (f *fakeProvider) ConfirmOrder(_ context.Context, providerOrderID string) (*provider.ProviderOrder, error) {
	f.confirmCalls++
	if f.confirmErr != nil {
		return nil, f.confirmErr
	}
	return &provider.ProviderOrder{ID: providerOrderID, Status: "pending"}, nil
}

func (f *fakeProvider) CancelOrder(_ context.Context, _ string) (bool, error) {
	return true, nil
}

func (f *fakeProvider) EstimateShipping(_ context.Context, _ *provider.FulfillmentRequest) ([]provider.ShippingEstimate, error) {
	return []provider.ShippingEstimate{{Service: "STANDARD", Rate: decimal.NewFromFloat(4.99), Currency: "USD", MinDays: 3, MaxDays: 7}}, nil
}

// flakyStore fails the linkage write on demand.
type flakyStore struct {
	*orderstore.MemoryStore
	failLink bool
}

func (s *flakyStore) LinkProviderOrder(ctx context.Context, orderID, providerName, providerOrderID string) error {
	if s.failLink {
		return errors.New("order service unreachable")
	}
	return s.MemoryStore.LinkProviderOrder(ctx, orderID, providerName, providerOrderID)
}

func testOrder(id string) *orderstore.Order {
	return &orderstore.Order{
		ID:            id,
		CustomerEmail: "jane@example.com",
		ShippingAddr: orderstore.Address{
			Name:       "Jane Doe",
			Line1:      "100 Main St",
			City:       "Springfield",
			Region:     "IL",
			Country:    "US",
			PostalCode: "62701",
		},
		Items: []orderstore.Item{
			{SKU: "TEE-RED-M", FulfillsVia: testProviderName, VendorVariantID: "4011", Quantity: 2, UnitPrice: decimal.NewFromFloat(19.99), ArtworkFiles: []string{"https://cdn.example.com/art/1.png"}},
			{SKU: "EBOOK-1", FulfillsVia: "", Quantity: 1, UnitPrice: decimal.NewFromFloat(9.99)},
		},
		Subtotal: decimal.NewFromFloat(49.97),
		Currency: "USD",
	}
}

type orchestratorFixture struct {
	orch   *Orchestrator
	prov   *fakeProvider
	orders *flakyStore
	runs   *runlog.MemoryRepository
}

func newFixture(t *testing.T, order *orderstore.Order) *orchestratorFixture {
	t.Helper()

	prov := &fakeProvider{}
	registry := provider.NewRegistry(testProviderName)
	registry.Register(prov)

	orders := &flakyStore{MemoryStore: orderstore.NewMemoryStore()}
	if order != nil {
		orders.Put(order)
	}
	runs := runlog.NewMemoryRepository()

	orch := NewOrchestrator(registry, orders, runs)
	orch.newBackOff = func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, createMaxRetries)
	}
	return &orchestratorFixture{orch: orch, prov: prov, orders: orders, runs: runs}
}

func stepStatuses(run *runlog.FulfillmentRun) map[runlog.StepName]runlog.StepStatus {
	out := make(map[runlog.StepName]runlog.StepStatus, len(run.Steps))
	for _, s := range run.Steps {
		out[s.Name] = s.Status
	}
	return out
}

func TestRunHappyPath(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, testOrder("ord-1"))

	run, err := fx.orch.Run(ctx, "ord-1", "")
	require.NoError(t, err)

	assert.Equal(t, runlog.RunCompleted, run.Status)
	assert.Equal(t, "PF-1001", run.ProviderOrderID)
	require.Len(t, run.Steps, 5)
	for _, s := range run.Steps {
		assert.Equal(t, runlog.StepCompleted, s.Status, "step %s", s.Name)
		assert.False(t, s.StartedAt.IsZero())
		assert.False(t, s.CompletedAt.IsZero())
	}
	assert.Equal(t, 1, fx.prov.createCalls)
	assert.Equal(t, 1, fx.prov.confirmCalls)

	order, err := fx.orders.GetOrder(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, testProviderName, order.Fulfillment.ProviderName)
	assert.Equal(t, "PF-1001", order.Fulfillment.ProviderOrderID)
}

func TestRunFailsValidationBeforeAnyVendorCall(t *testing.T) {
	order := testOrder("ord-2")
	for i := range order.Items {
		order.Items[i].FulfillsVia = ""
	}
	fx := newFixture(t, order)

	run, err := fx.orch.Run(context.Background(), "ord-2", "")
	require.NoError(t, err)

	assert.Equal(t, runlog.RunFailed, run.Status)
	assert.Empty(t, run.ProviderOrderID)
	require.Len(t, run.Steps, 1)
	assert.Equal(t, runlog.StepValidate, run.Steps[0].Name)
	assert.Equal(t, runlog.StepFailed, run.Steps[0].Status)
	assert.Contains(t, run.Steps[0].Error, "no items for this provider")
	assert.Zero(t, fx.prov.createCalls)
	assert.Zero(t, fx.prov.confirmCalls)
}

func TestRunCreateUnavailableRetriesThenFails(t *testing.T) {
	fx := newFixture(t, testOrder("ord-3"))
	fx.prov.createErr = fmt.Errorf("%w: dial tcp: i/o timeout", provider.ErrVendorUnavailable)

	run, err := fx.orch.Run(context.Background(), "ord-3", "")
	require.NoError(t, err)

	assert.Equal(t, runlog.RunFailed, run.Status)
	assert.Empty(t, run.ProviderOrderID, "no vendor order must be recorded when create never succeeded")
	assert.Equal(t, runlog.StepFailed, stepStatuses(run)[runlog.StepCreate])
	// Initial attempt plus the in-step retry budget.
	assert.Equal(t, 1+createMaxRetries, fx.prov.createCalls)
}

func TestRunCreateRejectedIsNotRetried(t *testing.T) {
	fx := newFixture(t, testOrder("ord-4"))
	fx.prov.createErr = fmt.Errorf("%w: HTTP 400: {\"reason\":\"variant 4011 discontinued\"}", provider.ErrVendorRejected)

	run, err := fx.orch.Run(context.Background(), "ord-4", "")
	require.NoError(t, err)

	assert.Equal(t, runlog.RunFailed, run.Status)
	assert.Equal(t, 1, fx.prov.createCalls)
	assert.Contains(t, stepErrorFor(run, runlog.StepCreate), "variant 4011 discontinued")
}

func TestResumeAfterCreateFailureStartsFresh(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, testOrder("ord-5"))
	fx.prov.createErr = fmt.Errorf("%w: connection refused", provider.ErrVendorUnavailable)

	failed, err := fx.orch.Run(ctx, "ord-5", "")
	require.NoError(t, err)
	require.Equal(t, runlog.RunFailed, failed.Status)

	fx.prov.createErr = nil
	resumed, err := fx.orch.Resume(ctx, "ord-5")
	require.NoError(t, err)

	assert.Equal(t, runlog.RunCompleted, resumed.Status)
	assert.NotEqual(t, failed.ID, resumed.ID)
	assert.Len(t, resumed.Steps, 5, "no vendor order existed, so the full workflow runs again")
	assert.NotEmpty(t, resumed.ProviderOrderID)
}

func TestResumeAfterConfirmFailureSkipsCreate(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, testOrder("ord-6"))
	fx.prov.confirmErr = fmt.Errorf("%w: HTTP 409: order locked", provider.ErrVendorRejected)

	failed, err := fx.orch.Run(ctx, "ord-6", "")
	require.NoError(t, err)
	require.Equal(t, runlog.RunFailed, failed.Status)
	require.Equal(t, "PF-1001", failed.ProviderOrderID, "vendor order id must survive a confirm failure")

	createsBefore := fx.prov.createCalls
	fx.prov.confirmErr = nil

	resumed, err := fx.orch.Resume(ctx, "ord-6")
	require.NoError(t, err)

	assert.Equal(t, runlog.RunCompleted, resumed.Status)
	assert.Equal(t, "PF-1001", resumed.ProviderOrderID)
	assert.Equal(t, createsBefore, fx.prov.createCalls, "resume must never re-create the vendor order")
	require.Len(t, resumed.Steps, 2)
	assert.Equal(t, runlog.StepConfirm, resumed.Steps[0].Name)
	assert.Equal(t, 4, resumed.Steps[0].Seq)
	assert.Equal(t, runlog.StepPersist, resumed.Steps[1].Name)
	assert.Equal(t, 5, resumed.Steps[1].Seq)
}

func TestResumeAfterPersistFailureRepairsLinkOnly(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, testOrder("ord-7"))
	fx.orders.failLink = true

	failed, err := fx.orch.Run(ctx, "ord-7", "")
	require.NoError(t, err)
	require.Equal(t, runlog.RunFailed, failed.Status)
	assert.Contains(t, stepErrorFor(failed, runlog.StepPersist), "linkage write failed")

	confirmsBefore := fx.prov.confirmCalls
	createsBefore := fx.prov.createCalls
	fx.orders.failLink = false

	resumed, err := fx.orch.Resume(ctx, "ord-7")
	require.NoError(t, err)

	assert.Equal(t, runlog.RunCompleted, resumed.Status)
	assert.Equal(t, createsBefore, fx.prov.createCalls)
	assert.Equal(t, confirmsBefore, fx.prov.confirmCalls, "confirm already succeeded; repair must touch only the local link")
	require.Len(t, resumed.Steps, 1)
	assert.Equal(t, runlog.StepPersist, resumed.Steps[0].Name)

	order, err := fx.orders.GetOrder(ctx, "ord-7")
	require.NoError(t, err)
	assert.Equal(t, "PF-1001", order.Fulfillment.ProviderOrderID)
}

func TestResumeGuards(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, testOrder("ord-8"))

	_, err := fx.orch.Resume(ctx, "ord-8")
	assert.ErrorIs(t, err, runlog.ErrRunNotFound)

	_, err = fx.orch.Run(ctx, "ord-8", "")
	require.NoError(t, err)

	_, err = fx.orch.Resume(ctx, "ord-8")
	assert.ErrorIs(t, err, ErrRunCompleted)
}

func TestRunUnknownProvider(t *testing.T) {
	fx := newFixture(t, testOrder("ord-9"))

	_, err := fx.orch.Run(context.Background(), "ord-9", "nonexistent")
	assert.ErrorIs(t, err, provider.ErrProviderNotFound)
	assert.Zero(t, fx.prov.createCalls)
}

func TestEstimateShipping(t *testing.T) {
	fx := newFixture(t, testOrder("ord-10"))

	estimates, err := fx.orch.EstimateShipping(context.Background(), "ord-10", "")
	require.NoError(t, err)
	require.Len(t, estimates, 1)
	assert.Equal(t, "STANDARD", estimates[0].Service)

	_, err = fx.orch.EstimateShipping(context.Background(), "missing", "")
	assert.ErrorIs(t, err, orderstore.ErrOrderNotFound)
}

func stepErrorFor(run *runlog.FulfillmentRun, name runlog.StepName) string {
	for _, s := range run.Steps {
		if s.Name == name {
			return s.Error
		}
	}
	return ""
}
