// Package fulfillment drives internal orders through a print-on-demand
// vendor's order lifecycle.
//
// The orchestrator runs five ordered steps per run — validate, convert,
// create, confirm, persist — recording every step transition in the durable
// run log. Step failures are recorded on the run, never thrown past the
// orchestrator boundary; callers observe FulfillmentRun.Status.
package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/jcmexdev/pod-fulfillment/internal/fulfillment/runlog"
	"github.com/jcmexdev/pod-fulfillment/internal/orderstore"
	"github.com/jcmexdev/pod-fulfillment/internal/provider"
)

var (
	// ErrLinkagePersist indicates the vendor order exists and is confirmed
	// but writing the linkage to the order store failed. A retry must only
	// repair the local link; re-creating the vendor order would duplicate it.
	ErrLinkagePersist = errors.New("fulfillment: vendor order confirmed but linkage write failed")

	// ErrRunInFlight indicates the latest run for the order has not reached
	// a terminal state yet.
	ErrRunInFlight = errors.New("fulfillment: run still in progress")

	// ErrRunCompleted indicates the order already has a completed run;
	// there is nothing to retry.
	ErrRunCompleted = errors.New("fulfillment: order already fulfilled")
)

// createMaxRetries bounds the in-step retries of the vendor create call when
// the vendor is unreachable. Rejections are never retried.
const createMaxRetries = 3

// Orchestrator executes fulfillment runs. Safe for concurrent use across
// different orders; at-most-one run in flight per order is the caller's
// responsibility (the HTTP layer takes a single-flight key before starting).
type Orchestrator struct {
	providers *provider.Registry
	orders    orderstore.Store
	runs      runlog.Repository

	// newBackOff builds the retry policy for the create step. Overridable
	// so tests do not sit through real exponential waits.
	newBackOff func() backoff.BackOff
}

// NewOrchestrator wires an orchestrator from its three collaborators.
func NewOrchestrator(providers *provider.Registry, orders orderstore.Store, runs runlog.Repository) *Orchestrator {
	return &Orchestrator{
		providers: providers,
		orders:    orders,
		runs:      runs,
		newBackOff: func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), createMaxRetries)
		},
	}
}

// runState carries the intermediate products of a run between steps.
type runState struct {
	run         *runlog.FulfillmentRun
	prov        provider.Provider
	order       *orderstore.Order
	req         *provider.FulfillmentRequest
	vendorOrder *provider.ProviderOrder
}

// workflowStep pairs a step name with its action. Seq is the step's fixed
// position in the canonical five-step workflow; resumed runs keep the
// original numbering so step lists stay comparable across runs.
type workflowStep struct {
	seq  int
	name runlog.StepName
	fn   func(ctx context.Context, st *runState) error
}

// Run executes a fresh five-step run for the order. providerName may be
// empty to select the default provider.
//
// The returned error covers infrastructure faults only (provider lookup,
// order fetch, run log writes). Step failures mark the run failed and
// return a nil error; inspect FulfillmentRun.Status.
func (o *Orchestrator) Run(ctx context.Context, orderID, providerName string) (*runlog.FulfillmentRun, error) {
	st, err := o.newRunState(ctx, orderID, providerName, "")
	if err != nil {
		return nil, err
	}
	return o.execute(ctx, st, o.allSteps())
}

// Resume retries a failed order without re-creating vendor-side state.
//
// The resume point branches on what the failed run left behind: no vendor
// order means the full workflow runs again (create included); a recorded
// provider order ID means the new run picks up at confirm, or at persist if
// confirm already succeeded.
func (o *Orchestrator) Resume(ctx context.Context, orderID string) (*runlog.FulfillmentRun, error) {
	latest, err := o.runs.LatestRunForOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	switch {
	case latest.Status == runlog.RunCompleted:
		return nil, ErrRunCompleted
	case !latest.Status.IsTerminal():
		return nil, ErrRunInFlight
	}

	if latest.ProviderOrderID == "" {
		// Nothing exists vendor-side; a clean retry from scratch is safe.
		return o.Run(ctx, orderID, latest.ProviderName)
	}

	st, err := o.newRunState(ctx, orderID, latest.ProviderName, latest.ProviderOrderID)
	if err != nil {
		return nil, err
	}

	steps := []workflowStep{o.confirmStep(), o.persistStep()}
	if failed := latest.FailedStep(); failed != nil && failed.Name == runlog.StepPersist {
		// Confirm already succeeded; only the local link needs repair.
		steps = []workflowStep{o.persistStep()}
	}
	return o.execute(ctx, st, steps)
}

func (o *Orchestrator) newRunState(ctx context.Context, orderID, providerName, providerOrderID string) (*runState, error) {
	prov, err := o.providers.Get(providerName)
	if err != nil {
		return nil, err
	}
	order, err := o.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	run := &runlog.FulfillmentRun{
		ID:              uuid.NewString(),
		OrderID:         orderID,
		ProviderName:    prov.Name(),
		ProviderOrderID: providerOrderID,
		Status:          runlog.RunInProgress,
		CreatedAt:       time.Now().UTC(),
	}
	if err := o.runs.CreateRun(ctx, run); err != nil {
		return nil, err
	}
	return &runState{run: run, prov: prov, order: order}, nil
}

// execute drives the steps strictly in order. Each step appends an
// in_progress record, runs, and appends exactly one terminal record; the
// first failure marks the run failed and stops the workflow.
func (o *Orchestrator) execute(ctx context.Context, st *runState, steps []workflowStep) (*runlog.FulfillmentRun, error) {
	for _, step := range steps {
		if err := o.transition(ctx, st.run.ID, step, runlog.StepInProgress, ""); err != nil {
			return nil, err
		}

		slog.InfoContext(ctx, "executing workflow step",
			"run_id", st.run.ID, "order_id", st.run.OrderID, "step", step.name)

		if stepErr := step.fn(ctx, st); stepErr != nil {
			if err := o.transition(ctx, st.run.ID, step, runlog.StepFailed, stepErr.Error()); err != nil {
				return nil, err
			}
			if err := o.runs.SetRunStatus(ctx, st.run.ID, runlog.RunFailed); err != nil {
				return nil, err
			}
			o.logFailure(ctx, st, step.name, stepErr)
			return o.runs.GetRun(ctx, st.run.ID)
		}

		if err := o.transition(ctx, st.run.ID, step, runlog.StepCompleted, ""); err != nil {
			return nil, err
		}
	}

	if err := o.runs.SetRunStatus(ctx, st.run.ID, runlog.RunCompleted); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "fulfillment run completed",
		"run_id", st.run.ID, "order_id", st.run.OrderID, "provider_order_id", st.run.ProviderOrderID)
	return o.runs.GetRun(ctx, st.run.ID)
}

func (o *Orchestrator) transition(ctx context.Context, runID string, step workflowStep, status runlog.StepStatus, errMsg string) error {
	return o.runs.AppendStep(ctx, &runlog.StepRecord{
		RunID:  runID,
		Seq:    step.seq,
		Name:   step.name,
		Status: status,
		Error:  errMsg,
		At:     time.Now().UTC(),
	})
}

// logFailure routes failed runs to operations. Customers never see vendor
// error internals; the order surfaces as "processing" while operations act
// on these logs.
func (o *Orchestrator) logFailure(ctx context.Context, st *runState, step runlog.StepName, stepErr error) {
	switch {
	case errors.Is(stepErr, ErrLinkagePersist):
		slog.ErrorContext(ctx, "CRITICAL: vendor order confirmed but not linked locally; repair-only retry required",
			"run_id", st.run.ID, "order_id", st.run.OrderID,
			"provider_order_id", st.run.ProviderOrderID, "error", stepErr)
	case step == runlog.StepConfirm:
		slog.ErrorContext(ctx, "vendor order left in draft state; manual confirm or cancel needed",
			"run_id", st.run.ID, "order_id", st.run.OrderID,
			"provider_order_id", st.run.ProviderOrderID, "error", stepErr)
	default:
		slog.ErrorContext(ctx, "fulfillment run failed",
			"run_id", st.run.ID, "order_id", st.run.OrderID, "step", step, "error", stepErr)
	}
}

func (o *Orchestrator) allSteps() []workflowStep {
	return []workflowStep{
		{seq: 1, name: runlog.StepValidate, fn: o.stepValidate},
		{seq: 2, name: runlog.StepConvert, fn: o.stepConvert},
		{seq: 3, name: runlog.StepCreate, fn: o.stepCreate},
		o.confirmStep(),
		o.persistStep(),
	}
}

func (o *Orchestrator) confirmStep() workflowStep {
	return workflowStep{seq: 4, name: runlog.StepConfirm, fn: o.stepConfirm}
}

func (o *Orchestrator) persistStep() workflowStep {
	return workflowStep{seq: 5, name: runlog.StepPersist, fn: o.stepPersist}
}

// stepValidate checks eligibility and recipient completeness before any
// vendor call. Terminal on failure; no vendor order exists yet.
func (o *Orchestrator) stepValidate(_ context.Context, st *runState) error {
	return ValidateOrder(st.order, st.run.ProviderName)
}

// stepConvert builds the immutable fulfillment request.
func (o *Orchestrator) stepConvert(_ context.Context, st *runState) error {
	req, err := Translate(st.order, st.run.ProviderName)
	if err != nil {
		return err
	}
	st.req = req
	return nil
}

// stepCreate submits the vendor order. Unavailability is retried with
// exponential backoff inside the step's attempt budget; rejections are
// permanent. The provider order ID is recorded on the run the moment the
// vendor assigns it, so any later failure still leaves the order traceable.
func (o *Orchestrator) stepCreate(ctx context.Context, st *runState) error {
	op := func() error {
		vendorOrder, err := st.prov.CreateOrder(ctx, st.req)
		if err != nil {
			if errors.Is(err, provider.ErrVendorUnavailable) {
				return err
			}
			return backoff.Permanent(err)
		}
		st.vendorOrder = vendorOrder
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(o.newBackOff(), ctx)); err != nil {
		return err
	}

	st.run.ProviderOrderID = st.vendorOrder.ID
	return o.runs.SetProviderOrderID(ctx, st.run.ID, st.vendorOrder.ID)
}

// stepConfirm moves the draft vendor order into production. On failure the
// vendor order stays in draft with its ID retained on the run, which is what
// makes the state operator-visible.
func (o *Orchestrator) stepConfirm(ctx context.Context, st *runState) error {
	vendorOrder, err := st.prov.ConfirmOrder(ctx, st.run.ProviderOrderID)
	if err != nil {
		return err
	}
	st.vendorOrder = vendorOrder
	return nil
}

// stepPersist links the vendor order back onto the internal order record.
func (o *Orchestrator) stepPersist(ctx context.Context, st *runState) error {
	err := o.orders.LinkProviderOrder(ctx, st.run.OrderID, st.run.ProviderName, st.run.ProviderOrderID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLinkagePersist, err)
	}
	return nil
}

// EstimateShipping quotes vendor shipping rates for an order without
// creating anything. Uses the same translation as a run, so a quote and a
// subsequent run always describe the same shipment.
func (o *Orchestrator) EstimateShipping(ctx context.Context, orderID, providerName string) ([]provider.ShippingEstimate, error) {
	prov, err := o.providers.Get(providerName)
	if err != nil {
		return nil, err
	}
	order, err := o.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	req, err := Translate(order, prov.Name())
	if err != nil {
		return nil, err
	}
	return prov.EstimateShipping(ctx, req)
}
