// Package runlog defines the durable record of fulfillment runs.
//
// A run is one attempt to push an internal order through the vendor's order
// lifecycle. Its step log is append-only: every step transition is written
// as a new record, never an update, so the history of a run can be inspected
// concurrently while it executes and survives a process restart. The current
// state of a step is simply its latest record.
package runlog

import (
	"context"
	"errors"
	"time"
)

// ErrRunNotFound indicates no run exists for the requested ID or order.
var ErrRunNotFound = errors.New("runlog: run not found")

// RunStatus is the lifecycle state of a fulfillment run.
type RunStatus string

const (
	RunPending    RunStatus = "pending"
	RunInProgress RunStatus = "in_progress"
	RunFailed     RunStatus = "failed"
	RunCompleted  RunStatus = "completed"
)

// IsTerminal returns true once the run can no longer make progress.
func (s RunStatus) IsTerminal() bool {
	return s == RunFailed || s == RunCompleted
}

// StepName identifies one of the five ordered workflow steps.
type StepName string

const (
	StepValidate StepName = "validate"
	StepConvert  StepName = "convert"
	StepCreate   StepName = "create"
	StepConfirm  StepName = "confirm"
	StepPersist  StepName = "persist"
)

// StepStatus is the lifecycle state of a single workflow step.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
)

// StepRecord is one append-only row in the step log: a point-in-time
// transition of a step within a run.
type StepRecord struct {
	RunID string

	// Seq is the step's position in the workflow, 1-based. All records of
	// the same step share a Seq; ordering records of one run by (Seq, At)
	// replays its history.
	Seq int

	Name   StepName
	Status StepStatus

	// Error holds the failure message on StepFailed records, empty otherwise.
	Error string

	At time.Time
}

// WorkflowStep is the reduced view of one step: its latest state plus the
// timestamps recovered from its transition records.
type WorkflowStep struct {
	Seq         int
	Name        StepName
	Status      StepStatus
	Error       string
	StartedAt   time.Time
	CompletedAt time.Time
}

// FulfillmentRun is one orchestration attempt for an internal order.
// Several runs may reference the same order (retries create fresh runs);
// a run is never mutated retroactively except to record the provider order
// ID once the create step assigns it.
type FulfillmentRun struct {
	ID              string
	OrderID         string
	ProviderName    string
	ProviderOrderID string
	Status          RunStatus
	Steps           []WorkflowStep
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// FailedStep returns the first failed step of the run, or nil.
func (r *FulfillmentRun) FailedStep() *WorkflowStep {
	for i := range r.Steps {
		if r.Steps[i].Status == StepFailed {
			return &r.Steps[i]
		}
	}
	return nil
}

// Repository is the port for persisting fulfillment runs. The orchestrator
// depends on this abstraction so the SQLite backing can be swapped for the
// in-memory implementation in tests.
type Repository interface {
	// CreateRun persists a new run in its initial state.
	CreateRun(ctx context.Context, run *FulfillmentRun) error

	// AppendStep appends one step transition record. The step log is
	// append-only; records are never updated or deleted.
	AppendStep(ctx context.Context, rec *StepRecord) error

	// SetRunStatus records a run-level status transition.
	SetRunStatus(ctx context.Context, runID string, status RunStatus) error

	// SetProviderOrderID records the vendor-assigned order ID. Written once,
	// immediately after the create step succeeds, so a confirm failure still
	// leaves the vendor order traceable.
	SetProviderOrderID(ctx context.Context, runID, providerOrderID string) error

	// GetRun loads a run with its reduced step view.
	GetRun(ctx context.Context, runID string) (*FulfillmentRun, error)

	// ListRunsByOrder returns all runs for an internal order, newest first.
	ListRunsByOrder(ctx context.Context, orderID string) ([]*FulfillmentRun, error)

	// LatestRunForOrder returns the most recent run for an order, or
	// ErrRunNotFound if the order was never orchestrated.
	LatestRunForOrder(ctx context.Context, orderID string) (*FulfillmentRun, error)
}
