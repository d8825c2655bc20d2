package runlog

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepository is an in-memory Repository used by tests. It applies the
// same append-only reduction as the SQLite backing.
type MemoryRepository struct {
	mu      sync.RWMutex
	runs    map[string]*FulfillmentRun
	records map[string][]StepRecord
	order   []string // run ids in creation order
}

var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		runs:    make(map[string]*FulfillmentRun),
		records: make(map[string][]StepRecord),
	}
}

// CreateRun persists a new run in its initial state.
func (m *MemoryRepository) CreateRun(_ context.Context, run *FulfillmentRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *run
	m.runs[run.ID] = &cp
	m.order = append(m.order, run.ID)
	return nil
}

// AppendStep appends one step transition record.
func (m *MemoryRepository) AppendStep(_ context.Context, rec *StepRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[rec.RunID]; !ok {
		return ErrRunNotFound
	}
	m.records[rec.RunID] = append(m.records[rec.RunID], *rec)
	return nil
}

// SetRunStatus records a run-level status transition.
func (m *MemoryRepository) SetRunStatus(_ context.Context, runID string, status RunStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return ErrRunNotFound
	}
	run.Status = status
	run.UpdatedAt = time.Now().UTC()
	return nil
}

// SetProviderOrderID records the vendor-assigned order ID on the run.
func (m *MemoryRepository) SetProviderOrderID(_ context.Context, runID, providerOrderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return ErrRunNotFound
	}
	run.ProviderOrderID = providerOrderID
	run.UpdatedAt = time.Now().UTC()
	return nil
}

// GetRun loads a run with its reduced step view.
func (m *MemoryRepository) GetRun(_ context.Context, runID string) (*FulfillmentRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[runID]
	if !ok {
		return nil, ErrRunNotFound
	}
	return m.snapshot(run), nil
}

// ListRunsByOrder returns all runs for an internal order, newest first.
func (m *MemoryRepository) ListRunsByOrder(_ context.Context, orderID string) ([]*FulfillmentRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*FulfillmentRun
	for _, id := range m.order {
		if m.runs[id].OrderID == orderID {
			out = append(out, m.snapshot(m.runs[id]))
		}
	}
	// Creation order is oldest-first; callers expect newest first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// LatestRunForOrder returns the most recent run for an order.
func (m *MemoryRepository) LatestRunForOrder(ctx context.Context, orderID string) (*FulfillmentRun, error) {
	runs, err := m.ListRunsByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrRunNotFound
	}
	return runs[0], nil
}

// snapshot copies a run and reduces its step records. Caller holds the lock.
func (m *MemoryRepository) snapshot(run *FulfillmentRun) *FulfillmentRun {
	cp := *run
	bySeq := make(map[int]*WorkflowStep)
	var seqs []int
	for _, rec := range m.records[run.ID] {
		step, ok := bySeq[rec.Seq]
		if !ok {
			step = &WorkflowStep{Seq: rec.Seq, Name: rec.Name}
			bySeq[rec.Seq] = step
			seqs = append(seqs, rec.Seq)
		}
		step.Status = rec.Status
		step.Error = rec.Error
		switch rec.Status {
		case StepInProgress:
			step.StartedAt = rec.At
		case StepCompleted, StepFailed:
			step.CompletedAt = rec.At
		}
	}
	sort.Ints(seqs)
	cp.Steps = make([]WorkflowStep, 0, len(seqs))
	for _, seq := range seqs {
		cp.Steps = append(cp.Steps, *bySeq[seq])
	}
	return &cp
}
