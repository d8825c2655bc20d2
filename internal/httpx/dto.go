package httpx

import (
	"time"

	"github.com/jcmexdev/pod-fulfillment/internal/fulfillment/runlog"
)

type TriggerRunRequest struct {
	Provider string `json:"provider,omitempty"`
}

type TriggerRunResponse struct {
	OrderID  string `json:"order_id"`
	Provider string `json:"provider"`
	Status   string `json:"status"`
}

type RunResponse struct {
	ID              string         `json:"id"`
	OrderID         string         `json:"order_id"`
	Provider        string         `json:"provider"`
	ProviderOrderID string         `json:"provider_order_id,omitempty"`
	Status          string         `json:"status"`
	Steps           []StepResponse `json:"steps"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

type StepResponse struct {
	Seq         int        `json:"seq"`
	Name        string     `json:"name"`
	Status      string     `json:"status"`
	Error       string     `json:"error,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type ShippingEstimateResponse struct {
	Service  string `json:"service"`
	Rate     string `json:"rate"`
	Currency string `json:"currency"`
	MinDays  int    `json:"min_delivery_days"`
	MaxDays  int    `json:"max_delivery_days"`
}

type SetProviderEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

type WebhookResponse struct {
	Received bool   `json:"received"`
	Reason   string `json:"reason,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func mapRunToResponse(run *runlog.FulfillmentRun) RunResponse {
	out := RunResponse{
		ID:              run.ID,
		OrderID:         run.OrderID,
		Provider:        run.ProviderName,
		ProviderOrderID: run.ProviderOrderID,
		Status:          string(run.Status),
		Steps:           make([]StepResponse, 0, len(run.Steps)),
		CreatedAt:       run.CreatedAt,
		UpdatedAt:       run.UpdatedAt,
	}
	for _, s := range run.Steps {
		step := StepResponse{
			Seq:    s.Seq,
			Name:   string(s.Name),
			Status: string(s.Status),
			Error:  s.Error,
		}
		if !s.StartedAt.IsZero() {
			t := s.StartedAt
			step.StartedAt = &t
		}
		if !s.CompletedAt.IsZero() {
			t := s.CompletedAt
			step.CompletedAt = &t
		}
		out.Steps = append(out.Steps, step)
	}
	return out
}
