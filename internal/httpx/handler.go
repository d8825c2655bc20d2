package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jcmexdev/pod-fulfillment/internal/fulfillment"
	"github.com/jcmexdev/pod-fulfillment/internal/fulfillment/runlog"
	"github.com/jcmexdev/pod-fulfillment/internal/idempotency"
	"github.com/jcmexdev/pod-fulfillment/internal/orderstore"
	"github.com/jcmexdev/pod-fulfillment/internal/provider"
	"github.com/jcmexdev/pod-fulfillment/internal/webhook"
)

// maxWebhookBody bounds inbound webhook payloads.
const maxWebhookBody = 1 * 1024 * 1024

// signatureHeader carries the vendor's HMAC over the raw body.
const signatureHeader = "X-Webhook-Signature"

// Handler exposes the fulfillment service over HTTP.
type Handler struct {
	orchestrator *fulfillment.Orchestrator
	receiver     *webhook.Receiver
	providers    *provider.Registry
	runs         runlog.Repository
	idem         idempotency.Store
}

// NewHandler initializes the handler with its collaborators.
func NewHandler(
	orchestrator *fulfillment.Orchestrator,
	receiver *webhook.Receiver,
	providers *provider.Registry,
	runs runlog.Repository,
	idem idempotency.Store,
) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		receiver:     receiver,
		providers:    providers,
		runs:         runs,
		idem:         idem,
	}
}

// TriggerFulfillment receives the order-placed event and starts an
// orchestration run for the order.
//
// A single-flight key on the order ID enforces at-most-one run in flight
// per order; the run itself executes detached from the request context so a
// closed HTTP connection cannot abort a half-created vendor order.
func (h *Handler) TriggerFulfillment(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		writeError(w, http.StatusBadRequest, "order_id_required", "")
		return
	}

	var req TriggerRunRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
			return
		}
	}
	providerName := req.Provider
	if providerName == "" {
		providerName = h.providers.DefaultName()
	}

	h.startRun(w, r, orderID, func(ctx context.Context) (*runlog.FulfillmentRun, error) {
		return h.orchestrator.Run(ctx, orderID, providerName)
	}, providerName)
}

// RetryFulfillment retries a failed order with resumable-step semantics:
// the orchestrator branches on whether a vendor order already exists and
// never re-creates one.
func (h *Handler) RetryFulfillment(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		writeError(w, http.StatusBadRequest, "order_id_required", "")
		return
	}

	latest, err := h.runs.LatestRunForOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, runlog.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "no_runs_for_order", "")
			return
		}
		writeError(w, http.StatusInternalServerError, "run_log_error", err.Error())
		return
	}
	switch {
	case latest.Status == runlog.RunCompleted:
		writeError(w, http.StatusConflict, "already_fulfilled", "")
		return
	case !latest.Status.IsTerminal():
		writeError(w, http.StatusConflict, "run_in_progress", "")
		return
	}

	h.startRun(w, r, orderID, func(ctx context.Context) (*runlog.FulfillmentRun, error) {
		return h.orchestrator.Resume(ctx, orderID)
	}, latest.ProviderName)
}

// startRun takes the per-order single-flight key and launches the run in
// the background, answering 202 immediately.
func (h *Handler) startRun(w http.ResponseWriter, r *http.Request, orderID string, run func(ctx context.Context) (*runlog.FulfillmentRun, error), providerName string) {
	key := idempotency.RunInflightKey(orderID)
	claimed, err := h.idem.Acquire(r.Context(), key, idempotency.TTLRunInflight)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "idempotency_store_error", err.Error())
		return
	}
	if !claimed {
		writeError(w, http.StatusConflict, "fulfillment_in_flight", "a run for this order is already in progress")
		return
	}

	// Detach from the request context so the run is not cancelled when the
	// response is sent, while still propagating tracing metadata.
	runCtx := context.WithoutCancel(r.Context())
	go func() {
		defer func() {
			if err := h.idem.Release(runCtx, key); err != nil {
				slog.ErrorContext(runCtx, "failed to release run single-flight key", "order_id", orderID, "error", err)
			}
		}()
		if _, err := run(runCtx); err != nil {
			slog.ErrorContext(runCtx, "fulfillment run aborted", "order_id", orderID, "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, TriggerRunResponse{
		OrderID:  orderID,
		Provider: providerName,
		Status:   "accepted",
	})
}

// GetRun returns one run with its step log.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	run, err := h.runs.GetRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, runlog.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "run_not_found", "")
			return
		}
		writeError(w, http.StatusInternalServerError, "run_log_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, mapRunToResponse(run))
}

// ListRuns returns all runs for an order, newest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	runs, err := h.runs.ListRunsByOrder(r.Context(), orderID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "run_log_error", err.Error())
		return
	}
	out := make([]RunResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, mapRunToResponse(run))
	}
	writeJSON(w, http.StatusOK, out)
}

// EstimateShipping quotes vendor shipping rates for an order.
func (h *Handler) EstimateShipping(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	estimates, err := h.orchestrator.EstimateShipping(r.Context(), orderID, r.URL.Query().Get("provider"))
	if err != nil {
		switch {
		case errors.Is(err, orderstore.ErrOrderNotFound):
			writeError(w, http.StatusNotFound, "order_not_found", "")
		case fulfillment.IsValidationError(err):
			writeError(w, http.StatusUnprocessableEntity, "order_not_fulfillable", err.Error())
		case errors.Is(err, provider.ErrProviderNotFound), errors.Is(err, provider.ErrProviderDisabled):
			writeError(w, http.StatusBadRequest, "provider_unavailable", err.Error())
		default:
			writeError(w, http.StatusBadGateway, "vendor_error", err.Error())
		}
		return
	}
	out := make([]ShippingEstimateResponse, 0, len(estimates))
	for _, e := range estimates {
		out = append(out, ShippingEstimateResponse{
			Service:  e.Service,
			Rate:     e.Rate.StringFixed(2),
			Currency: e.Currency,
			MinDays:  e.MinDays,
			MaxDays:  e.MaxDays,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// Webhook receives a signed vendor callback.
//
// Response codes follow the anti-retry-storm contract: 200 for anything
// parseable (even unrecognized types and unknown orders), 4xx only for a
// bad signature or malformed body, 5xx only for our own infrastructure.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	rawBody, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable_body", "")
		return
	}

	result, err := h.receiver.Handle(r.Context(), rawBody, r.Header.Get(signatureHeader))
	if err != nil {
		slog.ErrorContext(r.Context(), "webhook processing failed", "error", err)
		writeError(w, http.StatusInternalServerError, "webhook_processing_error", "")
		return
	}
	if !result.Accepted {
		status := http.StatusBadRequest
		if result.Reason == "invalid signature" {
			status = http.StatusUnauthorized
		}
		writeError(w, status, "rejected", result.Reason)
		return
	}
	writeJSON(w, http.StatusOK, WebhookResponse{Received: true, Reason: result.Reason})
}

// ListProviders returns the provider registry contents.
func (h *Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.providers.List())
}

// SetProviderEnabled enables or disables a registered provider.
func (h *Handler) SetProviderEnabled(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req SetProviderEnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if err := h.providers.SetEnabled(name, req.Enabled); err != nil {
		writeError(w, http.StatusNotFound, "provider_not_found", "")
		return
	}
	writeJSON(w, http.StatusOK, h.providers.List())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: msg})
}
