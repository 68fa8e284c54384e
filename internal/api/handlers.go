/**
 * @description
 * HTTP handlers for the billing service. The engine drives the billing
 * cycle; reads and payment confirmation go straight to the store.
 */
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rastrotech/billing-service/internal/app"
	"github.com/rastrotech/billing-service/internal/domain"
	"github.com/rastrotech/billing-service/internal/store"
)

// BillingStore defines the store operations the handlers need beyond the
// engine itself.
type BillingStore interface {
	PaymentsByPeriod(ctx context.Context, periodKey string) ([]domain.Payment, error)
	GetPeriodSnapshot(ctx context.Context, periodKey string) (*domain.PeriodSnapshot, error)
	MarkPaymentPaid(ctx context.Context, paymentID uuid.UUID, amountPaid int64, method string, paidAt time.Time) (*domain.Payment, error)
	MarkPaymentPending(ctx context.Context, paymentID uuid.UUID, today time.Time) (*domain.Payment, error)
	ListRunLogs(ctx context.Context, limit int) ([]domain.RunLogEntry, error)
}

// Handler holds the engine and store that handlers interact with.
type Handler struct {
	engine *app.Engine
	store  BillingStore
}

// NewHandler creates a new Handler.
func NewHandler(engine *app.Engine, store BillingStore) *Handler {
	return &Handler{engine: engine, store: store}
}

func (h *Handler) handleRunTick(w http.ResponseWriter, r *http.Request) {
	result := h.engine.RunTick(r.Context())
	respondWithJSON(w, http.StatusOK, result)
}

func (h *Handler) handleStartPeriod(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Month int `json:"month"`
		Year  int `json:"year"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}
	if (req.Month == 0) != (req.Year == 0) {
		http.Error(w, "month and year must be provided together", http.StatusBadRequest)
		return
	}
	if req.Month < 0 || req.Month > 12 || req.Year < 0 {
		http.Error(w, "invalid month or year", http.StatusBadRequest)
		return
	}

	result, err := h.engine.StartPeriod(r.Context(), app.StartPeriodInput{
		Month: req.Month,
		Year:  req.Year,
		Actor: domain.CreatorAdmin,
	})
	if err != nil {
		if errors.Is(err, app.ErrPeriodStartBusy) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		log.Printf("Error starting billing period: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if result.AlreadyStarted {
		respondWithJSON(w, http.StatusConflict, result)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

func (h *Handler) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	periodKey := chi.URLParam(r, "period")
	if _, err := domain.ParsePeriod(periodKey); err != nil {
		http.Error(w, "Invalid period key", http.StatusBadRequest)
		return
	}

	snap, err := h.store.GetPeriodSnapshot(r.Context(), periodKey)
	if err != nil {
		if errors.Is(err, store.ErrSnapshotNotFound) {
			http.Error(w, "Snapshot not found", http.StatusNotFound)
			return
		}
		log.Printf("Error fetching snapshot for period %s: %v", periodKey, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondWithJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleListPayments(w http.ResponseWriter, r *http.Request) {
	periodKey := r.URL.Query().Get("period")
	if _, err := domain.ParsePeriod(periodKey); err != nil {
		http.Error(w, "A valid period query parameter is required", http.StatusBadRequest)
		return
	}

	payments, err := h.store.PaymentsByPeriod(r.Context(), periodKey)
	if err != nil {
		log.Printf("Error listing payments for period %s: %v", periodKey, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondWithJSON(w, http.StatusOK, payments)
}

func (h *Handler) handleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	paymentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid payment ID", http.StatusBadRequest)
		return
	}

	var req struct {
		AmountPaid    int64  `json:"amount_paid"`
		PaymentMethod string `json:"payment_method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.AmountPaid <= 0 {
		http.Error(w, "amount_paid must be positive", http.StatusBadRequest)
		return
	}

	payment, err := h.store.MarkPaymentPaid(r.Context(), paymentID, req.AmountPaid, req.PaymentMethod, time.Now())
	if err != nil {
		if errors.Is(err, store.ErrPaymentNotFound) {
			http.Error(w, "Payment not found or already paid", http.StatusNotFound)
			return
		}
		log.Printf("Error confirming payment %s: %v", paymentID, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondWithJSON(w, http.StatusOK, payment)
}

func (h *Handler) handleUnconfirmPayment(w http.ResponseWriter, r *http.Request) {
	paymentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid payment ID", http.StatusBadRequest)
		return
	}

	payment, err := h.store.MarkPaymentPending(r.Context(), paymentID, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, store.ErrPaymentNotFound):
			http.Error(w, "Payment not found", http.StatusNotFound)
		case errors.Is(err, store.ErrInvalidStatus):
			http.Error(w, "Payment is not confirmed", http.StatusConflict)
		default:
			log.Printf("Error unconfirming payment %s: %v", paymentID, err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	respondWithJSON(w, http.StatusOK, payment)
}

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	entries, err := h.store.ListRunLogs(r.Context(), limit)
	if err != nil {
		log.Printf("Error listing run log entries: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondWithJSON(w, http.StatusOK, entries)
}

// respondWithJSON writes JSON responses.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
