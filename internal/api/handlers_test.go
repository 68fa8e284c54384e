package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rastrotech/billing-service/internal/app"
	"github.com/rastrotech/billing-service/internal/domain"
	"github.com/rastrotech/billing-service/internal/store"
)

type stubBillingStore struct {
	snapshot *domain.PeriodSnapshot
	payments []domain.Payment
	runs     []domain.RunLogEntry
}

func (s *stubBillingStore) PaymentsByPeriod(ctx context.Context, periodKey string) ([]domain.Payment, error) {
	return s.payments, nil
}

func (s *stubBillingStore) GetPeriodSnapshot(ctx context.Context, periodKey string) (*domain.PeriodSnapshot, error) {
	if s.snapshot == nil {
		return nil, store.ErrSnapshotNotFound
	}
	return s.snapshot, nil
}

func (s *stubBillingStore) MarkPaymentPaid(ctx context.Context, paymentID uuid.UUID, amountPaid int64, method string, paidAt time.Time) (*domain.Payment, error) {
	return nil, store.ErrPaymentNotFound
}

func (s *stubBillingStore) MarkPaymentPending(ctx context.Context, paymentID uuid.UUID, today time.Time) (*domain.Payment, error) {
	return nil, store.ErrPaymentNotFound
}

func (s *stubBillingStore) ListRunLogs(ctx context.Context, limit int) ([]domain.RunLogEntry, error) {
	return s.runs, nil
}

type stubEngineRegistry struct{}

func (stubEngineRegistry) ListActiveVehicles(ctx context.Context) ([]domain.Vehicle, error) {
	return nil, nil
}

type stubEngineLedger struct{}

func (stubEngineLedger) HasPaymentsForPeriod(ctx context.Context, periodKey string) (bool, error) {
	return false, nil
}
func (stubEngineLedger) PaymentsByPeriod(ctx context.Context, periodKey string) ([]domain.Payment, error) {
	return nil, nil
}
func (stubEngineLedger) UnresolvedPayments(ctx context.Context) ([]domain.Payment, error) {
	return nil, nil
}
func (stubEngineLedger) CreatePaymentsForPeriod(ctx context.Context, payments []domain.Payment) error {
	return nil
}
func (stubEngineLedger) PromotePaymentsLate(ctx context.Context, promotions []domain.LatePromotion, promotedAt time.Time) error {
	return nil
}
func (stubEngineLedger) ReclassifyPaymentsHistorical(ctx context.Context, paymentIDs []uuid.UUID, archivedAt time.Time) error {
	return nil
}
func (stubEngineLedger) UpsertPeriodSnapshot(ctx context.Context, snap domain.PeriodSnapshot) error {
	return nil
}

type stubEngineRunLog struct{}

func (stubEngineRunLog) AppendRunLog(ctx context.Context, kind domain.RunKind, payload interface{}) error {
	return nil
}

func newTestRouter(billingStore BillingStore, internalKey string) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := app.NewEngine(stubEngineRegistry{}, stubEngineLedger{}, stubEngineRunLog{}, nil, logger, "UTC")
	return NewRouter(NewHandler(engine, billingStore), internalKey)
}

func TestInternalAuthMiddleware_RejectsMissingKey(t *testing.T) {
	router := newTestRouter(&stubBillingStore{}, "secret")

	req := httptest.NewRequest(http.MethodPost, "/internal/billing/tick", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without internal key, got %d", rec.Code)
	}
}

func TestInternalAuthMiddleware_AcceptsValidKey(t *testing.T) {
	router := newTestRouter(&stubBillingStore{}, "secret")

	req := httptest.NewRequest(http.MethodPost, "/internal/billing/tick", nil)
	req.Header.Set("X-Internal-API-Key", "secret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid key, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleStartPeriod_RejectsPartialTarget(t *testing.T) {
	router := newTestRouter(&stubBillingStore{}, "")

	req := httptest.NewRequest(http.MethodPost, "/internal/billing/periods/start", strings.NewReader(`{"month": 5}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for month without year, got %d", rec.Code)
	}
}

func TestHandleStartPeriod_RejectsInvalidMonth(t *testing.T) {
	router := newTestRouter(&stubBillingStore{}, "")

	req := httptest.NewRequest(http.MethodPost, "/internal/billing/periods/start", strings.NewReader(`{"month": 13, "year": 2025}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for month 13, got %d", rec.Code)
	}
}

func TestHandleGetSnapshot_NotFound(t *testing.T) {
	router := newTestRouter(&stubBillingStore{}, "")

	req := httptest.NewRequest(http.MethodGet, "/internal/billing/periods/2024-12/snapshot", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing snapshot, got %d", rec.Code)
	}
}

func TestHandleGetSnapshot_RejectsMalformedPeriod(t *testing.T) {
	router := newTestRouter(&stubBillingStore{}, "")

	req := httptest.NewRequest(http.MethodGet, "/internal/billing/periods/december/snapshot", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed period key, got %d", rec.Code)
	}
}

func TestHandleListPayments_RequiresPeriod(t *testing.T) {
	router := newTestRouter(&stubBillingStore{}, "")

	req := httptest.NewRequest(http.MethodGet, "/internal/billing/payments", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without period parameter, got %d", rec.Code)
	}
}
