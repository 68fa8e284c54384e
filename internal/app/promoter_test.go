package app

import (
	"context"
	"testing"
	"time"

	"github.com/rastrotech/billing-service/internal/domain"
)

func TestPromoteOverdue_OnDueDayStaysPending(t *testing.T) {
	vehicle := testVehicle(5500, 10)
	ledger := newMemLedger()
	ledger.payments = append(ledger.payments, unpaidPayment(vehicle.ID, 2025, 1, 5500, domain.StatusPending))
	engine := newTestEngine(&stubRegistry{}, ledger, &stubRunLog{}, time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC))

	result, err := engine.PromoteOverdue(context.Background())
	if err != nil {
		t.Fatalf("PromoteOverdue returned error: %v", err)
	}
	if result.Promoted != 0 {
		t.Fatalf("expected no promotion on the due day itself, got %d", result.Promoted)
	}
	if ledger.payments[0].Status != domain.StatusPending {
		t.Fatalf("expected payment still pending, got %s", ledger.payments[0].Status)
	}
}

func TestPromoteOverdue_DayAfterDueDayPromotes(t *testing.T) {
	vehicle := testVehicle(5500, 10)
	ledger := newMemLedger()
	ledger.payments = append(ledger.payments, unpaidPayment(vehicle.ID, 2025, 1, 5500, domain.StatusPending))
	engine := newTestEngine(&stubRegistry{}, ledger, &stubRunLog{}, time.Date(2025, 1, 11, 12, 0, 0, 0, time.UTC))

	result, err := engine.PromoteOverdue(context.Background())
	if err != nil {
		t.Fatalf("PromoteOverdue returned error: %v", err)
	}
	if result.Promoted != 1 {
		t.Fatalf("expected 1 promotion, got %d", result.Promoted)
	}
	p := ledger.payments[0]
	if p.Status != domain.StatusLate {
		t.Fatalf("expected status late, got %s", p.Status)
	}
	if p.DaysLate != 1 {
		t.Fatalf("expected days_late 1, got %d", p.DaysLate)
	}
	if ledger.vehicleStatuses[vehicle.ID] != domain.StatusLate {
		t.Fatalf("expected vehicle status mirrored to late, got %s", ledger.vehicleStatuses[vehicle.ID])
	}
}

func TestPromoteOverdue_UsesPaymentStoredDueDay(t *testing.T) {
	// The payment carries due day 5 even though the vehicle has since moved
	// to due day 20; the payment's own stored due day is authoritative.
	vehicle := testVehicle(5500, 20)
	ledger := newMemLedger()
	p := unpaidPayment(vehicle.ID, 2025, 1, 5500, domain.StatusPending)
	p.DueDay = 5
	ledger.payments = append(ledger.payments, p)
	engine := newTestEngine(&stubRegistry{}, ledger, &stubRunLog{}, time.Date(2025, 1, 12, 12, 0, 0, 0, time.UTC))

	result, err := engine.PromoteOverdue(context.Background())
	if err != nil {
		t.Fatalf("PromoteOverdue returned error: %v", err)
	}
	if result.Promoted != 1 {
		t.Fatalf("expected promotion against the stored due day, got %d", result.Promoted)
	}
	if ledger.payments[0].DaysLate != 7 {
		t.Fatalf("expected days_late 7 (12 - 5), got %d", ledger.payments[0].DaysLate)
	}
}

func TestPromoteOverdue_SkipsNonPendingStatuses(t *testing.T) {
	vehicle := testVehicle(5500, 10)
	ledger := newMemLedger()
	paid := unpaidPayment(vehicle.ID, 2025, 1, 5500, domain.StatusPaid)
	late := unpaidPayment(vehicle.ID, 2025, 1, 5500, domain.StatusLate)
	ledger.payments = append(ledger.payments, paid, late)
	engine := newTestEngine(&stubRegistry{}, ledger, &stubRunLog{}, time.Date(2025, 1, 20, 12, 0, 0, 0, time.UTC))

	result, err := engine.PromoteOverdue(context.Background())
	if err != nil {
		t.Fatalf("PromoteOverdue returned error: %v", err)
	}
	if result.Promoted != 0 {
		t.Fatalf("expected only pending payments promoted, got %d", result.Promoted)
	}
	if ledger.promoteCalls != 0 {
		t.Fatalf("expected no batch issued, got %d calls", ledger.promoteCalls)
	}
}

func TestPromoteOverdue_NoCurrentPeriodPaymentsIsNoop(t *testing.T) {
	ledger := newMemLedger()
	engine := newTestEngine(&stubRegistry{}, ledger, &stubRunLog{}, time.Date(2025, 1, 20, 12, 0, 0, 0, time.UTC))

	result, err := engine.PromoteOverdue(context.Background())
	if err != nil {
		t.Fatalf("PromoteOverdue returned error: %v", err)
	}
	if result.Scanned != 0 || result.Promoted != 0 {
		t.Fatalf("expected silent no-op before period start, got %+v", result)
	}
}

func TestPromoteOverdue_IgnoresPastPeriods(t *testing.T) {
	vehicle := testVehicle(5500, 10)
	ledger := newMemLedger()
	ledger.payments = append(ledger.payments, unpaidPayment(vehicle.ID, 2024, 12, 5500, domain.StatusPending))
	engine := newTestEngine(&stubRegistry{}, ledger, &stubRunLog{}, time.Date(2025, 1, 20, 12, 0, 0, 0, time.UTC))

	result, err := engine.PromoteOverdue(context.Background())
	if err != nil {
		t.Fatalf("PromoteOverdue returned error: %v", err)
	}
	if result.Promoted != 0 {
		t.Fatalf("promotion must only touch the current period, got %d", result.Promoted)
	}
	if ledger.payments[0].Status != domain.StatusPending {
		t.Fatalf("past-period payment must be left alone, got %s", ledger.payments[0].Status)
	}
}
