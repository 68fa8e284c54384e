package app

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rastrotech/billing-service/internal/domain"
)

func TestComputeArrears_AccumulatesPriorUnpaidMonths(t *testing.T) {
	vehicleID := uuid.New()
	target := domain.Period{Year: 2024, Month: time.March}
	payments := []domain.Payment{
		unpaidPayment(vehicleID, 2024, 1, 5000, domain.StatusLateHistorical),
		unpaidPayment(vehicleID, 2024, 2, 5000, domain.StatusLate),
	}

	arrears := ComputeArrears(payments, target.Index())

	a := arrears.For(vehicleID)
	if a.MonthsOverdue != 2 {
		t.Fatalf("expected 2 months overdue, got %d", a.MonthsOverdue)
	}
	if a.AmountOverdue != 10000 {
		t.Fatalf("expected 10000 overdue, got %d", a.AmountOverdue)
	}
	if len(a.Trail) != 2 {
		t.Fatalf("expected 2 trail entries, got %d", len(a.Trail))
	}
	if a.Trail[0].PeriodKey != "2024-01" || a.Trail[1].PeriodKey != "2024-02" {
		t.Fatalf("unexpected trail: %+v", a.Trail)
	}
}

func TestComputeArrears_ExcludesTargetPeriod(t *testing.T) {
	vehicleID := uuid.New()
	target := domain.Period{Year: 2024, Month: time.March}
	payments := []domain.Payment{
		unpaidPayment(vehicleID, 2024, 3, 5000, domain.StatusPending),
	}

	arrears := ComputeArrears(payments, target.Index())

	if a := arrears.For(vehicleID); a.MonthsOverdue != 0 || a.AmountOverdue != 0 {
		t.Fatalf("target-period payment must not count as its own arrears, got %+v", a)
	}
}

func TestComputeArrears_ExcludesPaidPayments(t *testing.T) {
	vehicleID := uuid.New()
	target := domain.Period{Year: 2024, Month: time.March}
	paid := unpaidPayment(vehicleID, 2024, 1, 5000, domain.StatusPaid)
	payments := []domain.Payment{paid}

	arrears := ComputeArrears(payments, target.Index())

	if len(arrears) != 0 {
		t.Fatalf("paid history must not produce arrears, got %+v", arrears)
	}
}

func TestComputeArrears_CrossesYearBoundary(t *testing.T) {
	vehicleID := uuid.New()
	target := domain.Period{Year: 2025, Month: time.January}
	payments := []domain.Payment{
		unpaidPayment(vehicleID, 2024, 11, 4000, domain.StatusLateHistorical),
		unpaidPayment(vehicleID, 2024, 12, 4000, domain.StatusLate),
	}

	arrears := ComputeArrears(payments, target.Index())

	a := arrears.For(vehicleID)
	if a.MonthsOverdue != 2 || a.AmountOverdue != 8000 {
		t.Fatalf("expected Nov+Dec folded across the year boundary, got %+v", a)
	}
}

func TestComputeArrears_SeparatesVehicles(t *testing.T) {
	first := uuid.New()
	second := uuid.New()
	target := domain.Period{Year: 2024, Month: time.March}
	payments := []domain.Payment{
		unpaidPayment(first, 2024, 1, 5000, domain.StatusLate),
		unpaidPayment(second, 2024, 1, 3000, domain.StatusLate),
		unpaidPayment(second, 2024, 2, 3000, domain.StatusPending),
	}

	arrears := ComputeArrears(payments, target.Index())

	if a := arrears.For(first); a.MonthsOverdue != 1 || a.AmountOverdue != 5000 {
		t.Fatalf("unexpected arrears for first vehicle: %+v", a)
	}
	if a := arrears.For(second); a.MonthsOverdue != 2 || a.AmountOverdue != 6000 {
		t.Fatalf("unexpected arrears for second vehicle: %+v", a)
	}
}

func TestArrearsMap_ForReturnsExplicitZero(t *testing.T) {
	arrears := ComputeArrears(nil, domain.Period{Year: 2024, Month: time.March}.Index())

	a := arrears.For(uuid.New())
	if a.MonthsOverdue != 0 || a.AmountOverdue != 0 || a.Trail != nil {
		t.Fatalf("expected explicit zero arrears for unknown vehicle, got %+v", a)
	}
}
