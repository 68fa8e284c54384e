/**
 * @description
 * Pure arrears computation over unresolved payment history. Runs before any
 * mutation during period start, so it must stay deterministic and
 * side-effect-free.
 */
package app

import (
	"github.com/google/uuid"

	"github.com/rastrotech/billing-service/internal/domain"
)

// ArrearsTrailEntry records one past-due period that contributed to a
// vehicle's arrears, kept for traceability on the created payment's audit
// trail.
type ArrearsTrailEntry struct {
	PeriodKey string `json:"period_key"`
	Amount    int64  `json:"amount"`
}

// Arrears is the accumulated unpaid debt of one vehicle as of a target
// period. The zero value means no arrears.
type Arrears struct {
	MonthsOverdue int                 `json:"months_overdue"`
	AmountOverdue int64               `json:"amount_overdue"`
	Trail         []ArrearsTrailEntry `json:"trail,omitempty"`
}

// ArrearsMap maps vehicle IDs to their computed arrears. Vehicles with no
// qualifying payments are simply absent.
type ArrearsMap map[uuid.UUID]Arrears

// For returns the arrears for a vehicle, normalized to an explicit zero
// value when the vehicle has no qualifying unpaid history.
func (m ArrearsMap) For(vehicleID uuid.UUID) Arrears {
	return m[vehicleID]
}

// ComputeArrears folds every unresolved payment from a strictly earlier
// period than targetIndex into its vehicle's arrears. Payments belonging to
// the target period itself are excluded: arrears only counts past, unsettled
// obligations. Paid payments never qualify regardless of period.
func ComputeArrears(payments []domain.Payment, targetIndex int) ArrearsMap {
	arrears := make(ArrearsMap)
	for _, p := range payments {
		if p.Status.Resolved() {
			continue
		}
		if targetIndex-p.Period().Index() <= 0 {
			continue
		}
		a := arrears[p.VehicleID]
		a.MonthsOverdue++
		a.AmountOverdue += p.AmountDue
		a.Trail = append(a.Trail, ArrearsTrailEntry{PeriodKey: p.PeriodKey, Amount: p.AmountDue})
		arrears[p.VehicleID] = a
	}
	return arrears
}
