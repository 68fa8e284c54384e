/**
 * @description
 * Payment model and the closed status lifecycle for billing records.
 * One Payment exists per (vehicle, billing period); this uniqueness is the
 * engine's core idempotency contract and is enforced both by the period-start
 * guard and by a unique index on (vehicle_id, period_key).
 */
package domain

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus enumerates the states a payment can occupy.
type PaymentStatus string

const (
	// StatusPending is the state every payment is created in.
	StatusPending PaymentStatus = "pending"
	// StatusPaid is reachable from any non-terminal state via confirmation.
	StatusPaid PaymentStatus = "paid"
	// StatusLate marks a pending payment whose due day has passed within the
	// current period.
	StatusLate PaymentStatus = "late"
	// StatusLateHistorical is the terminal state applied when a period is
	// archived with the payment still unpaid.
	StatusLateHistorical PaymentStatus = "late_historical"
)

// Valid reports whether s is one of the defined payment statuses.
func (s PaymentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusLate, StatusLateHistorical:
		return true
	}
	return false
}

// Resolved reports whether the payment obligation has been settled.
// Everything that is not paid still counts toward arrears.
func (s PaymentStatus) Resolved() bool {
	return s == StatusPaid
}

// CanTransition reports whether moving from s to target is a legal lifecycle
// step. Archival (late -> late_historical) and unconfirmation
// (paid -> pending/late) are included; late_historical is terminal except for
// a late confirmation of an archived debt.
func (s PaymentStatus) CanTransition(target PaymentStatus) bool {
	switch s {
	case StatusPending:
		return target == StatusLate || target == StatusPaid
	case StatusLate:
		return target == StatusPaid || target == StatusLateHistorical
	case StatusPaid:
		return target == StatusPending || target == StatusLate
	case StatusLateHistorical:
		return target == StatusPaid
	}
	return false
}

// CreatorSystem and CreatorAdmin identify who authored a payment record.
// Manually entered records carry the operator's identifier instead.
const (
	CreatorSystem = "system"
	CreatorAdmin  = "admin"
)

// Payment is one billing record for one vehicle in one period.
// Client and plate fields are denormalized at creation time for reporting;
// DueDay is likewise copied from the vehicle so later vehicle edits do not
// retroactively alter past periods.
type Payment struct {
	ID            uuid.UUID     `json:"id"`
	VehicleID     uuid.UUID     `json:"vehicle_id"`
	ClientID      uuid.UUID     `json:"client_id"`
	ClientName    string        `json:"client_name"`
	VehiclePlate  string        `json:"vehicle_plate"`
	PeriodKey     string        `json:"period_key"`
	Year          int           `json:"year"`
	Month         int           `json:"month"`
	DueDay        int           `json:"due_day"`
	AmountDue     int64         `json:"amount_due"`
	AmountPaid    int64         `json:"amount_paid"`
	Status        PaymentStatus `json:"status"`
	DaysLate      int           `json:"days_late"`
	MonthsOverdue int           `json:"months_overdue"`
	AmountOverdue int64         `json:"amount_overdue"`
	PaidAt        *time.Time    `json:"paid_at,omitempty"`
	PaymentMethod *string       `json:"payment_method,omitempty"`
	ArchivedAt    *time.Time    `json:"archived_at,omitempty"`
	CreatedBy     string        `json:"created_by"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Period returns the billing period this payment belongs to.
func (p Payment) Period() Period {
	return Period{Year: p.Year, Month: time.Month(p.Month)}
}

// LatePromotion pairs a payment with the vehicle whose mirrored status must
// change alongside it when the payment is promoted to late.
type LatePromotion struct {
	PaymentID uuid.UUID `json:"payment_id"`
	VehicleID uuid.UUID `json:"vehicle_id"`
	DaysLate  int       `json:"days_late"`
}
