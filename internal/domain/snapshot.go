/**
 * @description
 * Immutable per-period summary written when a period is archived.
 */
package domain

import "time"

// PeriodSnapshot captures the closing totals of one billing period.
// It is written once by the archiver and never mutated afterwards; a re-run
// of the archiver for the same period overwrites it with identical totals.
type PeriodSnapshot struct {
	PeriodKey          string    `json:"period_key"`
	PaymentCount       int       `json:"payment_count"`
	PaidCount          int       `json:"paid_count"`
	LateCount          int       `json:"late_count"`
	AmountOverdueTotal int64     `json:"amount_overdue_total"`
	ArchivedAt         time.Time `json:"archived_at"`
}
