/**
 * @description
 * Period archival: closes an outgoing billing period by reclassifying its
 * still-unpaid payments into the terminal historical state and writing the
 * period's closing snapshot.
 */
package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/rastrotech/billing-service/internal/domain"
)

// ArchiveResult summarizes one archival pass.
type ArchiveResult struct {
	PeriodKey          string `json:"period_key"`
	PaymentCount       int    `json:"payment_count"`
	PaidCount          int    `json:"paid_count"`
	Reclassified       int    `json:"reclassified"`
	AmountOverdueTotal int64  `json:"amount_overdue_total"`
}

// ArchivePeriod closes out one billing period. Payments that were never paid
// are reclassified to late_historical and stamped with the archive time; the
// reclassification is status-only, amounts and vehicle linkage are left
// untouched. Paid payments are not modified. A period with no payments is a
// no-op. Re-running is safe: already-historical payments are counted but not
// rewritten, and the snapshot is overwritten with identical totals.
func (e *Engine) ArchivePeriod(ctx context.Context, period domain.Period) (*ArchiveResult, error) {
	key := period.Key()

	payments, err := e.ledger.PaymentsByPeriod(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("fetching payments for period %s: %w", key, err)
	}
	if len(payments) == 0 {
		return &ArchiveResult{PeriodKey: key}, nil
	}

	archivedAt := e.now().In(e.loc)
	result := &ArchiveResult{PeriodKey: key, PaymentCount: len(payments)}

	var toReclassify []uuid.UUID
	for _, p := range payments {
		switch p.Status {
		case domain.StatusPaid:
			result.PaidCount++
		case domain.StatusLateHistorical:
			// Already archived by a previous pass.
			result.Reclassified++
			result.AmountOverdueTotal += p.AmountDue
		default:
			toReclassify = append(toReclassify, p.ID)
			result.Reclassified++
			result.AmountOverdueTotal += p.AmountDue
		}
	}

	if len(toReclassify) > 0 {
		if err := e.ledger.ReclassifyPaymentsHistorical(ctx, toReclassify, archivedAt); err != nil {
			return nil, fmt.Errorf("reclassifying payments for period %s: %w", key, err)
		}
	}

	snap := domain.PeriodSnapshot{
		PeriodKey:          key,
		PaymentCount:       result.PaymentCount,
		PaidCount:          result.PaidCount,
		LateCount:          result.Reclassified,
		AmountOverdueTotal: result.AmountOverdueTotal,
		ArchivedAt:         archivedAt,
	}
	if err := e.ledger.UpsertPeriodSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("writing snapshot for period %s: %w", key, err)
	}

	e.logger.Info("billing period archived",
		"period", key,
		"payments", result.PaymentCount,
		"paid", result.PaidCount,
		"reclassified", result.Reclassified,
	)

	return result, nil
}
