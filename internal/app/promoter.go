/**
 * @description
 * Overdue promotion: on every tick, pending payments of the current period
 * whose due day has passed become late, together with their vehicles'
 * mirrored status, in one atomic batch.
 */
package app

import (
	"context"
	"fmt"

	"github.com/rastrotech/billing-service/internal/domain"
)

// PromotionResult summarizes one promotion pass.
type PromotionResult struct {
	PeriodKey string `json:"period_key"`
	Scanned   int    `json:"scanned"`
	Promoted  int    `json:"promoted"`
}

type paymentsLatePayload struct {
	PeriodKey string `json:"period_key"`
	Promoted  int    `json:"promoted"`
}

// PromoteOverdue scans the current period's pending payments and promotes
// every one whose due day is strictly before today to late, stamping
// days_late = today - due_day. The payment's own stored due day is
// authoritative, not the vehicle's current one. A period with no payments
// yet is a silent no-op. A failed batch is simply retried on the next tick:
// a later date only ever qualifies the same or more payments.
func (e *Engine) PromoteOverdue(ctx context.Context) (*PromotionResult, error) {
	now := e.now().In(e.loc)
	period := domain.PeriodOf(now)
	key := period.Key()

	payments, err := e.ledger.PaymentsByPeriod(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("fetching payments for period %s: %w", key, err)
	}
	if len(payments) == 0 {
		// Period not started yet.
		return &PromotionResult{PeriodKey: key}, nil
	}

	day := now.Day()
	var promotions []domain.LatePromotion
	for _, p := range payments {
		if p.Status != domain.StatusPending {
			continue
		}
		if day > p.DueDay {
			promotions = append(promotions, domain.LatePromotion{
				PaymentID: p.ID,
				VehicleID: p.VehicleID,
				DaysLate:  day - p.DueDay,
			})
		}
	}

	result := &PromotionResult{PeriodKey: key, Scanned: len(payments)}
	if len(promotions) == 0 {
		return result, nil
	}

	if err := e.ledger.PromotePaymentsLate(ctx, promotions, now); err != nil {
		return nil, fmt.Errorf("promoting overdue payments for period %s: %w", key, err)
	}
	result.Promoted = len(promotions)

	e.publishEvent(ctx, "billing.payments_late", paymentsLatePayload{PeriodKey: key, Promoted: result.Promoted})
	e.logger.Info("promoted overdue payments", "period", key, "promoted", result.Promoted)

	return result, nil
}
