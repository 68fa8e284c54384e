/**
 * @description
 * Data access layer for the billing service. All multi-record mutations the
 * engine issues (period initiation, overdue promotion, archival
 * reclassification, payment confirmation) run inside a single transaction so
 * readers never observe a half-applied batch.
 */
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rastrotech/billing-service/internal/domain"
)

var (
	ErrPaymentNotFound  = errors.New("payment not found")
	ErrVehicleNotFound  = errors.New("vehicle not found")
	ErrSnapshotNotFound = errors.New("period snapshot not found")
	ErrInvalidStatus    = errors.New("invalid payment status transition")
)

// Repository handles database operations for the billing engine.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const paymentColumns = `
	id, vehicle_id, client_id, client_name, vehicle_plate,
	period_key, year, month, due_day,
	amount_due, amount_paid, status, days_late,
	months_overdue, amount_overdue,
	paid_at, payment_method, archived_at,
	created_by, created_at, updated_at
`

func scanPayment(row pgx.Row) (domain.Payment, error) {
	var p domain.Payment
	err := row.Scan(
		&p.ID, &p.VehicleID, &p.ClientID, &p.ClientName, &p.VehiclePlate,
		&p.PeriodKey, &p.Year, &p.Month, &p.DueDay,
		&p.AmountDue, &p.AmountPaid, &p.Status, &p.DaysLate,
		&p.MonthsOverdue, &p.AmountOverdue,
		&p.PaidAt, &p.PaymentMethod, &p.ArchivedAt,
		&p.CreatedBy, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func (r *Repository) queryPayments(ctx context.Context, query string, args ...interface{}) ([]domain.Payment, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// ListActiveVehicles fetches all vehicles still under subscription.
func (r *Repository) ListActiveVehicles(ctx context.Context) ([]domain.Vehicle, error) {
	query := `
		SELECT id, client_id, client_name, plate, model,
		       fee_amount, due_day, active, current_status,
		       created_at, updated_at
		FROM vehicles
		WHERE active = TRUE
		ORDER BY client_name, plate
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vehicles []domain.Vehicle
	for rows.Next() {
		var v domain.Vehicle
		if err := rows.Scan(
			&v.ID, &v.ClientID, &v.ClientName, &v.Plate, &v.Model,
			&v.FeeAmount, &v.DueDay, &v.Active, &v.CurrentStatus,
			&v.CreatedAt, &v.UpdatedAt,
		); err != nil {
			return nil, err
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}

// HasPaymentsForPeriod reports whether any payment exists for a period key.
// This backs the period-start idempotency guard.
func (r *Repository) HasPaymentsForPeriod(ctx context.Context, periodKey string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM payments WHERE period_key = $1)", periodKey).Scan(&exists)
	return exists, err
}

// PaymentsByPeriod fetches all payments belonging to a period key.
func (r *Repository) PaymentsByPeriod(ctx context.Context, periodKey string) ([]domain.Payment, error) {
	query := fmt.Sprintf("SELECT %s FROM payments WHERE period_key = $1 ORDER BY created_at", paymentColumns)
	return r.queryPayments(ctx, query, periodKey)
}

// UnresolvedPayments fetches every payment that was never paid, across all
// periods. The arrears calculator folds these into per-vehicle debt.
func (r *Repository) UnresolvedPayments(ctx context.Context) ([]domain.Payment, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM payments
		WHERE status IN ('pending', 'late', 'late_historical')
		ORDER BY year, month
	`, paymentColumns)
	return r.queryPayments(ctx, query)
}

// GetPaymentByID fetches a single payment.
func (r *Repository) GetPaymentByID(ctx context.Context, paymentID uuid.UUID) (*domain.Payment, error) {
	query := fmt.Sprintf("SELECT %s FROM payments WHERE id = $1", paymentColumns)
	p, err := scanPayment(r.db.QueryRow(ctx, query, paymentID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

// CreatePaymentsForPeriod inserts the new period's payments and synchronizes
// each billed vehicle's current status to pending, all in one transaction.
// Partial creation is impossible: either every vehicle is billed or none is.
func (r *Repository) CreatePaymentsForPeriod(ctx context.Context, payments []domain.Payment) error {
	if len(payments) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	insert := fmt.Sprintf(`
		INSERT INTO payments (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`, paymentColumns)

	for _, p := range payments {
		if _, err := tx.Exec(ctx, insert,
			p.ID, p.VehicleID, p.ClientID, p.ClientName, p.VehiclePlate,
			p.PeriodKey, p.Year, p.Month, p.DueDay,
			p.AmountDue, p.AmountPaid, p.Status, p.DaysLate,
			p.MonthsOverdue, p.AmountOverdue,
			p.PaidAt, p.PaymentMethod, p.ArchivedAt,
			p.CreatedBy, p.CreatedAt, p.UpdatedAt,
		); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx,
			"UPDATE vehicles SET current_status = $1, updated_at = NOW() WHERE id = $2",
			domain.StatusPending, p.VehicleID,
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// PromotePaymentsLate marks the given payments late and mirrors the late
// status onto their vehicles in one transaction.
func (r *Repository) PromotePaymentsLate(ctx context.Context, promotions []domain.LatePromotion, promotedAt time.Time) error {
	if len(promotions) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, promo := range promotions {
		if _, err := tx.Exec(ctx, `
			UPDATE payments
			SET status = $1, days_late = $2, updated_at = $3
			WHERE id = $4 AND status = $5
		`, domain.StatusLate, promo.DaysLate, promotedAt, promo.PaymentID, domain.StatusPending); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx,
			"UPDATE vehicles SET current_status = $1, updated_at = $2 WHERE id = $3",
			domain.StatusLate, promotedAt, promo.VehicleID,
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// ReclassifyPaymentsHistorical moves the given payments to the terminal
// historical state, stamping the archive time. Status-only: amounts and
// vehicle linkage are untouched.
func (r *Repository) ReclassifyPaymentsHistorical(ctx context.Context, paymentIDs []uuid.UUID, archivedAt time.Time) error {
	if len(paymentIDs) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE payments
		SET status = $1, archived_at = $2, updated_at = $2
		WHERE id = ANY($3) AND status <> $4
	`, domain.StatusLateHistorical, archivedAt, paymentIDs, domain.StatusPaid); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// UpsertPeriodSnapshot writes the closing totals for a period. Re-archiving
// the same period overwrites the snapshot.
func (r *Repository) UpsertPeriodSnapshot(ctx context.Context, snap domain.PeriodSnapshot) error {
	query := `
		INSERT INTO period_snapshots (period_key, payment_count, paid_count, late_count, amount_overdue_total, archived_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (period_key) DO UPDATE
		SET payment_count = EXCLUDED.payment_count,
		    paid_count = EXCLUDED.paid_count,
		    late_count = EXCLUDED.late_count,
		    amount_overdue_total = EXCLUDED.amount_overdue_total,
		    archived_at = EXCLUDED.archived_at
	`
	_, err := r.db.Exec(ctx, query,
		snap.PeriodKey, snap.PaymentCount, snap.PaidCount, snap.LateCount,
		snap.AmountOverdueTotal, snap.ArchivedAt,
	)
	return err
}

// GetPeriodSnapshot fetches the closing snapshot of an archived period.
func (r *Repository) GetPeriodSnapshot(ctx context.Context, periodKey string) (*domain.PeriodSnapshot, error) {
	var snap domain.PeriodSnapshot
	query := `
		SELECT period_key, payment_count, paid_count, late_count, amount_overdue_total, archived_at
		FROM period_snapshots
		WHERE period_key = $1
	`
	err := r.db.QueryRow(ctx, query, periodKey).Scan(
		&snap.PeriodKey, &snap.PaymentCount, &snap.PaidCount, &snap.LateCount,
		&snap.AmountOverdueTotal, &snap.ArchivedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}
	return &snap, nil
}

// MarkPaymentPaid confirms a payment and mirrors the paid status onto its
// vehicle in one transaction. Confirmation is legal from any non-paid state,
// including archived historical debts.
func (r *Repository) MarkPaymentPaid(ctx context.Context, paymentID uuid.UUID, amountPaid int64, method string, paidAt time.Time) (*domain.Payment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf(`
		UPDATE payments
		SET status = $1, amount_paid = $2, payment_method = $3, paid_at = $4, updated_at = $4
		WHERE id = $5 AND status <> $6
		RETURNING %s
	`, paymentColumns)

	p, err := scanPayment(tx.QueryRow(ctx, query,
		domain.StatusPaid, amountPaid, method, paidAt, paymentID, domain.StatusPaid,
	))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}

	// The vehicle mirror only tracks the current period; confirming an
	// archived historical debt leaves it alone.
	if p.ArchivedAt == nil {
		if _, err := tx.Exec(ctx,
			"UPDATE vehicles SET current_status = $1, updated_at = $2 WHERE id = $3",
			domain.StatusPaid, paidAt, p.VehicleID,
		); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &p, nil
}

// MarkPaymentPending reverts a confirmed payment back to the unpaid state it
// belongs in (late when its due day has already passed, pending otherwise)
// and clears the confirmation fields, mirroring the vehicle in the same
// transaction.
func (r *Repository) MarkPaymentPending(ctx context.Context, paymentID uuid.UUID, today time.Time) (*domain.Payment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	current, err := scanPayment(tx.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM payments WHERE id = $1 FOR UPDATE", paymentColumns), paymentID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	if current.Status != domain.StatusPaid {
		return nil, ErrInvalidStatus
	}

	status := domain.StatusPending
	daysLate := 0
	if today.Day() > current.DueDay {
		status = domain.StatusLate
		daysLate = today.Day() - current.DueDay
	}

	query := fmt.Sprintf(`
		UPDATE payments
		SET status = $1, days_late = $2, amount_paid = 0, payment_method = NULL, paid_at = NULL, updated_at = $3
		WHERE id = $4
		RETURNING %s
	`, paymentColumns)

	p, err := scanPayment(tx.QueryRow(ctx, query, status, daysLate, today, paymentID))
	if err != nil {
		return nil, err
	}

	if p.ArchivedAt == nil {
		if _, err := tx.Exec(ctx,
			"UPDATE vehicles SET current_status = $1, updated_at = $2 WHERE id = $3",
			status, today, p.VehicleID,
		); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &p, nil
}

// AppendRunLog inserts one execution log entry. Entries are append-only.
func (r *Repository) AppendRunLog(ctx context.Context, kind domain.RunKind, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx,
		"INSERT INTO run_log (kind, payload, created_at) VALUES ($1, $2, NOW())",
		kind, body,
	)
	return err
}

// ListRunLogs fetches the most recent execution log entries.
func (r *Repository) ListRunLogs(ctx context.Context, limit int) ([]domain.RunLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx,
		"SELECT id, kind, payload, created_at FROM run_log ORDER BY id DESC LIMIT $1", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.RunLogEntry
	for rows.Next() {
		var e domain.RunLogEntry
		if err := rows.Scan(&e.ID, &e.Kind, &e.Payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
