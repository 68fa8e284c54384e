/**
 * @description
 * The billing engine: the recurring job that promotes overdue payments,
 * archives the outgoing period and initiates the new one. All store access
 * goes through the narrow interfaces below so the engine can be exercised
 * against in-memory stubs.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rastrotech/billing-service/internal/domain"
)

// ErrPeriodStartBusy is returned when a period-start run is already in
// flight in this process. Overlapping ticks still run the overdue promoter,
// which is safe to overlap with anything.
var ErrPeriodStartBusy = errors.New("period start already in progress")

// VehicleRegistry is the engine's view of the vehicle store.
type VehicleRegistry interface {
	ListActiveVehicles(ctx context.Context) ([]domain.Vehicle, error)
}

// PaymentLedger is the engine's view of the payment store. Every
// multi-record mutation is a single atomic batch: a failed call leaves prior
// state fully intact.
type PaymentLedger interface {
	HasPaymentsForPeriod(ctx context.Context, periodKey string) (bool, error)
	PaymentsByPeriod(ctx context.Context, periodKey string) ([]domain.Payment, error)
	UnresolvedPayments(ctx context.Context) ([]domain.Payment, error)
	CreatePaymentsForPeriod(ctx context.Context, payments []domain.Payment) error
	PromotePaymentsLate(ctx context.Context, promotions []domain.LatePromotion, promotedAt time.Time) error
	ReclassifyPaymentsHistorical(ctx context.Context, paymentIDs []uuid.UUID, archivedAt time.Time) error
	UpsertPeriodSnapshot(ctx context.Context, snap domain.PeriodSnapshot) error
}

// ExecutionLog is the append-only run log. Writes are fire-and-forget: a
// failure here must never fail the run that produced the entry.
type ExecutionLog interface {
	AppendRunLog(ctx context.Context, kind domain.RunKind, payload interface{}) error
}

// EventPublisher defines the interface for publishing billing events.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, body interface{}) error
}

// Engine runs the monthly billing cycle.
type Engine struct {
	registry  VehicleRegistry
	ledger    PaymentLedger
	runlog    ExecutionLog
	publisher EventPublisher
	logger    *slog.Logger
	loc       *time.Location
	now       func() time.Time

	periodStartActive atomic.Bool
}

// NewEngine creates a billing engine. An invalid timezone falls back to UTC.
func NewEngine(registry VehicleRegistry, ledger PaymentLedger, runlog ExecutionLog, publisher EventPublisher, logger *slog.Logger, timezone string) *Engine {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		logger.Warn("invalid timezone, defaulting to UTC", "timezone", timezone)
		loc = time.UTC
	}

	return &Engine{
		registry:  registry,
		ledger:    ledger,
		runlog:    runlog,
		publisher: publisher,
		logger:    logger,
		loc:       loc,
		now:       time.Now,
	}
}

// StartPeriodInput selects which period to start and who asked for it.
// Month and Year are zero on the scheduled path, which targets the current
// calendar month and archives the one before it. An admin force-start names
// an explicit month and skips archival so an arbitrary target can never
// archive the wrong period.
type StartPeriodInput struct {
	Month int
	Year  int
	Actor string
}

// PeriodStartResult summarizes one StartPeriod call.
type PeriodStartResult struct {
	PeriodKey      string `json:"period_key"`
	AlreadyStarted bool   `json:"already_started"`
	Created        int    `json:"created"`
}

// TickResult summarizes one engine tick.
type TickResult struct {
	Promoted           int    `json:"promoted"`
	PeriodKey          string `json:"period_key"`
	Created            int    `json:"created"`
	AlreadyStarted     bool   `json:"already_started"`
	PeriodStartSkipped bool   `json:"period_start_skipped"`
}

type periodStartPayload struct {
	PeriodKey string `json:"period_key"`
	Created   int    `json:"created"`
	Actor     string `json:"actor,omitempty"`
}

type periodStartErrorPayload struct {
	PeriodKey string `json:"period_key"`
	Phase     string `json:"phase"`
	Error     string `json:"error"`
}

type midPeriodPayload struct {
	PeriodKey string `json:"period_key"`
	Promoted  int    `json:"promoted"`
}

// RunTick executes one engine tick: the overdue promoter always runs, and a
// period start for the current month is attempted afterwards. The two are
// independent failure domains; a promoter error never blocks period start
// and vice versa. Errors are logged and retried naturally on the next tick.
func (e *Engine) RunTick(ctx context.Context) TickResult {
	var res TickResult

	promo, err := e.PromoteOverdue(ctx)
	if err != nil {
		e.logger.Error("overdue promotion failed", "error", err)
	} else {
		res.Promoted = promo.Promoted
	}

	start, err := e.StartPeriod(ctx, StartPeriodInput{Actor: domain.CreatorSystem})
	switch {
	case errors.Is(err, ErrPeriodStartBusy):
		e.logger.Info("period start already in progress, tick ran promoter only")
		res.PeriodStartSkipped = true
	case err != nil:
		e.logger.Error("period start failed", "error", err)
	default:
		res.PeriodKey = start.PeriodKey
		res.Created = start.Created
		res.AlreadyStarted = start.AlreadyStarted
		if start.AlreadyStarted {
			e.appendRunLog(ctx, domain.RunMidPeriodReport, midPeriodPayload{
				PeriodKey: start.PeriodKey,
				Promoted:  res.Promoted,
			})
		}
	}

	return res
}

// StartPeriod initiates a billing period: it archives the preceding period
// (scheduled path only), folds unpaid history into per-vehicle arrears and
// creates exactly one pending payment per active vehicle, all behind the
// at-most-one-payment-per-period idempotency guard. Safe to invoke
// repeatedly; a period that already has payments short-circuits with
// AlreadyStarted and zero writes.
func (e *Engine) StartPeriod(ctx context.Context, in StartPeriodInput) (*PeriodStartResult, error) {
	if !e.periodStartActive.CompareAndSwap(false, true) {
		return nil, ErrPeriodStartBusy
	}
	defer e.periodStartActive.Store(false)

	return e.startPeriod(ctx, in)
}

func (e *Engine) startPeriod(ctx context.Context, in StartPeriodInput) (*PeriodStartResult, error) {
	now := e.now().In(e.loc)
	target := domain.PeriodOf(now)
	scheduled := in.Month == 0 && in.Year == 0
	if !scheduled {
		target = domain.Period{Year: in.Year, Month: time.Month(in.Month)}
	}
	key := target.Key()

	exists, err := e.ledger.HasPaymentsForPeriod(ctx, key)
	if err != nil {
		return nil, e.failPeriodStart(ctx, key, "guard", err)
	}
	if exists {
		e.logger.Info("period already started, nothing to create", "period", key)
		return &PeriodStartResult{PeriodKey: key, AlreadyStarted: true}, nil
	}

	if scheduled {
		if _, err := e.ArchivePeriod(ctx, target.Previous()); err != nil {
			return nil, e.failPeriodStart(ctx, key, "archive", err)
		}
	}

	unresolved, err := e.ledger.UnresolvedPayments(ctx)
	if err != nil {
		return nil, e.failPeriodStart(ctx, key, "arrears", err)
	}
	arrears := ComputeArrears(unresolved, target.Index())

	vehicles, err := e.registry.ListActiveVehicles(ctx)
	if err != nil {
		return nil, e.failPeriodStart(ctx, key, "vehicles", err)
	}

	actor := in.Actor
	if actor == "" {
		actor = domain.CreatorSystem
	}

	payments := make([]domain.Payment, 0, len(vehicles))
	for _, v := range vehicles {
		a := arrears.For(v.ID)
		payments = append(payments, domain.Payment{
			ID:            uuid.New(),
			VehicleID:     v.ID,
			ClientID:      v.ClientID,
			ClientName:    v.ClientName,
			VehiclePlate:  v.Plate,
			PeriodKey:     key,
			Year:          target.Year,
			Month:         int(target.Month),
			DueDay:        v.DueDay,
			AmountDue:     v.FeeAmount,
			Status:        domain.StatusPending,
			MonthsOverdue: a.MonthsOverdue,
			AmountOverdue: a.AmountOverdue,
			CreatedBy:     actor,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}

	if len(payments) > 0 {
		if err := e.ledger.CreatePaymentsForPeriod(ctx, payments); err != nil {
			return nil, e.failPeriodStart(ctx, key, "create", err)
		}
	}

	e.appendRunLog(ctx, domain.RunPeriodStart, periodStartPayload{PeriodKey: key, Created: len(payments), Actor: actor})
	e.publishEvent(ctx, "billing.period_started", periodStartPayload{PeriodKey: key, Created: len(payments), Actor: actor})
	e.logger.Info("billing period started", "period", key, "created", len(payments))

	return &PeriodStartResult{PeriodKey: key, Created: len(payments)}, nil
}

func (e *Engine) failPeriodStart(ctx context.Context, periodKey, phase string, err error) error {
	e.appendRunLog(ctx, domain.RunPeriodStartError, periodStartErrorPayload{
		PeriodKey: periodKey,
		Phase:     phase,
		Error:     err.Error(),
	})
	return fmt.Errorf("period start %s, phase %s: %w", periodKey, phase, err)
}

func (e *Engine) appendRunLog(ctx context.Context, kind domain.RunKind, payload interface{}) {
	if e.runlog == nil {
		return
	}
	if err := e.runlog.AppendRunLog(ctx, kind, payload); err != nil {
		e.logger.Warn("failed to append run log entry", "kind", kind, "error", err)
	}
}

func (e *Engine) publishEvent(ctx context.Context, routingKey string, body interface{}) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, routingKey, body); err != nil {
		e.logger.Warn("failed to publish billing event", "routing_key", routingKey, "error", err)
	}
}
