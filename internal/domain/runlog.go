/**
 * @description
 * Append-only execution log for engine runs. Entries are observational only;
 * the engine never reads them back.
 */
package domain

import (
	"encoding/json"
	"time"
)

// RunKind classifies an execution log entry.
type RunKind string

const (
	// RunPeriodStart records a successful period initiation.
	RunPeriodStart RunKind = "period_start"
	// RunPeriodStartError records a failed period initiation.
	RunPeriodStartError RunKind = "period_start_error"
	// RunMidPeriodReport records a tick that found the period already
	// started (the idempotency short-circuit) along with promotion counts.
	RunMidPeriodReport RunKind = "mid_period_report"
)

// RunLogEntry is one appended engine-run record.
type RunLogEntry struct {
	ID        int64           `json:"id"`
	Kind      RunKind         `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}
