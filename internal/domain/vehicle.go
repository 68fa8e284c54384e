/**
 * @description
 * Vehicle model as seen by the billing engine. Vehicles are owned by the
 * registration flow; the engine only reads them and mirrors the latest
 * payment status onto CurrentStatus for display.
 */
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Vehicle is a tracked vehicle with its recurring billing terms.
type Vehicle struct {
	ID            uuid.UUID     `json:"id"`
	ClientID      uuid.UUID     `json:"client_id"`
	ClientName    string        `json:"client_name"`
	Plate         string        `json:"plate"`
	Model         string        `json:"model"`
	FeeAmount     int64         `json:"fee_amount"`
	DueDay        int           `json:"due_day"`
	Active        bool          `json:"active"`
	CurrentStatus PaymentStatus `json:"current_status"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}
