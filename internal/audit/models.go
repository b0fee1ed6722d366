package audit

import (
	"time"

	id "shiftgate/pkg/domain"
)

// Action identifies what happened. Kept as plain strings so sinks can store
// them without mapping tables.
const (
	ActionEmployeeCreated      = "employee.created"
	ActionChangeRequested      = "device.change.requested"
	ActionChangeApproved       = "device.change.approved"
	ActionChangeRejected       = "device.change.rejected"
	ActionChangeDeleted        = "device.change.deleted"
	ActionDeviceBoundImmediate = "device.bound.immediate"
	ActionAllowlistUpdated     = "allowlist.updated"
	ActionPunchDenied          = "punch.denied"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time     `json:"timestamp"`
	Actor     id.IdentityID `json:"actor"`
	Subject   id.IdentityID `json:"subject"`
	Action    string        `json:"action"`
	Detail    string        `json:"detail,omitempty"`
}
