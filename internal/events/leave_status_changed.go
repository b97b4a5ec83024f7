package events

import "time"

const LeaveLifecycleTopic = "hr.leave.lifecycle.v1"

const LeaveStatusChangedType = "leave.status_changed"

// LeaveStatusChangedEvent is published whenever a leave request is created
// or moves between statuses. FromStatus is empty on creation.
type LeaveStatusChangedEvent struct {
	EventType       string    `json:"event_type"`
	RequestID       string    `json:"request_id,omitempty"`
	LeaveID         string    `json:"leave_id"`
	EmployeeID      string    `json:"employee_id"`
	RequesterUserID string    `json:"requester_user_id"`
	ActorUserID     string    `json:"actor_user_id"`
	LeaveType       string    `json:"leave_type"`
	FromStatus      string    `json:"from_status,omitempty"`
	ToStatus        string    `json:"to_status"`
	StartDate       string    `json:"start_date"`
	EndDate         string    `json:"end_date"`
	TotalDays       string    `json:"total_days"`
	RejectionReason string    `json:"rejection_reason,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}
