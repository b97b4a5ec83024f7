package notification

import (
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindLeaveSubmitted Kind = "leave_submitted"
	KindLeaveApproved  Kind = "leave_approved"
	KindLeaveRejected  Kind = "leave_rejected"
	KindLeaveCancelled Kind = "leave_cancelled"
)

// Notification is an in-app message for one user about one leave request.
// (leave_id, kind, user_id) is unique so a redelivered event is a no-op.
type Notification struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index"`
	LeaveID   uuid.UUID `gorm:"type:uuid;not null"`
	Kind      Kind      `gorm:"type:varchar(32);not null"`
	Message   string    `gorm:"type:text;not null"`
	ReadAt    *time.Time
	CreatedAt time.Time
}

func (Notification) TableName() string { return "notifications" }

func (n Notification) IsRead() bool { return n.ReadAt != nil }
