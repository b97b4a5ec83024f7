package leave

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const dateLayout = "2006-01-02"

var halfDay = decimal.New(5, -1)

type Leave struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	EmployeeID uuid.UUID `gorm:"type:uuid;not null;index:idx_leaves_employee_dates"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;index"`

	LeaveType     LeaveType       `gorm:"type:varchar(20);not null"`
	StartDate     time.Time       `gorm:"type:date;not null;index:idx_leaves_employee_dates"`
	EndDate       time.Time       `gorm:"type:date;not null;index:idx_leaves_employee_dates"`
	TotalDays     decimal.Decimal `gorm:"type:numeric(5,1);not null"`
	IsHalfDay     bool            `gorm:"not null;default:false"`
	HalfDayPeriod *HalfDayPeriod  `gorm:"type:varchar(10)"`
	Reason        string          `gorm:"type:text;not null"`

	Status          Status     `gorm:"type:varchar(20);not null;default:'pending';index"`
	ApprovedBy      *uuid.UUID `gorm:"type:uuid"`
	ApprovedAt      *time.Time
	RejectionReason *string `gorm:"type:text"`

	EmergencyContact datatypes.JSONMap           `gorm:"type:jsonb"`
	HandoverNotes    *string                     `gorm:"type:text"`
	Attachments      datatypes.JSONSlice[string] `gorm:"type:jsonb"`

	ReturnDate       time.Time  `gorm:"type:date;not null"`
	ActualReturnDate *time.Time `gorm:"type:date"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Leave) TableName() string { return "leaves" }

// ComputeTotalDays counts calendar days inclusively. A half-day request that
// spans exactly one day counts as 0.5.
func ComputeTotalDays(start, end time.Time, isHalfDay bool) decimal.Decimal {
	days := int64(dateOnly(end).Sub(dateOnly(start)).Hours()/24) + 1
	if isHalfDay && days == 1 {
		return halfDay
	}
	return decimal.NewFromInt(days)
}

// ComputeReturnDate is the first day back at work.
func ComputeReturnDate(end time.Time) time.Time {
	return dateOnly(end).AddDate(0, 0, 1)
}

// applySchedule recomputes derived fields after start, end or half-day change.
func (l *Leave) applySchedule() {
	l.StartDate = dateOnly(l.StartDate)
	l.EndDate = dateOnly(l.EndDate)
	l.TotalDays = ComputeTotalDays(l.StartDate, l.EndDate, l.IsHalfDay)
	l.ReturnDate = ComputeReturnDate(l.EndDate)
	if !l.IsSingleHalfDay() {
		l.HalfDayPeriod = nil
	}
}

func (l *Leave) IsSingleHalfDay() bool {
	return l.IsHalfDay && dateOnly(l.StartDate).Equal(dateOnly(l.EndDate))
}

func (l *Leave) IsOwnedBy(employeeID uuid.UUID) bool {
	return l.EmployeeID == employeeID
}

func (l *Leave) CanBeApproved() bool {
	return l.Status == StatusPending
}

// CanBeCancelled requires an active status and a start date after today.
func (l *Leave) CanBeCancelled(now time.Time) bool {
	return l.Status.Active() && dateOnly(l.StartDate).After(dateOnly(now))
}

func (l *Leave) approve(approver uuid.UUID, at time.Time) {
	l.Status = StatusApproved
	l.ApprovedBy = &approver
	l.ApprovedAt = &at
	l.RejectionReason = nil
}

func (l *Leave) reject(approver uuid.UUID, at time.Time, reason string) {
	l.Status = StatusRejected
	l.ApprovedBy = &approver
	l.ApprovedAt = &at
	l.RejectionReason = &reason
}

func (l *Leave) cancel() {
	l.Status = StatusCancelled
}

// dateOnly truncates t to midnight UTC of its calendar date.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func parseDate(v string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, v, time.UTC)
}
