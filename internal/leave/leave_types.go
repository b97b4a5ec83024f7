package leave

import (
	"fmt"
	"strings"
)

type LeaveType string

const (
	TypeAnnual      LeaveType = "annual"
	TypeSick        LeaveType = "sick"
	TypePersonal    LeaveType = "personal"
	TypeMaternity   LeaveType = "maternity"
	TypePaternity   LeaveType = "paternity"
	TypeEmergency   LeaveType = "emergency"
	TypeBereavement LeaveType = "bereavement"
	TypeStudy       LeaveType = "study"
	TypeUnpaid      LeaveType = "unpaid"
)

var leaveTypes = []LeaveType{
	TypeAnnual,
	TypeSick,
	TypePersonal,
	TypeMaternity,
	TypePaternity,
	TypeEmergency,
	TypeBereavement,
	TypeStudy,
	TypeUnpaid,
}

func LeaveTypes() []LeaveType {
	out := make([]LeaveType, len(leaveTypes))
	copy(out, leaveTypes)
	return out
}

func ParseLeaveType(v string) (LeaveType, error) {
	t := LeaveType(strings.ToLower(strings.TrimSpace(v)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown leave type %q", v)
	}
	return t, nil
}

func (t LeaveType) Valid() bool {
	for _, known := range leaveTypes {
		if t == known {
			return true
		}
	}
	return false
}

// BalanceExempt types are not checked against the remaining entitlement at
// creation.
func (t LeaveType) BalanceExempt() bool {
	return t == TypeUnpaid
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

func ParseStatus(v string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(v)))
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCancelled:
		return s, nil
	}
	return "", fmt.Errorf("unknown leave status %q", v)
}

// Active statuses occupy calendar days for overlap purposes.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusApproved
}

func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusCancelled
}

type HalfDayPeriod string

const (
	HalfDayMorning   HalfDayPeriod = "morning"
	HalfDayAfternoon HalfDayPeriod = "afternoon"
)

func (p HalfDayPeriod) Valid() bool {
	return p == HalfDayMorning || p == HalfDayAfternoon
}
