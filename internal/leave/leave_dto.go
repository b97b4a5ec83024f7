package leave

import (
	"time"

	"go-hrms/internal/rbac"
)

// Actor is the authenticated caller as seen by the workflow.
type Actor struct {
	UserID string
	Role   rbac.Role
}

type CreateLeaveRequest struct {
	EmployeeID       string         `json:"employee_id" binding:"omitempty,uuid"`
	LeaveType        string         `json:"leave_type" binding:"required,oneof=annual sick personal maternity paternity emergency bereavement study unpaid"`
	StartDate        string         `json:"start_date" binding:"required"`
	EndDate          string         `json:"end_date" binding:"required"`
	IsHalfDay        bool           `json:"is_half_day"`
	HalfDayPeriod    string         `json:"half_day_period" binding:"omitempty,oneof=morning afternoon"`
	Reason           string         `json:"reason" binding:"required,min=10,max=500"`
	EmergencyContact map[string]any `json:"emergency_contact" binding:"omitempty,max=10"`
	HandoverNotes    string         `json:"handover_notes" binding:"omitempty,max=1000"`
	Attachments      []string       `json:"attachments" binding:"omitempty,max=10,dive,max=500"`
}

// UpdateLeaveRequest is a patch: nil fields are left unchanged.
type UpdateLeaveRequest struct {
	LeaveType        *string        `json:"leave_type" binding:"omitempty,oneof=annual sick personal maternity paternity emergency bereavement study unpaid"`
	StartDate        *string        `json:"start_date"`
	EndDate          *string        `json:"end_date"`
	IsHalfDay        *bool          `json:"is_half_day"`
	HalfDayPeriod    *string        `json:"half_day_period" binding:"omitempty,oneof=morning afternoon"`
	Reason           *string        `json:"reason" binding:"omitempty,min=10,max=500"`
	EmergencyContact map[string]any `json:"emergency_contact" binding:"omitempty,max=10"`
	HandoverNotes    *string        `json:"handover_notes" binding:"omitempty,max=1000"`
	Attachments      *[]string      `json:"attachments" binding:"omitempty,max=10"`
}

type RejectLeaveRequest struct {
	RejectionReason string `json:"rejection_reason"`
}

type ReturnLeaveRequest struct {
	ActualReturnDate string `json:"actual_return_date" binding:"required"`
}

type ListLeavesQuery struct {
	Page       int    `form:"page" binding:"omitempty,min=1"`
	Limit      int    `form:"limit" binding:"omitempty,min=1,max=100"`
	Status     string `form:"status" binding:"omitempty,oneof=pending approved rejected cancelled"`
	LeaveType  string `form:"leave_type" binding:"omitempty,oneof=annual sick personal maternity paternity emergency bereavement study unpaid"`
	EmployeeID string `form:"employee_id" binding:"omitempty,uuid"`
	Search     string `form:"search" binding:"omitempty,max=100"`
	SortBy     string `form:"sort_by" binding:"omitempty,oneof=created_at start_date end_date status leave_type total_days"`
	SortOrder  string `form:"sort_order" binding:"omitempty,oneof=asc desc"`
}

type LeaveResponse struct {
	ID               string         `json:"id"`
	EmployeeID       string         `json:"employee_id"`
	UserID           string         `json:"user_id"`
	LeaveType        string         `json:"leave_type"`
	StartDate        string         `json:"start_date"`
	EndDate          string         `json:"end_date"`
	TotalDays        float64        `json:"total_days"`
	IsHalfDay        bool           `json:"is_half_day"`
	HalfDayPeriod    *string        `json:"half_day_period,omitempty"`
	Reason           string         `json:"reason"`
	Status           string         `json:"status"`
	ApprovedBy       *string        `json:"approved_by,omitempty"`
	ApprovedAt       *string        `json:"approved_at,omitempty"`
	RejectionReason  *string        `json:"rejection_reason,omitempty"`
	EmergencyContact map[string]any `json:"emergency_contact,omitempty"`
	HandoverNotes    *string        `json:"handover_notes,omitempty"`
	Attachments      []string       `json:"attachments"`
	ReturnDate       string         `json:"return_date"`
	ActualReturnDate *string        `json:"actual_return_date,omitempty"`
	CanBeCancelled   bool           `json:"can_be_cancelled"`
	CreatedAt        string         `json:"created_at"`
	UpdatedAt        string         `json:"updated_at"`
}

type BalanceResponse struct {
	LeaveType string  `json:"leave_type"`
	Entitled  float64 `json:"entitled"`
	Used      float64 `json:"used"`
	Remaining float64 `json:"remaining"`
}

type EmployeeBalanceResponse struct {
	EmployeeID string            `json:"employee_id"`
	Year       int               `json:"year"`
	Balances   []BalanceResponse `json:"balances"`
}

type StatsResponse struct {
	Year          int              `json:"year"`
	TotalLeaves   int64            `json:"total_leaves"`
	ByStatus      map[string]int64 `json:"by_status"`
	ByType        map[string]int64 `json:"by_type"`
	PendingLeaves int64            `json:"pending_leaves"`
}

func mapToResponse(l Leave, now time.Time) LeaveResponse {
	resp := LeaveResponse{
		ID:               l.ID.String(),
		EmployeeID:       l.EmployeeID.String(),
		UserID:           l.UserID.String(),
		LeaveType:        string(l.LeaveType),
		StartDate:        l.StartDate.Format(dateLayout),
		EndDate:          l.EndDate.Format(dateLayout),
		TotalDays:        l.TotalDays.InexactFloat64(),
		IsHalfDay:        l.IsHalfDay,
		Reason:           l.Reason,
		Status:           string(l.Status),
		RejectionReason:  l.RejectionReason,
		EmergencyContact: l.EmergencyContact,
		HandoverNotes:    l.HandoverNotes,
		Attachments:      []string(l.Attachments),
		ReturnDate:       l.ReturnDate.Format(dateLayout),
		CanBeCancelled:   l.CanBeCancelled(now),
		CreatedAt:        l.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        l.UpdatedAt.Format(time.RFC3339),
	}
	if resp.Attachments == nil {
		resp.Attachments = []string{}
	}
	if l.HalfDayPeriod != nil {
		v := string(*l.HalfDayPeriod)
		resp.HalfDayPeriod = &v
	}
	if l.ApprovedBy != nil {
		v := l.ApprovedBy.String()
		resp.ApprovedBy = &v
	}
	if l.ApprovedAt != nil {
		v := l.ApprovedAt.Format(time.RFC3339)
		resp.ApprovedAt = &v
	}
	if l.ActualReturnDate != nil {
		v := l.ActualReturnDate.Format(dateLayout)
		resp.ActualReturnDate = &v
	}
	return resp
}

func mapToListResponse(leaves []Leave, now time.Time) []LeaveResponse {
	resp := make([]LeaveResponse, len(leaves))
	for i, l := range leaves {
		resp[i] = mapToResponse(l, now)
	}
	return resp
}

func mapToBalanceResponses(balances []Balance) []BalanceResponse {
	out := make([]BalanceResponse, len(balances))
	for i, b := range balances {
		out[i] = BalanceResponse{
			LeaveType: string(b.LeaveType),
			Entitled:  b.Entitled.InexactFloat64(),
			Used:      b.Used.InexactFloat64(),
			Remaining: b.Remaining.InexactFloat64(),
		}
	}
	return out
}
