package leaveerrors

import (
	"fmt"
	"net/http"

	"go-hrms/internal/shared/apperror"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidLeaveID = apperror.New(
		apperror.CodeInvalidInput,
		"invalid leave id",
		http.StatusBadRequest,
	)
	ErrInvalidEmployeeID = apperror.New(
		apperror.CodeInvalidInput,
		"invalid employee id",
		http.StatusBadRequest,
	)
	ErrInvalidDateFormat = apperror.New(
		apperror.CodeInvalidInput,
		"invalid date format, expected YYYY-MM-DD",
		http.StatusBadRequest,
	)
	ErrInvalidDateRange = apperror.New(
		apperror.CodeInvalidInput,
		"end_date must be on or after start_date",
		http.StatusBadRequest,
	)
	ErrStartDateInPast = apperror.New(
		apperror.CodeInvalidInput,
		"start_date cannot be in the past",
		http.StatusBadRequest,
	)
	ErrInvalidLeaveType = apperror.New(
		apperror.CodeInvalidInput,
		"invalid leave type",
		http.StatusBadRequest,
	)
	ErrInvalidStatus = apperror.New(
		apperror.CodeInvalidInput,
		"invalid leave status",
		http.StatusBadRequest,
	)
	ErrHalfDayPeriodRequired = apperror.New(
		apperror.CodeInvalidInput,
		"half_day_period must be morning or afternoon for a half-day request",
		http.StatusBadRequest,
	)
	ErrInvalidReason = apperror.New(
		apperror.CodeInvalidInput,
		"reason must be between 10 and 500 characters",
		http.StatusBadRequest,
	)
	ErrRejectionReasonRequired = apperror.New(
		apperror.CodeInvalidInput,
		"rejection_reason must be between 10 and 500 characters",
		http.StatusBadRequest,
	)
	ErrInvalidYear = apperror.New(
		apperror.CodeInvalidInput,
		"invalid year",
		http.StatusBadRequest,
	)
	ErrReturnBeforeStart = apperror.New(
		apperror.CodeInvalidInput,
		"actual_return_date cannot be before start_date",
		http.StatusBadRequest,
	)
	ErrLeaveOverlap = apperror.New(
		apperror.CodeConflict,
		"leave already exists in overlapping period",
		http.StatusConflict,
	)
	ErrLeaveNotFound = apperror.New(
		apperror.CodeNotFound,
		"leave not found",
		http.StatusNotFound,
	)
	ErrNotPending = apperror.New(
		apperror.CodeInvalidState,
		"only pending leave requests can be changed",
		http.StatusBadRequest,
	)
	ErrCannotCancel = apperror.New(
		apperror.CodeInvalidState,
		"leave request cannot be cancelled",
		http.StatusBadRequest,
	)
	ErrNotApproved = apperror.New(
		apperror.CodeInvalidState,
		"return can only be recorded for approved leave",
		http.StatusBadRequest,
	)
	ErrNotOwner = apperror.New(
		apperror.CodeForbidden,
		"you can only act on your own leave requests",
		http.StatusForbidden,
	)
	ErrForbidden = apperror.New(
		apperror.CodeForbidden,
		"you do not have permission to perform this action",
		http.StatusForbidden,
	)
)

type BalanceShortfall struct {
	Available float64 `json:"available"`
	Requested float64 `json:"requested"`
}

// NewInsufficientBalance reports both the remaining and the requested days.
func NewInsufficientBalance(available, requested decimal.Decimal) *apperror.AppError {
	err := apperror.New(
		apperror.CodeInsufficientBalance,
		fmt.Sprintf("Insufficient leave balance. Available: %s days, Requested: %s days", available.String(), requested.String()),
		http.StatusBadRequest,
	)
	return err.WithDetails(BalanceShortfall{
		Available: available.InexactFloat64(),
		Requested: requested.InexactFloat64(),
	})
}
