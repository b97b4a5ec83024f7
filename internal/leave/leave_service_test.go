package leave_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go-hrms/internal/employee"
	employeeerrors "go-hrms/internal/employee/errors"
	employeemock "go-hrms/internal/employee/mock"
	"go-hrms/internal/events"
	"go-hrms/internal/leave"
	leaveerrors "go-hrms/internal/leave/errors"
	"go-hrms/internal/messaging/kafka"
	kafkamock "go-hrms/internal/messaging/kafka/mock"
	"go-hrms/internal/rbac"
	"go-hrms/internal/rbac/infra"
	"go-hrms/internal/shared/apperror"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

type fakeLeaveRepository struct {
	withTxFn            func(tx *sql.Tx) leave.Repository
	lockEmployeeFn      func(ctx context.Context, employeeID string) error
	createFn            func(ctx context.Context, l *leave.Leave) error
	findByIDFn          func(ctx context.Context, id string) (*leave.Leave, error)
	findByIDForUpdateFn func(ctx context.Context, id string) (*leave.Leave, error)
	findAllFn           func(ctx context.Context, f leave.ListFilter) ([]leave.Leave, int64, error)
	updateFn            func(ctx context.Context, l *leave.Leave) error
	findActiveInRangeFn func(ctx context.Context, employeeID string, start, end time.Time) ([]leave.Leave, error)
	sumApprovedDaysFn   func(ctx context.Context, employeeID string, t leave.LeaveType, from, to time.Time) (decimal.Decimal, error)
	countByStatusFn     func(ctx context.Context, from, to time.Time) (map[leave.Status]int64, error)
	countByTypeFn       func(ctx context.Context, from, to time.Time) (map[leave.LeaveType]int64, error)
	countPendingFn      func(ctx context.Context) (int64, error)
}

func (f *fakeLeaveRepository) WithTx(tx *sql.Tx) leave.Repository {
	if f.withTxFn != nil {
		return f.withTxFn(tx)
	}
	return f
}

func (f *fakeLeaveRepository) LockEmployee(ctx context.Context, employeeID string) error {
	if f.lockEmployeeFn != nil {
		return f.lockEmployeeFn(ctx, employeeID)
	}
	return nil
}

func (f *fakeLeaveRepository) Create(ctx context.Context, l *leave.Leave) error {
	if f.createFn != nil {
		return f.createFn(ctx, l)
	}
	return nil
}

func (f *fakeLeaveRepository) FindByID(ctx context.Context, id string) (*leave.Leave, error) {
	if f.findByIDFn != nil {
		return f.findByIDFn(ctx, id)
	}
	return nil, leaveerrors.ErrLeaveNotFound
}

func (f *fakeLeaveRepository) FindByIDForUpdate(ctx context.Context, id string) (*leave.Leave, error) {
	if f.findByIDForUpdateFn != nil {
		return f.findByIDForUpdateFn(ctx, id)
	}
	return nil, leaveerrors.ErrLeaveNotFound
}

func (f *fakeLeaveRepository) FindAll(ctx context.Context, filter leave.ListFilter) ([]leave.Leave, int64, error) {
	if f.findAllFn != nil {
		return f.findAllFn(ctx, filter)
	}
	return nil, 0, nil
}

func (f *fakeLeaveRepository) Update(ctx context.Context, l *leave.Leave) error {
	if f.updateFn != nil {
		return f.updateFn(ctx, l)
	}
	return nil
}

func (f *fakeLeaveRepository) FindActiveInRange(ctx context.Context, employeeID string, start, end time.Time) ([]leave.Leave, error) {
	if f.findActiveInRangeFn != nil {
		return f.findActiveInRangeFn(ctx, employeeID, start, end)
	}
	return nil, nil
}

func (f *fakeLeaveRepository) SumApprovedDays(ctx context.Context, employeeID string, t leave.LeaveType, from, to time.Time) (decimal.Decimal, error) {
	if f.sumApprovedDaysFn != nil {
		return f.sumApprovedDaysFn(ctx, employeeID, t, from, to)
	}
	return decimal.Zero, nil
}

func (f *fakeLeaveRepository) CountByStatus(ctx context.Context, from, to time.Time) (map[leave.Status]int64, error) {
	if f.countByStatusFn != nil {
		return f.countByStatusFn(ctx, from, to)
	}
	return map[leave.Status]int64{}, nil
}

func (f *fakeLeaveRepository) CountByType(ctx context.Context, from, to time.Time) (map[leave.LeaveType]int64, error) {
	if f.countByTypeFn != nil {
		return f.countByTypeFn(ctx, from, to)
	}
	return map[leave.LeaveType]int64{}, nil
}

func (f *fakeLeaveRepository) CountPending(ctx context.Context) (int64, error) {
	if f.countPendingFn != nil {
		return f.countPendingFn(ctx)
	}
	return 0, nil
}

type leaveServiceDeps struct {
	db        *sql.DB
	sqlMock   sqlmock.Sqlmock
	redisMock redismock.ClientMock
	repo      *fakeLeaveRepository
	employees *employeemock.MockRepository
	outbox    *kafkamock.MockOutboxRepository
	service   leave.Service
}

func setupLeaveServiceTest(t *testing.T, entitlements ...leave.Entitlements) *leaveServiceDeps {
	t.Helper()

	db, sqlMock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	enforcer, err := infra.NewEnforcer()
	assert.NoError(t, err)
	rbacService, err := rbac.NewService(enforcer, rbac.DefaultGrants)
	assert.NoError(t, err)

	ctrl := gomock.NewController(t)
	employees := employeemock.NewMockRepository(ctrl)
	outbox := kafkamock.NewMockOutboxRepository(ctrl)
	rdb, redisMock := redismock.NewClientMock()

	var table leave.Entitlements
	if len(entitlements) > 0 {
		table = entitlements[0]
	}

	repo := &fakeLeaveRepository{}
	svc := leave.NewServiceWithOutbox(
		db, repo, employees, rbacService,
		leave.NewBalanceCalculator(table),
		outbox, rdb, 30*time.Minute,
	)

	return &leaveServiceDeps{
		db:        db,
		sqlMock:   sqlMock,
		redisMock: redisMock,
		repo:      repo,
		employees: employees,
		outbox:    outbox,
		service:   svc,
	}
}

func expectTx(t *testing.T, mock sqlmock.Sqlmock, commit bool) {
	t.Helper()
	mock.ExpectBegin()
	if commit {
		mock.ExpectCommit()
	} else {
		mock.ExpectRollback()
	}
}

// expectOutbox asserts that one leave.status_changed event moving to status
// is written inside the transaction.
func expectOutbox(t *testing.T, deps *leaveServiceDeps, from, to string) {
	t.Helper()
	deps.outbox.EXPECT().WithTx(gomock.Any()).Return(deps.outbox)
	deps.outbox.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, e kafka.OutboxEvent) error {
			assert.Equal(t, events.LeaveLifecycleTopic, e.Topic)
			assert.Equal(t, events.LeaveStatusChangedType, e.EventType)
			assert.Equal(t, "leave", e.AggregateType)
			assert.Equal(t, kafka.OutboxStatusPending, e.Status)

			var payload events.LeaveStatusChangedEvent
			assert.NoError(t, json.Unmarshal(e.Payload, &payload))
			assert.Equal(t, e.AggregateID, payload.LeaveID)
			assert.Equal(t, from, payload.FromStatus)
			assert.Equal(t, to, payload.ToStatus)
			return nil
		},
	)
}

func day(offset int) string {
	return time.Now().AddDate(0, 0, offset).Format("2006-01-02")
}

func mustDate(t *testing.T, v string) time.Time {
	t.Helper()
	d, err := time.ParseInLocation("2006-01-02", v, time.UTC)
	assert.NoError(t, err)
	return d
}

func activeEmployee(userID uuid.UUID) *employee.Employee {
	return &employee.Employee{
		ID:           uuid.New(),
		UserID:       userID,
		EmployeeCode: "EMP-001",
		Status:       employee.StatusActive,
	}
}

func pendingLeave(t *testing.T, employeeID, userID uuid.UUID, start, end string) *leave.Leave {
	t.Helper()
	s, e := mustDate(t, start), mustDate(t, end)
	return &leave.Leave{
		ID:         uuid.New(),
		EmployeeID: employeeID,
		UserID:     userID,
		LeaveType:  leave.TypeAnnual,
		StartDate:  s,
		EndDate:    e,
		TotalDays:  leave.ComputeTotalDays(s, e, false),
		Reason:     "Family trip to the coast",
		Status:     leave.StatusPending,
		ReturnDate: leave.ComputeReturnDate(e),
	}
}

func createRequest(start, end string) leave.CreateLeaveRequest {
	return leave.CreateLeaveRequest{
		LeaveType: "annual",
		StartDate: start,
		EndDate:   end,
		Reason:    "Family trip to the coast",
	}
}

func TestLeaveService_Create(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	actor := leave.Actor{UserID: userID.String(), Role: rbac.RoleEmployee}

	t.Run("success", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		emp := activeEmployee(userID)
		start, end := day(10), day(12)

		deps.employees.EXPECT().FindByUserID(gomock.Any(), userID.String()).Return(emp, nil)
		expectTx(t, deps.sqlMock, true)

		var locked string
		deps.repo.lockEmployeeFn = func(ctx context.Context, employeeID string) error {
			locked = employeeID
			return nil
		}
		deps.repo.sumApprovedDaysFn = func(ctx context.Context, eid string, lt leave.LeaveType, from, to time.Time) (decimal.Decimal, error) {
			assert.Equal(t, emp.ID.String(), eid)
			assert.Equal(t, leave.TypeAnnual, lt)
			assert.Equal(t, mustDate(t, start).Year(), from.Year())
			return decimal.NewFromInt(5), nil
		}
		deps.repo.createFn = func(ctx context.Context, l *leave.Leave) error {
			assert.Equal(t, emp.ID, l.EmployeeID)
			assert.Equal(t, userID, l.UserID)
			assert.Equal(t, leave.StatusPending, l.Status)
			assert.True(t, decimal.NewFromInt(3).Equal(l.TotalDays))
			return nil
		}
		expectOutbox(t, deps, "", "pending")

		resp, err := deps.service.Create(ctx, actor, createRequest(start, end))

		assert.NoError(t, err)
		assert.Equal(t, emp.ID.String(), locked)
		assert.Equal(t, "pending", resp.Status)
		assert.Equal(t, 3.0, resp.TotalDays)
		assert.Equal(t, day(13), resp.ReturnDate)
		assert.True(t, resp.CanBeCancelled)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("start date in the past", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		deps.employees.EXPECT().FindByUserID(gomock.Any(), userID.String()).Return(activeEmployee(userID), nil)

		_, err := deps.service.Create(ctx, actor, createRequest(day(-1), day(2)))

		assert.ErrorIs(t, err, leaveerrors.ErrStartDateInPast)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("end before start", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		deps.employees.EXPECT().FindByUserID(gomock.Any(), userID.String()).Return(activeEmployee(userID), nil)

		_, err := deps.service.Create(ctx, actor, createRequest(day(5), day(4)))

		assert.ErrorIs(t, err, leaveerrors.ErrInvalidDateRange)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("overlap on shared boundary day", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		emp := activeEmployee(userID)
		deps.employees.EXPECT().FindByUserID(gomock.Any(), userID.String()).Return(emp, nil)
		expectTx(t, deps.sqlMock, false)

		existing := pendingLeave(t, emp.ID, userID, day(10), day(12))
		existing.Status = leave.StatusApproved
		deps.repo.findActiveInRangeFn = func(ctx context.Context, eid string, start, end time.Time) ([]leave.Leave, error) {
			return []leave.Leave{*existing}, nil
		}
		deps.repo.createFn = func(ctx context.Context, l *leave.Leave) error {
			t.Fatal("create must not be called on conflict")
			return nil
		}

		_, err := deps.service.Create(ctx, actor, createRequest(day(12), day(15)))

		assert.ErrorIs(t, err, leaveerrors.ErrLeaveOverlap)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("insufficient balance reports both numbers", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		deps.employees.EXPECT().FindByUserID(gomock.Any(), userID.String()).Return(activeEmployee(userID), nil)
		expectTx(t, deps.sqlMock, false)

		deps.repo.sumApprovedDaysFn = func(ctx context.Context, eid string, lt leave.LeaveType, from, to time.Time) (decimal.Decimal, error) {
			return decimal.NewFromInt(20), nil
		}

		_, err := deps.service.Create(ctx, actor, createRequest(day(10), day(12)))

		var appErr *apperror.AppError
		if assert.True(t, errors.As(err, &appErr)) {
			assert.Equal(t, apperror.CodeInsufficientBalance, appErr.Code)
			assert.Equal(t, leaveerrors.BalanceShortfall{Available: 1, Requested: 3}, appErr.Details)
		}
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("unpaid leave skips balance check", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		deps.employees.EXPECT().FindByUserID(gomock.Any(), userID.String()).Return(activeEmployee(userID), nil)
		expectTx(t, deps.sqlMock, true)

		deps.repo.sumApprovedDaysFn = func(ctx context.Context, eid string, lt leave.LeaveType, from, to time.Time) (decimal.Decimal, error) {
			t.Fatal("unpaid leave must not read the balance")
			return decimal.Zero, nil
		}
		expectOutbox(t, deps, "", "pending")

		req := createRequest(day(10), day(40))
		req.LeaveType = "unpaid"
		resp, err := deps.service.Create(ctx, actor, req)

		assert.NoError(t, err)
		assert.Equal(t, 31.0, resp.TotalDays)
	})

	t.Run("single day half-day counts half", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		deps.employees.EXPECT().FindByUserID(gomock.Any(), userID.String()).Return(activeEmployee(userID), nil)
		expectTx(t, deps.sqlMock, true)
		expectOutbox(t, deps, "", "pending")

		req := createRequest(day(7), day(7))
		req.IsHalfDay = true
		req.HalfDayPeriod = "morning"
		resp, err := deps.service.Create(ctx, actor, req)

		assert.NoError(t, err)
		assert.Equal(t, 0.5, resp.TotalDays)
		if assert.NotNil(t, resp.HalfDayPeriod) {
			assert.Equal(t, "morning", *resp.HalfDayPeriod)
		}
	})

	t.Run("half-day without period", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		deps.employees.EXPECT().FindByUserID(gomock.Any(), userID.String()).Return(activeEmployee(userID), nil)

		req := createRequest(day(7), day(7))
		req.IsHalfDay = true
		_, err := deps.service.Create(ctx, actor, req)

		assert.ErrorIs(t, err, leaveerrors.ErrHalfDayPeriodRequired)
	})

	t.Run("employee cannot file for someone else", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		deps.employees.EXPECT().FindByUserID(gomock.Any(), userID.String()).Return(activeEmployee(userID), nil)

		req := createRequest(day(10), day(12))
		req.EmployeeID = uuid.NewString()
		_, err := deps.service.Create(ctx, actor, req)

		assert.ErrorIs(t, err, leaveerrors.ErrNotOwner)
	})

	t.Run("hr files on behalf of an employee", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		hrUser := uuid.New()
		target := activeEmployee(uuid.New())

		deps.employees.EXPECT().FindByUserID(gomock.Any(), hrUser.String()).Return(nil, employeeerrors.ErrEmployeeNotFound)
		deps.employees.EXPECT().FindByID(gomock.Any(), target.ID.String()).Return(target, nil)
		expectTx(t, deps.sqlMock, true)
		expectOutbox(t, deps, "", "pending")

		req := createRequest(day(10), day(12))
		req.EmployeeID = target.ID.String()
		resp, err := deps.service.Create(ctx, leave.Actor{UserID: hrUser.String(), Role: rbac.RoleHR}, req)

		assert.NoError(t, err)
		assert.Equal(t, target.ID.String(), resp.EmployeeID)
		assert.Equal(t, hrUser.String(), resp.UserID)
	})

	t.Run("inactive employee", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		emp := activeEmployee(userID)
		emp.Status = employee.StatusInactive
		deps.employees.EXPECT().FindByUserID(gomock.Any(), userID.String()).Return(emp, nil)

		_, err := deps.service.Create(ctx, actor, createRequest(day(10), day(12)))

		assert.ErrorIs(t, err, employeeerrors.ErrEmployeeInactive)
	})
}

func TestLeaveService_Approve(t *testing.T) {
	ctx := context.Background()
	manager := leave.Actor{UserID: uuid.New().String(), Role: rbac.RoleManager}

	t.Run("success clears rejection reason and invalidates balance", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		l := pendingLeave(t, uuid.New(), uuid.New(), day(10), day(14))
		stale := "left over"
		l.RejectionReason = &stale

		expectTx(t, deps.sqlMock, true)
		deps.repo.findByIDForUpdateFn = func(ctx context.Context, id string) (*leave.Leave, error) {
			assert.Equal(t, l.ID.String(), id)
			return l, nil
		}
		var saved *leave.Leave
		deps.repo.updateFn = func(ctx context.Context, updated *leave.Leave) error {
			saved = updated
			return nil
		}
		expectOutbox(t, deps, "pending", "approved")
		deps.redisMock.ExpectDel(leave.BalanceCacheKey(l.EmployeeID.String(), l.StartDate.Year())).SetVal(1)

		resp, err := deps.service.Approve(ctx, manager, l.ID.String())

		assert.NoError(t, err)
		assert.Equal(t, "approved", resp.Status)
		assert.Nil(t, resp.RejectionReason)
		if assert.NotNil(t, resp.ApprovedBy) {
			assert.Equal(t, manager.UserID, *resp.ApprovedBy)
		}
		assert.NotNil(t, resp.ApprovedAt)
		assert.Equal(t, leave.StatusApproved, saved.Status)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
		assert.NoError(t, deps.redisMock.ExpectationsWereMet())
	})

	t.Run("approving twice fails", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		l := pendingLeave(t, uuid.New(), uuid.New(), day(10), day(14))
		l.Status = leave.StatusApproved

		expectTx(t, deps.sqlMock, false)
		deps.repo.findByIDForUpdateFn = func(ctx context.Context, id string) (*leave.Leave, error) {
			return l, nil
		}

		_, err := deps.service.Approve(ctx, manager, l.ID.String())

		assert.ErrorIs(t, err, leaveerrors.ErrNotPending)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("employee role cannot approve", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)

		_, err := deps.service.Approve(ctx, leave.Actor{UserID: uuid.NewString(), Role: rbac.RoleEmployee}, uuid.NewString())

		assert.ErrorIs(t, err, leaveerrors.ErrForbidden)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		expectTx(t, deps.sqlMock, false)

		_, err := deps.service.Approve(ctx, manager, uuid.NewString())

		assert.ErrorIs(t, err, leaveerrors.ErrLeaveNotFound)
	})
}

func TestLeaveService_Reject(t *testing.T) {
	ctx := context.Background()
	hr := leave.Actor{UserID: uuid.New().String(), Role: rbac.RoleHR}

	t.Run("reason too short", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		l := pendingLeave(t, uuid.New(), uuid.New(), day(10), day(14))

		expectTx(t, deps.sqlMock, false)
		deps.repo.findByIDForUpdateFn = func(ctx context.Context, id string) (*leave.Leave, error) {
			return l, nil
		}

		_, err := deps.service.Reject(ctx, hr, l.ID.String(), "   no   ")

		assert.ErrorIs(t, err, leaveerrors.ErrRejectionReasonRequired)
		assert.Equal(t, leave.StatusPending, l.Status)
	})

	t.Run("success records reason", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		l := pendingLeave(t, uuid.New(), uuid.New(), day(10), day(14))

		expectTx(t, deps.sqlMock, true)
		deps.repo.findByIDForUpdateFn = func(ctx context.Context, id string) (*leave.Leave, error) {
			return l, nil
		}
		expectOutbox(t, deps, "pending", "rejected")

		resp, err := deps.service.Reject(ctx, hr, l.ID.String(), "Team is short staffed that week")

		assert.NoError(t, err)
		assert.Equal(t, "rejected", resp.Status)
		if assert.NotNil(t, resp.RejectionReason) {
			assert.Equal(t, "Team is short staffed that week", *resp.RejectionReason)
		}
		assert.False(t, resp.CanBeCancelled)
	})

	t.Run("rejected record cannot be rejected again", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		l := pendingLeave(t, uuid.New(), uuid.New(), day(10), day(14))
		l.Status = leave.StatusRejected

		expectTx(t, deps.sqlMock, false)
		deps.repo.findByIDForUpdateFn = func(ctx context.Context, id string) (*leave.Leave, error) {
			return l, nil
		}

		_, err := deps.service.Reject(ctx, hr, l.ID.String(), "Team is short staffed that week")

		assert.ErrorIs(t, err, leaveerrors.ErrNotPending)
	})
}

func TestLeaveService_Cancel(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	owner := leave.Actor{UserID: userID.String(), Role: rbac.RoleEmployee}

	t.Run("owner cancels pending request", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		emp := activeEmployee(userID)
		l := pendingLeave(t, emp.ID, userID, day(5), day(6))

		expectTx(t, deps.sqlMock, true)
		deps.repo.findByIDForUpdateFn = func(ctx context.Context, id string) (*leave.Leave, error) {
			return l, nil
		}
		deps.employees.EXPECT().FindByUserID(gomock.Any(), userID.String()).Return(emp, nil)
		expectOutbox(t, deps, "pending", "cancelled")

		resp, err := deps.service.Cancel(ctx, owner, l.ID.String())

		assert.NoError(t, err)
		assert.Equal(t, "cancelled", resp.Status)
		assert.NoError(t, deps.redisMock.ExpectationsWereMet())
	})

	t.Run("other employee is not owner", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		l := pendingLeave(t, uuid.New(), uuid.New(), day(5), day(6))

		expectTx(t, deps.sqlMock, false)
		deps.repo.findByIDForUpdateFn = func(ctx context.Context, id string) (*leave.Leave, error) {
			return l, nil
		}
		deps.employees.EXPECT().FindByUserID(gomock.Any(), userID.String()).Return(activeEmployee(userID), nil)

		_, err := deps.service.Cancel(ctx, owner, l.ID.String())

		assert.ErrorIs(t, err, leaveerrors.ErrNotOwner)
	})

	t.Run("start date already reached", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		l := pendingLeave(t, uuid.New(), uuid.New(), day(0), day(3))

		expectTx(t, deps.sqlMock, false)
		deps.repo.findByIDForUpdateFn = func(ctx context.Context, id string) (*leave.Leave, error) {
			return l, nil
		}

		_, err := deps.service.Cancel(ctx, leave.Actor{UserID: uuid.NewString(), Role: rbac.RoleManager}, l.ID.String())

		assert.ErrorIs(t, err, leaveerrors.ErrCannotCancel)
	})

	t.Run("terminal status", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		l := pendingLeave(t, uuid.New(), uuid.New(), day(5), day(6))
		l.Status = leave.StatusCancelled

		expectTx(t, deps.sqlMock, false)
		deps.repo.findByIDForUpdateFn = func(ctx context.Context, id string) (*leave.Leave, error) {
			return l, nil
		}

		_, err := deps.service.Cancel(ctx, leave.Actor{UserID: uuid.NewString(), Role: rbac.RoleAdmin}, l.ID.String())

		assert.ErrorIs(t, err, leaveerrors.ErrCannotCancel)
	})

	t.Run("manager cancels approved request and balance is invalidated", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		l := pendingLeave(t, uuid.New(), uuid.New(), day(5), day(6))
		l.Status = leave.StatusApproved

		expectTx(t, deps.sqlMock, true)
		deps.repo.findByIDForUpdateFn = func(ctx context.Context, id string) (*leave.Leave, error) {
			return l, nil
		}
		expectOutbox(t, deps, "approved", "cancelled")
		deps.redisMock.ExpectDel(leave.BalanceCacheKey(l.EmployeeID.String(), l.StartDate.Year())).SetVal(1)

		resp, err := deps.service.Cancel(ctx, leave.Actor{UserID: uuid.NewString(), Role: rbac.RoleManager}, l.ID.String())

		assert.NoError(t, err)
		assert.Equal(t, "cancelled", resp.Status)
		assert.NoError(t, deps.redisMock.ExpectationsWereMet())
	})
}

func TestLeaveService_Update(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	owner := leave.Actor{UserID: userID.String(), Role: rbac.RoleEmployee}

	t.Run("reschedule recomputes and ignores itself in overlap", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		emp := activeEmployee(userID)
		l := pendingLeave(t, emp.ID, userID, day(10), day(11))

		deps.employees.EXPECT().FindByUserID(gomock.Any(), userID.String()).Return(emp, nil)
		expectTx(t, deps.sqlMock, true)
		deps.repo.findByIDForUpdateFn = func(ctx context.Context, id string) (*leave.Leave, error) {
			return l, nil
		}
		deps.repo.findActiveInRangeFn = func(ctx context.Context, eid string, start, end time.Time) ([]leave.Leave, error) {
			return []leave.Leave{*l}, nil
		}

		end := day(14)
		resp, err := deps.service.Update(ctx, owner, l.ID.String(), leave.UpdateLeaveRequest{EndDate: &end})

		assert.NoError(t, err)
		assert.Equal(t, 5.0, resp.TotalDays)
		assert.Equal(t, day(15), resp.ReturnDate)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("not owner", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		l := pendingLeave(t, uuid.New(), uuid.New(), day(10), day(11))

		deps.employees.EXPECT().FindByUserID(gomock.Any(), userID.String()).Return(activeEmployee(userID), nil)
		expectTx(t, deps.sqlMock, false)
		deps.repo.findByIDForUpdateFn = func(ctx context.Context, id string) (*leave.Leave, error) {
			return l, nil
		}

		reason := "Moving the trip to next month"
		_, err := deps.service.Update(ctx, owner, l.ID.String(), leave.UpdateLeaveRequest{Reason: &reason})

		assert.ErrorIs(t, err, leaveerrors.ErrNotOwner)
	})

	t.Run("only pending can change", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		emp := activeEmployee(userID)
		l := pendingLeave(t, emp.ID, userID, day(10), day(11))
		l.Status = leave.StatusApproved

		deps.employees.EXPECT().FindByUserID(gomock.Any(), userID.String()).Return(emp, nil)
		expectTx(t, deps.sqlMock, false)
		deps.repo.findByIDForUpdateFn = func(ctx context.Context, id string) (*leave.Leave, error) {
			return l, nil
		}

		reason := "Moving the trip to next month"
		_, err := deps.service.Update(ctx, owner, l.ID.String(), leave.UpdateLeaveRequest{Reason: &reason})

		assert.ErrorIs(t, err, leaveerrors.ErrNotPending)
	})

	t.Run("end before start", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		emp := activeEmployee(userID)
		l := pendingLeave(t, emp.ID, userID, day(10), day(11))

		deps.employees.EXPECT().FindByUserID(gomock.Any(), userID.String()).Return(emp, nil)
		expectTx(t, deps.sqlMock, false)
		deps.repo.findByIDForUpdateFn = func(ctx context.Context, id string) (*leave.Leave, error) {
			return l, nil
		}

		end := day(8)
		_, err := deps.service.Update(ctx, owner, l.ID.String(), leave.UpdateLeaveRequest{EndDate: &end})

		assert.ErrorIs(t, err, leaveerrors.ErrInvalidDateRange)
	})

	t.Run("unknown role is forbidden", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)

		reason := "Moving the trip to next month"
		_, err := deps.service.Update(ctx, leave.Actor{UserID: uuid.NewString(), Role: rbac.Role("guest")}, uuid.NewString(), leave.UpdateLeaveRequest{Reason: &reason})

		assert.ErrorIs(t, err, leaveerrors.ErrForbidden)
	})
}

func TestLeaveService_GetBalance(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	annualOnly := leave.Entitlements{leave.TypeAnnual: decimal.NewFromInt(21)}

	t.Run("computes and caches on miss", func(t *testing.T) {
		deps := setupLeaveServiceTest(t, annualOnly)
		emp := activeEmployee(userID)
		key := leave.BalanceCacheKey(emp.ID.String(), 2024)

		deps.employees.EXPECT().FindByUserID(gomock.Any(), userID.String()).Return(emp, nil)
		deps.repo.sumApprovedDaysFn = func(ctx context.Context, eid string, lt leave.LeaveType, from, to time.Time) (decimal.Decimal, error) {
			assert.Equal(t, "2024-01-01", from.Format("2006-01-02"))
			assert.Equal(t, "2024-12-31", to.Format("2006-01-02"))
			return decimal.NewFromInt(5), nil
		}

		want := leave.EmployeeBalanceResponse{
			EmployeeID: emp.ID.String(),
			Year:       2024,
			Balances: []leave.BalanceResponse{
				{LeaveType: "annual", Entitled: 21, Used: 5, Remaining: 16},
			},
		}
		raw, _ := json.Marshal(want)
		deps.redisMock.ExpectGet(key).RedisNil()
		deps.redisMock.ExpectSet(key, string(raw), 30*time.Minute).SetVal("OK")

		got, err := deps.service.GetBalance(ctx, leave.Actor{UserID: userID.String(), Role: rbac.RoleEmployee}, "", 2024)

		assert.NoError(t, err)
		assert.Equal(t, want, got)
		assert.NoError(t, deps.redisMock.ExpectationsWereMet())
	})

	t.Run("cache hit skips the database", func(t *testing.T) {
		deps := setupLeaveServiceTest(t, annualOnly)
		emp := activeEmployee(uuid.New())
		key := leave.BalanceCacheKey(emp.ID.String(), 2024)

		cached := leave.EmployeeBalanceResponse{
			EmployeeID: emp.ID.String(),
			Year:       2024,
			Balances:   []leave.BalanceResponse{{LeaveType: "annual", Entitled: 21, Used: 2, Remaining: 19}},
		}
		raw, _ := json.Marshal(cached)

		deps.employees.EXPECT().FindByID(gomock.Any(), emp.ID.String()).Return(emp, nil)
		deps.repo.sumApprovedDaysFn = func(ctx context.Context, eid string, lt leave.LeaveType, from, to time.Time) (decimal.Decimal, error) {
			t.Fatal("cache hit must not query usage")
			return decimal.Zero, nil
		}
		deps.redisMock.ExpectGet(key).SetVal(string(raw))

		got, err := deps.service.GetBalance(ctx, leave.Actor{UserID: uuid.NewString(), Role: rbac.RoleHR}, emp.ID.String(), 2024)

		assert.NoError(t, err)
		assert.Equal(t, cached, got)
	})

	t.Run("employee cannot read another balance", func(t *testing.T) {
		deps := setupLeaveServiceTest(t, annualOnly)
		deps.employees.EXPECT().FindByUserID(gomock.Any(), userID.String()).Return(activeEmployee(userID), nil)

		_, err := deps.service.GetBalance(ctx, leave.Actor{UserID: userID.String(), Role: rbac.RoleEmployee}, uuid.NewString(), 2024)

		assert.ErrorIs(t, err, leaveerrors.ErrNotOwner)
	})

	t.Run("invalid year", func(t *testing.T) {
		deps := setupLeaveServiceTest(t, annualOnly)

		_, err := deps.service.GetBalance(ctx, leave.Actor{UserID: userID.String(), Role: rbac.RoleEmployee}, "", 10000)

		assert.ErrorIs(t, err, leaveerrors.ErrInvalidYear)
	})
}

func TestLeaveService_GetAll(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("employee is scoped to own records", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		emp := activeEmployee(userID)
		deps.employees.EXPECT().FindByUserID(gomock.Any(), userID.String()).Return(emp, nil)

		deps.repo.findAllFn = func(ctx context.Context, f leave.ListFilter) ([]leave.Leave, int64, error) {
			assert.Equal(t, emp.ID.String(), f.EmployeeID)
			assert.Equal(t, 1, f.Page)
			assert.Equal(t, 10, f.Limit)
			return []leave.Leave{*pendingLeave(t, emp.ID, userID, day(3), day(4))}, 1, nil
		}

		items, meta, err := deps.service.GetAll(ctx, leave.Actor{UserID: userID.String(), Role: rbac.RoleEmployee},
			leave.ListLeavesQuery{EmployeeID: uuid.NewString()})

		assert.NoError(t, err)
		assert.Len(t, items, 1)
		assert.Equal(t, int64(1), meta.Total)
	})

	t.Run("manager filters by status", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		deps.repo.findAllFn = func(ctx context.Context, f leave.ListFilter) ([]leave.Leave, int64, error) {
			assert.Equal(t, leave.StatusApproved, f.Status)
			assert.Empty(t, f.EmployeeID)
			return nil, 0, nil
		}

		items, _, err := deps.service.GetAll(ctx, leave.Actor{UserID: userID.String(), Role: rbac.RoleManager},
			leave.ListLeavesQuery{Status: "approved"})

		assert.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("invalid status", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)

		_, _, err := deps.service.GetAll(ctx, leave.Actor{UserID: userID.String(), Role: rbac.RoleManager},
			leave.ListLeavesQuery{Status: "archived"})

		assert.ErrorIs(t, err, leaveerrors.ErrInvalidStatus)
	})
}

func TestLeaveService_GetByID(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("employee reading foreign record", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		l := pendingLeave(t, uuid.New(), uuid.New(), day(3), day(4))
		deps.repo.findByIDFn = func(ctx context.Context, id string) (*leave.Leave, error) { return l, nil }
		deps.employees.EXPECT().FindByUserID(gomock.Any(), userID.String()).Return(activeEmployee(userID), nil)

		_, err := deps.service.GetByID(ctx, leave.Actor{UserID: userID.String(), Role: rbac.RoleEmployee}, l.ID.String())

		assert.ErrorIs(t, err, leaveerrors.ErrNotOwner)
	})

	t.Run("manager reads any record", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		l := pendingLeave(t, uuid.New(), uuid.New(), day(3), day(4))
		l.Status = leave.StatusApproved
		deps.repo.findByIDFn = func(ctx context.Context, id string) (*leave.Leave, error) { return l, nil }

		resp, err := deps.service.GetByID(ctx, leave.Actor{UserID: userID.String(), Role: rbac.RoleManager}, l.ID.String())

		assert.NoError(t, err)
		assert.Equal(t, "approved", resp.Status)
	})

	t.Run("invalid id", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)

		_, err := deps.service.GetByID(ctx, leave.Actor{UserID: userID.String(), Role: rbac.RoleManager}, "abc")

		assert.ErrorIs(t, err, leaveerrors.ErrInvalidLeaveID)
	})
}

func TestLeaveService_RecordReturn(t *testing.T) {
	ctx := context.Background()
	hr := leave.Actor{UserID: uuid.NewString(), Role: rbac.RoleHR}

	t.Run("approved record", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		l := pendingLeave(t, uuid.New(), uuid.New(), day(3), day(4))
		l.Status = leave.StatusApproved

		expectTx(t, deps.sqlMock, true)
		deps.repo.findByIDForUpdateFn = func(ctx context.Context, id string) (*leave.Leave, error) { return l, nil }

		resp, err := deps.service.RecordReturn(ctx, hr, l.ID.String(), leave.ReturnLeaveRequest{ActualReturnDate: day(6)})

		assert.NoError(t, err)
		if assert.NotNil(t, resp.ActualReturnDate) {
			assert.Equal(t, day(6), *resp.ActualReturnDate)
		}
	})

	t.Run("pending record", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		l := pendingLeave(t, uuid.New(), uuid.New(), day(3), day(4))

		expectTx(t, deps.sqlMock, false)
		deps.repo.findByIDForUpdateFn = func(ctx context.Context, id string) (*leave.Leave, error) { return l, nil }

		_, err := deps.service.RecordReturn(ctx, hr, l.ID.String(), leave.ReturnLeaveRequest{ActualReturnDate: day(6)})

		assert.ErrorIs(t, err, leaveerrors.ErrNotApproved)
	})

	t.Run("before start", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		l := pendingLeave(t, uuid.New(), uuid.New(), day(3), day(4))
		l.Status = leave.StatusApproved

		expectTx(t, deps.sqlMock, false)
		deps.repo.findByIDForUpdateFn = func(ctx context.Context, id string) (*leave.Leave, error) { return l, nil }

		_, err := deps.service.RecordReturn(ctx, hr, l.ID.String(), leave.ReturnLeaveRequest{ActualReturnDate: day(2)})

		assert.ErrorIs(t, err, leaveerrors.ErrReturnBeforeStart)
	})
}

func TestLeaveService_GetStats(t *testing.T) {
	ctx := context.Background()

	t.Run("hr sees totals", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		deps.repo.countByStatusFn = func(ctx context.Context, from, to time.Time) (map[leave.Status]int64, error) {
			assert.Equal(t, time.Now().Year(), from.Year())
			return map[leave.Status]int64{leave.StatusPending: 2, leave.StatusApproved: 3}, nil
		}
		deps.repo.countByTypeFn = func(ctx context.Context, from, to time.Time) (map[leave.LeaveType]int64, error) {
			return map[leave.LeaveType]int64{leave.TypeAnnual: 4, leave.TypeSick: 1}, nil
		}
		deps.repo.countPendingFn = func(ctx context.Context) (int64, error) { return 2, nil }

		resp, err := deps.service.GetStats(ctx, leave.Actor{UserID: uuid.NewString(), Role: rbac.RoleHR})

		assert.NoError(t, err)
		assert.Equal(t, int64(5), resp.TotalLeaves)
		assert.Equal(t, int64(4), resp.ByType["annual"])
		assert.Equal(t, int64(2), resp.PendingLeaves)
	})

	t.Run("manager is forbidden", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)

		_, err := deps.service.GetStats(ctx, leave.Actor{UserID: uuid.NewString(), Role: rbac.RoleManager})

		assert.ErrorIs(t, err, leaveerrors.ErrForbidden)
	})
}
