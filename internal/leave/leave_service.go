package leave

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go-hrms/internal/employee"
	employeeerrors "go-hrms/internal/employee/errors"
	"go-hrms/internal/events"
	leaveerrors "go-hrms/internal/leave/errors"
	"go-hrms/internal/messaging/kafka"
	"go-hrms/internal/rbac"
	"go-hrms/internal/shared/contextutil"
	"go-hrms/internal/shared/response"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	BalanceKeyPrefix       = "leave:balance:"
	DefaultBalanceCacheTTL = 30 * time.Minute

	minReasonLen = 10
	maxReasonLen = 500
	minYear      = 1900
	maxYear      = 9999
)

func BalanceCacheKey(employeeID string, year int) string {
	return fmt.Sprintf("%s%s:%d", BalanceKeyPrefix, employeeID, year)
}

// Authorizer is satisfied by rbac.Service.
type Authorizer interface {
	Can(role rbac.Role, resource, action string) bool
}

//go:generate mockgen -source=leave_service.go -destination=mock/leave_service_mock.go -package=mock
type Service interface {
	Create(ctx context.Context, actor Actor, req CreateLeaveRequest) (LeaveResponse, error)
	GetAll(ctx context.Context, actor Actor, q ListLeavesQuery) ([]LeaveResponse, response.PaginationMeta, error)
	GetByID(ctx context.Context, actor Actor, id string) (LeaveResponse, error)
	Update(ctx context.Context, actor Actor, id string, req UpdateLeaveRequest) (LeaveResponse, error)
	Approve(ctx context.Context, actor Actor, id string) (LeaveResponse, error)
	Reject(ctx context.Context, actor Actor, id, rejectionReason string) (LeaveResponse, error)
	Cancel(ctx context.Context, actor Actor, id string) (LeaveResponse, error)
	RecordReturn(ctx context.Context, actor Actor, id string, req ReturnLeaveRequest) (LeaveResponse, error)
	GetBalance(ctx context.Context, actor Actor, employeeID string, year int) (EmployeeBalanceResponse, error)
	GetStats(ctx context.Context, actor Actor) (StatsResponse, error)
}

type service struct {
	db        *sql.DB
	repo      Repository
	employees employee.Repository
	authz     Authorizer
	calc      *BalanceCalculator
	outbox    kafka.OutboxRepository
	rdb       *redis.Client
	cacheTTL  time.Duration
	sf        *singleflight.Group
	logger    *zap.Logger
}

func NewService(
	db *sql.DB,
	repo Repository,
	employees employee.Repository,
	authz Authorizer,
	calc *BalanceCalculator,
	rdb *redis.Client,
	logger ...*zap.Logger,
) Service {
	return NewServiceWithOutbox(db, repo, employees, authz, calc, nil, rdb, DefaultBalanceCacheTTL, logger...)
}

func NewServiceWithOutbox(
	db *sql.DB,
	repo Repository,
	employees employee.Repository,
	authz Authorizer,
	calc *BalanceCalculator,
	outboxRepo kafka.OutboxRepository,
	rdb *redis.Client,
	cacheTTL time.Duration,
	logger ...*zap.Logger,
) Service {
	l := zap.L().Named("leave.service")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("leave.service")
	}
	if calc == nil {
		calc = NewBalanceCalculator(nil)
	}
	if cacheTTL <= 0 {
		cacheTTL = DefaultBalanceCacheTTL
	}
	return &service{
		db:        db,
		repo:      repo,
		employees: employees,
		authz:     authz,
		calc:      calc,
		outbox:    outboxRepo,
		rdb:       rdb,
		cacheTTL:  cacheTTL,
		sf:        &singleflight.Group{},
		logger:    l,
	}
}

func (s *service) can(actor Actor, action string) bool {
	return s.authz.Can(actor.Role, rbac.ResourceLeave, action)
}

func (s *service) Create(ctx context.Context, actor Actor, req CreateLeaveRequest) (LeaveResponse, error) {
	rid := contextutil.GetRequestID(ctx)
	s.logger.Debug("create leave requested",
		zap.String("request_id", rid),
		zap.String("actor_id", actor.UserID),
		zap.String("employee_id", req.EmployeeID),
		zap.String("start_date", req.StartDate),
		zap.String("end_date", req.EndDate),
	)

	if !s.can(actor, rbac.ActionCreate) {
		return LeaveResponse{}, leaveerrors.ErrForbidden
	}
	requesterID, err := uuid.Parse(actor.UserID)
	if err != nil {
		return LeaveResponse{}, leaveerrors.ErrForbidden
	}

	emp, err := s.resolveTarget(ctx, actor, req.EmployeeID)
	if err != nil {
		s.logger.Warn("create leave employee lookup failed", zap.Error(err))
		return LeaveResponse{}, err
	}

	now := time.Now()
	l, err := buildLeave(emp.ID, requesterID, req, now)
	if err != nil {
		s.logger.Warn("create leave validation failed", zap.Error(err))
		return LeaveResponse{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("create leave begin tx failed", zap.Error(err))
		return LeaveResponse{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)

	if err := qtx.LockEmployee(ctx, emp.ID.String()); err != nil {
		s.logger.Error("create leave employee lock failed", zap.Error(err))
		return LeaveResponse{}, err
	}

	if err := CheckOverlap(ctx, qtx, emp.ID.String(), l.StartDate, l.EndDate); err != nil {
		s.logger.Warn("create leave overlap detected",
			zap.String("employee_id", emp.ID.String()),
			zap.String("start_date", req.StartDate),
			zap.String("end_date", req.EndDate),
			zap.Error(err),
		)
		return LeaveResponse{}, err
	}

	if err := s.ensureBalance(ctx, qtx, l); err != nil {
		s.logger.Warn("create leave balance check failed", zap.Error(err))
		return LeaveResponse{}, err
	}

	if err := qtx.Create(ctx, l); err != nil {
		s.logger.Error("create leave persist failed", zap.Error(err))
		return LeaveResponse{}, err
	}

	if err := s.enqueueStatusChange(ctx, tx, l, "", actor.UserID); err != nil {
		s.logger.Error("create leave outbox persist failed", zap.Error(err))
		return LeaveResponse{}, err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("create leave commit failed", zap.Error(err))
		return LeaveResponse{}, err
	}

	s.logger.Info("create leave success",
		zap.String("request_id", rid),
		zap.String("leave_id", l.ID.String()),
		zap.String("employee_id", emp.ID.String()),
		zap.String("total_days", l.TotalDays.String()),
	)
	return mapToResponse(*l, now), nil
}

// resolveTarget returns the caller's own employee record, or the requested
// one when the caller may file on behalf of others.
func (s *service) resolveTarget(ctx context.Context, actor Actor, employeeID string) (*employee.Employee, error) {
	self, err := s.employees.FindByUserID(ctx, actor.UserID)
	if err != nil && !errors.Is(err, employeeerrors.ErrEmployeeNotFound) {
		return nil, err
	}

	var target *employee.Employee
	switch {
	case employeeID == "" || (self != nil && self.ID.String() == employeeID):
		if self == nil {
			return nil, employeeerrors.ErrEmployeeNotFound
		}
		target = self
	case s.can(actor, rbac.ActionCreateAny):
		target, err = s.employees.FindByID(ctx, employeeID)
		if err != nil {
			return nil, err
		}
	default:
		return nil, leaveerrors.ErrNotOwner
	}

	if !target.IsActive() {
		return nil, employeeerrors.ErrEmployeeInactive
	}
	return target, nil
}

func buildLeave(employeeID, requesterID uuid.UUID, req CreateLeaveRequest, now time.Time) (*Leave, error) {
	leaveType, err := ParseLeaveType(req.LeaveType)
	if err != nil {
		return nil, leaveerrors.ErrInvalidLeaveType
	}

	start, err := parseDate(req.StartDate)
	if err != nil {
		return nil, leaveerrors.ErrInvalidDateFormat
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		return nil, leaveerrors.ErrInvalidDateFormat
	}

	reason, err := validateReason(req.Reason, leaveerrors.ErrInvalidReason)
	if err != nil {
		return nil, err
	}

	l := &Leave{
		ID:               uuid.New(),
		EmployeeID:       employeeID,
		UserID:           requesterID,
		LeaveType:        leaveType,
		StartDate:        start,
		EndDate:          end,
		IsHalfDay:        req.IsHalfDay,
		Reason:           reason,
		Status:           StatusPending,
		EmergencyContact: req.EmergencyContact,
		Attachments:      req.Attachments,
	}
	if req.HalfDayPeriod != "" {
		p := HalfDayPeriod(req.HalfDayPeriod)
		l.HalfDayPeriod = &p
	}
	if notes := strings.TrimSpace(req.HandoverNotes); notes != "" {
		l.HandoverNotes = &notes
	}

	if err := validateSchedule(l, now); err != nil {
		return nil, err
	}
	return l, nil
}

// validateSchedule enforces date order, no past start and a period for a
// single-day half-day request, then recomputes the derived fields.
func validateSchedule(l *Leave, now time.Time) error {
	if dateOnly(l.EndDate).Before(dateOnly(l.StartDate)) {
		return leaveerrors.ErrInvalidDateRange
	}
	if dateOnly(l.StartDate).Before(dateOnly(now)) {
		return leaveerrors.ErrStartDateInPast
	}
	if l.IsSingleHalfDay() && (l.HalfDayPeriod == nil || !l.HalfDayPeriod.Valid()) {
		return leaveerrors.ErrHalfDayPeriodRequired
	}
	l.applySchedule()
	return nil
}

func validateReason(raw string, invalid error) (string, error) {
	reason := strings.TrimSpace(raw)
	n := utf8.RuneCountInString(reason)
	if n < minReasonLen || n > maxReasonLen {
		return "", invalid
	}
	return reason, nil
}

func (s *service) ensureBalance(ctx context.Context, r UsageReader, l *Leave) error {
	if l.LeaveType.BalanceExempt() {
		return nil
	}
	b, err := s.calc.Calculate(ctx, r, l.EmployeeID.String(), l.LeaveType, l.StartDate.Year())
	if err != nil {
		return err
	}
	if !b.Covers(l.TotalDays) {
		return leaveerrors.NewInsufficientBalance(b.Remaining, l.TotalDays)
	}
	return nil
}

func (s *service) enqueueStatusChange(ctx context.Context, tx *sql.Tx, l *Leave, from Status, actorUserID string) error {
	if s.outbox == nil {
		return nil
	}

	rid := contextutil.GetRequestID(ctx)
	event := events.LeaveStatusChangedEvent{
		EventType:       events.LeaveStatusChangedType,
		RequestID:       rid,
		LeaveID:         l.ID.String(),
		EmployeeID:      l.EmployeeID.String(),
		RequesterUserID: l.UserID.String(),
		ActorUserID:     actorUserID,
		LeaveType:       string(l.LeaveType),
		FromStatus:      string(from),
		ToStatus:        string(l.Status),
		StartDate:       l.StartDate.Format(dateLayout),
		EndDate:         l.EndDate.Format(dateLayout),
		TotalDays:       l.TotalDays.String(),
		OccurredAt:      time.Now().UTC(),
	}
	if l.RejectionReason != nil {
		event.RejectionReason = *l.RejectionReason
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return s.outbox.WithTx(tx).Create(ctx, kafka.OutboxEvent{
		ID:            uuid.NewString(),
		RequestID:     rid,
		AggregateType: "leave",
		AggregateID:   l.ID.String(),
		EventType:     events.LeaveStatusChangedType,
		Topic:         events.LeaveLifecycleTopic,
		Payload:       payload,
		Status:        kafka.OutboxStatusPending,
	})
}

func (s *service) GetAll(ctx context.Context, actor Actor, q ListLeavesQuery) ([]LeaveResponse, response.PaginationMeta, error) {
	f := ListFilter{
		EmployeeID: q.EmployeeID,
		Search:     strings.TrimSpace(q.Search),
		SortBy:     q.SortBy,
		SortOrder:  q.SortOrder,
		Page:       q.Page,
		Limit:      q.Limit,
	}
	if q.Status != "" {
		st, err := ParseStatus(q.Status)
		if err != nil {
			return nil, response.PaginationMeta{}, leaveerrors.ErrInvalidStatus
		}
		f.Status = st
	}
	if q.LeaveType != "" {
		t, err := ParseLeaveType(q.LeaveType)
		if err != nil {
			return nil, response.PaginationMeta{}, leaveerrors.ErrInvalidLeaveType
		}
		f.LeaveType = t
	}

	switch {
	case s.can(actor, rbac.ActionReadAny):
		if f.EmployeeID != "" {
			if _, err := uuid.Parse(f.EmployeeID); err != nil {
				return nil, response.PaginationMeta{}, leaveerrors.ErrInvalidEmployeeID
			}
		}
	case s.can(actor, rbac.ActionReadOwn):
		self, err := s.employees.FindByUserID(ctx, actor.UserID)
		if err != nil {
			return nil, response.PaginationMeta{}, err
		}
		f.EmployeeID = self.ID.String()
	default:
		return nil, response.PaginationMeta{}, leaveerrors.ErrForbidden
	}

	f = f.Normalize()
	leaves, total, err := s.repo.FindAll(ctx, f)
	if err != nil {
		s.logger.Error("list leaves failed", zap.Error(err))
		return nil, response.PaginationMeta{}, err
	}

	return mapToListResponse(leaves, time.Now()), response.NewPaginationMeta(total, f.Page, f.Limit), nil
}

func (s *service) GetByID(ctx context.Context, actor Actor, id string) (LeaveResponse, error) {
	if _, err := uuid.Parse(id); err != nil {
		return LeaveResponse{}, leaveerrors.ErrInvalidLeaveID
	}

	readAny := s.can(actor, rbac.ActionReadAny)
	if !readAny && !s.can(actor, rbac.ActionReadOwn) {
		return LeaveResponse{}, leaveerrors.ErrForbidden
	}

	l, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return LeaveResponse{}, err
	}

	if !readAny {
		if err := s.ensureOwner(ctx, actor, l); err != nil {
			return LeaveResponse{}, err
		}
	}
	return mapToResponse(*l, time.Now()), nil
}

func (s *service) ensureOwner(ctx context.Context, actor Actor, l *Leave) error {
	self, err := s.employees.FindByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, employeeerrors.ErrEmployeeNotFound) {
			return leaveerrors.ErrNotOwner
		}
		return err
	}
	if !l.IsOwnedBy(self.ID) {
		return leaveerrors.ErrNotOwner
	}
	return nil
}

func (s *service) Update(ctx context.Context, actor Actor, id string, req UpdateLeaveRequest) (LeaveResponse, error) {
	s.logger.Debug("update leave requested",
		zap.String("request_id", contextutil.GetRequestID(ctx)),
		zap.String("leave_id", id),
		zap.String("actor_id", actor.UserID),
	)

	if !s.can(actor, rbac.ActionUpdateOwn) {
		return LeaveResponse{}, leaveerrors.ErrForbidden
	}
	if _, err := uuid.Parse(id); err != nil {
		return LeaveResponse{}, leaveerrors.ErrInvalidLeaveID
	}

	self, err := s.employees.FindByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, employeeerrors.ErrEmployeeNotFound) {
			return LeaveResponse{}, leaveerrors.ErrNotOwner
		}
		return LeaveResponse{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("update leave begin tx failed", zap.Error(err))
		return LeaveResponse{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)

	if err := qtx.LockEmployee(ctx, self.ID.String()); err != nil {
		s.logger.Error("update leave employee lock failed", zap.Error(err))
		return LeaveResponse{}, err
	}

	l, err := qtx.FindByIDForUpdate(ctx, id)
	if err != nil {
		return LeaveResponse{}, err
	}
	if !l.IsOwnedBy(self.ID) {
		s.logger.Warn("update leave rejected: not owner", zap.String("leave_id", id))
		return LeaveResponse{}, leaveerrors.ErrNotOwner
	}
	if l.Status != StatusPending {
		return LeaveResponse{}, leaveerrors.ErrNotPending
	}

	now := time.Now()
	rescheduled, err := applyPatch(l, req, now)
	if err != nil {
		s.logger.Warn("update leave validation failed", zap.Error(err))
		return LeaveResponse{}, err
	}

	if rescheduled {
		if err := CheckOverlap(ctx, qtx, l.EmployeeID.String(), l.StartDate, l.EndDate, l.ID); err != nil {
			s.logger.Warn("update leave overlap detected", zap.String("leave_id", id), zap.Error(err))
			return LeaveResponse{}, err
		}
		if err := s.ensureBalance(ctx, qtx, l); err != nil {
			s.logger.Warn("update leave balance check failed", zap.Error(err))
			return LeaveResponse{}, err
		}
	}

	if err := qtx.Update(ctx, l); err != nil {
		s.logger.Error("update leave persist failed", zap.Error(err))
		return LeaveResponse{}, err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("update leave commit failed", zap.Error(err))
		return LeaveResponse{}, err
	}

	s.logger.Info("update leave success", zap.String("leave_id", id))
	return mapToResponse(*l, now), nil
}

// applyPatch mutates l and reports whether its dates, half-day flag or type
// changed, which requires the overlap and balance checks to run again.
func applyPatch(l *Leave, req UpdateLeaveRequest, now time.Time) (bool, error) {
	rescheduled := false

	if req.LeaveType != nil {
		t, err := ParseLeaveType(*req.LeaveType)
		if err != nil {
			return false, leaveerrors.ErrInvalidLeaveType
		}
		rescheduled = rescheduled || t != l.LeaveType
		l.LeaveType = t
	}
	if req.StartDate != nil {
		d, err := parseDate(*req.StartDate)
		if err != nil {
			return false, leaveerrors.ErrInvalidDateFormat
		}
		rescheduled = rescheduled || !d.Equal(dateOnly(l.StartDate))
		l.StartDate = d
	}
	if req.EndDate != nil {
		d, err := parseDate(*req.EndDate)
		if err != nil {
			return false, leaveerrors.ErrInvalidDateFormat
		}
		rescheduled = rescheduled || !d.Equal(dateOnly(l.EndDate))
		l.EndDate = d
	}
	if req.IsHalfDay != nil {
		rescheduled = rescheduled || *req.IsHalfDay != l.IsHalfDay
		l.IsHalfDay = *req.IsHalfDay
	}
	if req.HalfDayPeriod != nil {
		p := HalfDayPeriod(*req.HalfDayPeriod)
		l.HalfDayPeriod = &p
	}
	if req.Reason != nil {
		reason, err := validateReason(*req.Reason, leaveerrors.ErrInvalidReason)
		if err != nil {
			return false, err
		}
		l.Reason = reason
	}
	if req.EmergencyContact != nil {
		l.EmergencyContact = req.EmergencyContact
	}
	if req.HandoverNotes != nil {
		notes := strings.TrimSpace(*req.HandoverNotes)
		l.HandoverNotes = &notes
		if notes == "" {
			l.HandoverNotes = nil
		}
	}
	if req.Attachments != nil {
		l.Attachments = *req.Attachments
	}

	if rescheduled {
		if err := validateSchedule(l, now); err != nil {
			return false, err
		}
		return true, nil
	}
	if l.IsSingleHalfDay() && (l.HalfDayPeriod == nil || !l.HalfDayPeriod.Valid()) {
		return false, leaveerrors.ErrHalfDayPeriodRequired
	}
	l.applySchedule()
	return false, nil
}

func (s *service) Approve(ctx context.Context, actor Actor, id string) (LeaveResponse, error) {
	return s.decide(ctx, actor, id, StatusApproved, "")
}

func (s *service) Reject(ctx context.Context, actor Actor, id, rejectionReason string) (LeaveResponse, error) {
	return s.decide(ctx, actor, id, StatusRejected, rejectionReason)
}

// decide moves a pending request to approved or rejected.
func (s *service) decide(ctx context.Context, actor Actor, id string, to Status, rejectionReason string) (LeaveResponse, error) {
	s.logger.Debug("leave decision requested",
		zap.String("request_id", contextutil.GetRequestID(ctx)),
		zap.String("leave_id", id),
		zap.String("actor_id", actor.UserID),
		zap.String("to_status", string(to)),
	)

	if !s.can(actor, rbac.ActionApprove) {
		return LeaveResponse{}, leaveerrors.ErrForbidden
	}
	approverID, err := uuid.Parse(actor.UserID)
	if err != nil {
		return LeaveResponse{}, leaveerrors.ErrForbidden
	}
	if _, err := uuid.Parse(id); err != nil {
		return LeaveResponse{}, leaveerrors.ErrInvalidLeaveID
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("leave decision begin tx failed", zap.Error(err))
		return LeaveResponse{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)

	l, err := qtx.FindByIDForUpdate(ctx, id)
	if err != nil {
		return LeaveResponse{}, err
	}
	if !l.CanBeApproved() {
		s.logger.Warn("leave decision rejected: not pending",
			zap.String("leave_id", id),
			zap.String("status", string(l.Status)),
		)
		return LeaveResponse{}, leaveerrors.ErrNotPending
	}

	now := time.Now()
	from := l.Status
	if to == StatusApproved {
		l.approve(approverID, now.UTC())
	} else {
		reason, err := validateReason(rejectionReason, leaveerrors.ErrRejectionReasonRequired)
		if err != nil {
			return LeaveResponse{}, err
		}
		l.reject(approverID, now.UTC(), reason)
	}

	if err := qtx.Update(ctx, l); err != nil {
		s.logger.Error("leave decision persist failed", zap.Error(err))
		return LeaveResponse{}, err
	}

	if err := s.enqueueStatusChange(ctx, tx, l, from, actor.UserID); err != nil {
		s.logger.Error("leave decision outbox persist failed", zap.Error(err))
		return LeaveResponse{}, err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("leave decision commit failed", zap.Error(err))
		return LeaveResponse{}, err
	}

	if to == StatusApproved {
		s.invalidateBalance(ctx, l)
	}

	s.logger.Info("leave decision success",
		zap.String("leave_id", id),
		zap.String("status", string(l.Status)),
		zap.String("approver_id", actor.UserID),
	)
	return mapToResponse(*l, now), nil
}

func (s *service) Cancel(ctx context.Context, actor Actor, id string) (LeaveResponse, error) {
	s.logger.Debug("cancel leave requested",
		zap.String("request_id", contextutil.GetRequestID(ctx)),
		zap.String("leave_id", id),
		zap.String("actor_id", actor.UserID),
	)

	cancelAny := s.can(actor, rbac.ActionCancelAny)
	if !cancelAny && !s.can(actor, rbac.ActionCancelOwn) {
		return LeaveResponse{}, leaveerrors.ErrForbidden
	}
	if _, err := uuid.Parse(id); err != nil {
		return LeaveResponse{}, leaveerrors.ErrInvalidLeaveID
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("cancel leave begin tx failed", zap.Error(err))
		return LeaveResponse{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)

	l, err := qtx.FindByIDForUpdate(ctx, id)
	if err != nil {
		return LeaveResponse{}, err
	}
	if !cancelAny {
		if err := s.ensureOwner(ctx, actor, l); err != nil {
			s.logger.Warn("cancel leave rejected: not owner", zap.String("leave_id", id))
			return LeaveResponse{}, err
		}
	}

	now := time.Now()
	if !l.CanBeCancelled(now) {
		s.logger.Warn("cancel leave rejected",
			zap.String("leave_id", id),
			zap.String("status", string(l.Status)),
			zap.String("start_date", l.StartDate.Format(dateLayout)),
		)
		return LeaveResponse{}, leaveerrors.ErrCannotCancel
	}

	from := l.Status
	l.cancel()

	if err := qtx.Update(ctx, l); err != nil {
		s.logger.Error("cancel leave persist failed", zap.Error(err))
		return LeaveResponse{}, err
	}

	if err := s.enqueueStatusChange(ctx, tx, l, from, actor.UserID); err != nil {
		s.logger.Error("cancel leave outbox persist failed", zap.Error(err))
		return LeaveResponse{}, err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("cancel leave commit failed", zap.Error(err))
		return LeaveResponse{}, err
	}

	if from == StatusApproved {
		s.invalidateBalance(ctx, l)
	}

	s.logger.Info("cancel leave success", zap.String("leave_id", id), zap.String("from_status", string(from)))
	return mapToResponse(*l, now), nil
}

func (s *service) RecordReturn(ctx context.Context, actor Actor, id string, req ReturnLeaveRequest) (LeaveResponse, error) {
	returnAny := s.can(actor, rbac.ActionReturnAny)
	if !returnAny && !s.can(actor, rbac.ActionUpdateOwn) {
		return LeaveResponse{}, leaveerrors.ErrForbidden
	}
	if _, err := uuid.Parse(id); err != nil {
		return LeaveResponse{}, leaveerrors.ErrInvalidLeaveID
	}
	returned, err := parseDate(req.ActualReturnDate)
	if err != nil {
		return LeaveResponse{}, leaveerrors.ErrInvalidDateFormat
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("record return begin tx failed", zap.Error(err))
		return LeaveResponse{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)

	l, err := qtx.FindByIDForUpdate(ctx, id)
	if err != nil {
		return LeaveResponse{}, err
	}
	if !returnAny {
		if err := s.ensureOwner(ctx, actor, l); err != nil {
			return LeaveResponse{}, err
		}
	}
	if l.Status != StatusApproved {
		return LeaveResponse{}, leaveerrors.ErrNotApproved
	}
	if returned.Before(dateOnly(l.StartDate)) {
		return LeaveResponse{}, leaveerrors.ErrReturnBeforeStart
	}

	l.ActualReturnDate = &returned
	if err := qtx.Update(ctx, l); err != nil {
		s.logger.Error("record return persist failed", zap.Error(err))
		return LeaveResponse{}, err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("record return commit failed", zap.Error(err))
		return LeaveResponse{}, err
	}

	s.logger.Info("record return success",
		zap.String("leave_id", id),
		zap.String("actual_return_date", req.ActualReturnDate),
	)
	return mapToResponse(*l, time.Now()), nil
}

// GetBalance reports every leave type's balance for employeeID in year. An
// empty employeeID means the caller's own record; year 0 means this year.
func (s *service) GetBalance(ctx context.Context, actor Actor, employeeID string, year int) (EmployeeBalanceResponse, error) {
	if year == 0 {
		year = time.Now().Year()
	}
	if year < minYear || year > maxYear {
		return EmployeeBalanceResponse{}, leaveerrors.ErrInvalidYear
	}

	emp, err := s.balanceTarget(ctx, actor, employeeID)
	if err != nil {
		return EmployeeBalanceResponse{}, err
	}

	cacheKey := BalanceCacheKey(emp.ID.String(), year)
	if s.rdb != nil {
		if cached, err := s.rdb.Get(ctx, cacheKey).Result(); err == nil {
			var resp EmployeeBalanceResponse
			if err := json.Unmarshal([]byte(cached), &resp); err == nil {
				s.logger.Debug("balance cache hit", zap.String("key", cacheKey))
				return resp, nil
			}
		}
	}

	v, err, _ := s.sf.Do(cacheKey, func() (interface{}, error) {
		balances, err := s.calc.CalculateAll(ctx, s.repo, emp.ID.String(), year)
		if err != nil {
			return nil, err
		}
		resp := EmployeeBalanceResponse{
			EmployeeID: emp.ID.String(),
			Year:       year,
			Balances:   mapToBalanceResponses(balances),
		}

		if s.rdb != nil {
			if jsonData, err := json.Marshal(resp); err == nil {
				if err := s.rdb.Set(ctx, cacheKey, string(jsonData), s.cacheTTL).Err(); err != nil {
					s.logger.Warn("balance cache store failed", zap.String("key", cacheKey), zap.Error(err))
				}
			}
		}
		return resp, nil
	})
	if err != nil {
		s.logger.Error("balance calculation failed", zap.String("employee_id", emp.ID.String()), zap.Error(err))
		return EmployeeBalanceResponse{}, err
	}

	return v.(EmployeeBalanceResponse), nil
}

func (s *service) balanceTarget(ctx context.Context, actor Actor, employeeID string) (*employee.Employee, error) {
	if employeeID != "" && s.can(actor, rbac.ActionBalanceAny) {
		return s.employees.FindByID(ctx, employeeID)
	}
	if !s.can(actor, rbac.ActionBalanceOwn) {
		return nil, leaveerrors.ErrForbidden
	}

	self, err := s.employees.FindByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if employeeID != "" && self.ID.String() != employeeID {
		return nil, leaveerrors.ErrNotOwner
	}
	return self, nil
}

func (s *service) invalidateBalance(ctx context.Context, l *Leave) {
	if s.rdb == nil {
		return
	}
	cacheKey := BalanceCacheKey(l.EmployeeID.String(), l.StartDate.Year())
	if err := s.rdb.Del(context.WithoutCancel(ctx), cacheKey).Err(); err != nil {
		s.logger.Warn("balance cache invalidation failed", zap.String("key", cacheKey), zap.Error(err))
	}
}

func (s *service) GetStats(ctx context.Context, actor Actor) (StatsResponse, error) {
	if !s.can(actor, rbac.ActionStats) {
		return StatsResponse{}, leaveerrors.ErrForbidden
	}

	year := time.Now().Year()
	from, to := YearBounds(year)

	byStatus, err := s.repo.CountByStatus(ctx, from, to)
	if err != nil {
		s.logger.Error("stats by status failed", zap.Error(err))
		return StatsResponse{}, err
	}
	byType, err := s.repo.CountByType(ctx, from, to)
	if err != nil {
		s.logger.Error("stats by type failed", zap.Error(err))
		return StatsResponse{}, err
	}
	pending, err := s.repo.CountPending(ctx)
	if err != nil {
		s.logger.Error("stats pending count failed", zap.Error(err))
		return StatsResponse{}, err
	}

	resp := StatsResponse{
		Year:          year,
		ByStatus:      make(map[string]int64, len(byStatus)),
		ByType:        make(map[string]int64, len(byType)),
		PendingLeaves: pending,
	}
	for st, n := range byStatus {
		resp.ByStatus[string(st)] = n
		resp.TotalLeaves += n
	}
	for t, n := range byType {
		resp.ByType[string(t)] = n
	}
	return resp, nil
}
