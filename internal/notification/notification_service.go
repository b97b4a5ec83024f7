package notification

import (
	"context"
	"fmt"
	"time"

	"go-hrms/internal/events"
	notificationerrors "go-hrms/internal/notification/errors"
	"go-hrms/internal/shared/response"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100
)

//go:generate mockgen -source=notification_service.go -destination=mock/notification_service_mock.go -package=mock
type Service interface {
	HandleLeaveStatusChanged(ctx context.Context, event events.LeaveStatusChangedEvent) error
	List(ctx context.Context, userID string, q ListNotificationsQuery) ([]NotificationResponse, response.PaginationMeta, error)
	MarkRead(ctx context.Context, userID, id string) (NotificationResponse, error)
}

type service struct {
	repo   Repository
	logger *zap.Logger
}

func NewService(repo Repository, logger ...*zap.Logger) Service {
	l := zap.L().Named("notification.service")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("notification.service")
	}
	return &service{repo: repo, logger: l}
}

// HandleLeaveStatusChanged notifies the requesting user. Unknown target
// statuses are ignored.
func (s *service) HandleLeaveStatusChanged(ctx context.Context, event events.LeaveStatusChangedEvent) error {
	userID, err := uuid.Parse(event.RequesterUserID)
	if err != nil {
		return notificationerrors.ErrInvalidEvent
	}
	leaveID, err := uuid.Parse(event.LeaveID)
	if err != nil {
		return notificationerrors.ErrInvalidEvent
	}

	kind, msg, ok := describe(event)
	if !ok {
		s.logger.Debug("leave event ignored", zap.String("to_status", event.ToStatus))
		return nil
	}

	n := &Notification{
		UserID:  userID,
		LeaveID: leaveID,
		Kind:    kind,
		Message: msg,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return err
	}

	s.logger.Info("notification created",
		zap.String("request_id", event.RequestID),
		zap.String("user_id", event.RequesterUserID),
		zap.String("leave_id", event.LeaveID),
		zap.String("kind", string(kind)),
	)
	return nil
}

func describe(e events.LeaveStatusChangedEvent) (Kind, string, bool) {
	period := e.StartDate
	if e.EndDate != e.StartDate {
		period = fmt.Sprintf("%s to %s", e.StartDate, e.EndDate)
	}

	switch e.ToStatus {
	case "pending":
		return KindLeaveSubmitted,
			fmt.Sprintf("Your %s leave request for %s (%s days) was submitted.", e.LeaveType, period, e.TotalDays), true
	case "approved":
		return KindLeaveApproved,
			fmt.Sprintf("Your %s leave request for %s was approved.", e.LeaveType, period), true
	case "rejected":
		msg := fmt.Sprintf("Your %s leave request for %s was rejected.", e.LeaveType, period)
		if e.RejectionReason != "" {
			msg += " Reason: " + e.RejectionReason
		}
		return KindLeaveRejected, msg, true
	case "cancelled":
		return KindLeaveCancelled,
			fmt.Sprintf("Your %s leave request for %s was cancelled.", e.LeaveType, period), true
	default:
		return "", "", false
	}
}

func (s *service) List(ctx context.Context, userID string, q ListNotificationsQuery) ([]NotificationResponse, response.PaginationMeta, error) {
	f := ListFilter{UserID: userID, UnreadOnly: q.UnreadOnly, Page: q.Page, Limit: q.Limit}
	if f.Page < 1 {
		f.Page = defaultPage
	}
	if f.Limit < 1 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}

	items, total, err := s.repo.FindByUser(ctx, f)
	if err != nil {
		s.logger.Error("list notifications failed", zap.String("user_id", userID), zap.Error(err))
		return nil, response.PaginationMeta{}, err
	}

	return mapToListResponse(items), response.NewPaginationMeta(total, f.Page, f.Limit), nil
}

func (s *service) MarkRead(ctx context.Context, userID, id string) (NotificationResponse, error) {
	if _, err := uuid.Parse(id); err != nil {
		return NotificationResponse{}, notificationerrors.ErrInvalidNotificationID
	}

	n, err := s.repo.MarkRead(ctx, id, userID, time.Now().UTC())
	if err != nil {
		return NotificationResponse{}, err
	}
	return mapToResponse(*n), nil
}
