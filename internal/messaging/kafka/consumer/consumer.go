package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go-hrms/internal/events"

	"github.com/jackc/pgx/v5/pgconn"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageReader is satisfied by *kafkago.Reader.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
}

// LeaveEventHandler is satisfied by notification.Service.
type LeaveEventHandler interface {
	HandleLeaveStatusChanged(ctx context.Context, event events.LeaveStatusChangedEvent) error
}

// ConsumeLeaveLifecycle hands leave status changes to handler until ctx is
// cancelled. Undecodable and already-handled messages are committed and
// skipped; other handler failures leave the offset uncommitted.
func ConsumeLeaveLifecycle(
	ctx context.Context,
	reader MessageReader,
	handler LeaveEventHandler,
	logger *zap.Logger,
) {
	if logger == nil {
		logger = zap.L()
	}
	log := logger.Named("kafka.consumer.leave_lifecycle")
	log.Info("leave lifecycle consumer started")

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("leave lifecycle consumer stopped")
				return
			}
			log.Error("fetch leave lifecycle message failed", zap.Error(err))
			continue
		}

		handleMessage(ctx, reader, handler, msg, log)
	}
}

func handleMessage(
	ctx context.Context,
	reader MessageReader,
	handler LeaveEventHandler,
	msg kafkago.Message,
	log *zap.Logger,
) {
	if eventType := header(msg, "event_type"); eventType != "" && eventType != events.LeaveStatusChangedType {
		log.Debug("skipping unrelated event", zap.String("event_type", eventType))
		_ = reader.CommitMessages(ctx, msg)
		return
	}

	var event events.LeaveStatusChangedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil || event.LeaveID == "" {
		log.Error("decode leave.status_changed event failed",
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
		_ = reader.CommitMessages(ctx, msg)
		return
	}

	if err := handler.HandleLeaveStatusChanged(ctx, event); err != nil {
		if isDuplicateDelivery(err) {
			log.Warn("leave event already handled, skipping",
				zap.String("leave_id", event.LeaveID),
				zap.String("to_status", event.ToStatus),
			)
			_ = reader.CommitMessages(ctx, msg)
			return
		}

		log.Error("handle leave event failed",
			zap.String("leave_id", event.LeaveID),
			zap.String("to_status", event.ToStatus),
			zap.Error(err),
		)
		return
	}

	if err := reader.CommitMessages(ctx, msg); err != nil {
		log.Error("commit leave lifecycle message failed", zap.Error(err))
		return
	}

	log.Info("leave event handled",
		zap.String("request_id", event.RequestID),
		zap.String("leave_id", event.LeaveID),
		zap.String("from_status", event.FromStatus),
		zap.String("to_status", event.ToStatus),
	)
}

func header(msg kafkago.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func isDuplicateDelivery(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "uq_notifications_leave_kind"
	}

	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "duplicate key value") && strings.Contains(errMsg, "uq_notifications_leave_kind")
}
