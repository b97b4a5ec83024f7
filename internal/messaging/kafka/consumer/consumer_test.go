package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go-hrms/internal/events"

	"github.com/jackc/pgx/v5/pgconn"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeReader struct {
	committed []kafkago.Message
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	<-ctx.Done()
	return kafkago.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafkago.Message) error {
	r.committed = append(r.committed, msgs...)
	return nil
}

type fakeHandler struct {
	handled []events.LeaveStatusChangedEvent
	err     error
}

func (h *fakeHandler) HandleLeaveStatusChanged(ctx context.Context, event events.LeaveStatusChangedEvent) error {
	h.handled = append(h.handled, event)
	return h.err
}

func leaveMessage(t *testing.T, event events.LeaveStatusChangedEvent) kafkago.Message {
	t.Helper()
	raw, err := json.Marshal(event)
	assert.NoError(t, err)
	return kafkago.Message{
		Value:   raw,
		Headers: []kafkago.Header{{Key: "event_type", Value: []byte(events.LeaveStatusChangedType)}},
	}
}

func TestHandleMessage(t *testing.T) {
	ctx := context.Background()
	log := zap.NewNop()
	event := events.LeaveStatusChangedEvent{
		EventType: events.LeaveStatusChangedType,
		LeaveID:   "a6c1d1e4-8b55-4d4c-9a0b-5f0f6f1d2c3e",
		ToStatus:  "approved",
	}

	t.Run("handled then committed", func(t *testing.T) {
		reader, handler := &fakeReader{}, &fakeHandler{}

		handleMessage(ctx, reader, handler, leaveMessage(t, event), log)

		assert.Len(t, handler.handled, 1)
		assert.Equal(t, "approved", handler.handled[0].ToStatus)
		assert.Len(t, reader.committed, 1)
	})

	t.Run("unrelated event type skipped", func(t *testing.T) {
		reader, handler := &fakeReader{}, &fakeHandler{}
		msg := leaveMessage(t, event)
		msg.Headers = []kafkago.Header{{Key: "event_type", Value: []byte("payroll.generated")}}

		handleMessage(ctx, reader, handler, msg, log)

		assert.Empty(t, handler.handled)
		assert.Len(t, reader.committed, 1)
	})

	t.Run("undecodable payload committed", func(t *testing.T) {
		reader, handler := &fakeReader{}, &fakeHandler{}

		handleMessage(ctx, reader, handler, kafkago.Message{Value: []byte("{not json")}, log)

		assert.Empty(t, handler.handled)
		assert.Len(t, reader.committed, 1)
	})

	t.Run("duplicate delivery committed", func(t *testing.T) {
		reader := &fakeReader{}
		handler := &fakeHandler{err: &pgconn.PgError{Code: "23505", ConstraintName: "uq_notifications_leave_kind"}}

		handleMessage(ctx, reader, handler, leaveMessage(t, event), log)

		assert.Len(t, reader.committed, 1)
	})

	t.Run("handler failure leaves offset", func(t *testing.T) {
		reader := &fakeReader{}
		handler := &fakeHandler{err: errors.New("db down")}

		handleMessage(ctx, reader, handler, leaveMessage(t, event), log)

		assert.Empty(t, reader.committed)
	})
}

func TestConsumeLeaveLifecycle_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		ConsumeLeaveLifecycle(ctx, &fakeReader{}, &fakeHandler{}, zap.NewNop())
		close(done)
	}()
	<-done
}
