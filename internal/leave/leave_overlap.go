package leave

import (
	"context"
	"time"

	"github.com/google/uuid"

	leaveerrors "go-hrms/internal/leave/errors"
)

// Overlaps reports whether two inclusive date ranges share at least one day.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !dateOnly(aStart).After(dateOnly(bEnd)) && !dateOnly(aEnd).Before(dateOnly(bStart))
}

// RangeReader returns an employee's pending and approved requests that may
// intersect [start, end]; implemented by Repository.
type RangeReader interface {
	FindActiveInRange(ctx context.Context, employeeID string, start, end time.Time) ([]Leave, error)
}

type OverlapConflict struct {
	LeaveID   string `json:"leave_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Status    Status `json:"status"`
}

// CheckOverlap fails with a conflict naming the first clashing request.
// Records listed in exclude are ignored, so an update does not clash with
// itself.
func CheckOverlap(ctx context.Context, r RangeReader, employeeID string, start, end time.Time, exclude ...uuid.UUID) error {
	existing, err := r.FindActiveInRange(ctx, employeeID, start, end)
	if err != nil {
		return err
	}

	for _, l := range existing {
		if !l.Status.Active() || excluded(l.ID, exclude) {
			continue
		}
		if Overlaps(l.StartDate, l.EndDate, start, end) {
			return leaveerrors.ErrLeaveOverlap.WithDetails(OverlapConflict{
				LeaveID:   l.ID.String(),
				StartDate: l.StartDate.Format(dateLayout),
				EndDate:   l.EndDate.Format(dateLayout),
				Status:    l.Status,
			})
		}
	}
	return nil
}

func excluded(id uuid.UUID, ids []uuid.UUID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
