package notification

import (
	"context"
	"errors"
	"time"

	notificationerrors "go-hrms/internal/notification/errors"

	"gorm.io/gorm"
)

type ListFilter struct {
	UserID     string
	UnreadOnly bool
	Page       int
	Limit      int
}

//go:generate mockgen -source=notification_repo.go -destination=mock/notification_repo_mock.go -package=mock
type Repository interface {
	Create(ctx context.Context, n *Notification) error
	FindByUser(ctx context.Context, f ListFilter) ([]Notification, int64, error)
	MarkRead(ctx context.Context, id, userID string, at time.Time) (*Notification, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, n *Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *repository) FindByUser(ctx context.Context, f ListFilter) ([]Notification, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Where("user_id = ?", f.UserID)
		if f.UnreadOnly {
			db = db.Where("read_at IS NULL")
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&Notification{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []Notification
	err := r.db.WithContext(ctx).
		Scopes(scope).
		Order("created_at DESC").
		Limit(f.Limit).
		Offset((f.Page - 1) * f.Limit).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// MarkRead stamps read_at once; marking an already read notification keeps
// the first timestamp.
func (r *repository) MarkRead(ctx context.Context, id, userID string, at time.Time) (*Notification, error) {
	err := r.db.WithContext(ctx).
		Model(&Notification{}).
		Where("id = ? AND user_id = ? AND read_at IS NULL", id, userID).
		Update("read_at", at).Error
	if err != nil {
		return nil, err
	}

	var n Notification
	if err := r.db.WithContext(ctx).First(&n, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notificationerrors.ErrNotificationNotFound
		}
		return nil, err
	}
	return &n, nil
}
