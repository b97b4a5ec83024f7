package employee

import (
	"context"
	"database/sql"
	"errors"

	employeeerrors "go-hrms/internal/employee/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

//go:generate mockgen -source=employee_repo.go -destination=mock/employee_repo_mock.go -package=mock
type Repository interface {
	WithTx(tx *sql.Tx) Repository
	FindByID(ctx context.Context, id string) (*Employee, error)
	FindByUserID(ctx context.Context, userID string) (*Employee, error)
}

type repository struct {
	db *gorm.DB
	tx *sql.Tx
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *sql.Tx) Repository {
	return &repository{
		db: r.db,
		tx: tx,
	}
}

// conn routes queries through the bound transaction when there is one.
func (r *repository) conn(ctx context.Context) *gorm.DB {
	db := r.db.WithContext(ctx)
	if r.tx != nil {
		db.Statement.ConnPool = r.tx
	}
	return db
}

func (r *repository) FindByID(ctx context.Context, id string) (*Employee, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, employeeerrors.ErrInvalidEmployeeID
	}

	var emp Employee
	if err := r.conn(ctx).First(&emp, "id = ?", id).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &emp, nil
}

func (r *repository) FindByUserID(ctx context.Context, userID string) (*Employee, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, employeeerrors.ErrEmployeeNotFound
	}

	var emp Employee
	if err := r.conn(ctx).First(&emp, "user_id = ?", userID).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &emp, nil
}

func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return employeeerrors.ErrEmployeeNotFound
	}
	return err
}
