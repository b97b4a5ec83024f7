package leave

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	leaveerrors "go-hrms/internal/leave/errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
)

var sortColumns = map[string]string{
	"created_at": "created_at",
	"start_date": "start_date",
	"end_date":   "end_date",
	"status":     "status",
	"leave_type": "leave_type",
	"total_days": "total_days",
}

type ListFilter struct {
	EmployeeID string
	Status     Status
	LeaveType  LeaveType
	Search     string
	SortBy     string
	SortOrder  string
	Page       int
	Limit      int
}

// Normalize clamps paging and falls back to created_at desc for unknown sorts.
func (f ListFilter) Normalize() ListFilter {
	if f.Page < 1 {
		f.Page = defaultPage
	}
	if f.Limit < 1 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}
	if _, ok := sortColumns[f.SortBy]; !ok {
		f.SortBy = "created_at"
	}
	if strings.ToLower(f.SortOrder) != "asc" {
		f.SortOrder = "desc"
	} else {
		f.SortOrder = "asc"
	}
	return f
}

//go:generate mockgen -source=leave_repo.go -destination=mock/leave_repo_mock.go -package=mock
type Repository interface {
	WithTx(tx *sql.Tx) Repository
	LockEmployee(ctx context.Context, employeeID string) error
	Create(ctx context.Context, l *Leave) error
	FindByID(ctx context.Context, id string) (*Leave, error)
	FindByIDForUpdate(ctx context.Context, id string) (*Leave, error)
	FindAll(ctx context.Context, f ListFilter) ([]Leave, int64, error)
	Update(ctx context.Context, l *Leave) error
	FindActiveInRange(ctx context.Context, employeeID string, start, end time.Time) ([]Leave, error)
	SumApprovedDays(ctx context.Context, employeeID string, leaveType LeaveType, from, to time.Time) (decimal.Decimal, error)
	CountByStatus(ctx context.Context, from, to time.Time) (map[Status]int64, error)
	CountByType(ctx context.Context, from, to time.Time) (map[LeaveType]int64, error)
	CountPending(ctx context.Context) (int64, error)
}

type repository struct {
	db *gorm.DB
	tx *sql.Tx
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *sql.Tx) Repository {
	return &repository{db: r.db, tx: tx}
}

// conn routes queries through the bound transaction when there is one.
func (r *repository) conn(ctx context.Context) *gorm.DB {
	db := r.db.WithContext(ctx)
	if r.tx != nil {
		db.Statement.ConnPool = r.tx
	}
	return db
}

// LockEmployee serialises leave writes per employee until the surrounding
// transaction ends. Outside a transaction the lock would release at once.
func (r *repository) LockEmployee(ctx context.Context, employeeID string) error {
	return r.conn(ctx).Exec("SELECT pg_advisory_xact_lock(hashtext(?))", employeeID).Error
}

func (r *repository) Create(ctx context.Context, l *Leave) error {
	return mapWriteError(r.conn(ctx).Create(l).Error)
}

func (r *repository) FindByID(ctx context.Context, id string) (*Leave, error) {
	var l Leave
	if err := r.conn(ctx).First(&l, "id = ?", id).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &l, nil
}

// FindByIDForUpdate row-locks the record for the rest of the transaction.
func (r *repository) FindByIDForUpdate(ctx context.Context, id string) (*Leave, error) {
	var l Leave
	err := r.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&l, "id = ?", id).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &l, nil
}

func (r *repository) FindAll(ctx context.Context, f ListFilter) ([]Leave, int64, error) {
	f = f.Normalize()

	var total int64
	if err := r.conn(ctx).Model(&Leave{}).Scopes(filterScope(f)).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var leaves []Leave
	err := r.conn(ctx).
		Model(&Leave{}).
		Scopes(filterScope(f)).
		Select("leaves.*").
		Order(clause.OrderByColumn{
			Column: clause.Column{Table: "leaves", Name: sortColumns[f.SortBy]},
			Desc:   f.SortOrder == "desc",
		}).
		Limit(f.Limit).
		Offset((f.Page - 1) * f.Limit).
		Find(&leaves).Error
	if err != nil {
		return nil, 0, err
	}
	return leaves, total, nil
}

func filterScope(f ListFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if f.EmployeeID != "" {
			db = db.Where("leaves.employee_id = ?", f.EmployeeID)
		}
		if f.Status != "" {
			db = db.Where("leaves.status = ?", f.Status)
		}
		if f.LeaveType != "" {
			db = db.Where("leaves.leave_type = ?", f.LeaveType)
		}
		if s := strings.TrimSpace(f.Search); s != "" {
			like := "%" + s + "%"
			db = db.Joins("JOIN users ON users.id = leaves.user_id").
				Where("(users.first_name ILIKE ? OR users.last_name ILIKE ? OR leaves.reason ILIKE ?)", like, like, like)
		}
		return db
	}
}

func (r *repository) Update(ctx context.Context, l *Leave) error {
	return mapWriteError(r.conn(ctx).Save(l).Error)
}

func (r *repository) FindActiveInRange(ctx context.Context, employeeID string, start, end time.Time) ([]Leave, error) {
	var leaves []Leave
	err := r.conn(ctx).
		Where("employee_id = ?", employeeID).
		Where("status IN ?", []Status{StatusPending, StatusApproved}).
		Where("start_date <= ? AND end_date >= ?", end, start).
		Order("start_date ASC").
		Find(&leaves).Error
	return leaves, err
}

func (r *repository) SumApprovedDays(ctx context.Context, employeeID string, leaveType LeaveType, from, to time.Time) (decimal.Decimal, error) {
	var used decimal.Decimal
	row := r.conn(ctx).
		Model(&Leave{}).
		Select("COALESCE(SUM(total_days), 0)").
		Where("employee_id = ?", employeeID).
		Where("leave_type = ?", leaveType).
		Where("status = ?", StatusApproved).
		Where("start_date BETWEEN ? AND ?", from, to).
		Row()
	if err := row.Scan(&used); err != nil {
		return decimal.Zero, err
	}
	return used, nil
}

type groupCount struct {
	Bucket string
	Count  int64
}

func (r *repository) countGrouped(ctx context.Context, column string, from, to time.Time) ([]groupCount, error) {
	var rows []groupCount
	err := r.conn(ctx).
		Model(&Leave{}).
		Select(column + " AS bucket, COUNT(id) AS count").
		Where("start_date BETWEEN ? AND ?", from, to).
		Group(column).
		Scan(&rows).Error
	return rows, err
}

func (r *repository) CountByStatus(ctx context.Context, from, to time.Time) (map[Status]int64, error) {
	rows, err := r.countGrouped(ctx, "status", from, to)
	if err != nil {
		return nil, err
	}
	out := make(map[Status]int64, len(rows))
	for _, row := range rows {
		out[Status(row.Bucket)] = row.Count
	}
	return out, nil
}

func (r *repository) CountByType(ctx context.Context, from, to time.Time) (map[LeaveType]int64, error) {
	rows, err := r.countGrouped(ctx, "leave_type", from, to)
	if err != nil {
		return nil, err
	}
	out := make(map[LeaveType]int64, len(rows))
	for _, row := range rows {
		out[LeaveType(row.Bucket)] = row.Count
	}
	return out, nil
}

func (r *repository) CountPending(ctx context.Context) (int64, error) {
	var n int64
	err := r.conn(ctx).Model(&Leave{}).Where("status = ?", StatusPending).Count(&n).Error
	return n, err
}

func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return leaveerrors.ErrLeaveNotFound
	}
	return err
}

// mapWriteError turns the leaves_no_overlap exclusion constraint into a
// conflict so a race that slips past the advisory lock still reports cleanly.
func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "23P01" || pgErr.Code == "23505") {
		return leaveerrors.ErrLeaveOverlap
	}
	return err
}
