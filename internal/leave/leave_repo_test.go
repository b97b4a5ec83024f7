package leave

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	leaveerrors "go-hrms/internal/leave/errors"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockGorm(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)
	return gdb, mock
}

func TestRepository_LockEmployee(t *testing.T) {
	gdb, mock := newMockGorm(t)
	repo := NewRepository(gdb)
	employeeID := uuid.NewString()

	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock(hashtext($1))`)).
		WithArgs(employeeID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.LockEmployee(context.Background(), employeeID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_FindByID_NotFound(t *testing.T) {
	gdb, mock := newMockGorm(t)
	repo := NewRepository(gdb)
	id := uuid.NewString()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "leaves" WHERE id = $1`)).
		WithArgs(id, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.FindByID(context.Background(), id)
	assert.ErrorIs(t, err, leaveerrors.ErrLeaveNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_FindByIDForUpdate(t *testing.T) {
	gdb, mock := newMockGorm(t)
	repo := NewRepository(gdb)
	id := uuid.New()
	employeeID := uuid.New()

	mock.ExpectQuery(`SELECT \* FROM "leaves" WHERE id = \$1 .*FOR UPDATE`).
		WithArgs(id.String(), 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "employee_id", "leave_type", "start_date", "end_date", "total_days", "status"}).
			AddRow(id.String(), employeeID.String(), "annual", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), "2", "pending"))

	l, err := repo.FindByIDForUpdate(context.Background(), id.String())
	require.NoError(t, err)
	assert.Equal(t, employeeID, l.EmployeeID)
	assert.Equal(t, StatusPending, l.Status)
	assert.True(t, decimal.NewFromInt(2).Equal(l.TotalDays))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_SumApprovedDays(t *testing.T) {
	gdb, mock := newMockGorm(t)
	repo := NewRepository(gdb)
	employeeID := uuid.NewString()
	from, to := YearBounds(2024)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COALESCE(SUM(total_days), 0) FROM "leaves"`)).
		WithArgs(employeeID, "annual", "approved", from, to).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow("6.5"))

	used, err := repo.SumApprovedDays(context.Background(), employeeID, TypeAnnual, from, to)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("6.5").Equal(used))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_CountPending(t *testing.T) {
	gdb, mock := newMockGorm(t)
	repo := NewRepository(gdb)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "leaves" WHERE status = $1`)).
		WithArgs("pending").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	n, err := repo.CountPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_CountByStatus(t *testing.T) {
	gdb, mock := newMockGorm(t)
	repo := NewRepository(gdb)
	from, to := YearBounds(2024)

	mock.ExpectQuery(`SELECT status AS bucket, COUNT\(id\) AS count FROM "leaves"`).
		WithArgs(from, to).
		WillReturnRows(sqlmock.NewRows([]string{"bucket", "count"}).
			AddRow("pending", 2).
			AddRow("approved", 7))

	got, err := repo.CountByStatus(context.Background(), from, to)
	require.NoError(t, err)
	assert.Equal(t, map[Status]int64{StatusPending: 2, StatusApproved: 7}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMapWriteError(t *testing.T) {
	assert.NoError(t, mapWriteError(nil))
	assert.ErrorIs(t, mapWriteError(&pgconn.PgError{Code: "23P01", ConstraintName: "leaves_no_overlap"}), leaveerrors.ErrLeaveOverlap)
	assert.ErrorIs(t, mapWriteError(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})), leaveerrors.ErrLeaveOverlap)

	other := errors.New("connection reset")
	assert.Equal(t, other, mapWriteError(other))
	assert.Equal(t, gorm.ErrInvalidData, mapWriteError(gorm.ErrInvalidData))
}

func TestListFilter_Normalize(t *testing.T) {
	f := ListFilter{Page: 0, Limit: 500, SortBy: "salary; DROP TABLE", SortOrder: "ASC"}.Normalize()

	assert.Equal(t, 1, f.Page)
	assert.Equal(t, 100, f.Limit)
	assert.Equal(t, "created_at", f.SortBy)
	assert.Equal(t, "asc", f.SortOrder)

	f = ListFilter{SortBy: "start_date"}.Normalize()
	assert.Equal(t, 10, f.Limit)
	assert.Equal(t, "start_date", f.SortBy)
	assert.Equal(t, "desc", f.SortOrder)
}
