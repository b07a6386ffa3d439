package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"staybook/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDB_ErrorPaths(t *testing.T) {
	db := setupTestDB(t)
	db.Close() // Close the DB to trigger errors

	ctx := context.Background()
	jun1, jun4 := models.NewDate(2024, 6, 1), models.NewDate(2024, 6, 4)

	t.Run("HasOverlap", func(t *testing.T) {
		_, err := db.HasOverlap(ctx, 1, jun1, jun4, 0)
		assert.Error(t, err)
	})

	t.Run("Reserve", func(t *testing.T) {
		assert.Error(t, db.Reserve(ctx, models.Reservation{BookingID: 1, HomestayID: 1, CheckIn: jun1, CheckOut: jun4}))
	})

	t.Run("CreateBookingWithReservation", func(t *testing.T) {
		assert.Error(t, db.CreateBookingWithReservation(ctx, &models.Booking{CheckIn: jun1, CheckOut: jun4}))
	})

	t.Run("ListOverrides", func(t *testing.T) {
		_, err := db.ListOverrides(ctx, 1, jun1, jun4)
		assert.Error(t, err)
	})

	t.Run("ListBookings", func(t *testing.T) {
		_, err := db.ListBookings(ctx, models.BookingFilter{})
		assert.Error(t, err)
	})

	t.Run("GetHomestay", func(t *testing.T) {
		_, err := db.GetHomestay(ctx, 1)
		assert.Error(t, err)
		assert.False(t, errors.Is(err, ErrNotFound))
	})

	t.Run("CreateSyncTask", func(t *testing.T) {
		assert.Error(t, db.CreateSyncTask(ctx, &models.SyncTask{}))
	})

	t.Run("UpdateBookingStatus", func(t *testing.T) {
		assert.Error(t, db.UpdateBookingStatus(ctx, 1, 1, models.StatusConfirmed))
	})
}

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	logger := zerolog.Nop()
	return newWithConn(sqlDB, &logger), mock
}

func TestGetBooking_NotFoundMapping(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`FROM bookings WHERE id = \?`).
		WithArgs(int64(7)).
		WillReturnError(sql.ErrNoRows)

	_, err := db.GetBooking(context.Background(), 7)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBookingWithReservation_ConflictRollsBack(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	b := &models.Booking{HomestayID: 1, CheckIn: models.NewDate(2024, 6, 1), CheckOut: models.NewDate(2024, 6, 4)}
	err := db.CreateBookingWithReservation(context.Background(), b)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Zero(t, b.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveBooking_StaleVersion(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE bookings SET`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	b := &models.Booking{ID: 3, Version: 5, Status: models.StatusConfirmed, CheckIn: models.NewDate(2024, 6, 1), CheckOut: models.NewDate(2024, 6, 4)}
	err := db.SaveBooking(context.Background(), b)
	assert.ErrorIs(t, err, ErrConcurrentModification)
	assert.Equal(t, int64(5), b.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateBookingStatus_RowsAffected(t *testing.T) {
	t.Run("StaleVersion", func(t *testing.T) {
		db, mock := newMockDB(t)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE bookings SET status`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := db.UpdateBookingStatus(context.Background(), 9, 4, models.StatusConfirmed)
		assert.ErrorIs(t, err, ErrConcurrentModification)
		assert.Contains(t, err.Error(), "booking 9 version 4")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DriverError", func(t *testing.T) {
		db, mock := newMockDB(t)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE bookings SET status`).
			WillReturnResult(sqlmock.NewErrorResult(errors.New("rows affected unsupported")))
		mock.ExpectRollback()

		err := db.UpdateBookingStatus(context.Background(), 9, 4, models.StatusConfirmed)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rows affected unsupported")
		assert.NotErrorIs(t, err, ErrConcurrentModification)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestReserve_CommitFailure(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`INSERT INTO reservations`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit().WillReturnError(errors.New("disk I/O error"))

	err := db.Reserve(context.Background(), models.Reservation{
		BookingID: 1, HomestayID: 1, CheckIn: models.NewDate(2024, 6, 1), CheckOut: models.NewDate(2024, 6, 4),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListExpiredPending_QueryError(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`payment_expires_at <= \?`).WillReturnError(errors.New("locked"))

	_, err := db.ListExpiredPending(context.Background(), time.Now())
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
