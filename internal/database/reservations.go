package database

import (
	"context"
	"database/sql"
	"fmt"

	"staybook/internal/models"
)

// hasOverlap uses half-open ranges: [a1, a2) and [b1, b2) overlap iff a1 < b2 AND b1 < a2.
// Dates are stored as YYYY-MM-DD so string comparison follows calendar order.
func hasOverlap(ctx context.Context, q queryer, homestayID int64, checkIn, checkOut models.Date, excludeBookingID int64) (bool, error) {
	statusClause, statusArgs := activeStatusClause("status")
	query := `SELECT EXISTS (
                SELECT 1 FROM reservations
                WHERE homestay_id = ? AND check_in < ? AND ? < check_out AND booking_id != ? AND ` + statusClause + `
              )`
	args := append([]interface{}{homestayID, checkOut, checkIn, excludeBookingID}, statusArgs...)

	var exists bool
	if err := q.QueryRowContext(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check reservation overlap: %w", err)
	}
	return exists, nil
}

func upsertReservation(ctx context.Context, q queryer, r models.Reservation) error {
	query := `INSERT INTO reservations (booking_id, homestay_id, check_in, check_out, status)
              VALUES (?, ?, ?, ?, ?)
              ON CONFLICT(booking_id) DO UPDATE SET
                homestay_id = excluded.homestay_id,
                check_in = excluded.check_in,
                check_out = excluded.check_out,
                status = excluded.status`
	if _, err := q.ExecContext(ctx, query, r.BookingID, r.HomestayID, r.CheckIn, r.CheckOut, r.Status); err != nil {
		return fmt.Errorf("failed to write reservation: %w", err)
	}
	return nil
}

// reserve checks and writes inside the caller's transaction.
func reserve(ctx context.Context, q queryer, r models.Reservation) error {
	if !r.CheckIn.Before(r.CheckOut) {
		return fmt.Errorf("reservation %s..%s: %w", r.CheckIn, r.CheckOut, ErrInvalidRange)
	}
	overlap, err := hasOverlap(ctx, q, r.HomestayID, r.CheckIn, r.CheckOut, r.BookingID)
	if err != nil {
		return err
	}
	if overlap {
		return fmt.Errorf("homestay %d %s..%s: %w", r.HomestayID, r.CheckIn, r.CheckOut, ErrConflict)
	}
	return upsertReservation(ctx, q, r)
}

func releaseReservation(ctx context.Context, q queryer, bookingID int64) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM reservations WHERE booking_id = ?`, bookingID); err != nil {
		return fmt.Errorf("failed to release reservation: %w", err)
	}
	return nil
}

// syncReservationStatus mirrors the booking status onto its reservation and
// drops it once the booking no longer blocks the calendar.
func syncReservationStatus(ctx context.Context, q queryer, bookingID int64, status string) error {
	if !models.IsActiveReservationStatus(status) {
		return releaseReservation(ctx, q, bookingID)
	}
	if _, err := q.ExecContext(ctx, `UPDATE reservations SET status = ? WHERE booking_id = ?`, status, bookingID); err != nil {
		return fmt.Errorf("failed to update reservation status: %w", err)
	}
	return nil
}

func (db *DB) HasOverlap(ctx context.Context, homestayID int64, checkIn, checkOut models.Date, excludeBookingID int64) (bool, error) {
	return hasOverlap(ctx, db, homestayID, checkIn, checkOut, excludeBookingID)
}

// Reserve claims the range for r.BookingID or fails with ErrConflict.
// The overlap check and the write share one transaction.
func (db *DB) Reserve(ctx context.Context, r models.Reservation) error {
	if r.Status == "" {
		r.Status = models.StatusPending
	}
	return db.withTx(ctx, func(tx *sql.Tx) error {
		return reserve(ctx, tx, r)
	})
}

// Release removes the booking's reservation. Releasing twice is a no-op.
func (db *DB) Release(ctx context.Context, bookingID int64) error {
	return releaseReservation(ctx, db, bookingID)
}

// ListReservations returns active reservations touching [from, to). homestayID 0 means all homestays.
func (db *DB) ListReservations(ctx context.Context, homestayID int64, from, to models.Date) ([]models.Reservation, error) {
	statusClause, statusArgs := activeStatusClause("status")
	query := `SELECT booking_id, homestay_id, check_in, check_out, status FROM reservations
              WHERE check_in < ? AND ? < check_out AND ` + statusClause
	args := append([]interface{}{to, from}, statusArgs...)
	if homestayID != 0 {
		query += ` AND homestay_id = ?`
		args = append(args, homestayID)
	}
	query += ` ORDER BY homestay_id, check_in`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	defer rows.Close()

	var out []models.Reservation
	for rows.Next() {
		var r models.Reservation
		if err := rows.Scan(&r.BookingID, &r.HomestayID, &r.CheckIn, &r.CheckOut, &r.Status); err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
