package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"staybook/internal/models"
)

const bookingColumns = `id, booking_code, homestay_id, check_in, check_out, nights, adults, children, infants,
	guest_name, guest_email, guest_phone, special_requests, actual_guest_name, actual_guest_email, actual_guest_phone,
	base_amount, cleaning_fee, service_fee, tax_amount, discount_amount, total_amount, amount_paid, refund_due,
	status, payment_expires_at, cancellation_reason, cancelled_at, created_at, updated_at, version`

func scanBooking(row rowScanner) (*models.Booking, error) {
	var b models.Booking
	var actualName, actualEmail, actualPhone string
	err := row.Scan(
		&b.ID, &b.BookingCode, &b.HomestayID, &b.CheckIn, &b.CheckOut, &b.Nights, &b.Adults, &b.Children, &b.Infants,
		&b.GuestName, &b.GuestEmail, &b.GuestPhone, &b.SpecialRequests, &actualName, &actualEmail, &actualPhone,
		&b.BaseAmount, &b.CleaningFee, &b.ServiceFee, &b.TaxAmount, &b.DiscountAmount, &b.TotalAmount, &b.AmountPaid, &b.RefundDue,
		&b.Status, &b.PaymentExpiresAt, &b.CancellationReason, &b.CancelledAt, &b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, err
	}
	if actualName != "" {
		b.ActualGuest = &models.ActualGuest{Name: actualName, Email: actualEmail, Phone: actualPhone}
	}
	return &b, nil
}

func actualGuestFields(b *models.Booking) (string, string, string) {
	if b.ActualGuest == nil {
		return "", "", ""
	}
	return b.ActualGuest.Name, b.ActualGuest.Email, b.ActualGuest.Phone
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// CreateBookingWithReservation inserts the booking and claims its range in
// one transaction. It fails with ErrConflict if the range is taken.
func (db *DB) CreateBookingWithReservation(ctx context.Context, b *models.Booking) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		overlap, err := hasOverlap(ctx, tx, b.HomestayID, b.CheckIn, b.CheckOut, 0)
		if err != nil {
			return err
		}
		if overlap {
			return fmt.Errorf("homestay %d %s..%s: %w", b.HomestayID, b.CheckIn, b.CheckOut, ErrConflict)
		}

		query := `INSERT INTO bookings (
                    booking_code, homestay_id, check_in, check_out, nights, adults, children, infants,
                    guest_name, guest_email, guest_phone, special_requests, actual_guest_name, actual_guest_email,
                    actual_guest_phone, base_amount, cleaning_fee, service_fee, tax_amount, discount_amount,
                    total_amount, amount_paid, refund_due, status, payment_expires_at, cancellation_reason,
                    cancelled_at, created_at, updated_at, version
                  ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		now := time.Now().UTC()
		actualName, actualEmail, actualPhone := actualGuestFields(b)
		result, err := tx.ExecContext(ctx, query,
			b.BookingCode, b.HomestayID, b.CheckIn, b.CheckOut, b.Nights, b.Adults, b.Children, b.Infants,
			b.GuestName, b.GuestEmail, b.GuestPhone, b.SpecialRequests, actualName, actualEmail,
			actualPhone, b.BaseAmount, b.CleaningFee, b.ServiceFee, b.TaxAmount, b.DiscountAmount,
			b.TotalAmount, b.AmountPaid, b.RefundDue, b.Status, utcPtr(b.PaymentExpiresAt), b.CancellationReason,
			utcPtr(b.CancelledAt), now, now, 1,
		)
		if err != nil {
			return fmt.Errorf("failed to insert booking: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}

		if err := upsertReservation(ctx, tx, models.Reservation{
			BookingID:  id,
			HomestayID: b.HomestayID,
			CheckIn:    b.CheckIn,
			CheckOut:   b.CheckOut,
			Status:     b.Status,
		}); err != nil {
			return err
		}

		b.ID = id
		b.CreatedAt = now
		b.UpdatedAt = now
		b.Version = 1
		return nil
	})
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	b, err := scanBooking(db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id))
	if err != nil {
		return nil, notFoundOr(err, "booking %d", id)
	}
	return b, nil
}

func (db *DB) GetBookingByCode(ctx context.Context, code string) (*models.Booking, error) {
	b, err := scanBooking(db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE booking_code = ?`, code))
	if err != nil {
		return nil, notFoundOr(err, "booking %s", code)
	}
	return b, nil
}

// ListBookings filters by homestay, status and stays touching [From, To).
func (db *DB) ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error) {
	var where []string
	var args []interface{}

	if filter.HomestayID != 0 {
		where = append(where, "homestay_id = ?")
		args = append(args, filter.HomestayID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if !filter.To.IsZero() {
		where = append(where, "check_in < ?")
		args = append(args, filter.To)
	}
	if !filter.From.IsZero() {
		where = append(where, "check_out > ?")
		args = append(args, filter.From)
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY check_in ASC, id ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = models.DefaultListLimit
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	return db.queryBookings(ctx, query, args...)
}

// ListExpiredPending returns pending bookings whose payment deadline is at or before now.
func (db *DB) ListExpiredPending(ctx context.Context, now time.Time) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
              WHERE status = ? AND payment_expires_at IS NOT NULL AND payment_expires_at <= ?
              ORDER BY payment_expires_at ASC`
	return db.queryBookings(ctx, query, models.StatusPending, now.UTC())
}

func (db *DB) queryBookings(ctx context.Context, query string, args ...interface{}) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bookings, nil
}

// saveBooking writes every mutable column guarded by the version the caller read.
// extra narrows the WHERE clause further.
func saveBooking(ctx context.Context, q queryer, b *models.Booking, extra string, extraArgs ...interface{}) error {
	query := `UPDATE bookings SET
                check_in = ?, check_out = ?, nights = ?, adults = ?, children = ?, infants = ?,
                guest_name = ?, guest_email = ?, guest_phone = ?, special_requests = ?,
                actual_guest_name = ?, actual_guest_email = ?, actual_guest_phone = ?,
                base_amount = ?, cleaning_fee = ?, service_fee = ?, tax_amount = ?, discount_amount = ?,
                total_amount = ?, amount_paid = ?, refund_due = ?, status = ?, payment_expires_at = ?,
                cancellation_reason = ?, cancelled_at = ?, updated_at = ?, version = version + 1
              WHERE id = ? AND version = ?` + extra
	now := time.Now().UTC()
	actualName, actualEmail, actualPhone := actualGuestFields(b)
	args := []interface{}{
		b.CheckIn, b.CheckOut, b.Nights, b.Adults, b.Children, b.Infants,
		b.GuestName, b.GuestEmail, b.GuestPhone, b.SpecialRequests,
		actualName, actualEmail, actualPhone,
		b.BaseAmount, b.CleaningFee, b.ServiceFee, b.TaxAmount, b.DiscountAmount,
		b.TotalAmount, b.AmountPaid, b.RefundDue, b.Status, utcPtr(b.PaymentExpiresAt),
		b.CancellationReason, utcPtr(b.CancelledAt), now,
		b.ID, b.Version,
	}
	args = append(args, extraArgs...)

	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("booking %d version %d: %w", b.ID, b.Version, ErrConcurrentModification)
	}
	b.Version++
	b.UpdatedAt = now
	return nil
}

// RescheduleBooking saves the booking and moves its reservation to the new
// range atomically. Its own reservation never conflicts with itself.
func (db *DB) RescheduleBooking(ctx context.Context, b *models.Booking) error {
	version := b.Version
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if err := reserve(ctx, tx, b.Reservation()); err != nil {
			return err
		}
		return saveBooking(ctx, tx, b, "")
	})
	if err != nil {
		b.Version = version
	}
	return err
}

// CancelBooking stores the cancelled booking and releases its reservation.
// Only rows still pending or confirmed are updated.
func (db *DB) CancelBooking(ctx context.Context, b *models.Booking) error {
	version := b.Version
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if err := saveBooking(ctx, tx, b, ` AND status IN (?, ?)`, models.StatusPending, models.StatusConfirmed); err != nil {
			return err
		}
		return releaseReservation(ctx, tx, b.ID)
	})
	if err != nil {
		b.Version = version
	}
	return err
}

// SaveBooking stores non-range changes (payments, status) and keeps the reservation status in step.
func (db *DB) SaveBooking(ctx context.Context, b *models.Booking) error {
	version := b.Version
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if err := saveBooking(ctx, tx, b, ""); err != nil {
			return err
		}
		return syncReservationStatus(ctx, tx, b.ID, b.Status)
	})
	if err != nil {
		b.Version = version
	}
	return err
}

func (db *DB) UpdateBookingStatus(ctx context.Context, id, version int64, status string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		query := `UPDATE bookings SET status = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`
		result, err := tx.ExecContext(ctx, query, status, time.Now().UTC(), id, version)
		if err != nil {
			return fmt.Errorf("failed to update booking status: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		if rows == 0 {
			return fmt.Errorf("booking %d version %d: %w", id, version, ErrConcurrentModification)
		}
		return syncReservationStatus(ctx, tx, id, status)
	})
}
