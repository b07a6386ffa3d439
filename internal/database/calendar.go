package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"staybook/internal/models"
)

const calendarColumns = `homestay_id, date, is_available, is_blocked, block_reason, custom_price, minimum_nights, updated_at`

func scanCalendarEntry(row rowScanner) (*models.CalendarEntry, error) {
	var e models.CalendarEntry
	if err := row.Scan(
		&e.HomestayID, &e.Date, &e.IsAvailable, &e.IsBlocked, &e.BlockReason, &e.CustomPrice, &e.MinimumNights, &e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &e, nil
}

// GetOverride returns nil without error when the date has no override.
func (db *DB) GetOverride(ctx context.Context, homestayID int64, date models.Date) (*models.CalendarEntry, error) {
	e, err := scanCalendarEntry(db.QueryRowContext(ctx,
		`SELECT `+calendarColumns+` FROM calendar_entries WHERE homestay_id = ? AND date = ?`, homestayID, date))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get calendar override: %w", err)
	}
	return e, nil
}

// ListOverrides returns the overrides for dates in [from, to).
func (db *DB) ListOverrides(ctx context.Context, homestayID int64, from, to models.Date) (models.Overrides, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+calendarColumns+` FROM calendar_entries WHERE homestay_id = ? AND date >= ? AND date < ? ORDER BY date`,
		homestayID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list calendar overrides: %w", err)
	}
	defer rows.Close()

	overrides := make(models.Overrides)
	for rows.Next() {
		e, err := scanCalendarEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan calendar override: %w", err)
		}
		overrides[e.Date.String()] = *e
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return overrides, nil
}

const upsertCalendarQuery = `INSERT INTO calendar_entries (` + calendarColumns + `)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    ON CONFLICT(homestay_id, date) DO UPDATE SET
        is_available = excluded.is_available,
        is_blocked = excluded.is_blocked,
        block_reason = excluded.block_reason,
        custom_price = excluded.custom_price,
        minimum_nights = excluded.minimum_nights,
        updated_at = excluded.updated_at`

func upsertCalendarEntry(ctx context.Context, q queryer, e *models.CalendarEntry) error {
	e.Normalize()
	e.UpdatedAt = time.Now().UTC()
	_, err := q.ExecContext(ctx, upsertCalendarQuery,
		e.HomestayID, e.Date, e.IsAvailable, e.IsBlocked, e.BlockReason, e.CustomPrice, e.MinimumNights, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert calendar override %s: %w", e.Date, err)
	}
	return nil
}

// UpsertCalendarEntry writes one override. A blocked date is always stored as unavailable.
func (db *DB) UpsertCalendarEntry(ctx context.Context, entry *models.CalendarEntry) error {
	return upsertCalendarEntry(ctx, db, entry)
}

// UpsertCalendarRange applies the same override to every date in [from, to).
func (db *DB) UpsertCalendarRange(ctx context.Context, entry models.CalendarEntry, from, to models.Date) (int, error) {
	count := 0
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		for d := from; d.Before(to); d = d.AddDays(1) {
			e := entry
			e.Date = d
			if err := upsertCalendarEntry(ctx, tx, &e); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (db *DB) DeleteCalendarEntry(ctx context.Context, homestayID int64, date models.Date) error {
	result, err := db.ExecContext(ctx, `DELETE FROM calendar_entries WHERE homestay_id = ? AND date = ?`, homestayID, date)
	if err != nil {
		return fmt.Errorf("failed to delete calendar override: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("calendar override %s: %w", date, ErrNotFound)
	}
	return nil
}
