package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"staybook/internal/models"
)

const homestayColumns = `id, host_id, name, base_price, weekend_price, weekly_discount_bps, monthly_discount_bps,
	weekly_threshold_nights, monthly_threshold_nights, min_nights, max_nights, max_guests, max_children,
	cleaning_fee, service_fee, tax_rate_bps, free_cancellation_days, prepayment_required, is_active,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanHomestay(row rowScanner) (*models.Homestay, error) {
	var h models.Homestay
	err := row.Scan(
		&h.ID, &h.HostID, &h.Name, &h.BasePrice, &h.WeekendPrice, &h.WeeklyDiscountBps, &h.MonthlyDiscountBps,
		&h.WeeklyThresholdNights, &h.MonthlyThresholdNights, &h.MinNights, &h.MaxNights, &h.MaxGuests, &h.MaxChildren,
		&h.CleaningFee, &h.ServiceFee, &h.TaxRateBps, &h.FreeCancellationDays, &h.PrepaymentRequired, &h.IsActive,
		&h.CreatedAt, &h.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func homestayArgs(h *models.Homestay) []interface{} {
	return []interface{}{
		h.HostID, h.Name, h.BasePrice, h.WeekendPrice, h.WeeklyDiscountBps, h.MonthlyDiscountBps,
		h.WeeklyThresholdNights, h.MonthlyThresholdNights, h.MinNights, h.MaxNights, h.MaxGuests, h.MaxChildren,
		h.CleaningFee, h.ServiceFee, h.TaxRateBps, h.FreeCancellationDays, h.PrepaymentRequired, h.IsActive,
	}
}

func (db *DB) cacheHomestay(h *models.Homestay) {
	db.mu.Lock()
	db.homestayCache[h.ID] = *h
	db.mu.Unlock()
}

func (db *DB) CreateHomestay(ctx context.Context, h *models.Homestay) error {
	query := `INSERT INTO homestays (host_id, name, base_price, weekend_price, weekly_discount_bps, monthly_discount_bps,
                weekly_threshold_nights, monthly_threshold_nights, min_nights, max_nights, max_guests, max_children,
                cleaning_fee, service_fee, tax_rate_bps, free_cancellation_days, prepayment_required, is_active,
                created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	args := append(homestayArgs(h), now, now)
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to create homestay: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	h.ID = id
	h.CreatedAt = now
	h.UpdatedAt = now

	db.cacheHomestay(h)
	return nil
}

func (db *DB) UpdateHomestay(ctx context.Context, h *models.Homestay) error {
	query := `UPDATE homestays SET host_id = ?, name = ?, base_price = ?, weekend_price = ?, weekly_discount_bps = ?,
                monthly_discount_bps = ?, weekly_threshold_nights = ?, monthly_threshold_nights = ?, min_nights = ?,
                max_nights = ?, max_guests = ?, max_children = ?, cleaning_fee = ?, service_fee = ?, tax_rate_bps = ?,
                free_cancellation_days = ?, prepayment_required = ?, is_active = ?, updated_at = ?
              WHERE id = ?`
	now := time.Now().UTC()
	args := append(homestayArgs(h), now, h.ID)
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update homestay: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("homestay %d: %w", h.ID, ErrNotFound)
	}
	h.UpdatedAt = now

	db.cacheHomestay(h)
	return nil
}

// GetHomestay serves from the cache and falls back to the table.
func (db *DB) GetHomestay(ctx context.Context, id int64) (*models.Homestay, error) {
	db.mu.RLock()
	cached, ok := db.homestayCache[id]
	db.mu.RUnlock()
	if ok {
		return &cached, nil
	}

	h, err := scanHomestay(db.QueryRowContext(ctx, `SELECT `+homestayColumns+` FROM homestays WHERE id = ?`, id))
	if err != nil {
		return nil, notFoundOr(err, "homestay %d", id)
	}
	db.cacheHomestay(h)
	return h, nil
}

func (db *DB) ListHomestays(ctx context.Context, activeOnly bool) ([]*models.Homestay, error) {
	query := `SELECT ` + homestayColumns + ` FROM homestays`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY id`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list homestays: %w", err)
	}
	defer rows.Close()

	var homestays []*models.Homestay
	for rows.Next() {
		h, err := scanHomestay(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan homestay: %w", err)
		}
		homestays = append(homestays, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return homestays, nil
}

// SyncHomestays upserts the homestays declared in config, keeping their IDs.
func (db *DB) SyncHomestays(ctx context.Context, homestays []models.Homestay) error {
	query := `INSERT INTO homestays (id, host_id, name, base_price, weekend_price, weekly_discount_bps, monthly_discount_bps,
                weekly_threshold_nights, monthly_threshold_nights, min_nights, max_nights, max_guests, max_children,
                cleaning_fee, service_fee, tax_rate_bps, free_cancellation_days, prepayment_required, is_active,
                created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET
                host_id = excluded.host_id, name = excluded.name, base_price = excluded.base_price,
                weekend_price = excluded.weekend_price, weekly_discount_bps = excluded.weekly_discount_bps,
                monthly_discount_bps = excluded.monthly_discount_bps,
                weekly_threshold_nights = excluded.weekly_threshold_nights,
                monthly_threshold_nights = excluded.monthly_threshold_nights,
                min_nights = excluded.min_nights, max_nights = excluded.max_nights,
                max_guests = excluded.max_guests, max_children = excluded.max_children,
                cleaning_fee = excluded.cleaning_fee, service_fee = excluded.service_fee,
                tax_rate_bps = excluded.tax_rate_bps, free_cancellation_days = excluded.free_cancellation_days,
                prepayment_required = excluded.prepayment_required, is_active = excluded.is_active,
                updated_at = excluded.updated_at`

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		for i := range homestays {
			h := homestays[i]
			args := append([]interface{}{h.ID}, homestayArgs(&h)...)
			args = append(args, now, now)
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("failed to sync homestay %d: %w", h.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	db.mu.Lock()
	db.homestayCache = make(map[int64]models.Homestay)
	db.mu.Unlock()

	db.logger.Info().Int("count", len(homestays)).Msg("homestays synced from config")
	return nil
}
