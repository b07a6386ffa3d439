package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"staybook/internal/domain"
	"staybook/internal/models"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

var (
	ErrConflict               = domain.ErrConflict
	ErrNotFound               = domain.ErrNotFound
	ErrConcurrentModification = domain.ErrConcurrentModification
	ErrInvalidRange           = domain.ErrInvalidRange
)

// DB is the SQLite store. It runs on a single connection so every write
// transaction is serialized; inside a transaction only tx may be used.
type DB struct {
	*sql.DB
	logger *zerolog.Logger

	mu            sync.RWMutex
	homestayCache map[int64]models.Homestay
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if path != ":memory:" {
		// Создаем директорию для БД, если её нет
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_busy_timeout=5000"
	}
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("database initialized")
	return newWithConn(sqlDB, logger), nil
}

func newWithConn(sqlDB *sql.DB, logger *zerolog.Logger) *DB {
	return &DB{DB: sqlDB, logger: logger, homestayCache: make(map[int64]models.Homestay)}
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS homestays (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            host_id INTEGER NOT NULL DEFAULT 0,
            name TEXT NOT NULL,
            base_price INTEGER NOT NULL,
            weekend_price INTEGER,
            weekly_discount_bps INTEGER,
            monthly_discount_bps INTEGER,
            weekly_threshold_nights INTEGER,
            monthly_threshold_nights INTEGER,
            min_nights INTEGER NOT NULL DEFAULT 0,
            max_nights INTEGER NOT NULL DEFAULT 0,
            max_guests INTEGER NOT NULL DEFAULT 1,
            max_children INTEGER NOT NULL DEFAULT 0,
            cleaning_fee INTEGER NOT NULL DEFAULT 0,
            service_fee INTEGER NOT NULL DEFAULT 0,
            tax_rate_bps INTEGER NOT NULL DEFAULT 0,
            free_cancellation_days INTEGER NOT NULL DEFAULT 0,
            prepayment_required BOOLEAN NOT NULL DEFAULT 0,
            is_active BOOLEAN NOT NULL DEFAULT 1,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		// Переопределения календаря: одна строка на дату
		`CREATE TABLE IF NOT EXISTS calendar_entries (
            homestay_id INTEGER NOT NULL,
            date TEXT NOT NULL,
            is_available BOOLEAN NOT NULL DEFAULT 1,
            is_blocked BOOLEAN NOT NULL DEFAULT 0,
            block_reason TEXT NOT NULL DEFAULT '',
            custom_price INTEGER,
            minimum_nights INTEGER,
            updated_at DATETIME NOT NULL,
            PRIMARY KEY (homestay_id, date),
            CHECK (is_blocked = 0 OR is_available = 0)
        )`,
		`CREATE TABLE IF NOT EXISTS bookings (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            booking_code TEXT NOT NULL UNIQUE,
            homestay_id INTEGER NOT NULL,
            check_in TEXT NOT NULL,
            check_out TEXT NOT NULL,
            nights INTEGER NOT NULL,
            adults INTEGER NOT NULL,
            children INTEGER NOT NULL DEFAULT 0,
            infants INTEGER NOT NULL DEFAULT 0,
            guest_name TEXT NOT NULL,
            guest_email TEXT NOT NULL DEFAULT '',
            guest_phone TEXT NOT NULL DEFAULT '',
            special_requests TEXT NOT NULL DEFAULT '',
            actual_guest_name TEXT NOT NULL DEFAULT '',
            actual_guest_email TEXT NOT NULL DEFAULT '',
            actual_guest_phone TEXT NOT NULL DEFAULT '',
            base_amount INTEGER NOT NULL,
            cleaning_fee INTEGER NOT NULL,
            service_fee INTEGER NOT NULL,
            tax_amount INTEGER NOT NULL,
            discount_amount INTEGER NOT NULL,
            total_amount INTEGER NOT NULL,
            amount_paid INTEGER NOT NULL DEFAULT 0,
            refund_due INTEGER NOT NULL DEFAULT 0,
            status TEXT NOT NULL DEFAULT 'pending',
            payment_expires_at DATETIME,
            cancellation_reason TEXT NOT NULL DEFAULT '',
            cancelled_at DATETIME,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL,
            version INTEGER NOT NULL DEFAULT 1
        )`,
		// Реестр резерваций: одна активная запись на бронь
		`CREATE TABLE IF NOT EXISTS reservations (
            booking_id INTEGER PRIMARY KEY,
            homestay_id INTEGER NOT NULL,
            check_in TEXT NOT NULL,
            check_out TEXT NOT NULL,
            status TEXT NOT NULL,
            CHECK (check_in < check_out)
        )`,
		`CREATE TABLE IF NOT EXISTS sync_queue (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            task_type TEXT NOT NULL,
            booking_id INTEGER NOT NULL,
            payload TEXT,
            status TEXT NOT NULL DEFAULT 'pending',
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT,
            created_at DATETIME NOT NULL,
            processed_at DATETIME,
            next_retry_at DATETIME
        )`,

		`CREATE INDEX IF NOT EXISTS idx_bookings_homestay ON bookings(homestay_id, check_in)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_payment_expires ON bookings(status, payment_expires_at)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_range ON reservations(homestay_id, check_in, check_out)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_queue_status ON sync_queue(status, next_retry_at)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// withTx runs fn in a transaction, committing on nil and rolling back otherwise.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// activeStatusClause returns "status IN (?, ?, ?)" and its args for blocking reservations.
func activeStatusClause(column string) (string, []interface{}) {
	placeholders := make([]string, len(models.ActiveReservationStatuses))
	args := make([]interface{}, len(models.ActiveReservationStatuses))
	for i, s := range models.ActiveReservationStatuses {
		placeholders[i] = "?"
		args[i] = s
	}
	return fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ", ")), args
}

func notFoundOr(err error, format string, args ...interface{}) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFoundf(format, args...)
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
