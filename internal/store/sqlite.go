package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"courtbook/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const bookingColumns = `id, resource_id, requester_id, date, start_minute, end_minute, duration_hours,
	status, add_ons, discount_code, base_amount, additional_charges, discount_amount, total_amount,
	cancellation_reason, created_at, updated_at, confirmed_at, cancelled_at, completed_at, version`

// SQLiteStore persists bookings in the bookings table. The database must be
// opened with immediate transactions (see database.NewDB) so that
// InsertIfAvailable holds the write lock across its check and insert.
type SQLiteStore struct {
	db  *sql.DB
	loc *time.Location
}

// NewSQLiteStore wraps db. Dates and times are reconstructed in loc.
func NewSQLiteStore(db *sql.DB, loc *time.Location) *SQLiteStore {
	if loc == nil {
		loc = time.Local
	}
	return &SQLiteStore{db: db, loc: loc}
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.Booking, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := s.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking %s: %w", id, err)
	}
	return b, nil
}

func (s *SQLiteStore) FindOverlapping(
	ctx context.Context, resourceID string, date, start, end time.Time, statuses []model.Status,
) ([]model.Booking, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	day := model.DayStart(date)
	args := []any{resourceID, date.Format(model.DateLayout), minuteOfDay(day, end), minuteOfDay(day, start)}
	for _, st := range statuses {
		args = append(args, string(st))
	}

	return s.query(ctx, `SELECT `+bookingColumns+` FROM bookings
		WHERE resource_id = ? AND date = ?
		AND start_minute < ? AND end_minute > ?
		AND status IN (`+placeholders(len(statuses))+`)
		ORDER BY start_minute`, args...)
}

func (s *SQLiteStore) ListByResourceDate(ctx context.Context, resourceID string, date time.Time) ([]model.Booking, error) {
	return s.query(ctx, `SELECT `+bookingColumns+` FROM bookings
		WHERE resource_id = ? AND date = ?
		ORDER BY start_minute`, resourceID, date.Format(model.DateLayout))
}

// FindElapsed returns up to limit bookings in status whose end is not after
// before, oldest first.
func (s *SQLiteStore) FindElapsed(ctx context.Context, status model.Status, before time.Time, limit int) ([]model.Booking, error) {
	if limit <= 0 {
		limit = -1
	}
	local := before.In(s.loc)
	day := model.DayStart(local)
	date := day.Format(model.DateLayout)

	return s.query(ctx, `SELECT `+bookingColumns+` FROM bookings
		WHERE status = ?
		AND (date < ? OR (date = ? AND end_minute <= ?))
		ORDER BY date, start_minute
		LIMIT ?`, string(status), date, date, minuteOfDay(day, local), limit)
}

// InsertIfAvailable checks for overlapping blocking bookings and inserts b in
// one transaction.
func (s *SQLiteStore) InsertIfAvailable(ctx context.Context, b *model.Booking) (*model.Booking, error) {
	stored := b.Clone()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	stored.Version = 1

	day := model.DayStart(stored.Date)
	startMinute := minuteOfDay(day, stored.StartTime)
	endMinute := minuteOfDay(day, stored.EndTime)

	addOns, err := json.Marshal(stored.AddOns)
	if err != nil {
		return nil, fmt.Errorf("encode add-ons: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var overlapping int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings
		WHERE resource_id = ? AND date = ?
		AND start_minute < ? AND end_minute > ?
		AND status IN (?, ?)`,
		stored.ResourceID, stored.DateKey(), endMinute, startMinute,
		string(model.StatusPending), string(model.StatusConfirmed),
	).Scan(&overlapping)
	if err != nil {
		return nil, fmt.Errorf("check overlap: %w", err)
	}
	if overlapping > 0 {
		return nil, ErrConflict
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO bookings (`+bookingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		stored.ID, stored.ResourceID, stored.RequesterID, stored.DateKey(), startMinute, endMinute,
		stored.DurationHours.String(), string(stored.Status), string(addOns), stored.DiscountCode,
		stored.BaseAmount.String(), stored.AdditionalCharges.String(), stored.DiscountAmount.String(),
		stored.TotalAmount.String(), stored.CancellationReason, stored.CreatedAt, stored.UpdatedAt,
		nullTime(stored.ConfirmedAt), nullTime(stored.CancelledAt), nullTime(stored.CompletedAt), stored.Version,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("insert booking: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return stored, nil
}

// Update persists the lifecycle fields of b if b.Version matches the stored row.
func (s *SQLiteStore) Update(ctx context.Context, b *model.Booking) (*model.Booking, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE bookings SET
			status = ?, cancellation_reason = ?, updated_at = ?,
			confirmed_at = ?, cancelled_at = ?, completed_at = ?,
			version = version + 1
		WHERE id = ? AND version = ?`,
		string(b.Status), b.CancellationReason, b.UpdatedAt,
		nullTime(b.ConfirmedAt), nullTime(b.CancelledAt), nullTime(b.CompletedAt),
		b.ID, b.Version,
	)
	if err != nil {
		return nil, fmt.Errorf("update booking %s: %w", b.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update booking %s: %w", b.ID, err)
	}
	if affected == 0 {
		if _, err := s.Get(ctx, b.ID); err != nil {
			return nil, err
		}
		return nil, ErrConcurrentModification
	}

	return s.Get(ctx, b.ID)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) query(ctx context.Context, q string, args ...any) ([]model.Booking, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query bookings: %w", err)
	}
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		b, err := s.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) scan(row rowScanner) (*model.Booking, error) {
	var (
		b                                   model.Booking
		date, duration, status              string
		startMinute, endMinute              int
		addOns, discountCode, reason        sql.NullString
		base, additional, discount, total   string
		confirmedAt, cancelledAt, completed sql.NullTime
	)

	err := row.Scan(
		&b.ID, &b.ResourceID, &b.RequesterID, &date, &startMinute, &endMinute, &duration,
		&status, &addOns, &discountCode, &base, &additional, &discount, &total,
		&reason, &b.CreatedAt, &b.UpdatedAt, &confirmedAt, &cancelledAt, &completed, &b.Version,
	)
	if err != nil {
		return nil, err
	}

	day, err := time.ParseInLocation(model.DateLayout, date, s.loc)
	if err != nil {
		return nil, fmt.Errorf("parse date %q: %w", date, err)
	}
	b.Date = day
	b.StartTime = day.Add(time.Duration(startMinute) * time.Minute)
	b.EndTime = day.Add(time.Duration(endMinute) * time.Minute)
	b.Status = model.Status(status)
	b.DiscountCode = discountCode.String
	b.CancellationReason = reason.String

	amounts := []struct {
		raw string
		dst *decimal.Decimal
	}{
		{duration, &b.DurationHours},
		{base, &b.BaseAmount},
		{additional, &b.AdditionalCharges},
		{discount, &b.DiscountAmount},
		{total, &b.TotalAmount},
	}
	for _, a := range amounts {
		v, err := decimal.NewFromString(a.raw)
		if err != nil {
			return nil, fmt.Errorf("parse amount %q: %w", a.raw, err)
		}
		*a.dst = v
	}

	if addOns.Valid && addOns.String != "" && addOns.String != "null" {
		if err := json.Unmarshal([]byte(addOns.String), &b.AddOns); err != nil {
			return nil, fmt.Errorf("decode add-ons: %w", err)
		}
	}

	b.ConfirmedAt = timePtr(confirmedAt)
	b.CancelledAt = timePtr(cancelledAt)
	b.CompletedAt = timePtr(completed)
	return &b, nil
}

// minuteOfDay measures t from the start of day, so 24:00 maps to 1440.
func minuteOfDay(day, t time.Time) int {
	return int(t.Sub(day) / time.Minute)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
