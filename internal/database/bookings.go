package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"shareit/internal/models"
)

const bookingColumns = `b.id, b.item_id, i.name, i.owner_id, b.booker_id, u.name,
	                 b.start_ts, b.end_ts, b.status, b.created_at, b.updated_at, b.version`

const bookingFrom = ` FROM bookings b
              JOIN items i ON i.id = b.item_id
              JOIN users u ON u.id = b.booker_id`

func toNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var b models.Booking
	var startTS, endTS int64
	err := row.Scan(
		&b.ID, &b.ItemID, &b.ItemName, &b.ItemOwnerID, &b.BookerID, &b.BookerName,
		&startTS, &endTS, &b.Status, &b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, err
	}
	b.Start = fromNanos(startTS)
	b.End = fromNanos(endTS)
	return &b, nil
}

func scanBookings(rows *sql.Rows) ([]*models.Booking, error) {
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
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return bookings, nil
}

func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	return createBooking(ctx, db, booking)
}

func createBooking(ctx context.Context, q queryer, booking *models.Booking) error {
	if !models.InStorableRange(booking.Start) || !models.InStorableRange(booking.End) {
		return ErrInstantOutOfRange
	}
	query := `INSERT INTO bookings (
				item_id, booker_id, start_ts, end_ts, status, created_at, updated_at, version
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := q.ExecContext(ctx, query,
		booking.ItemID,
		booking.BookerID,
		toNanos(booking.Start),
		toNanos(booking.End),
		booking.Status,
		now,
		now,
		1,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	booking.ID = id
	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1

	return nil
}

// GetBooking returns (nil, nil) when the booking does not exist.
func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	return getBooking(ctx, db, id)
}

func getBooking(ctx context.Context, q queryer, id int64) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + bookingFrom + ` WHERE b.id = ?`
	booking, err := scanBooking(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return booking, nil
}

func (db *DB) UpdateBookingStatusWithVersion(ctx context.Context, id, fromVersion int64, status models.Status) error {
	return updateBookingStatusWithVersion(ctx, db, id, fromVersion, status)
}

func updateBookingStatusWithVersion(ctx context.Context, q queryer, id, fromVersion int64, status models.Status) error {
	query := `UPDATE bookings SET status = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`
	result, err := q.ExecContext(ctx, query, status, time.Now(), id, fromVersion)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

// FindItemBookingsInRange returns bookings of any status whose interval touches [start, end].
func (db *DB) FindItemBookingsInRange(ctx context.Context, itemID int64, start, end time.Time) ([]*models.Booking, error) {
	return findItemBookingsInRange(ctx, db, itemID, start, end)
}

func findItemBookingsInRange(ctx context.Context, q queryer, itemID int64, start, end time.Time) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + bookingFrom + `
              WHERE b.item_id = ? AND b.start_ts <= ? AND b.end_ts >= ?
              ORDER BY b.start_ts ASC, b.id ASC`
	rows, err := q.QueryContext(ctx, query, itemID, toNanos(end), toNanos(start))
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings in range: %w", err)
	}
	return scanBookings(rows)
}

// FindBookings builds a single statement from the filter. Results are ordered by
// start descending, newer ids first on equal starts.
func (db *DB) FindBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error) {
	if filter.BookerID == 0 && filter.ItemIDs == nil {
		return nil, ErrUnboundedFilter
	}

	var (
		where []string
		args  []interface{}
	)

	if filter.BookerID != 0 {
		where = append(where, "b.booker_id = ?")
		args = append(args, filter.BookerID)
	}
	if filter.ItemIDs != nil {
		if len(filter.ItemIDs) == 0 {
			return nil, nil
		}
		where = append(where, "b.item_id IN ("+placeholders(len(filter.ItemIDs))+")")
		for _, id := range filter.ItemIDs {
			args = append(args, id)
		}
	}

	now := toNanos(filter.Now)
	switch filter.Window {
	case models.WindowCurrent:
		where = append(where, "b.start_ts < ? AND b.end_ts > ?")
		args = append(args, now, now)
	case models.WindowFuture:
		where = append(where, "b.start_ts > ?")
		args = append(args, now)
	case models.WindowPast:
		where = append(where, "b.end_ts < ?")
		args = append(args, now)
	}

	if filter.Status != "" {
		where = append(where, "b.status = ?")
		args = append(args, filter.Status)
	}

	query := `SELECT ` + bookingColumns + bookingFrom
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY b.start_ts DESC, b.id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	return scanBookings(rows)
}

// FindLastBookings returns, for the given items of the owner, every booking that
// started before now and has a status outside excluded. Rows are ordered by item,
// then start descending, then id ascending, so the first row per item is its last booking.
func (db *DB) FindLastBookings(ctx context.Context, itemIDs []int64, ownerID int64,
	now time.Time, excluded []models.Status,
) ([]*models.Booking, error) {
	return db.findAdjacent(ctx, itemIDs, ownerID, excluded,
		"b.start_ts < ?", toNanos(now), "b.item_id ASC, b.start_ts DESC, b.id ASC")
}

// FindNextBookings is the counterpart of FindLastBookings for bookings starting at or after now.
func (db *DB) FindNextBookings(ctx context.Context, itemIDs []int64, ownerID int64,
	now time.Time, excluded []models.Status,
) ([]*models.Booking, error) {
	return db.findAdjacent(ctx, itemIDs, ownerID, excluded,
		"b.start_ts >= ?", toNanos(now), "b.item_id ASC, b.start_ts ASC, b.id ASC")
}

func (db *DB) findAdjacent(ctx context.Context, itemIDs []int64, ownerID int64,
	excluded []models.Status, timeCond string, now int64, order string,
) ([]*models.Booking, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}

	args := make([]interface{}, 0, len(itemIDs)+len(excluded)+2)
	for _, id := range itemIDs {
		args = append(args, id)
	}
	args = append(args, ownerID, now)

	query := `SELECT ` + bookingColumns + bookingFrom + `
              WHERE b.item_id IN (` + placeholders(len(itemIDs)) + `)
              AND i.owner_id = ? AND ` + timeCond
	if len(excluded) > 0 {
		query += " AND b.status NOT IN (" + placeholders(len(excluded)) + ")"
		for _, s := range excluded {
			args = append(args, s)
		}
	}
	query += " ORDER BY " + order

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find adjacent bookings: %w", err)
	}
	return scanBookings(rows)
}

// FindFinishedBooking returns a non-negative booking of the item by the booker that
// ended before the given instant, or (nil, nil).
func (db *DB) FindFinishedBooking(ctx context.Context, itemID, bookerID int64, before time.Time) (*models.Booking, error) {
	negative := models.NegativeStatuses()
	args := []interface{}{itemID, bookerID, toNanos(before)}
	for _, s := range negative {
		args = append(args, s)
	}

	query := `SELECT ` + bookingColumns + bookingFrom + `
              WHERE b.item_id = ? AND b.booker_id = ? AND b.end_ts < ?
              AND b.status NOT IN (` + placeholders(len(negative)) + `)
              ORDER BY b.end_ts DESC LIMIT 1`
	booking, err := scanBooking(db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find finished booking: %w", err)
	}
	return booking, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
