package models

import (
	"math"
	"time"
)

// Instants are persisted as int64 unix nanoseconds, which bounds the representable range.
var (
	MinInstant = time.Unix(0, math.MinInt64).UTC()
	MaxInstant = time.Unix(0, math.MaxInt64).UTC()
)

// InStorableRange reports whether t survives the round trip through storage.
func InStorableRange(t time.Time) bool {
	return !t.Before(MinInstant) && !t.After(MaxInstant)
}

// Booking is a reservation of an item for [Start, End] by a user other than the item owner.
// Item and booker are referenced by id; names and the owner id are read-only snapshots
// filled in by the store.
type Booking struct {
	ID          int64     `json:"id"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	ItemID      int64     `json:"item_id"`
	ItemName    string    `json:"item_name"`
	ItemOwnerID int64     `json:"item_owner_id"`
	BookerID    int64     `json:"booker_id"`
	BookerName  string    `json:"booker_name"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Version     int64     `json:"version"`
}

// Overlaps reports whether the booking intersects [start, end]. Both bounds are inclusive,
// so touching intervals overlap.
func (b *Booking) Overlaps(start, end time.Time) bool {
	return !b.Start.After(end) && !b.End.Before(start)
}

// TimeWindow selects bookings by their position relative to BookingFilter.Now.
type TimeWindow int

const (
	WindowAny TimeWindow = iota
	WindowCurrent
	WindowFuture
	WindowPast
)

// BookingFilter is the query tuple consumed by the generic booking finder.
// Exactly one of BookerID or ItemIDs is expected to be set.
type BookingFilter struct {
	BookerID int64
	ItemIDs  []int64
	Window   TimeWindow
	Now      time.Time
	Status   Status
	Offset   int
	Limit    int
}

// AdjacentBookings holds the most recent past and the nearest upcoming booking of an item.
type AdjacentBookings struct {
	Last *Booking
	Next *Booking
}
