package models

import "time"

type Item struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Available   bool      `json:"available"`
	OwnerID     int64     `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ItemPatch carries a partial item update; nil fields are left untouched.
type ItemPatch struct {
	Name        *string
	Description *string
	Available   *bool
}

// ItemWithBookings is an item enriched for display with its adjacent bookings and comments.
type ItemWithBookings struct {
	Item        *Item
	LastBooking *Booking
	NextBooking *Booking
	Comments    []*Comment
}
