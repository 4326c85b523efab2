package service

import (
	"context"
	"time"

	"shareit/internal/domain"
)

// AvailabilityChecker decides whether an item's calendar is free for a range.
// Bookings of every status count as busy, so a pending request blocks the range too.
type AvailabilityChecker struct {
	finder domain.RangeFinder
}

func NewAvailabilityChecker(finder domain.RangeFinder) *AvailabilityChecker {
	return &AvailabilityChecker{finder: finder}
}

// IsRangeFree reports whether no booking of the item touches [start, end].
// Bounds are inclusive: a booking ending exactly at start is a conflict.
func (c *AvailabilityChecker) IsRangeFree(ctx context.Context, itemID int64, start, end time.Time) (bool, error) {
	found, err := c.finder.FindItemBookingsInRange(ctx, itemID, start, end)
	if err != nil {
		return false, err
	}
	for _, b := range found {
		if b.ItemID == itemID && b.Overlaps(start, end) {
			return false, nil
		}
	}
	return true, nil
}
