package service

import (
	"context"
	"fmt"
	"time"

	"shareit/internal/domain"
	"shareit/internal/models"
)

// filterForState maps a view state to the query tuple of the generic finder.
func filterForState(state models.State, now time.Time) (models.BookingFilter, error) {
	f := models.BookingFilter{Now: now}
	switch state {
	case models.StateAll, "":
	case models.StateCurrent:
		f.Window = models.WindowCurrent
	case models.StateFuture:
		f.Window = models.WindowFuture
	case models.StatePast:
		f.Window = models.WindowPast
	case models.StateWaiting:
		f.Status = models.StatusWaiting
	case models.StateRejected:
		f.Status = models.StatusRejected
	default:
		return f, fmt.Errorf("unknown state %s: %w", state, domain.ErrInvalidInput)
	}
	return f, nil
}

// pageBounds treats from as a position inside the page from/size.
func pageBounds(from, size int) (offset, limit int, err error) {
	if size <= 0 {
		return 0, 0, domain.ErrInvalidPageSize
	}
	if from < 0 {
		return 0, 0, fmt.Errorf("negative from %d: %w", from, domain.ErrInvalidInput)
	}
	return (from / size) * size, size, nil
}

// ListByBooker returns the booker's bookings in the given state, newest start first.
// An empty result is reported as ErrNoBookingsFound.
func (s *BookingService) ListByBooker(ctx context.Context, bookerID int64, state models.State, from, size int) ([]*models.Booking, error) {
	if bookerID <= 0 {
		return nil, fmt.Errorf("invalid booker id %d: %w", bookerID, domain.ErrInvalidInput)
	}
	offset, limit, err := pageBounds(from, size)
	if err != nil {
		return nil, err
	}
	filter, err := filterForState(state, s.clock.Now())
	if err != nil {
		return nil, err
	}
	filter.BookerID = bookerID
	filter.Offset, filter.Limit = offset, limit

	bookings, err := s.store.FindBookings(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(bookings) == 0 {
		return nil, domain.ErrNoBookingsFound
	}
	return bookings, nil
}

// ListByOwnerItems returns bookings on any of the owner's items in the given state.
// An owner without items gets ErrNoBookingsFound; an empty filtered page is returned as is.
func (s *BookingService) ListByOwnerItems(ctx context.Context, ownerID int64, state models.State, from, size int) ([]*models.Booking, error) {
	offset, limit, err := pageBounds(from, size)
	if err != nil {
		return nil, err
	}
	return s.ownerBookings(ctx, ownerID, state, offset, limit)
}

// ExportByOwnerItems is ListByOwnerItems without paging, used for file exports.
func (s *BookingService) ExportByOwnerItems(ctx context.Context, ownerID int64, state models.State) ([]*models.Booking, error) {
	return s.ownerBookings(ctx, ownerID, state, 0, 0)
}

func (s *BookingService) ownerBookings(ctx context.Context, ownerID int64, state models.State, offset, limit int) ([]*models.Booking, error) {
	filter, err := filterForState(state, s.clock.Now())
	if err != nil {
		return nil, err
	}

	items, err := s.items.GetItemsByOwner(ctx, ownerID, 0, 0)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, domain.ErrNoBookingsFound
	}

	filter.ItemIDs = itemIDs(items)
	filter.Offset, filter.Limit = offset, limit

	bookings, err := s.store.FindBookings(ctx, filter)
	if err != nil {
		return nil, err
	}
	if bookings == nil {
		bookings = []*models.Booking{}
	}
	return bookings, nil
}

func itemIDs(items []*models.Item) []int64 {
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids
}
