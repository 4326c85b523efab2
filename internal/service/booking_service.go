package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shareit/internal/clock"
	"shareit/internal/database"
	"shareit/internal/domain"
	"shareit/internal/events"
	"shareit/internal/models"

	"github.com/rs/zerolog"
)

type BookingService struct {
	store    domain.BookingStore
	items    domain.ItemDirectory
	clock    clock.Clock
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

func NewBookingService(store domain.BookingStore, items domain.ItemDirectory, clk clock.Clock,
	eventBus domain.EventPublisher, logger *zerolog.Logger,
) *BookingService {
	if clk == nil {
		clk = clock.Real{}
	}
	return &BookingService{
		store:    store,
		items:    items,
		clock:    clk,
		eventBus: eventBus,
		logger:   logger,
	}
}

// AddBooking creates a WAITING booking. The item checks, the calendar check and the
// insert run in one transaction, so two overlapping requests cannot both succeed.
func (s *BookingService) AddBooking(ctx context.Context, start, end time.Time, itemID, bookerID int64) (*models.Booking, error) {
	if err := checkRange(start, end); err != nil {
		return nil, err
	}

	var created *models.Booking
	err := s.store.WithinTx(ctx, func(uow domain.UnitOfWork) error {
		item, err := uow.GetItemByID(ctx, itemID)
		if err != nil {
			return err
		}
		if item == nil {
			return domain.ErrItemNotFound
		}
		if !item.Available {
			return domain.ErrItemNotAvailable
		}
		if item.OwnerID == bookerID {
			return domain.ErrOwnerCannotBook
		}

		booker, err := uow.GetUserByID(ctx, bookerID)
		if err != nil {
			return err
		}
		if booker == nil {
			return domain.ErrUserNotFound
		}

		free, err := NewAvailabilityChecker(uow).IsRangeFree(ctx, itemID, start, end)
		if err != nil {
			return err
		}
		if !free {
			return domain.ErrItemNotAvailable
		}

		booking := &models.Booking{
			Start:       start,
			End:         end,
			ItemID:      item.ID,
			ItemName:    item.Name,
			ItemOwnerID: item.OwnerID,
			BookerID:    booker.ID,
			BookerName:  booker.Name,
			Status:      models.StatusWaiting,
		}
		if err := uow.CreateBooking(ctx, booking); err != nil {
			return err
		}
		created = booking
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(events.EventBookingCreated, created, bookerID)
	return created, nil
}

// ApproveBooking moves a WAITING booking to APPROVED or REJECTED on behalf of the item owner.
func (s *BookingService) ApproveBooking(ctx context.Context, bookingID, ownerID int64, approve bool) (*models.Booking, error) {
	var updated *models.Booking
	err := s.store.WithinTx(ctx, func(uow domain.UnitOfWork) error {
		booking, err := uow.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if booking == nil {
			return domain.ErrBookingNotFound
		}
		if booking.ItemOwnerID != ownerID {
			return domain.ErrNotOwner
		}
		if booking.Status != models.StatusWaiting {
			return domain.ErrInvalidStatusTransition
		}

		status := models.StatusRejected
		if approve {
			status = models.StatusApproved
		}

		err = uow.UpdateBookingStatusWithVersion(ctx, booking.ID, booking.Version, status)
		if errors.Is(err, database.ErrConcurrentModification) {
			return domain.ErrInvalidStatusTransition
		}
		if err != nil {
			return err
		}

		updated, err = uow.GetBooking(ctx, booking.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(events.EventTypeForStatus(updated.Status), updated, ownerID)
	return updated, nil
}

// checkRange requires start < end with both instants inside the storable range.
func checkRange(start, end time.Time) error {
	if !start.Before(end) {
		return domain.ErrInvalidRange
	}
	if !models.InStorableRange(start) || !models.InStorableRange(end) {
		return fmt.Errorf("booking must lie between %s and %s: %w",
			models.MinInstant.Format(time.RFC3339), models.MaxInstant.Format(time.RFC3339), domain.ErrInvalidRange)
	}
	return nil
}

// GetBooking returns the booking to its booker or to the owner of the booked item.
func (s *BookingService) GetBooking(ctx context.Context, bookingID, requesterID int64) (*models.Booking, error) {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, domain.ErrBookingNotFound
	}
	if booking.BookerID != requesterID && booking.ItemOwnerID != requesterID {
		return nil, domain.ErrNotAuthorized
	}
	return booking, nil
}

// IsRangeFree is a read-only probe of the item calendar outside any transaction.
func (s *BookingService) IsRangeFree(ctx context.Context, itemID int64, start, end time.Time) (bool, error) {
	if err := checkRange(start, end); err != nil {
		return false, err
	}
	item, err := s.items.GetItemByID(ctx, itemID)
	if err != nil {
		return false, err
	}
	if item == nil {
		return false, domain.ErrItemNotFound
	}
	return NewAvailabilityChecker(s.store).IsRangeFree(ctx, itemID, start, end)
}

func (s *BookingService) publishEvent(eventType string, booking *models.Booking, changedByID int64) {
	if s.eventBus == nil {
		return
	}

	if err := s.eventBus.PublishJSON(eventType, events.NewBookingPayload(booking, changedByID)); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}
