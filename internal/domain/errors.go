package domain

import "errors"

// Business rule violations. They are returned unchanged to the caller, which maps
// them to user-visible responses.
var (
	ErrInvalidRange            = errors.New("booking end must be after start")
	ErrItemNotFound            = errors.New("item not found")
	ErrUserNotFound            = errors.New("user not found")
	ErrBookingNotFound         = errors.New("booking not found")
	ErrItemNotAvailable        = errors.New("item is not available for booking")
	ErrOwnerCannotBook         = errors.New("owner cannot book own item")
	ErrNotOwner                = errors.New("user is not the item owner")
	ErrNotAuthorized           = errors.New("user is neither the booker nor the item owner")
	ErrInvalidStatusTransition = errors.New("booking is not waiting for approval")
	ErrNoBookingsFound         = errors.New("no bookings found")
	ErrInvalidPageSize         = errors.New("page size must be positive")

	ErrCommentNotAllowed = errors.New("only past bookers can comment an item")
	ErrEmailTaken        = errors.New("email is already registered")
	ErrInvalidInput      = errors.New("invalid input")
	ErrQuotaExceeded     = errors.New("booking quota exceeded")
)
