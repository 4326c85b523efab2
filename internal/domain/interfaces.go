package domain

import (
	"context"
	"time"

	"shareit/internal/models"
)

// UserDirectory looks users up by id. An absent user is (nil, nil).
type UserDirectory interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// ItemDirectory looks items up by id or owner. An absent item is (nil, nil).
// A non-positive limit returns every item of the owner.
type ItemDirectory interface {
	GetItemByID(ctx context.Context, id int64) (*models.Item, error)
	GetItemsByOwner(ctx context.Context, ownerID int64, offset, limit int) ([]*models.Item, error)
}

// RangeFinder returns bookings of any status on an item that intersect [start, end] inclusively.
type RangeFinder interface {
	FindItemBookingsInRange(ctx context.Context, itemID int64, start, end time.Time) ([]*models.Booking, error)
}

// UnitOfWork is the transactional view handed to WithinTx callbacks.
// Every read and write made through it belongs to the same transaction.
type UnitOfWork interface {
	UserDirectory
	ItemDirectory
	RangeFinder
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	CreateBooking(ctx context.Context, booking *models.Booking) error
	UpdateBookingStatusWithVersion(ctx context.Context, id, fromVersion int64, status models.Status) error
}

type BookingStore interface {
	RangeFinder
	WithinTx(ctx context.Context, fn func(uow UnitOfWork) error) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	FindBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error)
	FindLastBookings(ctx context.Context, itemIDs []int64, ownerID int64, now time.Time, excluded []models.Status) ([]*models.Booking, error)
	FindNextBookings(ctx context.Context, itemIDs []int64, ownerID int64, now time.Time, excluded []models.Status) ([]*models.Booking, error)
	FindFinishedBooking(ctx context.Context, itemID, bookerID int64, before time.Time) (*models.Booking, error)
}

type UserStore interface {
	UserDirectory
	CreateUser(ctx context.Context, user *models.User) error
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id int64) error
	GetAllUsers(ctx context.Context) ([]*models.User, error)
}

type ItemStore interface {
	ItemDirectory
	CreateItem(ctx context.Context, item *models.Item) error
	UpdateItem(ctx context.Context, item *models.Item) error
}

type CommentStore interface {
	CreateComment(ctx context.Context, comment *models.Comment) error
	GetCommentsByItemIDs(ctx context.Context, itemIDs []int64) ([]*models.Comment, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// QuotaRepository counts actions per user in a fixed window.
type QuotaRepository interface {
	CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error)
}

type BookingService interface {
	AddBooking(ctx context.Context, start, end time.Time, itemID, bookerID int64) (*models.Booking, error)
	ApproveBooking(ctx context.Context, bookingID, ownerID int64, approve bool) (*models.Booking, error)
	GetBooking(ctx context.Context, bookingID, requesterID int64) (*models.Booking, error)
	ListByBooker(ctx context.Context, bookerID int64, state models.State, from, size int) ([]*models.Booking, error)
	ListByOwnerItems(ctx context.Context, ownerID int64, state models.State, from, size int) ([]*models.Booking, error)
	ExportByOwnerItems(ctx context.Context, ownerID int64, state models.State) ([]*models.Booking, error)
	IsRangeFree(ctx context.Context, itemID int64, start, end time.Time) (bool, error)
}

type UserService interface {
	CreateUser(ctx context.Context, name, email string) (*models.User, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetAllUsers(ctx context.Context) ([]*models.User, error)
	UpdateUser(ctx context.Context, id int64, patch models.UserPatch) (*models.User, error)
	DeleteUser(ctx context.Context, id int64) error
}

type ItemService interface {
	AddItem(ctx context.Context, ownerID int64, item *models.Item) (*models.Item, error)
	UpdateItem(ctx context.Context, ownerID, itemID int64, patch models.ItemPatch) (*models.Item, error)
	GetItem(ctx context.Context, itemID, userID int64) (*models.ItemWithBookings, error)
	GetOwnerItems(ctx context.Context, ownerID int64, from, size int) ([]*models.ItemWithBookings, error)
	AddComment(ctx context.Context, itemID, authorID int64, text string) (*models.Comment, error)
}
