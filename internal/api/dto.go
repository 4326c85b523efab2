package api

import (
	"time"

	"shareit/internal/models"
)

type userRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type userResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{ID: u.ID, Name: u.Name, Email: u.Email}
}

// itemRequest used for both create and patch; nil fields are absent in the body.
type itemRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Available   *bool   `json:"available"`
}

type bookingRequest struct {
	ItemID int64     `json:"itemId"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

type commentRequest struct {
	Text string `json:"text"`
}

type refResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type bookingResponse struct {
	ID      int64         `json:"id"`
	Start   time.Time     `json:"start"`
	End     time.Time     `json:"end"`
	Status  models.Status `json:"status"`
	Item    refResponse   `json:"item"`
	Booker  refResponse   `json:"booker"`
	Version int64         `json:"version"`
}

func toBookingResponse(b *models.Booking) bookingResponse {
	return bookingResponse{
		ID:      b.ID,
		Start:   b.Start.UTC(),
		End:     b.End.UTC(),
		Status:  b.Status,
		Item:    refResponse{ID: b.ItemID, Name: b.ItemName},
		Booker:  refResponse{ID: b.BookerID, Name: b.BookerName},
		Version: b.Version,
	}
}

func toBookingResponses(bookings []*models.Booking) []bookingResponse {
	out := make([]bookingResponse, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, toBookingResponse(b))
	}
	return out
}

// shortBooking is the adjacent-booking view embedded in an item.
type shortBooking struct {
	ID       int64     `json:"id"`
	BookerID int64     `json:"bookerId"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
}

func toShortBooking(b *models.Booking) *shortBooking {
	if b == nil {
		return nil
	}
	return &shortBooking{ID: b.ID, BookerID: b.BookerID, Start: b.Start.UTC(), End: b.End.UTC()}
}

type commentResponse struct {
	ID         int64     `json:"id"`
	Text       string    `json:"text"`
	AuthorName string    `json:"authorName"`
	Created    time.Time `json:"created"`
}

func toCommentResponse(c *models.Comment) commentResponse {
	return commentResponse{ID: c.ID, Text: c.Text, AuthorName: c.AuthorName, Created: c.CreatedAt.UTC()}
}

type itemResponse struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Available   bool              `json:"available"`
	OwnerID     int64             `json:"ownerId"`
	LastBooking *shortBooking     `json:"lastBooking"`
	NextBooking *shortBooking     `json:"nextBooking"`
	Comments    []commentResponse `json:"comments"`
}

func toItemResponse(item *models.Item) itemResponse {
	return itemResponse{
		ID:          item.ID,
		Name:        item.Name,
		Description: item.Description,
		Available:   item.Available,
		OwnerID:     item.OwnerID,
		Comments:    []commentResponse{},
	}
}

func toItemViewResponse(view *models.ItemWithBookings) itemResponse {
	resp := toItemResponse(view.Item)
	resp.LastBooking = toShortBooking(view.LastBooking)
	resp.NextBooking = toShortBooking(view.NextBooking)
	for _, c := range view.Comments {
		resp.Comments = append(resp.Comments, toCommentResponse(c))
	}
	return resp
}

type availabilityResponse struct {
	ItemID int64     `json:"itemId"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Free   bool      `json:"free"`
}
