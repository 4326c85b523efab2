package service

import (
	"context"
	"time"

	"shareit/internal/domain"
	"shareit/internal/models"
)

// Aggregator computes per-item display data for many items with a fixed number of
// queries: one for last bookings, one for next bookings, one for comments.
type Aggregator struct {
	bookings domain.BookingStore
	comments domain.CommentStore
}

func NewAggregator(bookings domain.BookingStore, comments domain.CommentStore) *Aggregator {
	return &Aggregator{bookings: bookings, comments: comments}
}

// LastAndNextForItems returns, for every item of the owner, the latest booking that
// started before now and the earliest one starting at or after now. Rejected and
// canceled bookings are ignored. On equal starts the lower id wins.
// Items without either booking are absent from the map.
func (a *Aggregator) LastAndNextForItems(ctx context.Context, itemIDs []int64, ownerID int64,
	now time.Time,
) (map[int64]models.AdjacentBookings, error) {
	result := make(map[int64]models.AdjacentBookings)
	if len(itemIDs) == 0 {
		return result, nil
	}

	negative := models.NegativeStatuses()

	last, err := a.bookings.FindLastBookings(ctx, itemIDs, ownerID, now, negative)
	if err != nil {
		return nil, err
	}
	next, err := a.bookings.FindNextBookings(ctx, itemIDs, ownerID, now, negative)
	if err != nil {
		return nil, err
	}

	for itemID, b := range pickPerItem(last, func(a, b *models.Booking) bool { return a.Start.After(b.Start) }) {
		adj := result[itemID]
		adj.Last = b
		result[itemID] = adj
	}
	for itemID, b := range pickPerItem(next, func(a, b *models.Booking) bool { return a.Start.Before(b.Start) }) {
		adj := result[itemID]
		adj.Next = b
		result[itemID] = adj
	}
	return result, nil
}

// pickPerItem keeps one booking per item: the one better ranks first, lower id on ties.
func pickPerItem(rows []*models.Booking, better func(a, b *models.Booking) bool) map[int64]*models.Booking {
	out := make(map[int64]*models.Booking, len(rows))
	for _, b := range rows {
		if b.Status.IsNegative() {
			continue
		}
		cur, ok := out[b.ItemID]
		if !ok || better(b, cur) || (b.Start.Equal(cur.Start) && b.ID < cur.ID) {
			out[b.ItemID] = b
		}
	}
	return out
}

// CommentsForItems groups the comments of all items, oldest first within an item.
func (a *Aggregator) CommentsForItems(ctx context.Context, itemIDs []int64) (map[int64][]*models.Comment, error) {
	result := make(map[int64][]*models.Comment)
	if len(itemIDs) == 0 {
		return result, nil
	}

	comments, err := a.comments.GetCommentsByItemIDs(ctx, itemIDs)
	if err != nil {
		return nil, err
	}
	for _, c := range comments {
		result[c.ItemID] = append(result[c.ItemID], c)
	}
	return result, nil
}
