package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"shareit/internal/clock"
	"shareit/internal/database"
	"shareit/internal/domain"
	"shareit/internal/models"

	"github.com/rs/zerolog"
)

type ItemService struct {
	items      domain.ItemStore
	users      domain.UserDirectory
	bookings   domain.BookingStore
	comments   domain.CommentStore
	aggregator *Aggregator
	clock      clock.Clock
	logger     *zerolog.Logger
}

func NewItemService(items domain.ItemStore, users domain.UserDirectory, bookings domain.BookingStore,
	comments domain.CommentStore, clk clock.Clock, logger *zerolog.Logger,
) *ItemService {
	if clk == nil {
		clk = clock.Real{}
	}
	return &ItemService{
		items:      items,
		users:      users,
		bookings:   bookings,
		comments:   comments,
		aggregator: NewAggregator(bookings, comments),
		clock:      clk,
		logger:     logger,
	}
}

func (s *ItemService) AddItem(ctx context.Context, ownerID int64, item *models.Item) (*models.Item, error) {
	if strings.TrimSpace(item.Name) == "" || strings.TrimSpace(item.Description) == "" {
		return nil, fmt.Errorf("item name and description are required: %w", domain.ErrInvalidInput)
	}

	owner, err := s.users.GetUserByID(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, domain.ErrUserNotFound
	}

	created := *item
	created.ID = 0
	created.OwnerID = owner.ID
	if err := s.items.CreateItem(ctx, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateItem applies the non-nil fields of the patch. Only the owner may change an item.
func (s *ItemService) UpdateItem(ctx context.Context, ownerID, itemID int64, patch models.ItemPatch) (*models.Item, error) {
	item, err := s.items.GetItemByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrItemNotFound
	}
	if item.OwnerID != ownerID {
		return nil, domain.ErrNotOwner
	}

	if patch.Name != nil {
		if strings.TrimSpace(*patch.Name) == "" {
			return nil, fmt.Errorf("item name is blank: %w", domain.ErrInvalidInput)
		}
		item.Name = *patch.Name
	}
	if patch.Description != nil {
		if strings.TrimSpace(*patch.Description) == "" {
			return nil, fmt.Errorf("item description is blank: %w", domain.ErrInvalidInput)
		}
		item.Description = *patch.Description
	}
	if patch.Available != nil {
		item.Available = *patch.Available
	}

	if err := s.items.UpdateItem(ctx, item); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, domain.ErrItemNotFound
		}
		return nil, err
	}
	return item, nil
}

// GetItem returns the item with its comments. Last and next bookings are only
// revealed to the owner.
func (s *ItemService) GetItem(ctx context.Context, itemID, userID int64) (*models.ItemWithBookings, error) {
	item, err := s.items.GetItemByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrItemNotFound
	}

	views, err := s.enrich(ctx, []*models.Item{item}, userID)
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// GetOwnerItems returns one page of the owner's items, each with last/next booking and comments.
func (s *ItemService) GetOwnerItems(ctx context.Context, ownerID int64, from, size int) ([]*models.ItemWithBookings, error) {
	offset, limit, err := pageBounds(from, size)
	if err != nil {
		return nil, err
	}

	owner, err := s.users.GetUserByID(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, domain.ErrUserNotFound
	}

	items, err := s.items.GetItemsByOwner(ctx, ownerID, offset, limit)
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, items, ownerID)
}

// enrich attaches comments to every item and adjacent bookings to the items viewerID owns.
func (s *ItemService) enrich(ctx context.Context, items []*models.Item, viewerID int64) ([]*models.ItemWithBookings, error) {
	views := make([]*models.ItemWithBookings, 0, len(items))
	if len(items) == 0 {
		return views, nil
	}

	ids := itemIDs(items)
	comments, err := s.aggregator.CommentsForItems(ctx, ids)
	if err != nil {
		return nil, err
	}

	var owned []int64
	for _, item := range items {
		if item.OwnerID == viewerID {
			owned = append(owned, item.ID)
		}
	}
	adjacent, err := s.aggregator.LastAndNextForItems(ctx, owned, viewerID, s.clock.Now())
	if err != nil {
		return nil, err
	}

	for _, item := range items {
		view := &models.ItemWithBookings{
			Item:     item,
			Comments: comments[item.ID],
		}
		if view.Comments == nil {
			view.Comments = []*models.Comment{}
		}
		if adj, ok := adjacent[item.ID]; ok {
			view.LastBooking = adj.Last
			view.NextBooking = adj.Next
		}
		views = append(views, view)
	}
	return views, nil
}

// AddComment lets a user review an item they have finished renting.
func (s *ItemService) AddComment(ctx context.Context, itemID, authorID int64, text string) (*models.Comment, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("comment text is blank: %w", domain.ErrInvalidInput)
	}

	author, err := s.users.GetUserByID(ctx, authorID)
	if err != nil {
		return nil, err
	}
	if author == nil {
		return nil, domain.ErrUserNotFound
	}

	item, err := s.items.GetItemByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrItemNotFound
	}

	finished, err := s.bookings.FindFinishedBooking(ctx, itemID, authorID, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if finished == nil {
		return nil, domain.ErrCommentNotAllowed
	}

	comment := &models.Comment{
		Text:       text,
		ItemID:     item.ID,
		AuthorID:   author.ID,
		AuthorName: author.Name,
	}
	if err := s.comments.CreateComment(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}
