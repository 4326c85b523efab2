package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"shareit/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestAvailabilityChecker_IsRangeFree(t *testing.T) {
	start := testNow.Add(time.Hour)
	end := start.Add(2 * time.Hour)

	tests := []struct {
		name  string
		found []*models.Booking
		want  bool
	}{
		{"no bookings", nil, true},
		{"touching end", []*models.Booking{{ItemID: 1, Start: end, End: end.Add(time.Hour)}}, false},
		{"touching start", []*models.Booking{{ItemID: 1, Start: start.Add(-time.Hour), End: start}}, false},
		{"contained", []*models.Booking{{ItemID: 1, Start: start.Add(time.Minute), End: end.Add(-time.Minute)}}, false},
		{"rejected still busy", []*models.Booking{{ItemID: 1, Start: start, End: end, Status: models.StatusRejected}}, false},
		{"other item ignored", []*models.Booking{{ItemID: 2, Start: start, End: end}}, true},
		{"disjoint row ignored", []*models.Booking{{ItemID: 1, Start: end.Add(time.Hour), End: end.Add(2 * time.Hour)}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			finder := new(mockBookingStore)
			finder.On("FindItemBookingsInRange", mock.Anything, int64(1), start, end).Return(tt.found, nil).Once()

			free, err := NewAvailabilityChecker(finder).IsRangeFree(context.Background(), 1, start, end)
			require.NoError(t, err)
			assert.Equal(t, tt.want, free)
			finder.AssertExpectations(t)
		})
	}
}

func TestAvailabilityChecker_Error(t *testing.T) {
	finder := new(mockBookingStore)
	boom := errors.New("db is gone")
	finder.On("FindItemBookingsInRange", mock.Anything, int64(1), mock.Anything, mock.Anything).Return(nil, boom)

	free, err := NewAvailabilityChecker(finder).IsRangeFree(context.Background(), 1, testNow, testNow.Add(time.Hour))
	assert.ErrorIs(t, err, boom)
	assert.False(t, free)
}
