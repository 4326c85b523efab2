package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"shareit/internal/clock"
	"shareit/internal/config"
	"shareit/internal/database"
	"shareit/internal/domain"
	"shareit/internal/repository"
	"shareit/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var testNow = time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)

type apiEnv struct {
	srv   *HTTPServer
	db    *database.DB
	clock *clock.Mock
}

func newAPIEnv(t *testing.T, apiCfg config.APIConfig, bookingCfg config.BookingConfig) *apiEnv {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clk := clock.NewMock(testNow)
	svc := Services{
		Users:    service.NewUserService(db, &logger),
		Items:    service.NewItemService(db, db, db, db, clk, &logger),
		Bookings: service.NewBookingService(db, db, clk, nil, &logger),
		Quota:    repository.NewMemoryQuotaRepository(),
		DB:       db,
	}
	return &apiEnv{
		srv:   NewHTTPServer(apiCfg, bookingCfg, svc, clk, &logger),
		db:    db,
		clock: clk,
	}
}

func newDefaultAPIEnv(t *testing.T) *apiEnv {
	return newAPIEnv(t, config.APIConfig{}, config.BookingConfig{DefaultPageSize: 10, CreateLimit: 100, CreateWindow: 3600})
}

func (e *apiEnv) do(t *testing.T, method, path string, userID int64, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if userID != 0 {
		req.Header.Set(config.DefaultUserHeader, strconv.FormatInt(userID, 10))
	}
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func (e *apiEnv) createUser(t *testing.T, name string) int64 {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/users", 0, map[string]string{"name": name, "email": name + "@example.com"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[userResponse](t, rec).ID
}

func (e *apiEnv) createItem(t *testing.T, ownerID int64) int64 {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/items", ownerID, map[string]any{
		"name": "Drill", "description": "Cordless drill", "available": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[itemResponse](t, rec).ID
}

func (e *apiEnv) createBooking(t *testing.T, bookerID, itemID int64, start, end time.Time) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, http.MethodPost, "/bookings", bookerID, map[string]any{
		"itemId": itemID,
		"start":  start.Format(time.RFC3339),
		"end":    end.Format(time.RFC3339),
	})
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, rec)["error"]
}

func TestHealthz(t *testing.T) {
	env := newDefaultAPIEnv(t)

	rec := env.do(t, http.MethodGet, "/healthz", 0, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/readyz", 0, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, env.db.Close())
	rec = env.do(t, http.MethodGet, "/readyz", 0, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequestID(t *testing.T) {
	env := newDefaultAPIEnv(t)

	rec := env.do(t, http.MethodGet, "/healthz", 0, nil)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
}

func TestUsersCRUD(t *testing.T) {
	env := newDefaultAPIEnv(t)

	id := env.createUser(t, "anna")

	rec := env.do(t, http.MethodPost, "/users", 0, map[string]string{"name": "other", "email": "anna@example.com"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/users", 0, map[string]string{"name": "bad", "email": "bad-email"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/users", 0, map[string]string{"name": "x", "unknown": "field"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/users/%d", id), 0, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "anna@example.com", decode[userResponse](t, rec).Email)

	rec = env.do(t, http.MethodGet, "/users/999", 0, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/users/abc", 0, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPatch, fmt.Sprintf("/users/%d", id), 0, map[string]string{"name": "Anna K"})
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[userResponse](t, rec)
	assert.Equal(t, "Anna K", updated.Name)
	assert.Equal(t, "anna@example.com", updated.Email)

	env.createUser(t, "bob")
	rec = env.do(t, http.MethodGet, "/users", 0, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]userResponse](t, rec), 2)

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/users/%d", id), 0, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/users/%d", id), 0, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCallerHeader(t *testing.T) {
	env := newDefaultAPIEnv(t)
	body := map[string]any{"name": "Drill", "description": "d", "available": true}

	rec := env.do(t, http.MethodPost, "/items", 0, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	payload, err := json.Marshal(body)
	require.NoError(t, err)
	for _, header := range []string{"abc", "-1", "0"} {
		req := httptest.NewRequest(http.MethodPost, "/items", bytes.NewReader(payload))
		req.Header.Set(config.DefaultUserHeader, header)
		rec := httptest.NewRecorder()
		env.srv.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}
}

func TestItems(t *testing.T) {
	env := newDefaultAPIEnv(t)
	owner := env.createUser(t, "owner")
	stranger := env.createUser(t, "stranger")

	rec := env.do(t, http.MethodPost, "/items", owner, map[string]any{"name": "Drill", "description": "d"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/items", 999, map[string]any{"name": "Drill", "description": "d", "available": true})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	itemID := env.createItem(t, owner)

	rec = env.do(t, http.MethodPatch, fmt.Sprintf("/items/%d", itemID), stranger, map[string]any{"name": "Hammer"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPatch, fmt.Sprintf("/items/%d", itemID), owner, map[string]any{"available": false})
	require.Equal(t, http.StatusOK, rec.Code)
	item := decode[itemResponse](t, rec)
	assert.False(t, item.Available)
	assert.Equal(t, "Drill", item.Name)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/items/%d", itemID), stranger, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	item = decode[itemResponse](t, rec)
	assert.NotNil(t, item.Comments)
	assert.Nil(t, item.LastBooking)

	rec = env.do(t, http.MethodGet, "/items?from=0&size=5", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]itemResponse](t, rec), 1)

	rec = env.do(t, http.MethodGet, "/items?size=0", owner, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBookingLifecycle(t *testing.T) {
	env := newDefaultAPIEnv(t)
	owner := env.createUser(t, "owner")
	booker := env.createUser(t, "booker")
	stranger := env.createUser(t, "stranger")
	itemID := env.createItem(t, owner)

	start := testNow.Add(time.Hour)
	end := start.Add(2 * time.Hour)

	rec := env.createBooking(t, booker, itemID, start, end)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[bookingResponse](t, rec)
	assert.Equal(t, "WAITING", string(created.Status))
	assert.Equal(t, itemID, created.Item.ID)
	assert.Equal(t, "booker", created.Booker.Name)

	rec = env.createBooking(t, stranger, itemID, end, end.Add(time.Hour))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "touching range is a conflict")

	rec = env.createBooking(t, owner, itemID, end.Add(time.Hour), end.Add(2*time.Hour))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.createBooking(t, booker, itemID, end, start)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.createBooking(t, booker, 999, start, end)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/bookings", booker, map[string]any{"itemId": itemID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	bookingPath := fmt.Sprintf("/bookings/%d", created.ID)

	rec = env.do(t, http.MethodGet, bookingPath, stranger, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, bookingPath, owner, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPatch, bookingPath+"?approved=true", booker, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPatch, bookingPath+"?approved=maybe", owner, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPatch, bookingPath+"?approved=true", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "APPROVED", string(decode[bookingResponse](t, rec).Status))

	rec = env.do(t, http.MethodPatch, bookingPath+"?approved=false", owner, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/bookings?state=waiting", booker, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/bookings?state=future", booker, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]bookingResponse](t, rec), 1)

	rec = env.do(t, http.MethodGet, "/bookings/owner?state=WAITING", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]bookingResponse](t, rec))

	rec = env.do(t, http.MethodGet, "/bookings/owner", stranger, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/items/%d", itemID), owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	item := decode[itemResponse](t, rec)
	assert.Nil(t, item.LastBooking)
	require.NotNil(t, item.NextBooking)
	assert.Equal(t, created.ID, item.NextBooking.ID)
}

func TestUnknownState(t *testing.T) {
	env := newDefaultAPIEnv(t)
	booker := env.createUser(t, "booker")

	for _, path := range []string{"/bookings?state=UNSUPPORTED_STATUS", "/bookings/owner?state=UNSUPPORTED_STATUS"} {
		rec := env.do(t, http.MethodGet, path, booker, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Unknown state: UNSUPPORTED_STATUS", errorMessage(t, rec))
	}
}

func TestPagingParams(t *testing.T) {
	env := newDefaultAPIEnv(t)
	booker := env.createUser(t, "booker")

	for _, query := range []string{"size=0", "size=-1", "from=-1", "size=abc", "from=x"} {
		rec := env.do(t, http.MethodGet, "/bookings?"+query, booker, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
}

func TestComments(t *testing.T) {
	env := newDefaultAPIEnv(t)
	owner := env.createUser(t, "owner")
	booker := env.createUser(t, "booker")
	itemID := env.createItem(t, owner)

	rec := env.createBooking(t, booker, itemID, testNow.Add(time.Hour), testNow.Add(2*time.Hour))
	require.Equal(t, http.StatusCreated, rec.Code)

	commentPath := fmt.Sprintf("/items/%d/comment", itemID)
	rec = env.do(t, http.MethodPost, commentPath, booker, map[string]string{"text": "Great"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env.clock.Advance(3 * time.Hour)

	rec = env.do(t, http.MethodPost, commentPath, booker, map[string]string{"text": "Great"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "booker", decode[commentResponse](t, rec).AuthorName)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/items/%d", itemID), booker, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	comments := decode[itemResponse](t, rec).Comments
	require.Len(t, comments, 1)
	assert.Equal(t, "Great", comments[0].Text)
}

func TestAvailabilityEndpoint(t *testing.T) {
	env := newDefaultAPIEnv(t)
	owner := env.createUser(t, "owner")
	booker := env.createUser(t, "booker")
	itemID := env.createItem(t, owner)

	start := testNow.Add(time.Hour)
	end := start.Add(time.Hour)
	path := fmt.Sprintf("/items/%d/availability?start=%s&end=%s", itemID, start.Format(time.RFC3339), end.Format(time.RFC3339))

	rec := env.do(t, http.MethodGet, path, 0, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[availabilityResponse](t, rec).Free)

	require.Equal(t, http.StatusCreated, env.createBooking(t, booker, itemID, start, end).Code)

	rec = env.do(t, http.MethodGet, path, 0, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[availabilityResponse](t, rec).Free)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/items/%d/availability?start=tomorrow", itemID), 0, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/items/999/availability?start=%s&end=%s",
		start.Format(time.RFC3339), end.Format(time.RFC3339)), 0, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateQuota(t *testing.T) {
	env := newAPIEnv(t, config.APIConfig{}, config.BookingConfig{DefaultPageSize: 10, CreateLimit: 2, CreateWindow: 3600})
	owner := env.createUser(t, "owner")
	booker := env.createUser(t, "booker")
	itemID := env.createItem(t, owner)

	for i := 0; i < 2; i++ {
		start := testNow.Add(time.Duration(i*10+1) * time.Hour)
		rec := env.createBooking(t, booker, itemID, start, start.Add(time.Hour))
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	start := testNow.Add(100 * time.Hour)
	rec := env.createBooking(t, booker, itemID, start, start.Add(time.Hour))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, domain.ErrQuotaExceeded.Error(), errorMessage(t, rec))
}

func TestCreateQuota_CountsFailedAttempts(t *testing.T) {
	env := newAPIEnv(t, config.APIConfig{}, config.BookingConfig{DefaultPageSize: 10, CreateLimit: 2, CreateWindow: 3600})
	owner := env.createUser(t, "owner")
	booker := env.createUser(t, "booker")
	itemID := env.createItem(t, owner)

	start := testNow.Add(time.Hour)
	rec := env.createBooking(t, booker, itemID, start, start)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.createBooking(t, booker, itemID, start, start.Add(time.Hour))
	require.Equal(t, http.StatusCreated, rec.Code)

	next := testNow.Add(10 * time.Hour)
	rec = env.createBooking(t, booker, itemID, next, next.Add(time.Hour))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestCreateBooking_OutOfStorableRange(t *testing.T) {
	env := newDefaultAPIEnv(t)
	owner := env.createUser(t, "owner")
	booker := env.createUser(t, "booker")
	itemID := env.createItem(t, owner)

	far := time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC)
	rec := env.createBooking(t, booker, itemID, far, far.Add(24*time.Hour))
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/bookings?state=ALL", booker, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimit(t *testing.T) {
	env := newAPIEnv(t, config.APIConfig{RateLimit: config.APIRateLimitConfig{RPS: 0.001, Burst: 1}}, config.BookingConfig{})

	rec := env.do(t, http.MethodGet, "/healthz", 7, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/healthz", 7, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// другой пользователь получает свой bucket
	rec = env.do(t, http.MethodGet, "/healthz", 8, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOwnerExport(t *testing.T) {
	env := newDefaultAPIEnv(t)
	owner := env.createUser(t, "owner")
	booker := env.createUser(t, "booker")
	itemID := env.createItem(t, owner)

	for i := 0; i < 3; i++ {
		start := testNow.Add(time.Duration(i*10+1) * time.Hour)
		require.Equal(t, http.StatusCreated, env.createBooking(t, booker, itemID, start, start.Add(time.Hour)).Code)
	}

	rec := env.do(t, http.MethodGet, "/bookings/owner/export?state=future", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "bookings_FUTURE_2030-06-01.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetList()[0])
	require.NoError(t, err)
	assert.Len(t, rows, 4)

	rec = env.do(t, http.MethodGet, "/bookings/owner/export?state=nope", owner, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/bookings/owner/export", booker, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrInvalidRange, http.StatusBadRequest},
		{domain.ErrInvalidPageSize, http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", domain.ErrInvalidInput), http.StatusBadRequest},
		{domain.ErrItemNotAvailable, http.StatusBadRequest},
		{domain.ErrInvalidStatusTransition, http.StatusBadRequest},
		{domain.ErrCommentNotAllowed, http.StatusBadRequest},
		{domain.ErrItemNotFound, http.StatusNotFound},
		{domain.ErrUserNotFound, http.StatusNotFound},
		{domain.ErrBookingNotFound, http.StatusNotFound},
		{domain.ErrNotOwner, http.StatusNotFound},
		{domain.ErrNotAuthorized, http.StatusNotFound},
		{domain.ErrOwnerCannotBook, http.StatusNotFound},
		{domain.ErrNoBookingsFound, http.StatusNotFound},
		{domain.ErrEmailTaken, http.StatusConflict},
		{domain.ErrQuotaExceeded, http.StatusTooManyRequests},
		{errors.New("disk on fire"), http.StatusInternalServerError},
		{context.Canceled, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
