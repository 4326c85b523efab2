package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"shareit/internal/domain"
	"shareit/internal/export"
	"shareit/internal/metrics"
	"shareit/internal/models"
)

// Users

func (s *HTTPServer) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var body userRequest
	if !decodeBody(w, r, &body) {
		return
	}
	user, err := s.svc.Users.CreateUser(r.Context(), body.Name, body.Email)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

func (s *HTTPServer) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.svc.Users.GetAllUsers(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *HTTPServer) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	user, err := s.svc.Users.GetUser(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *HTTPServer) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body userRequest
	if !decodeBody(w, r, &body) {
		return
	}
	user, err := s.svc.Users.UpdateUser(r.Context(), id, models.UserPatch{Name: body.Name, Email: body.Email})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *HTTPServer) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.svc.Users.DeleteUser(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Items

func (s *HTTPServer) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := s.callerID(w, r)
	if !ok {
		return
	}
	var body itemRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Name == nil || body.Description == nil || body.Available == nil {
		writeError(w, http.StatusBadRequest, "name, description and available are required")
		return
	}

	item, err := s.svc.Items.AddItem(r.Context(), ownerID, &models.Item{
		Name:        *body.Name,
		Description: *body.Description,
		Available:   *body.Available,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toItemResponse(item))
}

func (s *HTTPServer) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := s.callerID(w, r)
	if !ok {
		return
	}
	itemID, ok := pathID(w, r)
	if !ok {
		return
	}
	var body itemRequest
	if !decodeBody(w, r, &body) {
		return
	}

	item, err := s.svc.Items.UpdateItem(r.Context(), ownerID, itemID, models.ItemPatch{
		Name:        body.Name,
		Description: body.Description,
		Available:   body.Available,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemResponse(item))
}

func (s *HTTPServer) handleGetItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.callerID(w, r)
	if !ok {
		return
	}
	itemID, ok := pathID(w, r)
	if !ok {
		return
	}
	view, err := s.svc.Items.GetItem(r.Context(), itemID, userID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemViewResponse(view))
}

func (s *HTTPServer) handleOwnerItems(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := s.callerID(w, r)
	if !ok {
		return
	}
	from, size, ok := s.pageParams(w, r)
	if !ok {
		return
	}
	views, err := s.svc.Items.GetOwnerItems(r.Context(), ownerID, from, size)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	out := make([]itemResponse, 0, len(views))
	for _, v := range views {
		out = append(out, toItemViewResponse(v))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *HTTPServer) handleAddComment(w http.ResponseWriter, r *http.Request) {
	authorID, ok := s.callerID(w, r)
	if !ok {
		return
	}
	itemID, ok := pathID(w, r)
	if !ok {
		return
	}
	var body commentRequest
	if !decodeBody(w, r, &body) {
		return
	}
	comment, err := s.svc.Items.AddComment(r.Context(), itemID, authorID, body.Text)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCommentResponse(comment))
}

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	itemID, ok := pathID(w, r)
	if !ok {
		return
	}
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(r.URL.Query().Get("start")))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start; expected RFC3339")
		return
	}
	end, err := time.Parse(time.RFC3339, strings.TrimSpace(r.URL.Query().Get("end")))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end; expected RFC3339")
		return
	}

	free, err := s.svc.Bookings.IsRangeFree(r.Context(), itemID, start, end)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, availabilityResponse{ItemID: itemID, Start: start.UTC(), End: end.UTC(), Free: free})
}

// Bookings

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	bookerID, ok := s.callerID(w, r)
	if !ok {
		return
	}
	var body bookingRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if body.ItemID <= 0 || body.Start.IsZero() || body.End.IsZero() {
		writeError(w, http.StatusBadRequest, "itemId, start and end are required")
		return
	}

	if !s.allowCreate(w, r, bookerID) {
		return
	}

	booking, err := s.svc.Bookings.AddBooking(r.Context(), body.Start, body.End, body.ItemID, bookerID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookingResponse(booking))
}

// allowCreate применяет квоту на создание заявок. Квота списывается за каждую попытку,
// включая отклонённые сервисом. Ошибка хранилища квоты не блокирует пользователя.
func (s *HTTPServer) allowCreate(w http.ResponseWriter, r *http.Request, userID int64) bool {
	if s.svc.Quota == nil || s.booking.CreateLimit <= 0 {
		return true
	}
	allowed, err := s.svc.Quota.CheckRateLimit(r.Context(), userID, s.booking.CreateLimit, s.booking.CreateWindowDuration())
	if err != nil {
		s.logger.Warn().Err(err).Int64("user_id", userID).Msg("quota check failed")
		return true
	}
	if !allowed {
		metrics.IncQuotaRejected()
		s.writeServiceError(w, r, domain.ErrQuotaExceeded)
		return false
	}
	return true
}

func (s *HTTPServer) handleApproveBooking(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := s.callerID(w, r)
	if !ok {
		return
	}
	bookingID, ok := pathID(w, r)
	if !ok {
		return
	}
	approved, err := strconv.ParseBool(r.URL.Query().Get("approved"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "approved must be true or false")
		return
	}

	booking, err := s.svc.Bookings.ApproveBooking(r.Context(), bookingID, ownerID, approved)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(booking))
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.callerID(w, r)
	if !ok {
		return
	}
	bookingID, ok := pathID(w, r)
	if !ok {
		return
	}
	booking, err := s.svc.Bookings.GetBooking(r.Context(), bookingID, userID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(booking))
}

func (s *HTTPServer) handleBookerBookings(w http.ResponseWriter, r *http.Request) {
	bookerID, ok := s.callerID(w, r)
	if !ok {
		return
	}
	state, ok := stateParam(w, r)
	if !ok {
		return
	}
	from, size, ok := s.pageParams(w, r)
	if !ok {
		return
	}
	bookings, err := s.svc.Bookings.ListByBooker(r.Context(), bookerID, state, from, size)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponses(bookings))
}

func (s *HTTPServer) handleOwnerBookings(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := s.callerID(w, r)
	if !ok {
		return
	}
	state, ok := stateParam(w, r)
	if !ok {
		return
	}
	from, size, ok := s.pageParams(w, r)
	if !ok {
		return
	}
	bookings, err := s.svc.Bookings.ListByOwnerItems(r.Context(), ownerID, state, from, size)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponses(bookings))
}

func (s *HTTPServer) handleOwnerExport(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := s.callerID(w, r)
	if !ok {
		return
	}
	state, ok := stateParam(w, r)
	if !ok {
		return
	}
	bookings, err := s.svc.Bookings.ExportByOwnerItems(r.Context(), ownerID, state)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteBookings(&buf, bookings, nil); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", export.FileName(state, s.clock.Now())))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
