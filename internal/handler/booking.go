package handler

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/edulink/tutorlink/internal/lifecycle"
	"github.com/edulink/tutorlink/internal/model"
	"github.com/edulink/tutorlink/internal/repository"
)

// BookingHandler covers booking creation, listing and status moves.
// Status moves are delegated to the lifecycle manager; the handler only
// parses the request and maps errors.
type BookingHandler struct {
	Bookings *repository.BookingRepo
	Users    *repository.ProfileRepo
	Manager  *lifecycle.Manager
	Sink     lifecycle.NotificationSink // optional, for booking_requested
}

func NewBookingHandler(b *repository.BookingRepo, u *repository.ProfileRepo, m *lifecycle.Manager, sink lifecycle.NotificationSink) *BookingHandler {
	if b == nil || u == nil || m == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	return &BookingHandler{Bookings: b, Users: u, Manager: m, Sink: sink}
}

type createBookingReq struct {
	TutorID     uint64    `json:"tutor_id"`
	Subject     string    `json:"subject"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Notes       string    `json:"notes"`
}

type updateStatusReq struct {
	Status string `json:"status"`
}

type bookingResp struct {
	ID          uint64              `json:"id"`
	StudentID   uint64              `json:"student_id"`
	TutorID     uint64              `json:"tutor_id"`
	Subject     string              `json:"subject"`
	Status      model.BookingStatus `json:"status"`
	ScheduledAt time.Time           `json:"scheduled_at"`
	Notes       string              `json:"notes,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

func toBookingResp(b model.Booking) bookingResp {
	return bookingResp{
		ID:          b.ID,
		StudentID:   b.StudentID,
		TutorID:     b.TutorID,
		Subject:     b.Subject,
		Status:      b.Status,
		ScheduledAt: b.ScheduledAt,
		Notes:       b.Notes,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}

// Create opens a PENDING booking. Students only; the tutor must exist,
// hold the TUTOR role and not be the requester, and the session must be
// in the future.
func (h *BookingHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createBookingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Subject = strings.TrimSpace(req.Subject)
	if req.TutorID == 0 || req.Subject == "" || req.ScheduledAt.IsZero() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "tutor_id, subject and scheduled_at required"})
	}
	if req.TutorID == uid {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot book yourself"})
	}
	if !req.ScheduledAt.After(time.Now()) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "scheduled_at must be in the future"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeoutSec*time.Second)
	defer cancel()

	tutor, err := h.Users.GetByID(ctx, req.TutorID)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "tutor not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if tutor.Role != model.RoleTutor {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "recipient is not a tutor"})
	}

	b, err := h.Bookings.Create(ctx, uid, req.TutorID, req.Subject, req.ScheduledAt.UTC(), strings.TrimSpace(req.Notes))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create booking failed"})
	}

	if h.Sink != nil {
		n := model.Notification{
			UserID:    b.TutorID,
			Type:      model.NotifyBookingRequested,
			Title:     "New booking request",
			Message:   "You received a booking request for " + b.Subject + ".",
			ActionURL: "/bookings",
		}
		if err := h.Sink.Notify(ctx, n); err != nil {
			log.Printf("booking: notification delivery failed for user %d: %v", b.TutorID, err)
		}
	}

	return c.JSON(http.StatusCreated, toBookingResp(b))
}

// List returns every booking the caller is a party to, newest first.
func (h *BookingHandler) List(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeoutSec*time.Second)
	defer cancel()

	bookings, err := h.Bookings.ListForUser(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]bookingResp, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, toBookingResp(b))
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": out})
}

// Get returns one booking; parties only.
func (h *BookingHandler) Get(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeoutSec*time.Second)
	defer cancel()

	b, err := h.Bookings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if _, party := b.Counterparty(uid); !party {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not permitted"})
	}
	return c.JSON(http.StatusOK, toBookingResp(b))
}

// UpdateStatus moves the booking to the requested status on behalf of
// the caller.
func (h *BookingHandler) UpdateStatus(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var req updateStatusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	target, ok := model.ParseBookingStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeoutSec*time.Second)
	defer cancel()

	b, err := h.Manager.Transition(ctx, id, uid, target)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		return lifecycleError(c, err)
	}
	return c.JSON(http.StatusOK, toBookingResp(b))
}
