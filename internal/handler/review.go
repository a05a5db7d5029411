package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/edulink/tutorlink/internal/lifecycle"
	"github.com/edulink/tutorlink/internal/model"
)

const maxCommentLen = 2000

// ReviewHandler accepts a student's review of a booking. The review is
// also the second entry point into COMPLETED: reviewing an ACCEPTED
// booking completes it in the same transaction.
type ReviewHandler struct {
	Manager *lifecycle.Manager
}

func NewReviewHandler(m *lifecycle.Manager) *ReviewHandler {
	if m == nil {
		panic("nil manager passed to NewReviewHandler")
	}
	return &ReviewHandler{Manager: m}
}

type submitReviewReq struct {
	Rating  uint8  `json:"rating"`
	Comment string `json:"comment"`
}

type reviewResp struct {
	ID        uint64    `json:"id"`
	BookingID uint64    `json:"booking_id"`
	StudentID uint64    `json:"student_id"`
	TutorID   uint64    `json:"tutor_id"`
	Rating    uint8     `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toReviewResp(r model.Rating) reviewResp {
	return reviewResp{
		ID:        r.ID,
		BookingID: r.BookingID,
		StudentID: r.StudentID,
		TutorID:   r.TutorID,
		Rating:    r.Rating,
		Comment:   r.Comment,
		CreatedAt: r.CreatedAt,
	}
}

// Submit records the review for booking :id.
func (h *ReviewHandler) Submit(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var req submitReviewReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Rating < 1 || req.Rating > 5 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "rating must be between 1 and 5"})
	}
	req.Comment = strings.TrimSpace(req.Comment)
	if len(req.Comment) > maxCommentLen {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "comment too long"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeoutSec*time.Second)
	defer cancel()

	rating, err := h.Manager.SubmitReview(ctx, id, uid, req.Rating, req.Comment)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		return lifecycleError(c, err)
	}
	return c.JSON(http.StatusCreated, toReviewResp(rating))
}
