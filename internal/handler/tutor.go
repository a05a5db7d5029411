package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/edulink/tutorlink/internal/repository"
)

const (
	defaultTutorPage = 20
	maxTutorPage     = 100
)

// TutorHandler serves the public tutor directory and the tutor's own
// profile upsert.
type TutorHandler struct {
	Tutors  *repository.TutorRepo
	Ratings *repository.RatingRepo
}

func NewTutorHandler(t *repository.TutorRepo, r *repository.RatingRepo) *TutorHandler {
	if t == nil || r == nil {
		panic("nil repository passed to NewTutorHandler")
	}
	return &TutorHandler{Tutors: t, Ratings: r}
}

type upsertProfileReq struct {
	Headline        string `json:"headline"`
	HourlyRateCents uint32 `json:"hourly_rate_cents"`
}

type tutorProfileResp struct {
	UserID          uint64    `json:"user_id"`
	Headline        string    `json:"headline"`
	HourlyRateCents uint32    `json:"hourly_rate_cents"`
	AverageRating   *float64  `json:"average_rating"`
	RatingCount     uint32    `json:"rating_count"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// List returns active tutors without filters, paginated.
func (h *TutorHandler) List(c echo.Context) error {
	q, errMsg := parseTutorQuery(c, false)
	if errMsg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": errMsg})
	}
	return h.respond(c, q)
}

// Search returns active tutors matching the query string filters.
func (h *TutorHandler) Search(c echo.Context) error {
	q, errMsg := parseTutorQuery(c, true)
	if errMsg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": errMsg})
	}
	return h.respond(c, q)
}

func (h *TutorHandler) respond(c echo.Context, q repository.TutorSearchQuery) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeoutSec*time.Second)
	defer cancel()

	rows, total, err := h.Tutors.Search(ctx, q)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"tutors":    rows,
		"total":     total,
		"page":      q.Page,
		"page_size": q.PageSize,
	})
}

func parseTutorQuery(c echo.Context, withFilters bool) (repository.TutorSearchQuery, string) {
	q := repository.TutorSearchQuery{Page: 1, PageSize: defaultTutorPage}
	if raw := c.QueryParam("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return q, "invalid page"
		}
		q.Page = n
	}
	if raw := c.QueryParam("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return q, "invalid page_size"
		}
		if n > maxTutorPage {
			n = maxTutorPage
		}
		q.PageSize = n
	}
	if !withFilters {
		return q, ""
	}
	q.Name = strings.TrimSpace(c.QueryParam("name"))
	if raw := c.QueryParam("max_rate_cents"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return q, "invalid max_rate_cents"
		}
		q.MaxRateCents = uint32(n)
	}
	if raw := c.QueryParam("min_rating"); raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || f < 0 || f > 5 {
			return q, "invalid min_rating"
		}
		q.MinRating = f
	}
	return q, ""
}

// Rating returns the tutor's aggregate score and their reviews.
func (h *TutorHandler) Rating(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid tutor id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeoutSec*time.Second)
	defer cancel()

	avg, count, err := h.Ratings.SummaryForTutor(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	ratings, err := h.Ratings.ListByTutor(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	reviews := make([]reviewResp, 0, len(ratings))
	for _, r := range ratings {
		reviews = append(reviews, toReviewResp(r))
	}

	resp := echo.Map{"tutor_id": id, "rating_count": count, "reviews": reviews}
	if avg.Valid {
		resp["average_rating"] = avg.Float64
	} else {
		resp["average_rating"] = nil
	}
	return c.JSON(http.StatusOK, resp)
}

// UpsertProfile creates or replaces the caller's tutor profile. The
// route is role-gated to tutors by the router.
func (h *TutorHandler) UpsertProfile(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req upsertProfileReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Headline = strings.TrimSpace(req.Headline)
	if req.Headline == "" || req.HourlyRateCents == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "headline and hourly_rate_cents required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeoutSec*time.Second)
	defer cancel()

	if err := h.Tutors.Upsert(ctx, uid, req.Headline, req.HourlyRateCents); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save profile failed"})
	}
	tp, err := h.Tutors.GetByUserID(ctx, uid)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, tutorProfileResp{
		UserID:          tp.UserID,
		Headline:        tp.Headline,
		HourlyRateCents: tp.HourlyRateCents,
		AverageRating:   tp.AverageRating,
		RatingCount:     tp.RatingCount,
		UpdatedAt:       tp.UpdatedAt,
	})
}
