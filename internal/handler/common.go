// Package handler defines the HTTP handlers for the public API. Error
// bodies are uniform {"error": "..."} objects; permission failures are
// reported with a deliberately generic message so handlers never leak
// whether a resource exists or who owns it.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/edulink/tutorlink/internal/lifecycle"
	"github.com/edulink/tutorlink/internal/repository"
)

// requestTimeout bounds every database call made from a handler.
const requestTimeoutSec = 5

// getUserID extracts the user_id placed in context by the JWT middleware.
func getUserID(c echo.Context) (uint64, error) {
	v := c.Get("user_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// paramID parses a numeric path parameter. Zero is never a valid id.
func paramID(c echo.Context, name string) (uint64, bool) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return n, true
}

// lifecycleError translates errors from the booking lifecycle manager
// into HTTP responses. Forbidden stays generic; invalid transitions name
// both states so a client that lost a race can see what happened.
func lifecycleError(c echo.Context, err error) error {
	var ite *lifecycle.InvalidTransitionError
	switch {
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not permitted"})
	case errors.Is(err, repository.ErrDuplicateReview):
		return c.JSON(http.StatusConflict, echo.Map{"error": "booking already reviewed"})
	case errors.Is(err, repository.ErrStoreUnavailable):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "store unavailable"})
	case errors.As(err, &ite):
		return c.JSON(http.StatusConflict, echo.Map{"error": ite.Error()})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
