package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/edulink/tutorlink/internal/reconcile"
	"github.com/edulink/tutorlink/internal/repository"
)

// ConversationHandler serves the merged inbox view.
type ConversationHandler struct {
	Reconciler *reconcile.Reconciler
}

func NewConversationHandler(r *reconcile.Reconciler) *ConversationHandler {
	if r == nil {
		panic("nil reconciler passed to NewConversationHandler")
	}
	return &ConversationHandler{Reconciler: r}
}

// List returns one entry per counterparty the caller has interacted
// with, newest activity first. A message or booking store failure is a
// 503: serving a silently incomplete inbox would look like data loss.
func (h *ConversationHandler) List(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeoutSec*time.Second)
	defer cancel()

	conversations, err := h.Reconciler.GetConversations(ctx, uid)
	if err != nil {
		if errors.Is(err, repository.ErrStoreUnavailable) {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "store unavailable"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"conversations": conversations})
}
