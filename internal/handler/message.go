package handler

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/edulink/tutorlink/internal/relay"
	"github.com/edulink/tutorlink/internal/repository"
)

const (
	defaultMessagePage = 50
	maxMessagePage     = 200
	maxMessageLen      = 4000
)

// MessageHandler serves the direct-message endpoints. Every mutation is
// mirrored onto the relay so connected clients can patch their inbox
// without refetching; relay failures are logged, never surfaced.
type MessageHandler struct {
	Messages *repository.MessageRepo
	Users    *repository.ProfileRepo
	Relay    relay.Publisher // optional
}

func NewMessageHandler(m *repository.MessageRepo, u *repository.ProfileRepo, pub relay.Publisher) *MessageHandler {
	if m == nil || u == nil {
		panic("nil repository passed to NewMessageHandler")
	}
	return &MessageHandler{Messages: m, Users: u, Relay: pub}
}

type sendMessageReq struct {
	ReceiverID uint64 `json:"receiver_id"`
	Content    string `json:"content"`
}

// List returns the thread with ?with=<user_id>, oldest first, capped at
// ?limit= (default 50).
func (h *MessageHandler) List(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	counterparty, err := strconv.ParseUint(c.QueryParam("with"), 10, 64)
	if err != nil || counterparty == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "with parameter required"})
	}
	limit := defaultMessagePage
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid limit"})
		}
		if n > maxMessagePage {
			n = maxMessagePage
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeoutSec*time.Second)
	defer cancel()

	msgs, err := h.Messages.ListBetween(ctx, uid, counterparty, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"messages": msgs})
}

// Send appends a message to the thread with the receiver. Empty content
// and self-messaging are rejected before touching the store.
func (h *MessageHandler) Send(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req sendMessageReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.ReceiverID == 0 || req.Content == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "receiver_id and content required"})
	}
	if req.ReceiverID == uid {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot message yourself"})
	}
	if len(req.Content) > maxMessageLen {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "content too long"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeoutSec*time.Second)
	defer cancel()

	if _, err := h.Users.GetByID(ctx, req.ReceiverID); err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "receiver not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	msg, err := h.Messages.Create(ctx, uid, req.ReceiverID, req.Content)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "send failed"})
	}

	h.publish(ctx, msg.ReceiverID, relay.ChangeEvent{
		Kind:           relay.EventMessageInserted,
		CounterpartyID: msg.SenderID,
		MessageID:      msg.ID,
		Content:        msg.Content,
		OccurredAt:     msg.CreatedAt,
	})
	// The sender's other devices patch their view from the same event.
	h.publish(ctx, msg.SenderID, relay.ChangeEvent{
		Kind:           relay.EventMessageInserted,
		CounterpartyID: msg.ReceiverID,
		MessageID:      msg.ID,
		Content:        msg.Content,
		OccurredAt:     msg.CreatedAt,
	})

	return c.JSON(http.StatusCreated, msg)
}

// MarkRead flags every unread message from ?with=<user_id> to the
// caller as read. Idempotent: a second call affects zero rows and still
// returns 200.
func (h *MessageHandler) MarkRead(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	counterparty, err := strconv.ParseUint(c.QueryParam("with"), 10, 64)
	if err != nil || counterparty == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "with parameter required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeoutSec*time.Second)
	defer cancel()

	affected, err := h.Messages.MarkReadFrom(ctx, uid, counterparty)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	if affected > 0 {
		now := time.Now().UTC()
		h.publish(ctx, counterparty, relay.ChangeEvent{
			Kind:           relay.EventMessageRead,
			CounterpartyID: uid,
			OccurredAt:     now,
		})
		h.publish(ctx, uid, relay.ChangeEvent{
			Kind:           relay.EventMessageRead,
			CounterpartyID: counterparty,
			OccurredAt:     now,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"marked_read": affected})
}

func (h *MessageHandler) publish(ctx context.Context, userID uint64, ev relay.ChangeEvent) {
	if h.Relay == nil {
		return
	}
	if err := h.Relay.PublishToUser(ctx, userID, ev); err != nil {
		log.Printf("message: relay publish failed for user %d: %v", userID, err)
	}
}
