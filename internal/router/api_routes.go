package router

import (
	"errors"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/edulink/tutorlink/internal/handler"
	"github.com/edulink/tutorlink/internal/middleware"
	"github.com/edulink/tutorlink/internal/model"
	"github.com/edulink/tutorlink/internal/relay"
)

// APIHandlers bundles the authenticated surface so RegisterAPI does not
// grow a parameter per handler.
type APIHandlers struct {
	Conversations *handler.ConversationHandler
	Messages      *handler.MessageHandler
	Bookings      *handler.BookingHandler
	Reviews       *handler.ReviewHandler
	Notifications *handler.NotificationHandler
	Tutors        *handler.TutorHandler
}

// RegisterAPI registers every authenticated endpoint under /v1. All
// routes require a valid JWT with a known role; a few are additionally
// gated to one side of the marketplace.
func RegisterAPI(e *echo.Echo, h APIHandlers, hub *relay.Hub, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleStudent, model.RoleTutor),
	)

	g.GET("/conversations", h.Conversations.List)

	g.GET("/messages", h.Messages.List)
	g.POST("/messages", h.Messages.Send)
	g.PATCH("/messages/read", h.Messages.MarkRead)

	g.GET("/bookings", h.Bookings.List)
	g.GET("/bookings/:id", h.Bookings.Get)
	g.PATCH("/bookings/:id/status", h.Bookings.UpdateStatus)

	g.GET("/notifications", h.Notifications.List)
	g.PATCH("/notifications/read", h.Notifications.MarkAllRead)

	// The websocket shares the JWT gate; the hub fans events out per
	// user id.
	g.GET("/ws", relay.ServeWS(hub, getContextUserID))

	student := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleStudent),
	)
	student.POST("/bookings", h.Bookings.Create)
	student.POST("/bookings/:id/review", h.Reviews.Submit)

	tutor := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleTutor),
	)
	tutor.PUT("/tutors/me", h.Tutors.UpsertProfile)
}

// getContextUserID reads the user id the JWT middleware stored in the
// context, normalizing the claim's dynamic type.
func getContextUserID(c echo.Context) (uint64, error) {
	switch t := c.Get("user_id").(type) {
	case uint64:
		return t, nil
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
