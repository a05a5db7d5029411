// Package router wires handlers to routes. Public endpoints (health,
// auth, tutor directory) carry no auth middleware; everything else lives
// under a JWT-protected /v1 group.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/edulink/tutorlink/internal/config"
	"github.com/edulink/tutorlink/internal/handler"
	"github.com/edulink/tutorlink/internal/middleware"
)

// RegisterRoutes registers unauthenticated infrastructure routes.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the auth endpoints. Register, login and
// refresh take no JWT; logout and /v1/me require one.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	// Logout requires a JWT: with a refresh token in the body it revokes
	// that session, with an empty body it revokes every session. The gate
	// also keeps anonymous callers from probing refresh-token validity.
	g.POST("/logout", a.Logout, middleware.JWTAuth(jwtSecret))

	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
}

// RegisterPublic registers the guest-visible tutor directory. The Redis
// response cache is safe here because the payload is identical for every
// caller.
func RegisterPublic(e *echo.Echo, t *handler.TutorHandler, rdb *redis.Client) {
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)
	e.GET("/v1/tutors", t.List, cache)
	e.GET("/v1/tutors/search", t.Search, cache)
	e.GET("/v1/tutors/:id/rating", t.Rating, cache)
}
