package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/edulink/tutorlink/internal/config"
	"github.com/edulink/tutorlink/internal/database"
	"github.com/edulink/tutorlink/internal/handler"
	"github.com/edulink/tutorlink/internal/lifecycle"
	"github.com/edulink/tutorlink/internal/middleware"
	"github.com/edulink/tutorlink/internal/queue"
	"github.com/edulink/tutorlink/internal/reconcile"
	"github.com/edulink/tutorlink/internal/relay"
	"github.com/edulink/tutorlink/internal/repository"
	"github.com/edulink/tutorlink/internal/router"
	"github.com/edulink/tutorlink/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Redis is optional: without it the cache and rate limiter disable
	// themselves and the relay stays single-instance.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; cache, rate limiting and relay fan-out disabled")
	}

	users := repository.NewProfileRepo(db)
	tokens := repository.NewTokenRepo(db)
	messages := repository.NewMessageRepo(db)
	bookings := repository.NewBookingRepo(db)
	ratings := repository.NewRatingRepo(db)
	tutors := repository.NewTutorRepo(db)
	notifications := repository.NewNotificationRepo(db)

	hub := relay.NewHub(rdb)
	notifier := service.NewAMQPNotifier("")
	reconciler := reconcile.New(messages, bookings, users)
	manager := lifecycle.NewManager(db, bookings, ratings, notifier, hub)

	go queue.StartNotificationConsumer(notifications)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	authHandler := handler.NewAuthHandler(cfg, users, tokens)
	tutorHandler := handler.NewTutorHandler(tutors, ratings)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authHandler, cfg.JWTSecret)
	router.RegisterPublic(e, tutorHandler, rdb)
	router.RegisterAPI(e, router.APIHandlers{
		Conversations: handler.NewConversationHandler(reconciler),
		Messages:      handler.NewMessageHandler(messages, users, hub),
		Bookings:      handler.NewBookingHandler(bookings, users, manager, notifier),
		Reviews:       handler.NewReviewHandler(manager),
		Notifications: handler.NewNotificationHandler(notifications),
		Tutors:        tutorHandler,
	}, hub, cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
