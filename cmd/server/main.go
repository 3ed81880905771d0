package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/sujal-shrestha/queless-backend/internal/config"
	"github.com/sujal-shrestha/queless-backend/internal/database"
	"github.com/sujal-shrestha/queless-backend/internal/handler"
	"github.com/sujal-shrestha/queless-backend/internal/middleware"
	"github.com/sujal-shrestha/queless-backend/internal/queue"
	"github.com/sujal-shrestha/queless-backend/internal/repository"
	"github.com/sujal-shrestha/queless-backend/internal/router"
	queue_publisher "github.com/sujal-shrestha/queless-backend/internal/service"
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

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	venues := repository.NewVenueRepo(db)
	branches := repository.NewBranchRepo(db)
	bookings := repository.NewBookingRepo(db)
	states := repository.NewQueueStateRepo(db)

	authH := handler.NewAuthHandler(cfg, users, tokens, branches)
	catalogH := handler.NewCatalogHandler(venues, branches)

	bookingH := handler.NewBookingHandler(cfg, bookings, venues, branches)
	bookingH.PublishIssued = queue_publisher.PublishTicketIssued

	queueH := handler.NewQueueHandler(cfg, states, bookings, branches)
	queueH.PublishConsumed = queue_publisher.PublishTicketConsumed

	// Redis is optional: without it rate limiting and the catalog cache are
	// disabled and everything else works unchanged.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; rate limiting and response cache disabled")
	}

	e := echo.New()
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	var cacheMW echo.MiddlewareFunc
	if rdb != nil {
		cacheMW = middleware.NewRedisCache(config.LoadCacheConfig(), rdb)
	}

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterCatalog(e, catalogH, cacheMW)
	router.RegisterBookings(e, bookingH, cfg.JWTSecret)
	router.RegisterQueue(e, queueH, cfg.JWTSecret)

	// Ticket event consumer runs for the life of the process, reconnecting
	// on broker failures.
	go func() {
		if err := queue.StartTicketConsumer(); err != nil {
			log.Printf("ticket consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
