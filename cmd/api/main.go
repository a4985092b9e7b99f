package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/redis/go-redis/v9"

	"github.com/allumi/attribution-api/internal/adapters/handlers"
	"github.com/allumi/attribution-api/internal/adapters/middleware"
	"github.com/allumi/attribution-api/internal/adapters/notifier"
	"github.com/allumi/attribution-api/internal/adapters/repositories"
	"github.com/allumi/attribution-api/internal/core/auth"
	"github.com/allumi/attribution-api/internal/core/ports"
	"github.com/allumi/attribution-api/internal/core/services"
)

func main() {
	dbURL := os.Getenv("DATABASE_URL")
	redisURL := os.Getenv("REDIS_URL")
	allowedOrigin := os.Getenv("ALLOWED_ORIGIN")
	webhookURL := os.Getenv("WEBHOOK_URL")
	webhookSecret := os.Getenv("WEBHOOK_SECRET")

	startTime := time.Now()

	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(10 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Fatal(err)
	}
	opt.PoolSize = 50
	opt.MinIdleConns = 20
	opt.MaxRetries = 2
	opt.PoolTimeout = 2 * time.Second
	opt.DialTimeout = 2 * time.Second
	opt.ReadTimeout = 1 * time.Second
	opt.WriteTimeout = 1 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute
	opt.ConnMaxLifetime = 30 * time.Minute
	rdb := redis.NewClient(opt)

	repo := repositories.NewPostgresRepo(db)
	cacheRepo := repositories.NewRedisRepo(rdb)

	matchers := []ports.Matcher{
		services.NewDirectTokenMatcher(repo),
		services.NewDeviceSignatureMatcher(repo),
		services.NewEmailIdentityMatcher(repo),
	}
	webhook := notifier.NewWebhookNotifier(webhookURL, webhookSecret, 5*time.Second)
	attributionService := services.NewAttributionService(
		matchers, repo, repo, cacheRepo, webhook, envFloat("DEFAULT_PAID_PRICE", 0))

	httpHandler := handlers.NewHTTPHandler(attributionService)

	keyValidator := auth.NewAPIKeyValidator(db, cacheRepo)
	authMiddleware := middleware.NewAuthMiddleware(keyValidator)

	app := fiber.New(fiber.Config{
		ServerHeader:      "Allumi",
		AppName:           "Allumi Attribution API",
		DisableKeepalive:  false,
		ReduceMemoryUsage: true,
	})
	app.Use(logger.New())

	origins := []string{allowedOrigin}
	if allowedOrigin == "" {
		origins = []string{"*"}
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowCredentials: true,
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-Key"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
	}))

	app.Get("/", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message":   "Allumi Attribution API",
			"version":   "1.0.0",
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
			"uptime":    time.Since(startTime).String(),
		})
	})

	api := app.Group("/api", authMiddleware.RequireAuth)
	api.Post("/conversions", httpHandler.TrackConversion)
	api.Get("/conversions/lookup", httpHandler.LookupConversion)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Fatal(app.Listen(fmt.Sprintf(":%s", port)))
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
