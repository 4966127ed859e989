package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"event-ranking-engine/config"
	"event-ranking-engine/handlers"
	"event-ranking-engine/middleware"
	"event-ranking-engine/models"
	"event-ranking-engine/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config: ", err)
	}
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database: ", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		log.Fatal("failed to migrate database: ", err)
	}

	cache := services.NewCache()
	settings := services.NewSettingsService(db, cache, cfg.Engine)
	karma := services.NewKarmaService(db, cache, settings)
	tournaments := services.NewTournamentService(db, settings)
	svc := handlers.Services{
		DB:          db,
		Settings:    settings,
		Karma:       karma,
		Ratings:     services.NewRatingService(db, settings, karma),
		Themes:      services.NewThemeService(db),
		Shortlist:   services.NewThemeShortlistService(db, settings),
		HighScores:  services.NewHighScoreService(db, settings, tournaments),
		Tournaments: tournaments,
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 1 * 1024 * 1024,
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed
	app.Use(middleware.GatewayAuthMiddleware(cfg.ServiceToken))

	origins := strings.Split(cfg.AllowedOrigins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(origins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Roles",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	handlers.Setup(app, svc)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched, err := svc.Shortlist.StartEliminationScheduler(ctx, cfg.ShortlistSweepInterval)
	if err != nil {
		log.Fatal("failed to start scheduler: ", err)
	}

	go func() {
		if err := app.Listen(cfg.ListenAddr); err != nil {
			log.WithError(err).Error("Server error")
		}
	}()

	log.Infof("✅ Server running on %s", cfg.ListenAddr)
	log.Infof("✅ CORS configured for origins: %s", strings.Join(origins, ","))

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sched.Shutdown(); err != nil {
		log.WithError(err).Warn("scheduler shutdown")
	}
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.WithError(err).Warn("server shutdown")
	}
}
