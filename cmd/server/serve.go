package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/developia-II/slang-translator-backend/internal/config"
	"github.com/developia-II/slang-translator-backend/internal/handlers"
	"github.com/developia-II/slang-translator-backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API with the lexicon rebuilder and maintenance jobs",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := wire(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	// A lexicon that does not compile is a deployment error; refuse to start.
	if _, err := rt.lexicon.Rebuild(ctx); err != nil {
		return fmt.Errorf("initial lexicon build: %w", err)
	}
	go rt.lexicon.Run(ctx)

	// Records left in VALIDATING by a previous process.
	if n, err := rt.pipeline.RecoverStuck(ctx); err != nil {
		log.Printf("server: startup recovery failed: %v", err)
	} else if n > 0 {
		log.Printf("server: recovered stuck submissions=%d", n)
	}

	sched := services.NewScheduler(ctx)
	if err := services.RegisterMaintenance(sched, rt.pipeline, rt.lexicon,
		cfg.WatchdogSchedule, cfg.DecaySchedule, cfg.Policy.MomentumDecay); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	app := newApp(cfg, handlers.New(rt.translator, rt.pipeline, rt.lexicon, rt.notifier, cfg.JWTSecret), rt.lexicon)

	go func() {
		<-ctx.Done()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("server: shutdown: %v", err)
		}
	}()

	log.Printf("server: starting port=%s", cfg.Port)
	return app.Listen(":" + cfg.Port)
}

func newApp(cfg *config.Config, h *handlers.Handler, lexicon *services.LexiconService) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.FrontendURL,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE",
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":       "ok",
			"indexVersion": lexicon.Snapshot().Version,
		})
	})

	h.Register(app.Group("/api/v1"))
	return app
}

// ctxOrBackground keeps the one-shot commands usable outside cobra's Execute.
func ctxOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
