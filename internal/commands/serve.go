package commands

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"

	"github.com/arnold/habitgrid-api/internal/config"
	"github.com/arnold/habitgrid-api/internal/handlers"
	"github.com/arnold/habitgrid-api/internal/reconcile"
	"github.com/arnold/habitgrid-api/internal/routes"
)

const sessionSweepInterval = time.Minute

func addServe(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the reminder scheduler.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	topLevel.AddCommand(cmd)
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	rt, err := bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	if _, err := rt.scheduler.Restore(ctx); err != nil {
		return err
	}
	rt.scheduler.Start()
	defer func() { <-rt.scheduler.Stop().Done() }()

	sessions := reconcile.NewSessions(rt.store, cfg.SessionIdle, rt.log)
	go sessions.Run(ctx, sessionSweepInterval)

	handlers.Configure(handlers.Deps{
		Habits:   rt.habits,
		Direct:   reconcile.NewDirectCommit(rt.store),
		Sessions: sessions,
		Log:      rt.log,
	})

	app := fiber.New(fiber.Config{AppName: "habitgrid-api"})
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New())
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	routes.Setup(app)

	go func() {
		<-ctx.Done()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			rt.log.Warn("shutdown failed", "error", err)
		}
	}()

	rt.log.Info("listening", "port", cfg.Port, "store", cfg.DocStore)
	return app.Listen(":" + cfg.Port)
}
