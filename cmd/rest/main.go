package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"windback-be/internal/bootstrap"
	"windback-be/internal/config"
	"windback-be/internal/server"
	"windback-be/internal/tracer"
	"windback-be/pkg/database"

	"gorm.io/gorm"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()
	if cfg.App.JwtSecret == "" {
		log.Fatal("JWT_SECRET must be set")
	}

	// 2. Tracing
	shutdownTracer := tracer.InitTracer(tracer.ServiceAPI, tracer.Config{
		Enabled:     cfg.App.OtelEnabled,
		Endpoint:    cfg.App.OtelEndpoint,
		Environment: cfg.App.Environment,
	})
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracer(ctx)
	}()

	// 3. Initialize Database
	var gormDB *gorm.DB
	if cfg.App.Storage != "memory" {
		var err error
		gormDB, err = database.NewGormDBFromDSN(cfg.Database.Connection, !cfg.IsProduction())
		if err != nil {
			log.Panicf("Unable to connect to GORM DB: %v", err)
		}
	}

	// 4. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(gormDB, cfg)
	defer container.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Start Background Services
	if err := container.StartBackground(ctx); err != nil {
		log.Fatalf("Failed to start background consumers: %v", err)
	}
	if os.Getenv("DUNNING_EMBEDDED") != "false" {
		container.DunningScheduler.Start(ctx)
		defer container.DunningScheduler.Stop()
	}

	// 6. Run Server
	srv := server.New(cfg, container)
	go func() {
		<-ctx.Done()
		log.Println("Shutting down server...")
		_ = srv.Shutdown()
	}()

	if err := srv.Run(); err != nil {
		log.Printf("Server stopped: %v", err)
	}
}
