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
	"windback-be/internal/tracer"
	"windback-be/pkg/database"

	"gorm.io/gorm"
)

// Runs the dunning scheduler without the HTTP server. Several instances may
// run at once; claims keep them from sending the same email twice.
func main() {
	cfg := config.Load()

	shutdownTracer := tracer.InitTracer(tracer.ServiceDunning, tracer.Config{
		Enabled:     cfg.App.OtelEnabled,
		Endpoint:    cfg.App.OtelEndpoint,
		Environment: cfg.App.Environment,
	})
	defer func() { _ = shutdownTracer(context.Background()) }()

	var gormDB *gorm.DB
	if cfg.App.Storage != "memory" {
		var err error
		gormDB, err = database.Open(cfg.Database.Connection, false, database.PoolConfig{
			MaxIdle:     cfg.Dunning.PoolSize,
			MaxOpen:     cfg.Dunning.PoolSize * 2,
			MaxLifetime: time.Hour,
		})
		if err != nil {
			log.Panicf("Unable to connect to GORM DB: %v", err)
		}
	}

	container := bootstrap.NewContainer(gormDB, cfg)
	defer container.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Notifications raised by the scheduler are delivered from this process.
	if err := container.NotificationService.Consume(ctx); err != nil {
		log.Fatalf("Failed to start notification consumer: %v", err)
	}

	log.Printf("Dunning scheduler running every %s", cfg.Dunning.TickInterval)
	container.DunningScheduler.Start(ctx)
	<-ctx.Done()
	container.DunningScheduler.Stop()
	log.Println("Dunning scheduler stopped")
}
