package main

import (
	"log"

	"windback-be/internal/config"
	"windback-be/internal/model"
	"windback-be/pkg/database"
)

func main() {
	cfg := config.Load()
	if cfg.Database.Connection == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, true)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Printf("Migrating %d recovery tables...", len(model.All()))
	if err := model.Migrate(db); err != nil {
		log.Fatalf("Error: migration failed: %v", err)
	}
	log.Println("Success: recovery schema is up to date")
}
