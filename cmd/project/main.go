package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"windback-be/internal/bootstrap"
	"windback-be/internal/config"
	"windback-be/internal/dto"
	"windback-be/internal/pkg/serverutils"
	"windback-be/pkg/database"

	"github.com/fatih/color"
)

// Creates a project and prints its webhook credentials, or issues an
// operator token.
func main() {
	name := flag.String("name", "", "project name")
	fromName := flag.String("from-name", "", "sender name for recovery emails")
	fromEmail := flag.String("from-email", "", "sender address for recovery emails")
	autoSend := flag.Bool("auto-send", false, "send the primary variant automatically")
	token := flag.String("token", "", "issue an operator token for this subject instead")
	flag.Parse()

	cfg := config.Load()

	if *token != "" {
		if cfg.App.JwtSecret == "" {
			log.Fatal("JWT_SECRET must be set")
		}
		signed, err := serverutils.IssueToken(cfg.App.JwtSecret, *token)
		if err != nil {
			log.Fatalf("Failed to sign token: %v", err)
		}
		fmt.Println(signed)
		return
	}

	if *name == "" {
		flag.Usage()
		os.Exit(2)
	}

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, false)
	if err != nil {
		log.Fatalf("Unable to connect to GORM DB: %v", err)
	}

	container := bootstrap.NewContainer(db, cfg)
	defer container.Close()

	res, err := container.ProjectService.Create(context.Background(), &dto.CreateProjectRequest{
		Name:      *name,
		FromName:  *fromName,
		FromEmail: *fromEmail,
		AutoSend:  *autoSend,
	})
	if err != nil {
		log.Fatalf("Failed to create project: %v", err)
	}

	color.Green("Project created")
	fmt.Printf("  slug:           %s\n", res.Slug)
	fmt.Printf("  public key:     %s\n", res.PublicKey)
	fmt.Printf("  webhook secret: %s\n", res.WebhookSecret)
	color.Yellow("The webhook secret is shown only once.")
	fmt.Printf("  webhook url:    %s/webhooks/<provider>/%s\n", cfg.App.BaseURL, res.PublicKey)
}
