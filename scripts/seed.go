//go:build ignore

package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/auditbench/auditbench/internal/auth"
	"github.com/auditbench/auditbench/internal/database"
	"github.com/auditbench/auditbench/internal/database/models"
	"github.com/auditbench/auditbench/pkg/config"
	"github.com/auditbench/auditbench/pkg/util"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Server.Env)

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	tokenIssuer := auth.NewTokenIssuer(
		cfg.JWT.AccessSecret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessExpiry(),
		cfg.JWT.RefreshExpiry(),
	)
	authService := auth.NewService(db, tokenIssuer, nil, logger)

	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")

	if email == "" {
		email = "admin@example.com"
	}
	if password == "" {
		password = "Admin123!"
	}

	if err := authService.EnsureAdmin(context.Background(), email, password); err != nil {
		log.Fatalf("failed to create admin user: %v", err)
	}
	fmt.Printf("Admin user ready: %s\n", email)

	// Seed the tool catalogue if it is empty
	var toolCount int64
	if err := db.Model(&models.Tool{}).Count(&toolCount).Error; err != nil {
		log.Fatalf("failed to count tools: %v", err)
	}
	if toolCount > 0 {
		fmt.Printf("Tool catalogue already has %d entries, skipping seed\n", toolCount)
		return
	}

	var admin models.User
	if err := db.Where("email = ?", auth.NormalizeEmail(email)).First(&admin).Error; err != nil {
		log.Fatalf("failed to load admin user: %v", err)
	}

	tools := []models.Tool{
		{
			Name:        "Header Inspector",
			Description: "Audits HTTP response headers against a security baseline",
			Category:    models.ToolCategorySecurity,
			HTMLPath:    "/tools/header-inspector/index.html",
			AccessType:  models.ToolAccessIframe,
			Tags:        []string{"http", "headers"},
			Featured:    true,
		},
		{
			Name:        "Port Mapper",
			Description: "Maps open TCP ports for a target host",
			Category:    models.ToolCategoryNetwork,
			HTMLPath:    "/tools/port-mapper/index.html",
			AccessType:  models.ToolAccessIframe,
			Tags:        []string{"tcp", "recon"},
		},
		{
			Name:        "Hash Workbench",
			Description: "Computes and compares digests across common algorithms",
			Category:    models.ToolCategoryCrypto,
			HTMLPath:    "/tools/hash-workbench/index.html",
			AccessType:  models.ToolAccessNewTab,
			Tags:        []string{"hashing"},
		},
		{
			Name:        "Log Timeline",
			Description: "Builds an event timeline from uploaded log extracts",
			Category:    models.ToolCategoryForensics,
			HTMLPath:    "/tools/log-timeline/index.html",
			AccessType:  models.ToolAccessIntegrated,
			Tags:        []string{"logs", "timeline"},
		},
	}

	for i := range tools {
		tools[i].IsActive = true
		tools[i].IsPublic = true
		tools[i].Version = "1.0.0"
		tools[i].Configuration = "{}"
		tools[i].AddedByID = admin.ID
		if err := db.Create(&tools[i]).Error; err != nil {
			log.Fatalf("failed to seed tool %q: %v", tools[i].Name, err)
		}
	}

	fmt.Printf("Seeded %d tools\n", len(tools))
}
