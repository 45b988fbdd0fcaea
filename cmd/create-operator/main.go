package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/gibbarosa/storefront/internal/config"
	"github.com/gibbarosa/storefront/internal/domain"
	"github.com/gibbarosa/storefront/internal/repository/postgres"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: go run ./cmd/create-operator <operator-name> <api-key>")
		fmt.Println("Example: go run ./cmd/create-operator \"Warehouse\" \"wh-api-key-12345\"")
		os.Exit(1)
	}

	name := os.Args[1]
	apiKey := os.Args[2]

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	db, err := postgres.NewConnection(cfg.Database, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := postgres.RunMigrations(db); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to run migrations: %v\n", err)
		os.Exit(1)
	}

	apiKeyHash, err := bcrypt.GenerateFromPassword([]byte(apiKey), bcrypt.DefaultCost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to hash API key: %v\n", err)
		os.Exit(1)
	}

	operator := &domain.Operator{
		Name:       name,
		APIKeyHash: string(apiKeyHash),
		IsActive:   true,
	}
	if err := postgres.NewOperatorRepository(db, logger).Create(context.Background(), operator); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create operator: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Operator created\n\n")
	fmt.Printf("Operator ID: %s\n", operator.ID.String())
	fmt.Printf("Operator Name: %s\n", operator.Name)
	fmt.Printf("\nThe API key is stored hashed and cannot be shown again.\n")
	fmt.Printf("Authorization: Bearer %s\n", apiKey)
}
