// ABOUTME: Main entry point for the contact compass MCP server with stdio transport
// ABOUTME: Opens the contact store, builds the classifier and registers all tools
package main

import (
	"log"

	"github.com/joho/godotenv"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/harper/contact-compass/internal/config"
	"github.com/harper/contact-compass/internal/mcp"
	"github.com/harper/contact-compass/internal/storage/sqlite"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found (this is okay for production): %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// stdout carries the MCP protocol, so logs go to stderr
	zcfg := zap.NewProductionConfig()
	zcfg.OutputPaths = []string{"stderr"}
	logger, err := zcfg.Build()
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	classifier, err := cfg.Classifier()
	if err != nil {
		logger.Fatal("failed to load classifier", zap.Error(err))
	}

	db, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to open contact store", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	server := mcpserver.NewMCPServer(
		"Contact Compass",
		"0.1.0",
	)
	mcp.RegisterTools(server, sqlite.NewContactStore(db), classifier, logger)

	logger.Info("MCP server starting on stdio", zap.String("db", cfg.DBPath))
	if err := mcpserver.ServeStdio(server); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
