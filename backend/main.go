package main

import (
	"log"

	"biblequiz/backend/config"
	"biblequiz/backend/content"
	"biblequiz/backend/engine"
	"biblequiz/backend/middleware"
	"biblequiz/backend/quizrun"
	"biblequiz/backend/routes"
	"biblequiz/backend/storage"
	"biblequiz/backend/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	// Initialize database
	db, err := utils.InitDB(cfg)
	if err != nil {
		log.Fatalf("Error initializing database: %v", err)
	}

	// Initialize logger
	logger := utils.InitLogger()

	// Quiz content and attempt stores
	loader := content.NewLoader(cfg.DataDir, cfg.DefaultLocale)
	local := storage.NewFileStore(cfg.LocalStorePath)
	remote := storage.NewRemoteAttemptStore(db, loader)

	// Per-session lifecycle engines and live quiz runs
	manager := engine.NewManager(local, remote, logger)
	registry := quizrun.NewRegistry()

	// Create Fiber app
	app := fiber.New()

	// Middleware
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Session-ID",
	}))
	app.Use(middleware.LoggingMiddleware(logger))

	// Setup routes
	routes.SetupRoutes(app, db, cfg, logger, loader, remote, manager, registry)

	// Start server
	log.Fatal(app.Listen(":" + cfg.ServerPort))
}
