package routes

import (
	"log"

	"biblequiz/backend/config"
	"biblequiz/backend/content"
	"biblequiz/backend/controllers"
	"biblequiz/backend/engine"
	"biblequiz/backend/middleware"
	"biblequiz/backend/quizrun"
	"biblequiz/backend/storage"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func SetupRoutes(app *fiber.App, db *gorm.DB, cfg *config.Config, logger *log.Logger,
	loader *content.Loader, remote *storage.RemoteAttemptStore,
	manager *engine.Manager, registry *quizrun.Registry) {

	// Auth routes
	authController := controllers.NewAuthController(db, cfg, manager, logger)
	app.Post("/api/auth/register", authController.Register)
	app.Post("/api/auth/login", authController.Login)

	// Middleware
	authMiddleware := middleware.AuthMiddleware(cfg)
	optionalAuth := middleware.OptionalAuth(cfg)

	// User routes
	userController := controllers.NewUserController(db, cfg)
	app.Get("/api/user/profile", authMiddleware, userController.GetProfile)
	app.Put("/api/user/profile", authMiddleware, userController.UpdateProfile)

	// Quiz content routes
	quizController := controllers.NewQuizController(loader, cfg, logger)
	app.Get("/api/books", quizController.GetBooks)
	app.Get("/api/books/:bookId/chapters/:chapter", quizController.GetChapter)

	// Attempt routes, anonymous or identified
	attemptsController := controllers.NewAttemptsController(manager, cfg, logger)
	attempts := app.Group("/api/attempts", optionalAuth)
	attempts.Post("/", attemptsController.RecordAttempt)
	attempts.Get("/", attemptsController.GetAttempts)
	attempts.Get("/latest", attemptsController.GetLatestAttempt)
	attempts.Delete("/", attemptsController.ClearHistory)
	attempts.Get("/sync", attemptsController.GetSyncStatus)
	attempts.Post("/sync", attemptsController.TriggerSync)

	// Quiz run routes
	runController := controllers.NewRunController(manager, registry, loader, cfg, logger)
	runs := app.Group("/api/runs", optionalAuth)
	runs.Post("/", runController.StartRun)
	runs.Get("/:id", runController.GetRun)
	runs.Delete("/:id", runController.DeleteRun)
	runs.Post("/:id/start", runController.Start)
	runs.Post("/:id/answers", runController.SubmitAnswer)
	runs.Post("/:id/next", runController.Next)
	runs.Post("/:id/previous", runController.Previous)
	runs.Post("/:id/review", runController.StartReview)
	runs.Post("/:id/finish", runController.Finish)
	runs.Post("/:id/history", runController.ViewHistory)
	runs.Post("/:id/restart", runController.Restart)

	// Stats routes
	statsController := controllers.NewStatsController(db, cfg, remote, logger)
	app.Get("/api/dashboard", authMiddleware, statsController.GetDashboard)
	app.Get("/api/streak", authMiddleware, statsController.GetStreak)
	app.Get("/api/books/stats", authMiddleware, statsController.GetBookStats)
	app.Get("/api/leaderboard", statsController.GetLeaderboard)
}
