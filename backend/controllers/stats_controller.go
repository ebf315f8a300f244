package controllers

import (
	"log"
	"strconv"
	"time"

	"biblequiz/backend/config"
	"biblequiz/backend/middleware"
	"biblequiz/backend/models"
	"biblequiz/backend/stats"
	"biblequiz/backend/storage"
	"biblequiz/backend/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type StatsController struct {
	DB     *gorm.DB
	Cfg    *config.Config
	Remote *storage.RemoteAttemptStore
	Logger *log.Logger
}

func NewStatsController(db *gorm.DB, cfg *config.Config, remote *storage.RemoteAttemptStore, logger *log.Logger) *StatsController {
	return &StatsController{DB: db, Cfg: cfg, Remote: remote, Logger: logger}
}

// GetDashboard godoc
// @Summary Get dashboard statistics
// @Description Totals, accuracy, streak and recent activity for the current user
// @Tags stats
// @Produce json
// @Success 200 {object} utils.SuccessResponse
// @Failure 401 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /dashboard [get]
func (sc *StatsController) GetDashboard(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return utils.Unauthorized(c, "Unauthorized")
	}

	var totalQuizzes int64
	sc.DB.Model(&models.QuizAttemptRow{}).
		Where("user_id = ?", userID).
		Count(&totalQuizzes)

	var sums struct {
		CorrectAnswers int
		TotalQuestions int
	}
	sc.DB.Model(&models.QuizAttemptRow{}).
		Select("COALESCE(SUM(correct_answers),0) AS correct_answers, COALESCE(SUM(total_questions),0) AS total_questions").
		Where("user_id = ?", userID).
		Scan(&sums)

	accuracy := 0
	if sums.TotalQuestions > 0 {
		accuracy = int(float64(sums.CorrectAnswers)*100/float64(sums.TotalQuestions) + 0.5)
	}

	attempts, err := sc.Remote.ListAllForUser(c.Context(), userID)
	if err != nil {
		sc.Logger.Printf("dashboard: %v", err)
		return utils.InternalServerError(c, "Could not load attempts")
	}

	timestamps := make([]int64, 0, len(attempts))
	for _, a := range attempts {
		timestamps = append(timestamps, a.Timestamp)
	}
	streak := stats.Streak(timestamps, time.Now())

	var latest fiber.Map
	if len(attempts) > 0 {
		// ListAllForUser orders newest first.
		latest = fiber.Map{
			"book":          attempts[0].Book,
			"chapterNumber": attempts[0].ChapterNumber,
			"timestamp":     attempts[0].Timestamp,
		}
	}

	recent := attempts
	if len(recent) > 5 {
		recent = recent[:5]
	}
	recentActivity := make([]fiber.Map, 0, len(recent))
	for _, a := range recent {
		recentActivity = append(recentActivity, fiber.Map{
			"id":            a.ID,
			"book":          a.Book,
			"chapterNumber": a.ChapterNumber,
			"timestamp":     a.Timestamp,
		})
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"totalQuizzes":        totalQuizzes,
		"totalCorrectAnswers": sums.CorrectAnswers,
		"totalQuestions":      sums.TotalQuestions,
		"accuracy":            accuracy,
		"streak":              streak,
		"latestQuiz":          latest,
		"recentActivity":      recentActivity,
	})
}

func (sc *StatsController) GetStreak(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return utils.Unauthorized(c, "Unauthorized")
	}

	attempts, err := sc.Remote.ListAllForUser(c.Context(), userID)
	if err != nil {
		sc.Logger.Printf("streak: %v", err)
		return utils.InternalServerError(c, "Could not load attempts")
	}
	timestamps := make([]int64, 0, len(attempts))
	for _, a := range attempts {
		timestamps = append(timestamps, a.Timestamp)
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"streak": stats.Streak(timestamps, time.Now()),
	})
}

// GetBookStats returns per-book attempt counts and accuracy, aggregated
// server-side.
func (sc *StatsController) GetBookStats(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return utils.Unauthorized(c, "Unauthorized")
	}

	bookStats, err := sc.Remote.AggregateByBook(c.Context(), userID)
	if err != nil {
		sc.Logger.Printf("book stats: %v", err)
		return utils.InternalServerError(c, "Could not aggregate attempts")
	}
	return utils.Success(c, fiber.StatusOK, bookStats)
}

// GetLeaderboard godoc
// @Summary Get chapter leaderboard
// @Description Best accuracy per user for one book chapter
// @Tags stats
// @Produce json
// @Param bookId query string true "Book id"
// @Param chapterNumber query int true "Chapter number"
// @Param limit query int false "Row limit (1-100, default 10)"
// @Success 200 {object} utils.SuccessResponse
// @Router /leaderboard [get]
func (sc *StatsController) GetLeaderboard(c *fiber.Ctx) error {
	bookID := c.Query("bookId")
	chapterNumber, err := strconv.Atoi(c.Query("chapterNumber"))
	if bookID == "" || err != nil {
		return utils.BadRequest(c, "bookId and chapterNumber are required")
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	rows, err := sc.Remote.ListChapterAllUsers(c.Context(), bookID, chapterNumber)
	if err != nil {
		sc.Logger.Printf("leaderboard: %v", err)
		return utils.InternalServerError(c, "Could not load leaderboard")
	}
	return utils.Success(c, fiber.StatusOK, stats.Leaderboard(rows, limit))
}
