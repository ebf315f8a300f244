package controllers

import (
	"errors"
	"log"
	"strconv"

	"biblequiz/backend/config"
	"biblequiz/backend/engine"
	"biblequiz/backend/models"
	"biblequiz/backend/storage"
	"biblequiz/backend/utils"

	"github.com/gofiber/fiber/v2"
)

// AttemptsController is the HTTP surface over the attempt lifecycle engine.
// Every handler resolves the session's engine first; the engine, not the
// handler, decides which store is authoritative.
type AttemptsController struct {
	Manager *engine.Manager
	Cfg     *config.Config
	Logger  *log.Logger
}

func NewAttemptsController(manager *engine.Manager, cfg *config.Config, logger *log.Logger) *AttemptsController {
	return &AttemptsController{Manager: manager, Cfg: cfg, Logger: logger}
}

// RecordAttempt godoc
// @Summary Record a completed quiz attempt
// @Tags attempts
// @Accept json
// @Produce json
// @Success 201 {object} utils.SuccessResponse
// @Failure 400 {object} utils.ErrorResponse
// @Router /attempts [post]
func (atc *AttemptsController) RecordAttempt(c *fiber.Ctx) error {
	type AttemptInput struct {
		BookID         string              `json:"bookId"`
		Book           string              `json:"book"`
		ChapterNumber  int                 `json:"chapterNumber"`
		TotalQuestions int                 `json:"totalQuestions"`
		CorrectAnswers int                 `json:"correctAnswers"`
		Results        []models.QuizResult `json:"results"`
	}

	var input AttemptInput
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	if input.BookID == "" || input.ChapterNumber <= 0 {
		return utils.BadRequest(c, "bookId and chapterNumber are required")
	}

	eng, _, err := resolveEngine(c, atc.Manager)
	if err != nil {
		return utils.InternalServerError(c, "Could not resolve session")
	}

	attempt, err := eng.RecordAttempt(c.Context(), input.BookID, input.Book,
		input.ChapterNumber, input.TotalQuestions, input.CorrectAnswers, input.Results)
	if err != nil {
		atc.Logger.Printf("record attempt: %v", err)
		return utils.InternalServerError(c, "Could not record attempt")
	}
	return utils.Created(c, attempt)
}

func (atc *AttemptsController) GetAttempts(c *fiber.Ctx) error {
	bookID, chapterNumber, err := attemptKeyQuery(c)
	if err != nil {
		return utils.BadRequest(c, err.Error())
	}

	eng, _, err := resolveEngine(c, atc.Manager)
	if err != nil {
		return utils.InternalServerError(c, "Could not resolve session")
	}

	attempts, err := eng.ListAttempts(c.Context(), bookID, chapterNumber)
	if err != nil {
		atc.Logger.Printf("list attempts: %v", err)
		return utils.Success(c, fiber.StatusOK, []models.QuizAttempt{}, fiber.Map{
			"degraded": true,
		})
	}
	return utils.Success(c, fiber.StatusOK, attempts)
}

func (atc *AttemptsController) GetLatestAttempt(c *fiber.Ctx) error {
	bookID, chapterNumber, err := attemptKeyQuery(c)
	if err != nil {
		return utils.BadRequest(c, err.Error())
	}

	eng, _, err := resolveEngine(c, atc.Manager)
	if err != nil {
		return utils.InternalServerError(c, "Could not resolve session")
	}

	latest, err := eng.LatestAttempt(c.Context(), bookID, chapterNumber)
	if err != nil {
		atc.Logger.Printf("latest attempt: %v", err)
		return utils.Success(c, fiber.StatusOK, nil, fiber.Map{"degraded": true})
	}
	return utils.Success(c, fiber.StatusOK, latest)
}

// ClearHistory deletes attempts. No bookId clears everything, bookId alone
// clears the whole book, bookId plus chapterNumber clears one chapter.
func (atc *AttemptsController) ClearHistory(c *fiber.Ctx) error {
	var filter storage.Filter
	if bookID := c.Query("bookId"); bookID != "" {
		filter.BookID = &bookID
		if raw := c.Query("chapterNumber"); raw != "" {
			chapterNumber, err := strconv.Atoi(raw)
			if err != nil {
				return utils.BadRequest(c, "Invalid chapterNumber")
			}
			filter.ChapterNumber = &chapterNumber
		}
	}

	eng, _, err := resolveEngine(c, atc.Manager)
	if err != nil {
		return utils.InternalServerError(c, "Could not resolve session")
	}

	if err := eng.ClearHistory(c.Context(), filter); err != nil {
		atc.Logger.Printf("clear history: %v", err)
		return utils.Success(c, fiber.StatusOK, fiber.Map{"cleared": false})
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"cleared": true})
}

func (atc *AttemptsController) GetSyncStatus(c *fiber.Ctx) error {
	eng, _, err := resolveEngine(c, atc.Manager)
	if err != nil {
		return utils.InternalServerError(c, "Could not resolve session")
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"status": eng.SyncStatus()})
}

// TriggerSync retries the local-to-account migration, picking up anything a
// partial failure left behind. Failure is reported as status, not as an
// error response.
func (atc *AttemptsController) TriggerSync(c *fiber.Ctx) error {
	eng, _, err := resolveEngine(c, atc.Manager)
	if err != nil {
		return utils.InternalServerError(c, "Could not resolve session")
	}

	if err := eng.Sync(c.Context()); err != nil {
		if errors.Is(err, engine.ErrPartialMigration) {
			atc.Logger.Printf("sync: %v", err)
		} else {
			atc.Logger.Printf("sync failed: %v", err)
		}
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"status": eng.SyncStatus()})
}

func attemptKeyQuery(c *fiber.Ctx) (string, int, error) {
	bookID := c.Query("bookId")
	if bookID == "" {
		return "", 0, errors.New("bookId is required")
	}
	chapterNumber, err := strconv.Atoi(c.Query("chapterNumber"))
	if err != nil {
		return "", 0, errors.New("chapterNumber is required")
	}
	return bookID, chapterNumber, nil
}
