package controllers

import (
	"errors"
	"log"
	"strconv"

	"biblequiz/backend/config"
	"biblequiz/backend/content"
	"biblequiz/backend/utils"

	"github.com/gofiber/fiber/v2"
)

type QuizController struct {
	Loader *content.Loader
	Cfg    *config.Config
	Logger *log.Logger
}

func NewQuizController(loader *content.Loader, cfg *config.Config, logger *log.Logger) *QuizController {
	return &QuizController{Loader: loader, Cfg: cfg, Logger: logger}
}

// GetBooks godoc
// @Summary List available books
// @Description Returns all books with chapters for the requested locale
// @Tags quiz
// @Produce json
// @Param locale query string false "Locale (defaults to configured locale)"
// @Success 200 {object} utils.SuccessResponse
// @Router /books [get]
func (qc *QuizController) GetBooks(c *fiber.Ctx) error {
	locale := c.Query("locale")
	books, err := qc.Loader.AvailableBooks(locale)
	if err != nil {
		qc.Logger.Printf("listing books: %v", err)
	}
	return utils.Success(c, fiber.StatusOK, books)
}

// GetChapter returns one chapter's quiz data. Missing content yields the
// placeholder chapter rather than an error page.
func (qc *QuizController) GetChapter(c *fiber.Ctx) error {
	bookID := c.Params("bookId")
	chapterNumber, err := strconv.Atoi(c.Params("chapter"))
	if err != nil {
		return utils.BadRequest(c, "Invalid chapter number")
	}

	data, err := qc.Loader.LoadChapter(bookID, chapterNumber, c.Query("locale"))
	if err != nil {
		if errors.Is(err, content.ErrContentNotFound) {
			qc.Logger.Printf("content missing: %v", err)
			return utils.Success(c, fiber.StatusOK, data)
		}
		return utils.InternalServerError(c, "Could not load quiz data")
	}
	return utils.Success(c, fiber.StatusOK, data)
}
