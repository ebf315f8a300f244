package controllers

import (
	"errors"
	"log"

	"biblequiz/backend/config"
	"biblequiz/backend/content"
	"biblequiz/backend/engine"
	"biblequiz/backend/quizrun"
	"biblequiz/backend/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// RunController exposes quiz runs over HTTP. A run belongs to the session
// that started it and drives the session's lifecycle engine when it finishes.
type RunController struct {
	Manager  *engine.Manager
	Registry *quizrun.Registry
	Loader   *content.Loader
	Cfg      *config.Config
	Logger   *log.Logger
}

func NewRunController(manager *engine.Manager, registry *quizrun.Registry, loader *content.Loader, cfg *config.Config, logger *log.Logger) *RunController {
	return &RunController{Manager: manager, Registry: registry, Loader: loader, Cfg: cfg, Logger: logger}
}

// StartRun godoc
// @Summary Create a quiz run for a chapter
// @Tags runs
// @Accept json
// @Produce json
// @Success 201 {object} utils.SuccessResponse
// @Failure 400 {object} utils.ErrorResponse
// @Failure 404 {object} utils.ErrorResponse
// @Router /runs [post]
func (rc *RunController) StartRun(c *fiber.Ctx) error {
	type RunInput struct {
		BookID        string `json:"bookId"`
		ChapterNumber int    `json:"chapterNumber"`
		Locale        string `json:"locale"`
	}

	var input RunInput
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	if input.BookID == "" || input.ChapterNumber <= 0 {
		return utils.BadRequest(c, "bookId and chapterNumber are required")
	}

	data, err := rc.Loader.LoadChapter(input.BookID, input.ChapterNumber, input.Locale)
	if err != nil {
		if errors.Is(err, content.ErrContentNotFound) {
			return utils.NotFound(c, "Chapter not found")
		}
		rc.Logger.Printf("start run: %v", err)
		return utils.InternalServerError(c, "Could not load quiz data")
	}

	eng, sessionID, err := resolveEngine(c, rc.Manager)
	if err != nil {
		return utils.InternalServerError(c, "Could not resolve session")
	}

	// Prior history for this chapter decides the opening screen. A store
	// error just means the run opens on the start screen.
	hasHistory := false
	if latest, err := eng.LatestAttempt(c.Context(), input.BookID, input.ChapterNumber); err == nil && latest != nil {
		hasHistory = true
	}

	run := quizrun.NewRun(uuid.NewString(), sessionID, input.BookID, data, eng, hasHistory)
	rc.Registry.Put(run)

	return utils.Created(c, run.Snapshot())
}

func (rc *RunController) GetRun(c *fiber.Ctx) error {
	run, err := rc.sessionRun(c)
	if err != nil {
		return err
	}
	return utils.Success(c, fiber.StatusOK, run.Snapshot())
}

func (rc *RunController) Start(c *fiber.Ctx) error {
	run, err := rc.sessionRun(c)
	if err != nil {
		return err
	}
	run.Start()
	return utils.Success(c, fiber.StatusOK, run.Snapshot())
}

// SubmitAnswer records one answer. The first answer to a question wins, so
// resubmitting is harmless.
func (rc *RunController) SubmitAnswer(c *fiber.Ctx) error {
	run, err := rc.sessionRun(c)
	if err != nil {
		return err
	}

	type AnswerInput struct {
		QuestionID     int `json:"questionId"`
		SelectedOption int `json:"selectedOption"`
	}
	var input AnswerInput
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}

	if err := run.SubmitAnswer(input.QuestionID, input.SelectedOption); err != nil {
		return utils.BadRequest(c, err.Error())
	}
	return utils.Success(c, fiber.StatusOK, run.Snapshot())
}

func (rc *RunController) Next(c *fiber.Ctx) error {
	run, err := rc.sessionRun(c)
	if err != nil {
		return err
	}
	if err := run.Next(c.Context()); err != nil {
		if errors.Is(err, quizrun.ErrUnansweredRemain) {
			return utils.BadRequest(c, err.Error())
		}
		rc.Logger.Printf("run next: %v", err)
		return utils.InternalServerError(c, "Could not record attempt")
	}
	return utils.Success(c, fiber.StatusOK, run.Snapshot())
}

func (rc *RunController) Previous(c *fiber.Ctx) error {
	run, err := rc.sessionRun(c)
	if err != nil {
		return err
	}
	run.Previous()
	return utils.Success(c, fiber.StatusOK, run.Snapshot())
}

func (rc *RunController) StartReview(c *fiber.Ctx) error {
	run, err := rc.sessionRun(c)
	if err != nil {
		return err
	}
	if err := run.StartReview(); err != nil {
		return utils.BadRequest(c, err.Error())
	}
	return utils.Success(c, fiber.StatusOK, run.Snapshot())
}

func (rc *RunController) Finish(c *fiber.Ctx) error {
	run, err := rc.sessionRun(c)
	if err != nil {
		return err
	}
	if err := run.Finish(c.Context()); err != nil {
		if errors.Is(err, quizrun.ErrUnansweredRemain) || errors.Is(err, quizrun.ErrNotAnswering) {
			return utils.BadRequest(c, err.Error())
		}
		rc.Logger.Printf("run finish: %v", err)
		return utils.InternalServerError(c, "Could not record attempt")
	}
	return utils.Success(c, fiber.StatusOK, run.Snapshot())
}

func (rc *RunController) ViewHistory(c *fiber.Ctx) error {
	run, err := rc.sessionRun(c)
	if err != nil {
		return err
	}
	run.ViewHistory()
	return utils.Success(c, fiber.StatusOK, run.Snapshot())
}

func (rc *RunController) Restart(c *fiber.Ctx) error {
	run, err := rc.sessionRun(c)
	if err != nil {
		return err
	}
	run.Restart()
	return utils.Success(c, fiber.StatusOK, run.Snapshot())
}

// DeleteRun drops a finished or abandoned run from the registry.
func (rc *RunController) DeleteRun(c *fiber.Ctx) error {
	run, err := rc.sessionRun(c)
	if err != nil {
		return err
	}
	rc.Registry.Delete(run.ID)
	return utils.NoContent(c)
}

// sessionRun looks up the run and checks it belongs to the caller's session.
func (rc *RunController) sessionRun(c *fiber.Ctx) (*quizrun.Run, error) {
	sessionID := ensureSessionID(c)
	run, ok := rc.Registry.Get(c.Params("id"))
	if !ok {
		return nil, utils.NotFound(c, "Run not found")
	}
	if run.SessionID != sessionID {
		return nil, utils.Forbidden(c, "Run belongs to another session")
	}
	return run, nil
}
