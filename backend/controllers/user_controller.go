package controllers

import (
	"biblequiz/backend/config"
	"biblequiz/backend/middleware"
	"biblequiz/backend/models"
	"biblequiz/backend/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type UserController struct {
	DB  *gorm.DB
	Cfg *config.Config
}

func NewUserController(db *gorm.DB, cfg *config.Config) *UserController {
	return &UserController{DB: db, Cfg: cfg}
}

func (uc *UserController) GetProfile(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return utils.Unauthorized(c, "Unauthorized")
	}

	var user models.User
	if err := uc.DB.First(&user, userID).Error; err != nil {
		return utils.NotFound(c, "User not found")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"id":       user.ID,
		"username": user.Username,
		"email":    user.Email,
		"image":    user.Image,
	})
}

func (uc *UserController) UpdateProfile(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return utils.Unauthorized(c, "Unauthorized")
	}

	type UpdateInput struct {
		Email string `json:"email"`
		Image string `json:"image"`
	}
	var input UpdateInput
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}

	var user models.User
	if err := uc.DB.First(&user, userID).Error; err != nil {
		return utils.NotFound(c, "User not found")
	}

	if input.Email != "" {
		user.Email = input.Email
	}
	if input.Image != "" {
		user.Image = input.Image
	}
	if err := uc.DB.Save(&user).Error; err != nil {
		return utils.InternalServerError(c, "Could not update profile")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"id":       user.ID,
		"username": user.Username,
		"email":    user.Email,
		"image":    user.Image,
	})
}
