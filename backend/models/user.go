package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Username     string `gorm:"uniqueIndex" json:"username"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	Image        string `json:"image"`
}

type LoginHistory struct {
	gorm.Model
	UserID    uint
	LoginTime time.Time
}
