package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	DBHost         string
	DBPort         string
	DBUser         string
	DBPassword     string
	DBName         string
	JWTSecret      string
	ServerPort     string
	DataDir        string
	LocalStorePath string
	DefaultLocale  string
}

func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Println("Error loading .env file, using environment variables")
	}

	return &Config{
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", "postgres"),
		DBName:         getEnv("DB_NAME", "bible_quiz"),
		JWTSecret:      getEnv("JWT_SECRET", "secret"),
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		DataDir:        getEnv("DATA_DIR", "data"),
		LocalStorePath: getEnv("LOCAL_STORE_PATH", "bible-quiz-history.json"),
		DefaultLocale:  getEnv("DEFAULT_LOCALE", "en"),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
