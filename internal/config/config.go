package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	JWTSecret   string
	MongoURI    string
	DBName      string
	LMSDatabase string // Postgres DSN for the LMS warehouse
	SkipAuth    bool
	Environment string
	AppId       string

	QueryTimeoutSeconds int // upper bound for any single warehouse query

	ExportDir string // filesystem destination for scheduled exports

	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	MailFrom string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	} else {
		log.Println("Loaded .env file successfully")
	}

	return &Config{
		Port:                getEnv("PORT", "8080"),
		JWTSecret:           getEnv("JWT_SECRET", "secret"),
		MongoURI:            getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:              getEnv("DB_NAME", "learnerscript"),
		LMSDatabase:         getEnv("LMS_DATABASE_URL", "postgres://localhost:5432/lms?sslmode=disable"),
		SkipAuth:            getEnv("SKIP_AUTH", "false") == "true",
		Environment:         getEnv("ENVIRONMENT", "development"),
		AppId:               getEnv("APP_ID", "learnerscript"),
		QueryTimeoutSeconds: getEnvInt("QUERY_TIMEOUT_SECONDS", 30),
		ExportDir:           getEnv("EXPORT_DIR", "exports"),
		SMTPHost:            getEnv("SMTP_HOST", "localhost"),
		SMTPPort:            getEnvInt("SMTP_PORT", 25),
		SMTPUser:            getEnv("SMTP_USER", ""),
		SMTPPass:            getEnv("SMTP_PASS", ""),
		MailFrom:            getEnv("MAIL_FROM", "reports@localhost"),
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}
