package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort string
	Redis    RedisConfig
	DB       DBConfig
	Auth     AuthConfig
	Policy   PolicyConfig
}

type DBConfig struct {
	DSN string
}

type AuthConfig struct {
	JWTSecret string
}

// PolicyConfig holds the server-owned POS policy knobs. The return approval
// threshold lives here so it can change without a client deploy.
type PolicyConfig struct {
	ReturnApprovalThreshold string
	ReturnApprovalMaxQty    int
	CreditDueSoonDays       int
	CashDifferenceSignoff   bool
	DefaultTaxRate          string
}

func LoadConfig() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	maxQty, _ := strconv.Atoi(getEnv("RETURN_APPROVAL_MAX_QTY", "3"))
	dueSoonDays, _ := strconv.Atoi(getEnv("CREDIT_DUE_SOON_DAYS", "7"))
	signoff, _ := strconv.ParseBool(getEnv("CASH_DIFFERENCE_SIGNOFF", "false"))

	return Config{
		HTTPPort: getEnv("HTTP_PORT", "8080"),
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		DB: DBConfig{
			DSN: getEnv("POS_DSN", ""),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Policy: PolicyConfig{
			ReturnApprovalThreshold: getEnv("RETURN_APPROVAL_THRESHOLD", "500.00"),
			ReturnApprovalMaxQty:    maxQty,
			CreditDueSoonDays:       dueSoonDays,
			CashDifferenceSignoff:   signoff,
			DefaultTaxRate:          getEnv("TAX_RATE_DEFAULT", "16"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
