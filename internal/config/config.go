package config

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultDSN = "host=localhost user=postgres password=postgres dbname=sgcsc port=5432 sslmode=disable"

type Config struct {
	AppEnv         string
	HTTPPort       string
	StoreDriver    string // postgres | memory
	DatabaseDSN    string
	JWTSecret      string
	SessionTTL     time.Duration
	CORSOrigins    string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	LogLevel       string
	LoginRateLimit int // login attempts per IP per minute
	BcryptCost     int

	SeedAdminUsername string
	SeedAdminPassword string
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Validate reports configuration that must stop the server from starting.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	if len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters")
	}
	if c.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	if c.BcryptCost != 0 && (c.BcryptCost < 4 || c.BcryptCost > 31) {
		return errors.New("BCRYPT_COST must be between 4 and 31")
	}
	switch c.StoreDriver {
	case "postgres", "memory":
	default:
		return errors.New("STORE_DRIVER must be postgres or memory")
	}
	return nil
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[INFO] .env not found, using process environment")
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("STORE_DRIVER", "postgres")
	v.SetDefault("DATABASE_DSN", defaultDSN)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("SESSION_TTL", "720h")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOGIN_RATE_LIMIT", 10)
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("SEED_ADMIN_USERNAME", "")
	v.SetDefault("SEED_ADMIN_PASSWORD", "")

	cfg := &Config{
		AppEnv:            v.GetString("APP_ENV"),
		HTTPPort:          v.GetString("HTTP_PORT"),
		StoreDriver:       strings.ToLower(v.GetString("STORE_DRIVER")),
		DatabaseDSN:       v.GetString("DATABASE_DSN"),
		JWTSecret:         v.GetString("JWT_SECRET"),
		SessionTTL:        v.GetDuration("SESSION_TTL"),
		CORSOrigins:       v.GetString("CORS_ALLOWED_ORIGINS"),
		RedisAddr:         v.GetString("REDIS_ADDR"),
		RedisPassword:     v.GetString("REDIS_PASSWORD"),
		RedisDB:           v.GetInt("REDIS_DB"),
		LogLevel:          v.GetString("LOG_LEVEL"),
		LoginRateLimit:    v.GetInt("LOGIN_RATE_LIMIT"),
		BcryptCost:        v.GetInt("BCRYPT_COST"),
		SeedAdminUsername: v.GetString("SEED_ADMIN_USERNAME"),
		SeedAdminPassword: v.GetString("SEED_ADMIN_PASSWORD"),
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] invalid configuration: %v", err)
	}
	if cfg.StoreDriver == "postgres" && cfg.DatabaseDSN == defaultDSN {
		log.Println("[WARN] DATABASE_DSN is using the default value, set your own Postgres connection for production.")
	}
	if cfg.CORSOrigins == "http://localhost:5173" {
		log.Println("[WARN] CORS_ALLOWED_ORIGINS is using the default value, set your own domain for production.")
	}
	if cfg.StoreDriver == "memory" && cfg.IsProduction() {
		log.Println("[WARN] STORE_DRIVER=memory loses all data on restart.")
	}

	return cfg
}
