package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Email     EmailConfig
	OTP       OTPConfig
	RateLimit RateLimitConfig
	Identity  IdentityConfig
	Admin     AdminConfig
}

type AppConfig struct {
	Name    string
	Env     string
	Port    string
	Debug   bool
	LogPath string

	// TrustProxy honours X-Forwarded-For / X-Real-IP. Enable it only behind a
	// reverse proxy that overwrites those headers.
	TrustProxy bool
}

type DatabaseConfig struct {
	Driver      string
	Host        string
	Port        string
	Name        string
	User        string
	Password    string
	MaxConns    int32
	AutoMigrate bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret      string
	Issuer      string
	ExpiryHours int
}

type EmailConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	From        string
	Retries     int
	WaitTimeout time.Duration
}

type OTPConfig struct {
	Length        int
	ExpiryMinutes int
	MaxAttempts   int
	LockMinutes   int
}

type RateLimitConfig struct {
	Max           int
	WindowMinutes int
}

type IdentityConfig struct {
	Provider string
	Secret   string
	Issuer   string
	Audience string
}

type AdminConfig struct {
	Key string
}

// DSN builds a pgx connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("user=%s password=%s dbname=%s host=%s port=%s sslmode=disable",
		d.User, d.Password, d.Name, d.Host, d.Port)
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.App.Env, EnvProduction)
}

// Validate rejects configurations the service cannot run safely with.
func (c *Config) Validate() error {
	var problems []string

	if len(c.JWT.Secret) < 32 {
		problems = append(problems, "JWT_SECRET must be at least 32 characters")
	}
	if c.Admin.Key == "" {
		problems = append(problems, "ADMIN_KEY is required")
	}
	if c.IsProduction() && c.Email.Host == "" {
		problems = append(problems, "SMTP_HOST is required in production")
	}
	if c.Database.Driver != "postgres" && c.Database.Driver != "memory" {
		problems = append(problems, "DB_DRIVER must be postgres or memory")
	}
	if c.IsProduction() && c.Database.Driver == "memory" {
		problems = append(problems, "DB_DRIVER=memory is not allowed in production")
	}
	if c.OTP.MaxAttempts < 1 || c.OTP.ExpiryMinutes < 1 || c.OTP.LockMinutes < 1 {
		problems = append(problems, "OTP policy values must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_NAME", "storefront-auth")
	v.SetDefault("APP_ENV", EnvDevelopment)
	v.SetDefault("PORT", "8080")
	v.SetDefault("DEBUG", false)
	v.SetDefault("LOG_PATH", "logs/")
	v.SetDefault("TRUSTED_PROXY", false)

	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_ISSUER", "storefront-auth")
	v.SetDefault("JWT_EXPIRY_HOURS", 24*7)

	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("EMAIL_FROM", "no-reply@storefront.local")
	v.SetDefault("MAIL_RETRIES", 3)
	v.SetDefault("MAIL_WAIT_TIMEOUT", "5s")

	v.SetDefault("OTP_LENGTH", 6)
	v.SetDefault("OTP_EXPIRY_MINUTES", 10)
	v.SetDefault("OTP_MAX_ATTEMPTS", 5)
	v.SetDefault("OTP_LOCK_MINUTES", 15)

	v.SetDefault("RATE_LIMIT_MAX", 10)
	v.SetDefault("RATE_LIMIT_WINDOW_MINUTES", 15)

	v.SetDefault("IDP_PROVIDER", "google")
}

// LoadConfig reads .env (if present) and the process environment.
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(".env")
}

func LoadConfigFrom(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *fs.PathError
		if !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.AutomaticEnv()

	config := &Config{
		App: AppConfig{
			Name:       v.GetString("APP_NAME"),
			Env:        v.GetString("APP_ENV"),
			Port:       v.GetString("PORT"),
			Debug:      v.GetBool("DEBUG"),
			LogPath:    v.GetString("LOG_PATH"),
			TrustProxy: v.GetBool("TRUSTED_PROXY"),
		},
		Database: DatabaseConfig{
			Driver:      v.GetString("DB_DRIVER"),
			Host:        v.GetString("DB_HOST"),
			Port:        v.GetString("DB_PORT"),
			Name:        v.GetString("DB_NAME"),
			User:        v.GetString("DB_USER"),
			Password:    v.GetString("DB_PASS"),
			MaxConns:    v.GetInt32("DB_MAX_CONNS"),
			AutoMigrate: v.GetBool("DB_AUTO_MIGRATE"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:      v.GetString("JWT_SECRET"),
			Issuer:      v.GetString("JWT_ISSUER"),
			ExpiryHours: v.GetInt("JWT_EXPIRY_HOURS"),
		},
		Email: EmailConfig{
			Host:        v.GetString("SMTP_HOST"),
			Port:        v.GetInt("SMTP_PORT"),
			User:        v.GetString("SMTP_USER"),
			Password:    v.GetString("SMTP_PASS"),
			From:        v.GetString("EMAIL_FROM"),
			Retries:     v.GetInt("MAIL_RETRIES"),
			WaitTimeout: v.GetDuration("MAIL_WAIT_TIMEOUT"),
		},
		OTP: OTPConfig{
			Length:        v.GetInt("OTP_LENGTH"),
			ExpiryMinutes: v.GetInt("OTP_EXPIRY_MINUTES"),
			MaxAttempts:   v.GetInt("OTP_MAX_ATTEMPTS"),
			LockMinutes:   v.GetInt("OTP_LOCK_MINUTES"),
		},
		RateLimit: RateLimitConfig{
			Max:           v.GetInt("RATE_LIMIT_MAX"),
			WindowMinutes: v.GetInt("RATE_LIMIT_WINDOW_MINUTES"),
		},
		Identity: IdentityConfig{
			Provider: v.GetString("IDP_PROVIDER"),
			Secret:   v.GetString("IDP_SECRET"),
			Issuer:   v.GetString("IDP_ISSUER"),
			Audience: v.GetString("IDP_AUDIENCE"),
		},
		Admin: AdminConfig{
			Key: v.GetString("ADMIN_KEY"),
		},
	}

	return config, nil
}
