package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Encryption EncryptionConfig
	RateLimit  RateLimitConfig
	OTP        OTPConfig
	SMTP       SMTPConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	Env            string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
}

type JWTConfig struct {
	Secret      string
	ExpiryHours int
}

type EncryptionConfig struct {
	Key string
}

type RateLimitConfig struct {
	Requests      int
	WindowSeconds int
	// AuthRequests caps the public signup/verify/login endpoints per window.
	AuthRequests int
}

type OTPConfig struct {
	TTLSeconds         int
	PurgeCron          string
	PurgeGraceMinutes  int
	ThrottleWindowSecs int
	ThrottleMax        int
	CooldownSecs       int
}

type SMTPConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// URL returns the database address in the postgres:// form golang-migrate expects.
func (d *DatabaseConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     d.Name,
		RawQuery: "sslmode=" + d.SSLMode,
	}
	return u.String()
}

func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func (j *JWTConfig) Expiry() time.Duration {
	return time.Duration(j.ExpiryHours) * time.Hour
}

func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func (s *ServerConfig) IsDevelopment() bool {
	return s.Env == "development"
}

func (o *OTPConfig) TTL() time.Duration {
	return time.Duration(o.TTLSeconds) * time.Second
}

func (o *OTPConfig) PurgeGrace() time.Duration {
	return time.Duration(o.PurgeGraceMinutes) * time.Minute
}

func (o *OTPConfig) ThrottleWindow() time.Duration {
	return time.Duration(o.ThrottleWindowSecs) * time.Second
}

func (o *OTPConfig) Cooldown() time.Duration {
	return time.Duration(o.CooldownSecs) * time.Second
}

func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_ENV", "development")
	v.SetDefault("SERVER_ALLOWED_ORIGINS", "")
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", 5432)
	v.SetDefault("DATABASE_USER", "taskhub")
	v.SetDefault("DATABASE_PASSWORD", "taskhub_secret")
	v.SetDefault("DATABASE_NAME", "taskhub")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("JWT_SECRET", "change-me-in-production")
	v.SetDefault("JWT_EXPIRY_HOURS", 24)
	v.SetDefault("RATE_LIMIT_REQUESTS", 100)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	v.SetDefault("RATE_LIMIT_AUTH_REQUESTS", 20)
	v.SetDefault("OTP_TTL_SECONDS", 120)
	v.SetDefault("OTP_PURGE_CRON", "*/15 * * * *")
	v.SetDefault("OTP_PURGE_GRACE_MINUTES", 60)
	v.SetDefault("OTP_THROTTLE_WINDOW_SECONDS", 3600)
	v.SetDefault("OTP_THROTTLE_MAX", 5)
	v.SetDefault("OTP_COOLDOWN_SECONDS", 30)
	v.SetDefault("SMTP_ENABLED", false)
	v.SetDefault("SMTP_HOST", "localhost")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USER", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM", "no-reply@taskhub.local")

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		Server: ServerConfig{
			Host:           v.GetString("SERVER_HOST"),
			Port:           v.GetInt("SERVER_PORT"),
			Env:            v.GetString("SERVER_ENV"),
			AllowedOrigins: splitList(v.GetString("SERVER_ALLOWED_ORIGINS")),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DATABASE_HOST"),
			Port:     v.GetInt("DATABASE_PORT"),
			User:     v.GetString("DATABASE_USER"),
			Password: v.GetString("DATABASE_PASSWORD"),
			Name:     v.GetString("DATABASE_NAME"),
			SSLMode:  v.GetString("DATABASE_SSLMODE"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
		},
		JWT: JWTConfig{
			Secret:      v.GetString("JWT_SECRET"),
			ExpiryHours: v.GetInt("JWT_EXPIRY_HOURS"),
		},
		Encryption: EncryptionConfig{
			Key: v.GetString("ENCRYPTION_KEY"),
		},
		RateLimit: RateLimitConfig{
			Requests:      v.GetInt("RATE_LIMIT_REQUESTS"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
			AuthRequests:  v.GetInt("RATE_LIMIT_AUTH_REQUESTS"),
		},
		OTP: OTPConfig{
			TTLSeconds:         v.GetInt("OTP_TTL_SECONDS"),
			PurgeCron:          v.GetString("OTP_PURGE_CRON"),
			PurgeGraceMinutes:  v.GetInt("OTP_PURGE_GRACE_MINUTES"),
			ThrottleWindowSecs: v.GetInt("OTP_THROTTLE_WINDOW_SECONDS"),
			ThrottleMax:        v.GetInt("OTP_THROTTLE_MAX"),
			CooldownSecs:       v.GetInt("OTP_COOLDOWN_SECONDS"),
		},
		SMTP: SMTPConfig{
			Enabled:  v.GetBool("SMTP_ENABLED"),
			Host:     v.GetString("SMTP_HOST"),
			Port:     v.GetInt("SMTP_PORT"),
			User:     v.GetString("SMTP_USER"),
			Password: v.GetString("SMTP_PASSWORD"),
			From:     v.GetString("SMTP_FROM"),
		},
	}

	if cfg.OTP.TTLSeconds <= 0 {
		return nil, fmt.Errorf("OTP_TTL_SECONDS must be positive, got %d", cfg.OTP.TTLSeconds)
	}

	return cfg, nil
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
