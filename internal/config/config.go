package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	MongoURI       string
	MongoDatabase  string // Fallback when the URI carries no database path
	RedisURI       string
	Port           string
	Host           string   // Public base URL, used for docs and redirects
	AllowedOrigins []string // CORS: from ALLOWED_ORIGINS or FRONTEND_URL(s)
	Environment    string   // ENV: production, development, etc.

	// Google OAuth
	GoogleClientID        string
	GoogleClientSecret    string
	GoogleCallbackURL     string
	GoogleCallbackURLProd string
	SessionDuration       time.Duration
	SessionCookieName     string

	// Cloudinary (profile pictures)
	CloudinaryName      string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string

	// Logging
	LogLevel  string
	LogFormat string

	// Per-IP rate limiting: token buckets in production, Redis windows elsewhere
	RateLimitRPS    float64
	RateLimitBurst  int
	RateLimitWindow time.Duration
	RateLimitMax    int
}

func Load() *Config {
	env := strings.ToLower(strings.TrimSpace(getEnv("ENV", getEnv("NODE_ENV", "development"))))
	port := getEnv("PORT", "3000")

	allowedOrigins := parseOrigins(getEnv("ALLOWED_ORIGINS", ""))
	if len(allowedOrigins) == 0 {
		for _, u := range []string{getEnv("FRONTEND_URL", "http://localhost:3000"), getEnv("FRONTEND_URL_2", "")} {
			u = strings.TrimSpace(u)
			if u != "" {
				allowedOrigins = append(allowedOrigins, u)
			}
		}
	}

	logFormat := "console"
	if env == "production" {
		logFormat = "json"
	}

	return &Config{
		MongoURI:              getEnv("MONGODB_URI", getEnv("MONGO_URI", "mongodb://localhost:27017/spiritual_journal")),
		MongoDatabase:         getEnv("MONGODB_DB", "spiritual_journal"),
		RedisURI:              getEnv("REDIS_URI", "redis://localhost:6379/0"),
		Port:                  port,
		Host:                  getEnv("HOST", "http://localhost:"+port),
		AllowedOrigins:        allowedOrigins,
		Environment:           env,
		GoogleClientID:        getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:    getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleCallbackURL:     getEnv("GOOGLE_CALLBACK_URL", "http://localhost:"+port+"/auth/google/callback"),
		GoogleCallbackURLProd: getEnv("GOOGLE_CALLBACK_URL_PROD", ""),
		SessionDuration:       getDuration("SESSION_DURATION", 7*24*time.Hour),
		SessionCookieName:     getEnv("SESSION_COOKIE_NAME", "journal_session"),
		CloudinaryName:        getEnv("CLOUDINARY_CLOUD_NAME", ""),
		CloudinaryAPIKey:      getEnv("CLOUDINARY_API_KEY", ""),
		CloudinaryAPISecret:   getEnv("CLOUDINARY_API_SECRET", ""),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", logFormat),
		RateLimitRPS:          getFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:        getInt("RATE_LIMIT_BURST", 20),
		RateLimitWindow:       getDuration("RATE_LIMIT_WINDOW", 2*time.Minute),
		RateLimitMax:          getInt("RATE_LIMIT_MAX", 300),
	}
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return strings.ToLower(strings.TrimSpace(c.Environment)) == "production"
}

// CallbackURL returns the OAuth redirect URL for the current environment.
func (c *Config) CallbackURL() string {
	if c.IsProduction() && c.GoogleCallbackURLProd != "" {
		return c.GoogleCallbackURLProd
	}
	return c.GoogleCallbackURL
}

// OAuthEnabled reports whether Google credentials are present.
func (c *Config) OAuthEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// CloudinaryEnabled reports whether all Cloudinary credentials are present.
func (c *Config) CloudinaryEnabled() bool {
	return c.CloudinaryName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

func parseOrigins(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil && v > 0 {
		return v
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return defaultValue
}
