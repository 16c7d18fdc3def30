package config

import "time"

// APIConfig holds runtime configuration for the API service.
type APIConfig struct {
	Environment    string
	Addr           string
	DatabaseURL    string
	MigrationsDir  string
	JWTSecret      string
	AccessTokenTTL time.Duration
	ImageDir       string
	ImagePublicDir string
	FeedPageSize   int
	AllowedOrigins []string
}

// LoadAPIConfig constructs an APIConfig from environment variables.
func LoadAPIConfig() APIConfig {
	return APIConfig{
		Environment:    GetString("APP_ENV", "development"),
		Addr:           GetString("API_ADDR", ":8080"),
		DatabaseURL:    GetString("DATABASE_URL", "postgres://feedwall:feedwall@db:5432/feedwall?sslmode=disable"),
		MigrationsDir:  GetString("DB_MIGRATIONS_DIR", "db/migrations"),
		JWTSecret:      GetString("JWT_SECRET", "somesupersecretsecret"),
		AccessTokenTTL: time.Duration(GetInt("ACCESS_TOKEN_TTL_HOURS", 1)) * time.Hour,
		ImageDir:       GetString("IMAGE_DIR", "images"),
		ImagePublicDir: GetString("IMAGE_PUBLIC_PREFIX", "images"),
		FeedPageSize:   GetInt("FEED_PAGE_SIZE", 2),
		AllowedOrigins: GetStrings("CORS_ALLOWED_ORIGINS", []string{"*"}),
	}
}
