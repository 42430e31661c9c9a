package config

import (
	"os"

	"github.com/joho/godotenv"
)

// parseEnv overlays configuration from environment variables, loading a .env
// file first when one exists in the working directory. Unset variables leave
// the current value untouched.
func parseEnv(config *Config) {
	_ = godotenv.Load()

	setIfPresent := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setIfPresent("ADDRESS", &config.EndpointAddrHTTP)
	setIfPresent("DATABASE_DSN", &config.DatabaseDSN)
	setIfPresent("REDIS_ADDR", &config.RedisAddr)
	setIfPresent("SECRET_KEY", &config.SecretKey)
	setIfPresent("FRONTEND_URL", &config.FrontendURL)
	setIfPresent("GOOGLE_OAUTH_CLIENT_ID", &config.GoogleClientID)
	setIfPresent("GOOGLE_OAUTH_CLIENT_SECRET", &config.GoogleClientSecret)
	setIfPresent("GOOGLE_OAUTH_REDIRECT_URI", &config.GoogleRedirectURI)
	setIfPresent("GOOGLE_SHEET_ID", &config.SpreadsheetID)
	setIfPresent("CORS_ORIGIN", &config.CORSOrigin)
	setIfPresent("S3_ROOT_USER", &config.S3RootUser)
	setIfPresent("S3_ROOT_PASSWORD", &config.S3RootPassword)
	setIfPresent("S3_BUCKET", &config.S3Bucket)
	setIfPresent("S3_REGION", &config.S3Region)
	setIfPresent("S3_BASE_ENDPOINT", &config.S3BaseEndpoint)
}
