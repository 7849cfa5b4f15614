package config

// EnvPrefix scopes envconfig lookups; field tags carry the full names.
const EnvPrefix = "MINISTEAM"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

// Variable names referenced outside struct tags: in error messages and tests.
const (
	EnvAppEnv             = "MINISTEAM_APP_ENV"
	EnvPort               = "MINISTEAM_APP_PORT"
	EnvDBDSN              = "MINISTEAM_DB_DSN"
	EnvDBHost             = "MINISTEAM_DB_HOST"
	EnvDBUser             = "MINISTEAM_DB_USER"
	EnvDBPassword         = "MINISTEAM_DB_PASSWORD"
	EnvDBName             = "MINISTEAM_DB_NAME"
	EnvRedisURL           = "MINISTEAM_REDIS_URL"
	EnvJWTSecret          = "MINISTEAM_JWT_SECRET"
	EnvJWTIssuer          = "MINISTEAM_JWT_ISSUER"
	EnvJWTExpMins         = "MINISTEAM_JWT_EXPIRATION_MINUTES"
	EnvCORSAllowedOrigins = "MINISTEAM_CORS_ALLOWED_ORIGINS"
	EnvOutboxMaxAttempts  = "MINISTEAM_OUTBOX_MAX_ATTEMPTS"
)
