package config

const (
	EnvPrefix = "BOOKSTORE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv    = "BOOKSTORE_APP_ENV"
	EnvPort      = "BOOKSTORE_APP_PORT"
	EnvLogLevel  = "BOOKSTORE_LOG_LEVEL"
	EnvLogFormat = "BOOKSTORE_LOG_FORMAT"

	EnvDBDSN  = "BOOKSTORE_DB_DSN"
	EnvDBHost = "BOOKSTORE_DB_HOST"
	EnvDBUser = "BOOKSTORE_DB_USER"
	EnvDBName = "BOOKSTORE_DB_NAME"

	EnvRedisURL = "BOOKSTORE_REDIS_URL"

	EnvJWTSecret = "BOOKSTORE_JWT_SECRET"
	EnvJWTIssuer = "BOOKSTORE_JWT_ISSUER"

	EnvGatewayBaseURL     = "BOOKSTORE_GATEWAY_BASE_URL"
	EnvGatewayKeyID       = "BOOKSTORE_GATEWAY_KEY_ID"
	EnvGatewayKeySecret   = "BOOKSTORE_GATEWAY_KEY_SECRET"
	EnvGatewayCallbackURL = "BOOKSTORE_GATEWAY_CALLBACK_URL"
	EnvGatewayTimeout     = "BOOKSTORE_GATEWAY_TIMEOUT"

	EnvWorkerSweepLimit = "BOOKSTORE_WORKER_SWEEP_LIMIT"
	EnvWorkerLockTTL    = "BOOKSTORE_WORKER_LOCK_TTL"
)
