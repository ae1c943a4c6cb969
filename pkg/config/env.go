package config

const (
	EnvPrefix = "QRCATALOG"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	EnvAppEnv        = "QRCATALOG_APP_ENV"
	EnvPort          = "QRCATALOG_APP_PORT"
	EnvLogLevel      = "QRCATALOG_LOG_LEVEL"
	EnvDocStoreURL   = "QRCATALOG_DOCSTORE_URL"
	EnvDocStoreToken = "QRCATALOG_DOCSTORE_AUTH_TOKEN"
	EnvDBDSN         = "QRCATALOG_DB_DSN"
	EnvRedisURL      = "QRCATALOG_REDIS_URL"
	EnvJWTSecret     = "QRCATALOG_JWT_SECRET"
	EnvJWTIssuer     = "QRCATALOG_JWT_ISSUER"
	EnvPublicBaseURL = "QRCATALOG_PUBLIC_BASE_URL"
	EnvUseSQLite     = "QRCATALOG_USE_SQLITE"
	EnvOrdersTopic   = "QRCATALOG_PUBSUB_ORDERS_TOPIC"
	EnvGCPProjectID  = "QRCATALOG_GCP_PROJECT_ID"
)
