package config

// EnvPrefix is the envconfig prefix for all service configuration.
const EnvPrefix = "SOKOMART"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "SOKOMART_APP_ENV"
	EnvPort     = "SOKOMART_APP_PORT"
	EnvLogLevel = "SOKOMART_LOG_LEVEL"

	EnvDBDSN      = "SOKOMART_DB_DSN"
	EnvDBHost     = "SOKOMART_DB_HOST"
	EnvDBPort     = "SOKOMART_DB_PORT"
	EnvDBUser     = "SOKOMART_DB_USER"
	EnvDBPassword = "SOKOMART_DB_PASSWORD"
	EnvDBName     = "SOKOMART_DB_NAME"
	EnvDBSSLMode  = "SOKOMART_DB_SSLMODE"

	EnvRedisURL = "SOKOMART_REDIS_URL"

	EnvJWTSecret  = "SOKOMART_JWT_SECRET"
	EnvJWTIssuer  = "SOKOMART_JWT_ISSUER"
	EnvJWTExpMins = "SOKOMART_JWT_EXPIRATION_MINUTES"

	EnvGCPProjectID = "SOKOMART_GCP_PROJECT_ID"

	EnvPubSubOrdersTopic      = "SOKOMART_PUBSUB_ORDERS_TOPIC"
	EnvPubSubOrdersSub        = "SOKOMART_PUBSUB_ORDERS_SUBSCRIPTION"
	EnvPubSubNotificationSub  = "SOKOMART_PUBSUB_NOTIFICATION_SUBSCRIPTION"
	EnvPubSubNotificationTopc = "SOKOMART_PUBSUB_NOTIFICATION_TOPIC"

	EnvGatewayBaseURL       = "SOKOMART_GATEWAY_BASE_URL"
	EnvGatewayMerchantCode  = "SOKOMART_GATEWAY_MERCHANT_CODE"
	EnvGatewayAPIKey        = "SOKOMART_GATEWAY_API_KEY"
	EnvGatewayCallbackToken = "SOKOMART_GATEWAY_CALLBACK_TOKEN"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
