package config

const (
	EnvPrefix = "PAYTRACK"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv                = "PAYTRACK_APP_ENV"
	EnvDBDSN                 = "PAYTRACK_DB_DSN"
	EnvRedisURL              = "PAYTRACK_REDIS_URL"
	EnvAPIBaseURL            = "PAYTRACK_API_BASE_URL"
	EnvCurrencyCode          = "PAYTRACK_CURRENCY_CODE"
	EnvCountryCode           = "PAYTRACK_COUNTRY_CODE"
	EnvPlatformFeePercentage = "PAYTRACK_PLATFORM_FEE_PERCENTAGE"
	EnvMinPaymentAmount      = "PAYTRACK_MIN_PAYMENT_AMOUNT"
	EnvMaxPaymentAmount      = "PAYTRACK_MAX_PAYMENT_AMOUNT"
	EnvPollIntervalMS        = "PAYTRACK_POLL_INTERVAL_MS"
	EnvPendingTimeoutMS      = "PAYTRACK_PENDING_TIMEOUT_MS"
)
