package config

const (
	EnvPrefix = "CAREON"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv       = "CAREON_APP_ENV"
	EnvPort         = "CAREON_APP_PORT"
	EnvLogLevel     = "CAREON_LOG_LEVEL"
	EnvLogWarnStack = "CAREON_LOG_WARN_STACK"
	EnvLogFormat    = "CAREON_LOG_FORMAT"
	EnvCORSOrigins  = "CAREON_CORS_ORIGINS"

	EnvBankPath  = "CAREON_BANK_PATH"
	EnvCodesPath = "CAREON_CODES_PATH"

	EnvBankStartingBalance = "CAREON_BANK_STARTING_BALANCE"
	EnvCommunityGoal       = "CAREON_COMMUNITY_GOAL"
	EnvRewardCodeValue     = "CAREON_REWARD_CODE_VALUE"
	EnvPhraseCost          = "CAREON_PHRASE_COST"

	EnvCodePrefix         = "CAREON_CODE_PREFIX"
	EnvCodeSuffixLength   = "CAREON_CODE_SUFFIX_LENGTH"
	EnvNetworkCutPerBlock = "CAREON_NETWORK_CUT_PER_BLOCK"

	EnvRedisURL      = "CAREON_REDIS_URL"
	EnvRedisLockTTL  = "CAREON_REDIS_LOCK_TTL"
	EnvRedisLockWait = "CAREON_REDIS_LOCK_WAIT"

	EnvRedeemRateWindow = "CAREON_REDEEM_RATE_WINDOW"
	EnvRedeemRateLimit  = "CAREON_REDEEM_RATE_LIMIT"

	EnvAdminPasswordHash   = "CAREON_ADMIN_PASSWORD_HASH"
	EnvAdminJWTSecret      = "CAREON_ADMIN_JWT_SECRET"
	EnvAdminJWTIssuer      = "CAREON_ADMIN_JWT_ISSUER"
	EnvAdminSessionMinutes = "CAREON_ADMIN_SESSION_MINUTES"

	EnvNarratorAPIKey     = "CAREON_NARRATOR_API_KEY"
	EnvNarratorModel      = "CAREON_NARRATOR_MODEL"
	EnvNarratorTimeout    = "CAREON_NARRATOR_TIMEOUT"
	EnvNarratorMaxRetries = "CAREON_NARRATOR_MAX_RETRIES"

	EnvJobsInterval = "CAREON_JOBS_INTERVAL"
)
