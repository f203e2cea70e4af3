package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App       AppConfig
	Storage   StorageConfig
	Bank      BankConfig
	Codes     CodesConfig
	Redis     RedisConfig
	RateLimit RedeemRateLimitConfig
	Admin     AdminConfig
	Password  PasswordConfig
	Narrator  NarratorConfig
	Jobs      JobsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CAREON_APP_ENV" required:"true"`
	Port         string `envconfig:"CAREON_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"CAREON_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CAREON_LOG_WARN_STACK" default:"false"`
	// CORSOrigins is a comma separated allow list for browser clients.
	CORSOrigins []string `envconfig:"CAREON_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type StorageConfig struct {
	BankPath  string `envconfig:"CAREON_BANK_PATH" default:"data/careon_bank_v2.json"`
	CodesPath string `envconfig:"CAREON_CODES_PATH" default:"data/codes_ledger.json"`
}

type BankConfig struct {
	StartingBalance int64 `envconfig:"CAREON_BANK_STARTING_BALANCE" default:"25"`
	CommunityGoal   int64 `envconfig:"CAREON_COMMUNITY_GOAL" default:"1000"`
	RewardCodeValue int64 `envconfig:"CAREON_REWARD_CODE_VALUE" default:"20"`
	PhraseCost      int64 `envconfig:"CAREON_PHRASE_COST" default:"100"`
}

type CodesConfig struct {
	Prefix             string `envconfig:"CAREON_CODE_PREFIX" default:"DEP"`
	SuffixLength       int    `envconfig:"CAREON_CODE_SUFFIX_LENGTH" default:"8"`
	NetworkCutPerBlock int64  `envconfig:"CAREON_NETWORK_CUT_PER_BLOCK" default:"5"`
}

// RedisConfig is optional; an empty URL disables cross-process locking and
// redeem rate limiting.
type RedisConfig struct {
	URL          string        `envconfig:"CAREON_REDIS_URL"`
	PoolSize     int           `envconfig:"CAREON_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CAREON_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CAREON_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CAREON_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CAREON_REDIS_WRITE_TIMEOUT" default:"5s"`
	LockTTL      time.Duration `envconfig:"CAREON_REDIS_LOCK_TTL" default:"10s"`
	LockWait     time.Duration `envconfig:"CAREON_REDIS_LOCK_WAIT" default:"3s"`
}

func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != ""
}

type RedeemRateLimitConfig struct {
	Window time.Duration `envconfig:"CAREON_REDEEM_RATE_WINDOW" default:"1m"`
	Limit  int           `envconfig:"CAREON_REDEEM_RATE_LIMIT" default:"10"`
}

type AdminConfig struct {
	PasswordHash   string `envconfig:"CAREON_ADMIN_PASSWORD_HASH"`
	JWTSecret      string `envconfig:"CAREON_ADMIN_JWT_SECRET"`
	JWTIssuer      string `envconfig:"CAREON_ADMIN_JWT_ISSUER" default:"careon"`
	SessionMinutes int    `envconfig:"CAREON_ADMIN_SESSION_MINUTES" default:"60"`
}

// Enabled reports whether both halves of the admin login are configured.
func (a AdminConfig) Enabled() bool {
	return strings.TrimSpace(a.PasswordHash) != "" && strings.TrimSpace(a.JWTSecret) != ""
}

// SessionTTL returns the admin token lifetime configured in minutes.
func (a AdminConfig) SessionTTL() time.Duration {
	if a.SessionMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(a.SessionMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"CAREON_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"CAREON_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"CAREON_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"CAREON_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"CAREON_ARGON_KEY_LEN" default:"32"`
}

type NarratorConfig struct {
	APIKey     string        `envconfig:"CAREON_NARRATOR_API_KEY"`
	Model      string        `envconfig:"CAREON_NARRATOR_MODEL" default:"gemini-2.0-flash"`
	BaseURL    string        `envconfig:"CAREON_NARRATOR_BASE_URL" default:"https://generativelanguage.googleapis.com/v1beta"`
	Timeout    time.Duration `envconfig:"CAREON_NARRATOR_TIMEOUT" default:"90s"`
	MaxRetries int           `envconfig:"CAREON_NARRATOR_MAX_RETRIES" default:"2"`
}

// Enabled reports whether the remote narrator should be called at all.
func (n NarratorConfig) Enabled() bool {
	return strings.TrimSpace(n.APIKey) != ""
}

// JobsConfig drives the maintenance worker.
type JobsConfig struct {
	Interval time.Duration `envconfig:"CAREON_JOBS_INTERVAL" default:"1h"`
}

func (c *Config) validate() error {
	c.Codes.Prefix = strings.ToUpper(strings.TrimSpace(c.Codes.Prefix))
	if c.Codes.Prefix == "" {
		return fmt.Errorf("%s must not be empty", EnvCodePrefix)
	}
	if strings.Contains(c.Codes.Prefix, "-") {
		return fmt.Errorf("%s must not contain '-'", EnvCodePrefix)
	}
	if c.Codes.SuffixLength < 4 {
		return fmt.Errorf("%s must be at least 4", EnvCodeSuffixLength)
	}
	if c.Codes.NetworkCutPerBlock < 0 || c.Codes.NetworkCutPerBlock > 100 {
		return fmt.Errorf("%s must be between 0 and 100", EnvNetworkCutPerBlock)
	}
	if c.Bank.StartingBalance < 0 {
		return fmt.Errorf("%s must not be negative", EnvBankStartingBalance)
	}
	if strings.TrimSpace(c.Storage.BankPath) == "" || strings.TrimSpace(c.Storage.CodesPath) == "" {
		return fmt.Errorf("%s and %s are required", EnvBankPath, EnvCodesPath)
	}
	if c.Storage.BankPath == c.Storage.CodesPath {
		return fmt.Errorf("%s and %s must differ", EnvBankPath, EnvCodesPath)
	}
	return nil
}
