package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/battlebot/internal/domain"
)

// Config is the complete bot configuration.
type Config struct {
	Account    AccountConfig    `yaml:"account"`
	Chain      ChainConfig      `yaml:"chain"`
	AI         AIConfig         `yaml:"ai"`
	Risk       RiskConfig       `yaml:"risk"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	Strategy   StrategyConfig   `yaml:"strategy"`
	MarketData MarketDataConfig `yaml:"market_data"`
	Storage    StorageConfig    `yaml:"storage"`
	Log        LogConfig        `yaml:"log"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// AccountConfig identifies the account that signs transactions.
type AccountConfig struct {
	Name       string `yaml:"name" validate:"required,antelope_name"`
	PrivateKey string `yaml:"private_key" validate:"omitempty,antelope_key"`
	Permission string `yaml:"permission" validate:"required,antelope_name"`
}

// ChainConfig holds the RPC endpoints and contracts.
type ChainConfig struct {
	Endpoints      []string `yaml:"endpoints" validate:"min=1,dive,url"`
	Contract       string   `yaml:"contract" validate:"required,antelope_name"`
	BattlesTable   string   `yaml:"battles_table" validate:"required,antelope_name"`
	ConfigTable    string   `yaml:"config_table" validate:"required,antelope_name"`
	TokenContract  string   `yaml:"token_contract" validate:"required,antelope_name"`
	StakeSymbol    string   `yaml:"stake_symbol" validate:"required,uppercase,max=7"`
	StakePrecision uint8    `yaml:"stake_precision" validate:"lte=18"`
	OracleContract string   `yaml:"oracle_contract" validate:"required,antelope_name"`
	OracleTable    string   `yaml:"oracle_table" validate:"required,antelope_name"`
	FeedID         uint64   `yaml:"feed_id" validate:"gt=0"`
	FetchLimit     int      `yaml:"fetch_limit" validate:"gt=0,lte=1000"`
	ExpireSeconds  int      `yaml:"expire_seconds" validate:"gt=0,lte=3600"`
}

// AIConfig selects the prediction model provider.
type AIConfig struct {
	Provider string `yaml:"provider" validate:"oneof=openai anthropic"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url" validate:"omitempty,url"`
}

// RiskConfig bounds stake sizes. Amounts are in display units.
type RiskConfig struct {
	MaxStakePct   float64 `yaml:"max_stake_pct" validate:"gt=0,lte=100"`
	MaxConcurrent int     `yaml:"max_concurrent" validate:"gte=1"`
	MinReserve    float64 `yaml:"min_reserve" validate:"gte=0"`
	MaxDailyLoss  float64 `yaml:"max_daily_loss" validate:"gte=0"` // 0 disables the guard
	MinStake      float64 `yaml:"min_stake" validate:"gt=0"`
	MaxStake      float64 `yaml:"max_stake" validate:"gte=0"` // 0 means no cap
	LotSize       float64 `yaml:"lot_size" validate:"gte=0"`
}

// ScheduleConfig controls the periodic jobs.
type ScheduleConfig struct {
	PriceIntervalSeconds    int `yaml:"price_interval_seconds" validate:"gt=0"`
	StrategyIntervalSeconds int `yaml:"strategy_interval_seconds" validate:"gt=0"`
	PacingDelayMs           int `yaml:"pacing_delay_ms"` // negative disables the pause
}

// StrategyConfig holds the parameters of each policy. Zero fields take the
// policy defaults.
type StrategyConfig struct {
	Conservative PolicyConfig `yaml:"conservative"`
	Active       PolicyConfig `yaml:"active"`
}

// PolicyConfig are the thresholds and bounds of one policy.
type PolicyConfig struct {
	CreateThreshold          float64 `yaml:"create_threshold" validate:"gte=0,lte=100"`
	AcceptThreshold          float64 `yaml:"accept_threshold" validate:"gte=0,lte=100"`
	MinDurationSeconds       int64   `yaml:"min_duration_seconds" validate:"gte=0"`
	MaxDurationSeconds       int64   `yaml:"max_duration_seconds" validate:"gte=0"`
	MinStakePct              float64 `yaml:"min_stake_pct" validate:"gte=0,lte=100"`
	MaxStakePct              float64 `yaml:"max_stake_pct" validate:"gte=0,lte=100"`
	CooldownMinutes          int     `yaml:"cooldown_minutes" validate:"gte=0"`
	AcceptMinDurationSeconds int64   `yaml:"accept_min_duration_seconds" validate:"gte=0"`
	AcceptMaxDurationSeconds int64   `yaml:"accept_max_duration_seconds" validate:"gte=0"`
	AcceptMaxStake           float64 `yaml:"accept_max_stake" validate:"gte=0"`
	DriftTolerancePct        float64 `yaml:"drift_tolerance_pct" validate:"gte=0"`
}

// MarketDataConfig controls the optional kline and indicator fetcher.
type MarketDataConfig struct {
	Enabled         bool    `yaml:"enabled"`
	BaseURL         string  `yaml:"base_url" validate:"omitempty,url"`
	Symbol          string  `yaml:"symbol"`
	Interval        string  `yaml:"interval"`
	Limit           int     `yaml:"limit" validate:"gte=0,lte=1000"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds" validate:"gte=0"`
	RatePerSec      float64 `yaml:"rate_per_sec" validate:"gte=0"`
}

// StorageConfig controls where data is persisted.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // SQLite file path, or ":memory:"
}

// LogConfig controls the log format and level.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// MetricsConfig serves /metrics when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads the YAML file and the .env file if present.
// Environment variables override YAML values.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// PriceInterval is the price job interval.
func (c *Config) PriceInterval() time.Duration {
	return time.Duration(c.Schedule.PriceIntervalSeconds) * time.Second
}

// StrategyInterval is the strategy tick interval.
func (c *Config) StrategyInterval() time.Duration {
	return time.Duration(c.Schedule.StrategyIntervalSeconds) * time.Second
}

// PacingDelay is the pause between submissions of a resolver batch.
func (c *Config) PacingDelay() time.Duration {
	if c.Schedule.PacingDelayMs < 0 {
		return 0
	}
	return time.Duration(c.Schedule.PacingDelayMs) * time.Millisecond
}

// TxExpiration is the transaction expiration.
func (c *Config) TxExpiration() time.Duration {
	return time.Duration(c.Chain.ExpireSeconds) * time.Second
}

// CacheTTL is the kline cache lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.MarketData.CacheTTLSeconds) * time.Second
}

// Units converts a display amount to base units of the stake token.
func (c *Config) Units(amount float64) int64 {
	return domain.DisplayToUnits(amount, c.Chain.StakePrecision)
}

// applyEnvOverrides overrides values with environment variables when set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BATTLEBOT_ACCOUNT"); v != "" {
		cfg.Account.Name = v
	}
	if v := os.Getenv("BATTLEBOT_PRIVATE_KEY"); v != "" {
		cfg.Account.PrivateKey = v
	}
	if v := os.Getenv("BATTLEBOT_PERMISSION"); v != "" {
		cfg.Account.Permission = v
	}
	if v := os.Getenv("BATTLEBOT_ENDPOINTS"); v != "" {
		var eps []string
		for _, ep := range strings.Split(v, ",") {
			if ep = strings.TrimSpace(ep); ep != "" {
				eps = append(eps, ep)
			}
		}
		cfg.Chain.Endpoints = eps
	}
	if v := os.Getenv("AI_PROVIDER"); v != "" {
		cfg.AI.Provider = v
	}
	if v := os.Getenv("AI_API_KEY"); v != "" {
		cfg.AI.APIKey = v
	}
	if v := os.Getenv("AI_MODEL"); v != "" {
		cfg.AI.Model = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.Storage.DSN = v
	}
}

// setDefaults fills required values left empty.
func setDefaults(cfg *Config) {
	if cfg.Account.Permission == "" {
		cfg.Account.Permission = "active"
	}
	if cfg.Chain.Contract == "" {
		cfg.Chain.Contract = "battlewagers"
	}
	if cfg.Chain.BattlesTable == "" {
		cfg.Chain.BattlesTable = "battles"
	}
	if cfg.Chain.ConfigTable == "" {
		cfg.Chain.ConfigTable = "config"
	}
	if cfg.Chain.TokenContract == "" {
		cfg.Chain.TokenContract = "eosio.token"
	}
	if cfg.Chain.StakeSymbol == "" {
		cfg.Chain.StakeSymbol = "WAX"
		cfg.Chain.StakePrecision = 8
	}
	if cfg.Chain.OracleContract == "" {
		cfg.Chain.OracleContract = "delphioracle"
	}
	if cfg.Chain.OracleTable == "" {
		cfg.Chain.OracleTable = "feeds"
	}
	if cfg.Chain.FeedID == 0 {
		cfg.Chain.FeedID = domain.FeedBTCUSD
	}
	if cfg.Chain.FetchLimit <= 0 {
		cfg.Chain.FetchLimit = 100
	}
	if cfg.Chain.ExpireSeconds <= 0 {
		cfg.Chain.ExpireSeconds = 30
	}
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "openai"
	}
	if cfg.Risk.MaxStakePct <= 0 {
		cfg.Risk.MaxStakePct = 10
	}
	if cfg.Risk.MaxConcurrent <= 0 {
		cfg.Risk.MaxConcurrent = 3
	}
	if cfg.Risk.MinStake <= 0 {
		cfg.Risk.MinStake = 10
	}
	if cfg.Schedule.PriceIntervalSeconds <= 0 {
		cfg.Schedule.PriceIntervalSeconds = 300
	}
	if cfg.Schedule.StrategyIntervalSeconds <= 0 {
		cfg.Schedule.StrategyIntervalSeconds = 60
	}
	if cfg.Schedule.PacingDelayMs == 0 {
		cfg.Schedule.PacingDelayMs = 1000
	}
	if cfg.MarketData.CacheTTLSeconds <= 0 {
		cfg.MarketData.CacheTTLSeconds = 60
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "battlebot.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

var (
	nameRe = regexp.MustCompile(`^[a-z1-5.]{1,12}$`)
	wifRe  = regexp.MustCompile(`^5[1-9A-HJ-NP-Za-km-z]{50}$`)
	k1Re   = regexp.MustCompile(`^PVT_K1_[1-9A-HJ-NP-Za-km-z]{40,60}$`)

	validate = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("antelope_name", func(fl validator.FieldLevel) bool {
		return ValidName(fl.Field().String())
	})
	_ = v.RegisterValidation("antelope_key", func(fl validator.FieldLevel) bool {
		return ValidKey(fl.Field().String())
	})
	return v
}

// ValidName reports whether s is a valid account or table name: up to 12
// characters from a-z, 1-5 and '.', not ending in '.'.
func ValidName(s string) bool {
	return nameRe.MatchString(s) && !strings.HasSuffix(s, ".")
}

// ValidKey accepts PVT_K1_ keys and legacy 51-character WIF keys.
func ValidKey(s string) bool {
	return k1Re.MatchString(s) || wifRe.MatchString(s)
}

// Validate checks the loaded configuration. The signing key is only required
// when the bot will submit real transactions.
func (c *Config) Validate(requireKey bool) error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("config.Validate: %w", &domain.ValidationError{
				Field:  fieldPath(fe.Namespace()),
				Reason: reason(fe),
			})
		}
		return fmt.Errorf("config.Validate: %w", err)
	}
	if requireKey && c.Account.PrivateKey == "" {
		return fmt.Errorf("config.Validate: %w", &domain.ValidationError{
			Field:  "account.private_key",
			Reason: "required unless running with --dry-run",
		})
	}
	return nil
}

// fieldPath turns "Config.chain.endpoints[0]" into "chain.endpoints[0]".
func fieldPath(ns string) string {
	return strings.TrimPrefix(ns, "Config.")
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "antelope_name":
		return "must be 1-12 characters from a-z, 1-5 and '.', not ending in '.'"
	case "antelope_key":
		return "must be a PVT_K1_ or legacy WIF private key"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "url":
		return "must be a valid URL"
	case "min":
		return "must have at least " + fe.Param() + " entries"
	case "gt", "gte", "lt", "lte", "max":
		return fmt.Sprintf("must satisfy %s=%s", fe.Tag(), fe.Param())
	default:
		return "failed validation: " + fe.Tag()
	}
}
