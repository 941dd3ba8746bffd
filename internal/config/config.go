package config

import (
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Config carries every process-boundary option the engine recognizes.
// Missing required credentials or URLs abort startup before any task runs.
type Config struct {
	// Chain and venue connectivity.
	EthWSURL        string `mapstructure:"eth_ws_url"`
	EthHTTPURL      string `mapstructure:"eth_http_url"`
	VenueBaseURL    string `mapstructure:"venue_base_url"`
	VenueAPIKey     string `mapstructure:"venue_api_key"`
	VenueSecretKey  string `mapstructure:"venue_secret_key"`
	VenuePassphrase string `mapstructure:"venue_passphrase"`
	WalletAddress   string `mapstructure:"wallet_address"`
	PriceAPIURL     string `mapstructure:"price_api_url"`
	SafetyAPIURL    string `mapstructure:"safety_api_url"`
	WatchlistPath   string `mapstructure:"watchlist_path"`
	WebhookURL      string `mapstructure:"webhook_url"`
	PostgresURL     string `mapstructure:"postgres_url"`
	MetricsAddr     string `mapstructure:"metrics_addr"`

	// Capital and risk policy.
	StartingCapital      float64 `mapstructure:"starting_capital"`
	MaxPositionFraction  float64 `mapstructure:"max_position_fraction"`
	MaxSingleFraction    float64 `mapstructure:"max_single_fraction"`
	MaxPositions         int     `mapstructure:"max_positions"`
	MinConfidence        float64 `mapstructure:"min_confidence"`
	MinNotionalETH       float64 `mapstructure:"min_notional_eth"`
	MinStakeUSD          float64 `mapstructure:"min_stake_usd"`
	MaxSlippagePct       float64 `mapstructure:"max_slippage_pct"`
	MaxGasUnits          uint64  `mapstructure:"max_gas_units"`
	TakeProfitMultiplier float64 `mapstructure:"take_profit_multiplier"`
	StopLossMultiplier   float64 `mapstructure:"stop_loss_multiplier"`
	DrawdownFraction     float64 `mapstructure:"drawdown_fraction"`

	// Loop timing and worker pool.
	MaxHold         time.Duration `mapstructure:"max_hold"`
	MonitorInterval time.Duration `mapstructure:"monitor_interval"`
	RiskInterval    time.Duration `mapstructure:"risk_interval"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	ShutdownGrace   time.Duration `mapstructure:"shutdown_grace"`
	Workers         int           `mapstructure:"workers"`
	Retries         int           `mapstructure:"retries"`
	DebugLogging    bool          `mapstructure:"debug_logging"`
}

const (
	DefaultStartingCapital      = 1000.0
	DefaultMaxPositionFraction  = 0.30
	DefaultMaxSingleFraction    = 0.50
	DefaultMaxPositions         = 5
	DefaultMinConfidence        = 0.7
	DefaultMinNotionalETH       = 0.1
	DefaultMinStakeUSD          = 10.0
	DefaultMaxSlippagePct       = 3.0
	DefaultMaxGasUnits          = 500_000
	DefaultTakeProfitMultiplier = 5.0
	DefaultStopLossMultiplier   = 0.2
	DefaultDrawdownFraction     = 0.5
	DefaultWorkers              = 5
	DefaultRetries              = 3
)

// LoadConfig reads the config file at path, applies STAY_FLY_* environment
// overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	defaults := map[string]interface{}{
		"venue_base_url":         "https://www.okx.com",
		"price_api_url":          "https://api.dexscreener.com",
		"safety_api_url":         "https://api.honeypot.is",
		"watchlist_path":         "configs/watchlist.json",
		"starting_capital":       DefaultStartingCapital,
		"max_position_fraction":  DefaultMaxPositionFraction,
		"max_single_fraction":    DefaultMaxSingleFraction,
		"max_positions":          DefaultMaxPositions,
		"min_confidence":         DefaultMinConfidence,
		"min_notional_eth":       DefaultMinNotionalETH,
		"min_stake_usd":          DefaultMinStakeUSD,
		"max_slippage_pct":       DefaultMaxSlippagePct,
		"max_gas_units":          DefaultMaxGasUnits,
		"take_profit_multiplier": DefaultTakeProfitMultiplier,
		"stop_loss_multiplier":   DefaultStopLossMultiplier,
		"drawdown_fraction":      DefaultDrawdownFraction,
		"max_hold":               "24h",
		"monitor_interval":       "10s",
		"risk_interval":          "30s",
		"refresh_interval":       "1h",
		"shutdown_grace":         "30s",
		"workers":                DefaultWorkers,
		"retries":                DefaultRetries,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	loadEnvironmentVariables(v, &cfg)

	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	if cfg.EthWSURL == "" {
		return errors.New("missing eth_ws_url in configuration")
	}
	if err := validateURLWithCache(cfg.EthWSURL, "ws"); err != nil {
		return errors.New("invalid eth_ws_url protocol")
	}
	if cfg.EthHTTPURL == "" {
		return errors.New("missing eth_http_url in configuration")
	}
	if err := validateURLWithCache(cfg.EthHTTPURL, "http"); err != nil {
		return errors.New("invalid eth_http_url protocol")
	}
	if cfg.VenueAPIKey == "" || cfg.VenueSecretKey == "" || cfg.VenuePassphrase == "" {
		return errors.New("missing venue API credentials")
	}
	if cfg.WalletAddress == "" {
		return errors.New("missing wallet_address in configuration")
	}
	if cfg.WebhookURL != "" {
		if err := validateURLWithCache(cfg.WebhookURL, "https"); err != nil {
			return errors.New("webhook URL must use HTTPS")
		}
	}
	return validateNumericParams(cfg)
}

func validateNumericParams(cfg *Config) error {
	if cfg.StartingCapital <= 0 {
		return errors.New("invalid starting_capital")
	}
	if cfg.MaxPositionFraction <= 0 || cfg.MaxPositionFraction > 1 {
		return errors.New("invalid max_position_fraction")
	}
	if cfg.MaxSingleFraction <= 0 || cfg.MaxSingleFraction > 1 {
		return errors.New("invalid max_single_fraction")
	}
	if cfg.MaxPositions <= 0 {
		return errors.New("invalid max_positions")
	}
	if cfg.MinConfidence < 0 || cfg.MinConfidence > 1 {
		return errors.New("invalid min_confidence")
	}
	if cfg.MinStakeUSD < 0 {
		return errors.New("invalid min_stake_usd")
	}
	if cfg.MaxSlippagePct <= 0 {
		return errors.New("invalid max_slippage_pct")
	}
	if cfg.TakeProfitMultiplier <= 1 {
		return errors.New("invalid take_profit_multiplier")
	}
	if cfg.StopLossMultiplier <= 0 || cfg.StopLossMultiplier >= 1 {
		return errors.New("invalid stop_loss_multiplier")
	}
	if cfg.DrawdownFraction <= 0 || cfg.DrawdownFraction >= 1 {
		return errors.New("invalid drawdown_fraction")
	}
	if cfg.MaxHold <= 0 {
		return errors.New("invalid max_hold")
	}
	if cfg.MonitorInterval <= 0 {
		return errors.New("invalid monitor_interval")
	}
	if cfg.RiskInterval <= 0 {
		return errors.New("invalid risk_interval")
	}
	if cfg.Workers <= 0 {
		return errors.New("invalid workers count")
	}
	if cfg.Retries < 0 {
		return errors.New("invalid retries count")
	}
	return nil
}

var urlCache sync.Map

func validateURLWithCache(rawURL string, protocol string) error {
	if _, ok := urlCache.Load(rawURL); ok {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	urlCache.Store(rawURL, parsed)
	return nil
}

func loadEnvironmentVariables(v *viper.Viper, cfg *Config) {
	v.AutomaticEnv()
	v.SetEnvPrefix("STAY_FLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	overrides := map[string]*string{
		"VENUE_API_KEY":    &cfg.VenueAPIKey,
		"VENUE_SECRET_KEY": &cfg.VenueSecretKey,
		"VENUE_PASSPHRASE": &cfg.VenuePassphrase,
		"WALLET_ADDRESS":   &cfg.WalletAddress,
		"ETH_WS_URL":       &cfg.EthWSURL,
		"ETH_HTTP_URL":     &cfg.EthHTTPURL,
		"POSTGRES_URL":     &cfg.PostgresURL,
		"WEBHOOK_URL":      &cfg.WebhookURL,
	}
	for key, target := range overrides {
		if val := v.GetString(key); val != "" {
			*target = val
		}
	}
}
