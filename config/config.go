package config

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Role    string         `mapstructure:"role"` // "all" runs ingestion + API, "web" is read-only
	HTTP    HTTPConfig     `mapstructure:"http"`
	Solana  SolanaConfig   `mapstructure:"solana"`
	Poll    PollConfig     `mapstructure:"poll"`
	Cache   CacheConfig    `mapstructure:"cache"`
	Store   StoreConfig    `mapstructure:"store"`
	Notify  NotifyConfig   `mapstructure:"notify"`
	Log     LogConfig      `mapstructure:"log"`
	Markets []MarketConfig `mapstructure:"markets"`
}

type HTTPConfig struct {
	Port int `mapstructure:"port"`
}

type SolanaConfig struct {
	RPCEndpoint string        `mapstructure:"rpc_endpoint"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type PollConfig struct {
	Interval time.Duration `mapstructure:"interval"` // shared by all market poll loops
}

type CacheConfig struct {
	Capacity   int `mapstructure:"capacity"`    // max day buckets held in memory
	WarmupDays int `mapstructure:"warmup_days"` // days prefetched per market at startup
}

type NotifyConfig struct {
	WebhookURL string        `mapstructure:"webhook_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// MarketConfig is the raw form of a market descriptor as it appears in
// config.yaml. It is validated into a market.Descriptor at startup.
type MarketConfig struct {
	Symbol        string `mapstructure:"symbol"`
	Kind          string `mapstructure:"kind"` // "spot" or "perpetual"
	ProgramID     string `mapstructure:"program_id"`
	Address       string `mapstructure:"address"`
	EventQueue    string `mapstructure:"event_queue"` // optional for spot, required for perpetual
	BaseDecimals  int    `mapstructure:"base_decimals"`
	QuoteDecimals int    `mapstructure:"quote_decimals"`
	PriceScale    int64  `mapstructure:"price_scale"`
}

// LogConfig defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`       // log level: "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`      // log format: "json" or "console"
	OutputFile  string `mapstructure:"output_file"` // file path to store logs (optional)
	Environment string `mapstructure:"environment"` // environment: "dev" or "prod"
}

// Load loads application configuration using Viper.
// It reads from config.yaml and overrides with environment variables.
func Load() *Config {
	v := viper.New()

	v.SetConfigName("config") // config.yaml
	v.SetConfigType("yaml")

	ex, _ := os.Executable()
	if strings.Contains(ex, "go-build") {
		pwd, _ := os.Getwd()
		v.AddConfigPath(filepath.Join(pwd, "../../config"))
	} else {
		v.AddConfigPath(filepath.Join(filepath.Dir(ex), "../config"))
	}
	v.AddConfigPath("./config")

	// Support environment variables with dot notation (e.g., SOLANA_RPC_ENDPOINT)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Fatalf("failed to read config: %v", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		log.Fatalf("failed to unmarshal config: %v", err)
	}

	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("role", "all")
	v.SetDefault("http.port", 5000)
	v.SetDefault("solana.rpc_endpoint", "https://api.mainnet-beta.solana.com")
	v.SetDefault("solana.timeout", 10*time.Second)
	v.SetDefault("poll.interval", 30*time.Second)
	v.SetDefault("cache.capacity", 500)
	v.SetDefault("cache.warmup_days", 60)
	v.SetDefault("store.driver", "redis")
	v.SetDefault("notify.timeout", 5*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.environment", "dev")
}
