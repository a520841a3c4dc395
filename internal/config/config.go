// Package config loads the service configuration from a YAML file with
// environment variable overrides (NFTMARKET_ prefix).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig     `mapstructure:"server"`
	Storage   StorageConfig    `mapstructure:"storage"`
	Kafka     KafkaConfig      `mapstructure:"kafka"`
	Market    MarketConfig     `mapstructure:"market"`
	Whitelist *WhitelistConfig `mapstructure:"whitelist"`
	Log       LogConfig        `mapstructure:"log"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// StorageConfig selects the registry backend: "memory" or "badger".
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`
}

// KafkaConfig configures event publishing. With no brokers the service
// logs events instead of publishing them.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// MarketConfig holds the marketplace identity and the initial parameters
// seeded when the registry is empty. Later changes go through the
// operator's update-params operation, not the config file.
type MarketConfig struct {
	EscrowAccount string       `mapstructure:"escrow_account"`
	Params        ParamsConfig `mapstructure:"params"`
}

// ParamsConfig is the bootstrap form of the marketplace parameters.
type ParamsConfig struct {
	Collection    string       `mapstructure:"collection"`
	Denom         string       `mapstructure:"denom"`
	Collector     string       `mapstructure:"collector"`
	FeePercent    string       `mapstructure:"fee_percent"`
	MinPrice      string       `mapstructure:"min_price"`
	Operators     []string     `mapstructure:"operators"`
	AskExpiry     ExpiryConfig `mapstructure:"ask_expiry"`
	BidExpiry     ExpiryConfig `mapstructure:"bid_expiry"`
	AuctionExpiry ExpiryConfig `mapstructure:"auction_expiry"`
}

// ExpiryConfig bounds listing lifetimes.
type ExpiryConfig struct {
	Min time.Duration `mapstructure:"min"`
	Max time.Duration `mapstructure:"max"`
}

// WhitelistConfig seeds the allow list at startup when present.
type WhitelistConfig struct {
	Admin           string    `mapstructure:"admin"`
	StartTime       time.Time `mapstructure:"start_time"`
	EndTime         time.Time `mapstructure:"end_time"`
	UnitPrice       string    `mapstructure:"unit_price"`
	PerAddressLimit uint32    `mapstructure:"per_address_limit"`
	MemberLimit     uint32    `mapstructure:"member_limit"`
	Members         []string  `mapstructure:"members"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads the configuration at path, or from the default search paths
// when path is empty. Missing files are not an error; defaults apply.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("nftmarket")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/nftmarket")
	}

	v.SetEnvPrefix("NFTMARKET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	// RFC 3339 timestamps and duration strings appear in the whitelist and
	// expiry sections.
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeHookFunc(time.RFC3339),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	switch c.Storage.Backend {
	case "memory":
	case "badger":
		if c.Storage.Dir == "" {
			return fmt.Errorf("storage.dir is required for the badger backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Market.EscrowAccount == "" {
		return fmt.Errorf("market.escrow_account is required")
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka.topic is required when brokers are set")
	}
	p := c.Market.Params
	if p.Collection == "" || p.Denom == "" || p.Collector == "" {
		return fmt.Errorf("market.params requires collection, denom and collector")
	}
	if c.Whitelist != nil {
		w := c.Whitelist
		if w.Admin == "" {
			return fmt.Errorf("whitelist.admin is required")
		}
		if !w.StartTime.Before(w.EndTime) {
			return fmt.Errorf("whitelist start time must precede end time")
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.dir", "")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "nftmarket.events")
	v.SetDefault("market.escrow_account", "marketplace")
	v.SetDefault("market.params.collection", "nft")
	v.SetDefault("market.params.denom", "uusd")
	v.SetDefault("market.params.collector", "marketplace")
	v.SetDefault("market.params.fee_percent", "2")
	v.SetDefault("market.params.min_price", "0")
	v.SetDefault("market.params.operators", []string{})
	v.SetDefault("market.params.ask_expiry.min", "1h")
	v.SetDefault("market.params.ask_expiry.max", "8760h")
	v.SetDefault("market.params.bid_expiry.min", "1h")
	v.SetDefault("market.params.bid_expiry.max", "8760h")
	v.SetDefault("market.params.auction_expiry.min", "1h")
	v.SetDefault("market.params.auction_expiry.max", "8760h")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}
