// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Timezone  string          `mapstructure:"timezone"`
	Admin     AdminConfig     `mapstructure:"admin"`
	VIP       VIPConfig       `mapstructure:"vip"`
	Checkin   CheckinConfig   `mapstructure:"checkin"`
	Transfer  TransferConfig  `mapstructure:"transfer"`
	Bank      BankConfig      `mapstructure:"bank"`
	Gacha     GachaConfig     `mapstructure:"gacha"`
	Lucky     LuckyConfig     `mapstructure:"lucky"`
	Presence  PresenceConfig  `mapstructure:"presence"`
	Forge     ForgeConfig     `mapstructure:"forge"`
	RedPacket RedPacketConfig `mapstructure:"redpacket"`
	FirstPlay FirstPlayConfig `mapstructure:"firstplay"`
	Media     MediaConfig     `mapstructure:"media"`
}

// ServerConfig holds the HTTP API listener configuration.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// AdminConfig holds admin user configuration.
type AdminConfig struct {
	IDs []int64 `mapstructure:"ids"`
}

// VIPConfig governs the VIP modifier layer.
type VIPConfig struct {
	RewardMultiplier int64 `mapstructure:"reward_multiplier"`
	ShopDiscountBps  int64 `mapstructure:"shop_discount_bps"`
}

// CheckinConfig holds daily check-in configuration.
type CheckinConfig struct {
	MinReward int64 `mapstructure:"min_reward"`
	MaxReward int64 `mapstructure:"max_reward"`
}

// TransferConfig holds wealth-transfer configuration.
type TransferConfig struct {
	FeeBps         int64 `mapstructure:"fee_bps"`
	DailyGiftLimit int64 `mapstructure:"daily_gift_limit"`
}

// BankConfig holds vault and interest configuration.
type BankConfig struct {
	WithdrawFeeBps   int64 `mapstructure:"withdraw_fee_bps"`
	InterestDailyBps int64 `mapstructure:"interest_daily_bps"`
	InterestCap      int64 `mapstructure:"interest_cap"`
}

// GachaTier is one rarity band of the gacha table. Weights are basis points
// and must sum to 10000.
type GachaTier struct {
	Name      string `mapstructure:"name"`
	WeightBps int64  `mapstructure:"weight_bps"`
	MinReward int64  `mapstructure:"min_reward"`
	MaxReward int64  `mapstructure:"max_reward"`
	Rare      bool   `mapstructure:"rare"`
}

// GachaConfig holds gacha box configuration.
type GachaConfig struct {
	Cost          int64       `mapstructure:"cost"`
	PityThreshold int         `mapstructure:"pity_threshold"`
	DailyLimit    int64       `mapstructure:"daily_limit"`
	Tiers         []GachaTier `mapstructure:"tiers"`
}

// LuckyTier is one band of the lucky-multiplier roll table.
type LuckyTier struct {
	ChanceBps  int64 `mapstructure:"chance_bps"`
	Multiplier int64 `mapstructure:"multiplier"`
}

// LuckyConfig holds the lucky-multiplier table.
type LuckyConfig struct {
	Tiers []LuckyTier `mapstructure:"tiers"`
}

// PresenceLevel maps a daily presence point threshold to a one-time reward.
type PresenceLevel struct {
	Level  int   `mapstructure:"level"`
	Points int64 `mapstructure:"points"`
	Reward int64 `mapstructure:"reward"`
}

// PresenceConfig holds presence accumulation configuration.
type PresenceConfig struct {
	PointsPerMessage int64           `mapstructure:"points_per_message"`
	PointsPerMinute  int64           `mapstructure:"points_per_minute"`
	Levels           []PresenceLevel `mapstructure:"levels"`
}

// ForgeConfig holds weapon forging configuration.
type ForgeConfig struct {
	Cost       int64 `mapstructure:"cost"`
	DailyLimit int64 `mapstructure:"daily_limit"`
	SuccessBps int64 `mapstructure:"success_bps"`
	MinPower   int64 `mapstructure:"min_power"`
	MaxPower   int64 `mapstructure:"max_power"`
}

// RedPacketConfig holds red-packet giveaway configuration.
type RedPacketConfig struct {
	MinValue int64         `mapstructure:"min_value"`
	MaxSlots int64         `mapstructure:"max_slots"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// FirstPlayConfig holds first-play race configuration.
type FirstPlayConfig struct {
	Slots  int64 `mapstructure:"slots"`
	Reward int64 `mapstructure:"reward"`
}

// MediaConfig holds external media service configuration.
type MediaConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the given directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables use underscore separators, e.g. DATABASE_HOST.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Missing config file is fine, env vars can provide everything.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "royalbot")
	v.SetDefault("database.name", "royalbot")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("timezone", "UTC")

	v.SetDefault("vip.reward_multiplier", 2)
	v.SetDefault("vip.shop_discount_bps", 1000)

	v.SetDefault("checkin.min_reward", 50)
	v.SetDefault("checkin.max_reward", 150)

	v.SetDefault("transfer.fee_bps", 500)
	v.SetDefault("transfer.daily_gift_limit", 10)

	v.SetDefault("bank.withdraw_fee_bps", 100)
	v.SetDefault("bank.interest_daily_bps", 10)
	v.SetDefault("bank.interest_cap", 5000)

	v.SetDefault("gacha.cost", 100)
	v.SetDefault("gacha.pity_threshold", 80)
	v.SetDefault("gacha.daily_limit", 20)

	v.SetDefault("presence.points_per_message", 1)
	v.SetDefault("presence.points_per_minute", 1)

	v.SetDefault("forge.cost", 200)
	v.SetDefault("forge.daily_limit", 5)
	v.SetDefault("forge.success_bps", 6000)
	v.SetDefault("forge.min_power", 5)
	v.SetDefault("forge.max_power", 50)

	v.SetDefault("redpacket.min_value", 10)
	v.SetDefault("redpacket.max_slots", 100)
	v.SetDefault("redpacket.ttl", "24h")

	v.SetDefault("firstplay.slots", 3)
	v.SetDefault("firstplay.reward", 200)

	v.SetDefault("media.timeout", "5s")
}

// IsAdmin checks if a user ID is in the admin list.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Admin.IDs {
		if id == userID {
			return true
		}
	}
	return false
}

// GachaTiers returns the configured gacha table, falling back to a default
// four-band table when the config omits one.
func (c *Config) GachaTiers() []GachaTier {
	if len(c.Gacha.Tiers) > 0 {
		return c.Gacha.Tiers
	}
	return []GachaTier{
		{Name: "common", WeightBps: 7400, MinReward: 10, MaxReward: 50},
		{Name: "uncommon", WeightBps: 2000, MinReward: 60, MaxReward: 150},
		{Name: "rare", WeightBps: 500, MinReward: 200, MaxReward: 500, Rare: true},
		{Name: "legendary", WeightBps: 100, MinReward: 600, MaxReward: 2000, Rare: true},
	}
}

// LuckyTiers returns the configured lucky-multiplier table, falling back to
// the default 15% x2, 1.5% x3, 0.15% x5 bands.
func (c *Config) LuckyTiers() []LuckyTier {
	if len(c.Lucky.Tiers) > 0 {
		return c.Lucky.Tiers
	}
	return []LuckyTier{
		{ChanceBps: 1500, Multiplier: 2},
		{ChanceBps: 150, Multiplier: 3},
		{ChanceBps: 15, Multiplier: 5},
	}
}

// PresenceLevels returns the configured presence level table, falling back
// to a default ladder.
func (c *Config) PresenceLevels() []PresenceLevel {
	if len(c.Presence.Levels) > 0 {
		return c.Presence.Levels
	}
	return []PresenceLevel{
		{Level: 1, Points: 10, Reward: 20},
		{Level: 2, Points: 50, Reward: 100},
		{Level: 3, Points: 150, Reward: 300},
		{Level: 4, Points: 400, Reward: 800},
	}
}
