package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	DSN           string `mapstructure:"APP_DSN"`
	MigrationsDir string `mapstructure:"APP_MIGRATIONS"`
	OpsAddr       string `mapstructure:"OPS_ADDR"`

	MarketBaseURL   string `mapstructure:"MARKET_BASE_URL"`
	MarketToken     string `mapstructure:"MARKET_TOKEN"`
	MarketUserAgent string `mapstructure:"MARKET_USER_AGENT"`
	AdminName       string `mapstructure:"MARKET_ADMIN_NAME"`
	BotID           int64  `mapstructure:"MARKET_BOT_ID"`

	SteamHelperURL string `mapstructure:"STEAM_HELPER_URL"`
	OpenDotaURL    string `mapstructure:"OPENDOTA_URL"`

	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic   string `mapstructure:"KAFKA_TOPIC"`

	CategoryDota     int64 `mapstructure:"CATEGORY_DOTA"`
	CategoryValorant int64 `mapstructure:"CATEGORY_VALORANT"`
	CategoryLol      int64 `mapstructure:"CATEGORY_LOL"`

	EventPollInterval time.Duration `mapstructure:"EVENT_POLL_INTERVAL"`
	SweepInterval     time.Duration `mapstructure:"SWEEP_INTERVAL"`
	WarnWindow        time.Duration `mapstructure:"WARN_WINDOW"`
	BanGrace          time.Duration `mapstructure:"BAN_GRACE"`
	FeedbackBonus     time.Duration `mapstructure:"FEEDBACK_BONUS"`
	DefaultMinHours   int           `mapstructure:"DEFAULT_MIN_HOURS"`

	ReconcileSchedule string `mapstructure:"RECONCILE_SCHEDULE"`
	RankSchedule      string `mapstructure:"RANK_SCHEDULE"`
}

func LoadConfig() (*Config, error) {
	viper.SetDefault("APP_DSN", "host=localhost user=postgres password=postgres dbname=rentbot sslmode=disable")
	viper.SetDefault("APP_MIGRATIONS", "migrations")
	viper.SetDefault("OPS_ADDR", ":9000")
	viper.SetDefault("MARKET_BASE_URL", "https://funpay.com")
	viper.SetDefault("MARKET_USER_AGENT", "Mozilla/5.0")
	viper.SetDefault("STEAM_HELPER_URL", "http://localhost:8090")
	viper.SetDefault("OPENDOTA_URL", "https://api.opendota.com")
	viper.SetDefault("KAFKA_BROKERS", "localhost:9092")
	viper.SetDefault("KAFKA_TOPIC", "rent-audit")
	viper.SetDefault("CATEGORY_DOTA", 81)
	viper.SetDefault("CATEGORY_VALORANT", 0)
	viper.SetDefault("CATEGORY_LOL", 0)
	viper.SetDefault("EVENT_POLL_INTERVAL", "4s")
	viper.SetDefault("SWEEP_INTERVAL", "60s")
	viper.SetDefault("WARN_WINDOW", "31m")
	viper.SetDefault("BAN_GRACE", "10m")
	viper.SetDefault("FEEDBACK_BONUS", "1h")
	viper.SetDefault("DEFAULT_MIN_HOURS", 3)
	viper.SetDefault("RECONCILE_SCHEDULE", "@every 1m")
	viper.SetDefault("RANK_SCHEDULE", "@every 1h")
	viper.AutomaticEnv()

	_ = viper.BindEnv("APP_DSN")
	_ = viper.BindEnv("MARKET_TOKEN")
	_ = viper.BindEnv("MARKET_ADMIN_NAME")
	_ = viper.BindEnv("MARKET_BOT_ID")

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Brokers() []string {
	return strings.Split(c.KafkaBrokers, ",")
}
