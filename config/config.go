package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort     string `mapstructure:"APP_PORT"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	Env         string `mapstructure:"ENV"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`

	// Redis configuration.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisCacheDB  int    `mapstructure:"REDIS_CACHE_DB"`
	RedisOpsDB    int    `mapstructure:"REDIS_OPS_DB"`
	RedisQueueDB  int    `mapstructure:"REDIS_QUEUE_DB"`

	// Stripe.
	StripeKey string `mapstructure:"STRIPE_KEY"`

	// Chat channel.
	WebhookVerifyToken string `mapstructure:"WEBHOOK_VERIFY_TOKEN"`
	ChannelAppSecret   string `mapstructure:"CHANNEL_APP_SECRET"`
	AgentChannelID     string `mapstructure:"AGENT_CHANNEL_ID"`

	// Tenant resolution.
	SingleTenantID   string `mapstructure:"SINGLE_TENANT_ID"`
	FallbackTenantID string `mapstructure:"FALLBACK_TENANT_ID"`

	// Booking defaults.
	SlotGranularityMin int     `mapstructure:"SLOT_GRANULARITY_MIN"`
	SlotBufferMin      int     `mapstructure:"SLOT_BUFFER_MIN"`
	BookingHorizonDays int     `mapstructure:"BOOKING_HORIZON_DAYS"`
	DepositPercent     float64 `mapstructure:"DEPOSIT_PERCENT"`
	DepositFixed       float64 `mapstructure:"DEPOSIT_FIXED"`
	HoldMinutes        int     `mapstructure:"HOLD_MINUTES"`

	// Re-engagement templates registered with the channel provider.
	ReengageTemplate  string `mapstructure:"REENGAGE_TEMPLATE"`
	FallbackTemplate  string `mapstructure:"FALLBACK_TEMPLATE"`
	TemplateLocales   string `mapstructure:"TEMPLATE_LOCALES"`
	AdminNotifyNumber string `mapstructure:"ADMIN_NOTIFY_NUMBER"`

	// Housekeeping.
	SweepMaxAgeMin int `mapstructure:"SWEEP_MAX_AGE_MIN"`
}

var AppConfig Config

func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	// Set default values.
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_CACHE_DB", 0)
	viper.SetDefault("REDIS_OPS_DB", 1)
	viper.SetDefault("REDIS_QUEUE_DB", 2)
	viper.SetDefault("SLOT_GRANULARITY_MIN", 30)
	viper.SetDefault("SLOT_BUFFER_MIN", 10)
	viper.SetDefault("BOOKING_HORIZON_DAYS", 90)
	viper.SetDefault("DEPOSIT_PERCENT", 20)
	viper.SetDefault("DEPOSIT_FIXED", 0)
	viper.SetDefault("HOLD_MINUTES", 30)
	viper.SetDefault("REENGAGE_TEMPLATE", "booking_followup")
	viper.SetDefault("FALLBACK_TEMPLATE", "generic_notice")
	viper.SetDefault("TEMPLATE_LOCALES", "es,es_AR,en")
	viper.SetDefault("SWEEP_MAX_AGE_MIN", 120)

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}

// TemplateLocalePriority returns the configured template locales in priority order.
func TemplateLocalePriority() []string {
	raw := strings.Split(AppConfig.TemplateLocales, ",")
	locales := make([]string, 0, len(raw))
	for _, l := range raw {
		if l = strings.TrimSpace(l); l != "" {
			locales = append(locales, l)
		}
	}
	return locales
}
