package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	commoncfg "wisefido-shift/owl-common/config"
)

// Config wisefido-shift 配置
//
// Precedence: defaults < YAML file (CONFIG_FILE) < environment (.env included).
type Config struct {
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`

	// DBEnabled false (or an unreachable DB) runs on in-memory stores
	DBEnabled bool                     `yaml:"db_enabled"`
	Database  commoncfg.DatabaseConfig `yaml:"database"`

	RedisEnabled bool                  `yaml:"redis_enabled"`
	Redis        commoncfg.RedisConfig `yaml:"redis"`

	MQTT commoncfg.MQTTConfig `yaml:"mqtt"`
	SMTP commoncfg.SMTPConfig `yaml:"smtp"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	Shift    ShiftConfig    `yaml:"shift"`
	Reminder ReminderConfig `yaml:"reminder"`
	Events   EventsConfig   `yaml:"events"`

	// HistoryCacheTTL lifetime of the degraded-mode history copy in Redis
	HistoryCacheTTL time.Duration `yaml:"history_cache_ttl"`
}

// ShiftConfig lifecycle engine settings
type ShiftConfig struct {
	Timezone     string        `yaml:"timezone"` // IANA name, classification and display
	StoreTimeout time.Duration `yaml:"store_timeout"`
	MaxRetries   int           `yaml:"max_retries"`
}

// ReminderConfig sweep settings
type ReminderConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Interval        time.Duration `yaml:"interval"` // sweep period
	Cooldown        time.Duration `yaml:"cooldown"` // min gap between reminders of one shift
	NotifierTimeout time.Duration `yaml:"notifier_timeout"`

	// Notifier driver: smtp | webhook | mqtt | log
	Notifier     string `yaml:"notifier"`
	WebhookURL   string `yaml:"webhook_url"`
	WebhookToken string `yaml:"webhook_token"`
	MQTTTopic    string `yaml:"mqtt_topic"` // prefix, owner id appended

	// Contacts seed the in-memory contact directory (DB disabled or down)
	Contacts []ContactConfig `yaml:"contacts"`
}

// ContactConfig one demo-mode reminder recipient
type ContactConfig struct {
	OwnerID string `yaml:"owner_id"`
	Email   string `yaml:"email"`
	Name    string `yaml:"name"`
}

// EventsConfig Redis Streams publishing of lifecycle events
type EventsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Stream  string `yaml:"stream"`
	MaxLen  int64  `yaml:"max_len"`
}

// Load 加载配置
func Load() (*Config, error) {
	// .env is optional; variables already set win
	_ = godotenv.Load(getEnv("ENV_FILE", ".env"))

	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	if v := os.Getenv("REMINDER_CONTACTS"); v != "" {
		contacts, err := ParseContacts(v)
		if err != nil {
			return nil, err
		}
		cfg.Reminder.Contacts = contacts
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = ":8080"

	cfg.DBEnabled = true
	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "wisefido_shift"
	cfg.Database.SSLMode = "disable"
	cfg.Database.MaxConns = 10
	cfg.Database.MaxIdle = 5

	cfg.RedisEnabled = true
	cfg.Redis.Addr = "localhost:6379"

	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = "wisefido-shift"
	cfg.MQTT.QoS = 1

	cfg.SMTP.Host = "smtp.gmail.com"
	cfg.SMTP.Port = 587
	cfg.SMTP.Timeout = 10 * time.Second

	cfg.Log.Level = "info"
	cfg.Log.Format = "json"

	cfg.Shift.Timezone = "UTC"
	cfg.Shift.StoreTimeout = 5 * time.Second
	cfg.Shift.MaxRetries = 3

	cfg.Reminder.Enabled = true
	cfg.Reminder.Interval = 60 * time.Second
	cfg.Reminder.Cooldown = 30 * time.Minute
	cfg.Reminder.NotifierTimeout = 10 * time.Second
	cfg.Reminder.Notifier = "smtp"
	cfg.Reminder.MQTTTopic = "wisefido/shift/reminders"

	cfg.Events.Enabled = true
	cfg.Events.Stream = "shift:events"
	cfg.Events.MaxLen = 10000

	cfg.HistoryCacheTTL = 24 * time.Hour
	return cfg
}

func applyEnv(cfg *Config) {
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", cfg.HTTP.Addr)

	cfg.DBEnabled = getBool("DB_ENABLED", cfg.DBEnabled)
	cfg.Database.LoadFromEnv("DB")

	cfg.RedisEnabled = getBool("REDIS_ENABLED", cfg.RedisEnabled)
	cfg.Redis.LoadFromEnv("REDIS")
	cfg.MQTT.LoadFromEnv("MQTT")
	cfg.SMTP.LoadFromEnv("SMTP")

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)

	cfg.Shift.Timezone = getEnv("SHIFT_TIMEZONE", cfg.Shift.Timezone)
	cfg.Shift.StoreTimeout = getDuration("SHIFT_STORE_TIMEOUT", cfg.Shift.StoreTimeout)
	cfg.Shift.MaxRetries = getInt("SHIFT_MAX_RETRIES", cfg.Shift.MaxRetries)

	cfg.Reminder.Enabled = getBool("REMINDER_ENABLED", cfg.Reminder.Enabled)
	cfg.Reminder.Interval = getDuration("REMINDER_SWEEP_INTERVAL", cfg.Reminder.Interval)
	cfg.Reminder.Cooldown = getDuration("REMINDER_INTERVAL", cfg.Reminder.Cooldown)
	cfg.Reminder.NotifierTimeout = getDuration("NOTIFIER_TIMEOUT", cfg.Reminder.NotifierTimeout)
	cfg.Reminder.Notifier = getEnv("NOTIFIER_DRIVER", cfg.Reminder.Notifier)
	cfg.Reminder.WebhookURL = getEnv("NOTIFIER_WEBHOOK_URL", cfg.Reminder.WebhookURL)
	cfg.Reminder.WebhookToken = getEnv("NOTIFIER_WEBHOOK_TOKEN", cfg.Reminder.WebhookToken)
	cfg.Reminder.MQTTTopic = getEnv("NOTIFIER_MQTT_TOPIC", cfg.Reminder.MQTTTopic)

	cfg.Events.Enabled = getBool("EVENTS_ENABLED", cfg.Events.Enabled)
	cfg.Events.Stream = getEnv("EVENTS_STREAM", cfg.Events.Stream)
	cfg.Events.MaxLen = int64(getInt("EVENTS_MAX_LEN", int(cfg.Events.MaxLen)))

	cfg.HistoryCacheTTL = getDuration("HISTORY_CACHE_TTL", cfg.HistoryCacheTTL)
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Reminder.Interval <= 0 {
		return fmt.Errorf("REMINDER_SWEEP_INTERVAL must be positive, got %s", c.Reminder.Interval)
	}
	if c.Reminder.Cooldown <= 0 {
		return fmt.Errorf("REMINDER_INTERVAL must be positive, got %s", c.Reminder.Cooldown)
	}
	switch c.Reminder.Notifier {
	case "smtp", "mqtt", "log":
	case "webhook":
		if c.Reminder.WebhookURL == "" {
			return fmt.Errorf("NOTIFIER_WEBHOOK_URL is required for the webhook notifier")
		}
	default:
		return fmt.Errorf("unsupported notifier driver: %s", c.Reminder.Notifier)
	}
	for i, ct := range c.Reminder.Contacts {
		if strings.TrimSpace(ct.OwnerID) == "" || strings.TrimSpace(ct.Email) == "" {
			return fmt.Errorf("reminder contact %d needs owner_id and email", i)
		}
	}
	return nil
}

// ParseContacts reads REMINDER_CONTACTS: comma separated owner:email[:name].
func ParseContacts(s string) ([]ContactConfig, error) {
	var out []ContactConfig
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.SplitN(item, ":", 3)
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid REMINDER_CONTACTS entry %q, want owner:email[:name]", item)
		}
		c := ContactConfig{OwnerID: parts[0], Email: parts[1]}
		if len(parts) == 3 {
			c.Name = parts[2]
		}
		out = append(out, c)
	}
	return out, nil
}

// Location shift time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Shift.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid SHIFT_TIMEZONE %q: %w", c.Shift.Timezone, err)
	}
	return loc, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, def bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func getInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func getDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
