package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDatabaseConfig_LoadFromEnv(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_NAME", "shifts")
	t.Setenv("DB_MAX_CONNS", "not-a-number")

	cfg := DatabaseConfig{Host: "localhost", Port: 5432, MaxConns: 10, SSLMode: "disable"}
	cfg.LoadFromEnv("DB")

	assert.Equal(t, "db.internal", cfg.Host)
	assert.Equal(t, 6543, cfg.Port)
	assert.Equal(t, "shifts", cfg.Database)
	assert.Equal(t, 10, cfg.MaxConns, "invalid numbers keep the previous value")
	assert.Equal(t, "host=db.internal port=6543 user= password= dbname=shifts sslmode=disable", cfg.GetDSN())
}

func TestSMTPConfig_LoadFromEnv(t *testing.T) {
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("SMTP_EMAIL", "bot@example.com")
	t.Setenv("SMTP_TIMEOUT", "3s")

	cfg := SMTPConfig{Port: 587}
	cfg.LoadFromEnv("SMTP")

	assert.Equal(t, "smtp.example.com", cfg.Host)
	assert.Equal(t, 2525, cfg.Port)
	assert.Equal(t, "bot@example.com", cfg.Username)
	assert.Equal(t, "bot@example.com", cfg.From, "sender defaults to the login address")
	assert.Equal(t, 3*time.Second, cfg.Timeout)
}

func TestRedisAndMQTTConfig_LoadFromEnv(t *testing.T) {
	t.Setenv("REDIS_ADDR", "cache:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("MQTT_BROKER", "tcp://broker:1883")
	t.Setenv("MQTT_QOS", "1")

	var rc RedisConfig
	rc.LoadFromEnv("REDIS")
	assert.Equal(t, "cache:6379", rc.Addr)
	assert.Equal(t, 2, rc.DB)

	var mc MQTTConfig
	mc.LoadFromEnv("MQTT")
	assert.Equal(t, "tcp://broker:1883", mc.Broker)
	assert.Equal(t, byte(1), mc.QoS)
}
