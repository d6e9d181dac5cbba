package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaga0h/motion-gate/internal/motion"
)

func TestNewConfigDefaultsAreValid(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "tcp://localhost:1883", cfg.MQTTAddress())
	assert.Equal(t, "localhost:6379", cfg.RedisAddress())
	assert.False(t, cfg.PostgresEnabled())
	assert.Equal(t, time.Hour, cfg.StateTTL())

	est, err := cfg.EstimatorConfig()
	require.NoError(t, err)
	assert.Equal(t, motion.DefaultConfig(), est)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("MOTIONGATE_MQTT_BROKER", "broker.local")
	t.Setenv("MOTIONGATE_MQTT_PORT", "1884")
	t.Setenv("MOTIONGATE_REDIS_DB", "3")
	t.Setenv("MOTIONGATE_POSTGRES_HOST", "db.local")
	t.Setenv("MOTIONGATE_LOG_BACKEND", "zap")
	t.Setenv("MOTIONGATE_MOTION_PRESET", "tuned")
	t.Setenv("MOTIONGATE_START_DELAY_MS", "2500")
	t.Setenv("MOTIONGATE_ACCEL_TOPICS", "a/+,b/+")
	t.Setenv("MOTIONGATE_MIN_GPS_REQUEST_INTERVAL_MS", "1000")
	t.Setenv("MOTIONGATE_REDIS_PORT", "not-a-number")

	cfg := NewConfig()
	cfg.LoadFromEnv()

	assert.Equal(t, "broker.local", cfg.MQTTBroker)
	assert.Equal(t, 1884, cfg.MQTTPort)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 6379, cfg.RedisPort, "unparseable values keep the default")
	assert.True(t, cfg.PostgresEnabled())
	assert.Equal(t, "zap", cfg.LogBackend)
	assert.Equal(t, []string{"a/+", "b/+"}, cfg.AccelTopics)
	assert.Equal(t, 1000, cfg.MinGPSRequestIntervalMs)

	est, err := cfg.EstimatorConfig()
	require.NoError(t, err)
	tuned := motion.TunedConfig()
	assert.Equal(t, int64(2500), est.StartDelayMs)
	assert.Equal(t, tuned.StopDelayMs, est.StopDelayMs)
	assert.Equal(t, tuned.MotionStartThreshold, est.MotionStartThreshold)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "motion-gate.yaml")
	content := `
mqtt_broker: mqtt.example
health_port: 9090
motion_preset: tuned
motion:
  motion_stop_threshold: 0.1
  stop_delay_ms: 6000
max_state_history: 120
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg := NewConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "mqtt.example", cfg.MQTTBroker)
	assert.Equal(t, 9090, cfg.HealthPort)
	assert.Equal(t, 1883, cfg.MQTTPort, "keys absent from the file keep their value")
	assert.Equal(t, 120, cfg.MaxStateHistory)
	assert.Equal(t, path, cfg.ConfigFile)

	est, err := cfg.EstimatorConfig()
	require.NoError(t, err)
	assert.Equal(t, 0.1, est.MotionStopThreshold)
	assert.Equal(t, int64(6000), est.StopDelayMs)
	assert.Equal(t, motion.TunedConfig().MotionStartThreshold, est.MotionStartThreshold)
}

func TestLoadFromFileErrors(t *testing.T) {
	cfg := NewConfig()
	assert.Error(t, cfg.LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")))

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mqtt_port: [1, 2"), 0o600))
	assert.Error(t, cfg.LoadFromFile(path))
}

func TestRegisterFlagsAndMotionOverrides(t *testing.T) {
	cfg := NewConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg.RegisterFlags(fs)

	require.NoError(t, fs.Parse([]string{
		"--mqtt-port=2883",
		"--log-level=debug",
		"--motion-start-threshold=0.7",
		"--stop-delay-ms=900",
	}))
	cfg.ApplyMotionFlags(fs)

	assert.Equal(t, 2883, cfg.MQTTPort)
	assert.Equal(t, "debug", cfg.LogLevel)

	est, err := cfg.EstimatorConfig()
	require.NoError(t, err)
	assert.Equal(t, 0.7, est.MotionStartThreshold)
	assert.Equal(t, int64(900), est.StopDelayMs)
	// Unset override flags leave the preset alone
	assert.Equal(t, motion.DefaultConfig().MotionStopThreshold, est.MotionStopThreshold)
	assert.Equal(t, motion.DefaultConfig().StartDelayMs, est.StartDelayMs)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"missing broker", func(c *Config) { c.MQTTBroker = "" }, true},
		{"bad mqtt port", func(c *Config) { c.MQTTPort = 70000 }, true},
		{"missing redis host", func(c *Config) { c.RedisHost = "" }, true},
		{"bad postgres port when enabled", func(c *Config) {
			c.PostgresHost = "db"
			c.PostgresPort = 0
		}, true},
		{"postgres port ignored when disabled", func(c *Config) { c.PostgresPort = 0 }, false},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, true},
		{"bad log backend", func(c *Config) { c.LogBackend = "logrus" }, true},
		{"unknown preset", func(c *Config) { c.MotionPreset = "sport" }, true},
		{"no topics", func(c *Config) { c.AccelTopics = nil }, true},
		{"zero history", func(c *Config) { c.MaxStateHistory = 0 }, true},
		{"negative gps interval", func(c *Config) { c.MinGPSRequestIntervalMs = -1 }, true},
		{"inverted thresholds", func(c *Config) {
			stop := 0.9
			c.MotionOverrides.MotionStopThreshold = &stop
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPostgresConnectionString(t *testing.T) {
	cfg := NewConfig()
	cfg.PostgresHost = "db.local"
	cfg.PostgresPassword = "secret"

	assert.Equal(t,
		"host=db.local port=5432 user=motiongate password=secret dbname=motiongate sslmode=disable",
		cfg.PostgresConnectionString())
}

func TestConfigFileFromArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"absent", []string{"--mqtt-broker", "broker"}, ""},
		{"separate value", []string{"--mqtt-broker", "broker", "--config", "/etc/motion.yaml"}, "/etc/motion.yaml"},
		{"equals form", []string{"--config=local.yaml", "--log-level=debug"}, "local.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ConfigFileFromArgs(tt.args))
		})
	}
}
