package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/saaga0h/motion-gate/internal/motion"
)

// Config holds the configuration for a motion-gate agent
type Config struct {
	// MQTT configuration
	MQTTBroker   string `yaml:"mqtt_broker"`
	MQTTPort     int    `yaml:"mqtt_port"`
	MQTTUser     string `yaml:"mqtt_user"`
	MQTTPassword string `yaml:"mqtt_password"`
	MQTTClientID string `yaml:"mqtt_client_id"`

	// Redis configuration
	RedisHost     string `yaml:"redis_host"`
	RedisPort     int    `yaml:"redis_port"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	// Postgres configuration (optional, empty host disables the transition log)
	PostgresHost               string        `yaml:"postgres_host"`
	PostgresPort               int           `yaml:"postgres_port"`
	PostgresUser               string        `yaml:"postgres_user"`
	PostgresPassword           string        `yaml:"postgres_password"`
	PostgresDB                 string        `yaml:"postgres_db"`
	PostgresSSLMode            string        `yaml:"postgres_sslmode"`
	PostgresMaxConnections     int           `yaml:"postgres_max_connections"`
	PostgresMaxIdleConnections int           `yaml:"postgres_max_idle_connections"`
	PostgresConnMaxLifetime    time.Duration `yaml:"postgres_conn_max_lifetime"`

	// Service configuration
	ServiceName string `yaml:"service_name"`
	HealthPort  int    `yaml:"health_port"`
	LogLevel    string `yaml:"log_level"`
	LogBackend  string `yaml:"log_backend"`

	// Motion estimator configuration
	MotionPreset    string          `yaml:"motion_preset"`
	MotionOverrides MotionOverrides `yaml:"motion"`

	// Agent configuration
	AccelTopics             []string `yaml:"accel_topics"`
	MaxStateHistory         int      `yaml:"max_state_history"`
	StateTTLMinutes         int      `yaml:"state_ttl_minutes"`
	MinGPSRequestIntervalMs int      `yaml:"min_gps_request_interval_ms"`

	// ConfigFile is the optional YAML file layered between defaults and env
	ConfigFile string `yaml:"-"`
}

// MotionOverrides replaces individual preset parameters. Nil fields keep the
// preset value.
type MotionOverrides struct {
	FilterAlpha          *float64 `yaml:"filter_alpha,omitempty"`
	AccelSmoothingAlpha  *float64 `yaml:"accel_smoothing_alpha,omitempty"`
	MotionStartThreshold *float64 `yaml:"motion_start_threshold,omitempty"`
	MotionStopThreshold  *float64 `yaml:"motion_stop_threshold,omitempty"`
	StartDelayMs         *int64   `yaml:"start_delay_ms,omitempty"`
	StopDelayMs          *int64   `yaml:"stop_delay_ms,omitempty"`
	RMSAlpha             *float64 `yaml:"rms_alpha,omitempty"`
	SpikeThreshold       *float64 `yaml:"spike_threshold,omitempty"`
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		MQTTBroker:                 "localhost",
		MQTTPort:                   1883,
		RedisHost:                  "localhost",
		RedisPort:                  6379,
		RedisDB:                    0,
		PostgresPort:               5432,
		PostgresUser:               "motiongate",
		PostgresDB:                 "motiongate",
		PostgresSSLMode:            "disable",
		PostgresMaxConnections:     5,
		PostgresMaxIdleConnections: 2,
		PostgresConnMaxLifetime:    30 * time.Minute,
		ServiceName:                "motion-gate",
		HealthPort:                 8080,
		LogLevel:                   "info",
		LogBackend:                 "slog",
		MotionPreset:               motion.PresetDefault,
		AccelTopics:                []string{"motiongate/raw/accelerometer/+"},
		MaxStateHistory:            600,
		StateTTLMinutes:            60,
		MinGPSRequestIntervalMs:    30000,
	}
}

// LoadFromFile applies a YAML file on top of the current values. Keys absent
// from the file keep their current value.
func (c *Config) LoadFromFile(path string) error {
	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", cleanPath, err)
	}
	c.ConfigFile = cleanPath
	return nil
}

// LoadFromEnv loads configuration from environment variables with MOTIONGATE_ prefix
func (c *Config) LoadFromEnv() {
	// Config file first so env and flags can still override it
	if v := os.Getenv("MOTIONGATE_CONFIG_FILE"); v != "" {
		c.ConfigFile = v
	}

	// MQTT configuration
	if v := os.Getenv("MOTIONGATE_MQTT_BROKER"); v != "" {
		c.MQTTBroker = v
	}
	if v := os.Getenv("MOTIONGATE_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.MQTTPort = port
		}
	}
	if v := os.Getenv("MOTIONGATE_MQTT_USER"); v != "" {
		c.MQTTUser = v
	}
	if v := os.Getenv("MOTIONGATE_MQTT_PASSWORD"); v != "" {
		c.MQTTPassword = v
	}
	if v := os.Getenv("MOTIONGATE_MQTT_CLIENT_ID"); v != "" {
		c.MQTTClientID = v
	}

	// Redis configuration
	if v := os.Getenv("MOTIONGATE_REDIS_HOST"); v != "" {
		c.RedisHost = v
	}
	if v := os.Getenv("MOTIONGATE_REDIS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.RedisPort = port
		}
	}
	if v := os.Getenv("MOTIONGATE_REDIS_PASSWORD"); v != "" {
		c.RedisPassword = v
	}
	if v := os.Getenv("MOTIONGATE_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.RedisDB = db
		}
	}

	// Postgres configuration
	if v := os.Getenv("MOTIONGATE_POSTGRES_HOST"); v != "" {
		c.PostgresHost = v
	}
	if v := os.Getenv("MOTIONGATE_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.PostgresPort = port
		}
	}
	if v := os.Getenv("MOTIONGATE_POSTGRES_USER"); v != "" {
		c.PostgresUser = v
	}
	if v := os.Getenv("MOTIONGATE_POSTGRES_PASSWORD"); v != "" {
		c.PostgresPassword = v
	}
	if v := os.Getenv("MOTIONGATE_POSTGRES_DB"); v != "" {
		c.PostgresDB = v
	}
	if v := os.Getenv("MOTIONGATE_POSTGRES_SSLMODE"); v != "" {
		c.PostgresSSLMode = v
	}

	// Service configuration
	if v := os.Getenv("MOTIONGATE_SERVICE_NAME"); v != "" {
		c.ServiceName = v
	}
	if v := os.Getenv("MOTIONGATE_HEALTH_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.HealthPort = port
		}
	}
	if v := os.Getenv("MOTIONGATE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("MOTIONGATE_LOG_BACKEND"); v != "" {
		c.LogBackend = v
	}

	// Motion configuration
	if v := os.Getenv("MOTIONGATE_MOTION_PRESET"); v != "" {
		c.MotionPreset = v
	}
	if v := os.Getenv("MOTIONGATE_MOTION_START_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.MotionOverrides.MotionStartThreshold = &f
		}
	}
	if v := os.Getenv("MOTIONGATE_MOTION_STOP_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.MotionOverrides.MotionStopThreshold = &f
		}
	}
	if v := os.Getenv("MOTIONGATE_START_DELAY_MS"); v != "" {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.MotionOverrides.StartDelayMs = &ms
		}
	}
	if v := os.Getenv("MOTIONGATE_STOP_DELAY_MS"); v != "" {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.MotionOverrides.StopDelayMs = &ms
		}
	}

	// Agent configuration
	if v := os.Getenv("MOTIONGATE_ACCEL_TOPICS"); v != "" {
		c.AccelTopics = strings.Split(v, ",")
	}
	if v := os.Getenv("MOTIONGATE_MAX_STATE_HISTORY"); v != "" {
		if max, err := strconv.Atoi(v); err == nil {
			c.MaxStateHistory = max
		}
	}
	if v := os.Getenv("MOTIONGATE_STATE_TTL_MINUTES"); v != "" {
		if minutes, err := strconv.Atoi(v); err == nil {
			c.StateTTLMinutes = minutes
		}
	}
	if v := os.Getenv("MOTIONGATE_MIN_GPS_REQUEST_INTERVAL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			c.MinGPSRequestIntervalMs = ms
		}
	}
}

// LoadFromFlags parses command-line flags and overrides config values
func (c *Config) LoadFromFlags() {
	c.RegisterFlags(pflag.CommandLine)
	pflag.Parse()
}

// ConfigFileFromArgs returns the --config value from command line args
// without parsing any other flag, so the file can be applied before env
// and flags.
func ConfigFileFromArgs(args []string) string {
	fs := pflag.NewFlagSet("config-file", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.SetOutput(io.Discard)
	path := fs.String("config", "", "")
	_ = fs.Parse(args)
	return *path
}

// RegisterFlags binds the config fields to a flag set. Estimator overrides
// are only applied for flags that were explicitly set (see ApplyMotionFlags).
func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	// MQTT flags
	fs.StringVar(&c.MQTTBroker, "mqtt-broker", c.MQTTBroker, "MQTT broker hostname")
	fs.IntVar(&c.MQTTPort, "mqtt-port", c.MQTTPort, "MQTT broker port")
	fs.StringVar(&c.MQTTUser, "mqtt-user", c.MQTTUser, "MQTT username")
	fs.StringVar(&c.MQTTPassword, "mqtt-password", c.MQTTPassword, "MQTT password")
	fs.StringVar(&c.MQTTClientID, "mqtt-client-id", c.MQTTClientID, "MQTT client ID")

	// Redis flags
	fs.StringVar(&c.RedisHost, "redis-host", c.RedisHost, "Redis hostname")
	fs.IntVar(&c.RedisPort, "redis-port", c.RedisPort, "Redis port")
	fs.StringVar(&c.RedisPassword, "redis-password", c.RedisPassword, "Redis password")
	fs.IntVar(&c.RedisDB, "redis-db", c.RedisDB, "Redis database number")

	// Postgres flags
	fs.StringVar(&c.PostgresHost, "postgres-host", c.PostgresHost, "Postgres hostname (empty disables the transition log)")
	fs.IntVar(&c.PostgresPort, "postgres-port", c.PostgresPort, "Postgres port")
	fs.StringVar(&c.PostgresUser, "postgres-user", c.PostgresUser, "Postgres user")
	fs.StringVar(&c.PostgresPassword, "postgres-password", c.PostgresPassword, "Postgres password")
	fs.StringVar(&c.PostgresDB, "postgres-db", c.PostgresDB, "Postgres database")
	fs.StringVar(&c.PostgresSSLMode, "postgres-sslmode", c.PostgresSSLMode, "Postgres sslmode")

	// Service flags
	fs.StringVar(&c.ServiceName, "service-name", c.ServiceName, "Service name")
	fs.IntVar(&c.HealthPort, "health-port", c.HealthPort, "Health check and chart HTTP port")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&c.LogBackend, "log-backend", c.LogBackend, "Log backend (slog, zap)")
	fs.StringVar(&c.ConfigFile, "config", c.ConfigFile, "Optional YAML config file")

	// Motion flags
	fs.StringVar(&c.MotionPreset, "motion-preset", c.MotionPreset, "Estimator preset (default, tuned)")
	fs.Float64("motion-start-threshold", 0, "Override acceleration level that starts accumulating moving time")
	fs.Float64("motion-stop-threshold", 0, "Override acceleration level that starts accumulating still time")
	fs.Int64("start-delay-ms", 0, "Override sustained time required to switch to moving")
	fs.Int64("stop-delay-ms", 0, "Override sustained time required to switch to still")

	// Agent flags
	fs.StringSliceVar(&c.AccelTopics, "accel-topics", c.AccelTopics, "Accelerometer topics to subscribe to")
	fs.IntVar(&c.MaxStateHistory, "max-state-history", c.MaxStateHistory, "States kept per device for charts and Redis history")
	fs.IntVar(&c.StateTTLMinutes, "state-ttl-minutes", c.StateTTLMinutes, "TTL of Redis state keys in minutes")
	fs.IntVar(&c.MinGPSRequestIntervalMs, "min-gps-request-interval-ms", c.MinGPSRequestIntervalMs, "Minimum time between GPS requests per device (ms)")
}

// ApplyMotionFlags copies explicitly set estimator override flags into
// MotionOverrides
func (c *Config) ApplyMotionFlags(fs *pflag.FlagSet) {
	if fs.Changed("motion-start-threshold") {
		if v, err := fs.GetFloat64("motion-start-threshold"); err == nil {
			c.MotionOverrides.MotionStartThreshold = &v
		}
	}
	if fs.Changed("motion-stop-threshold") {
		if v, err := fs.GetFloat64("motion-stop-threshold"); err == nil {
			c.MotionOverrides.MotionStopThreshold = &v
		}
	}
	if fs.Changed("start-delay-ms") {
		if v, err := fs.GetInt64("start-delay-ms"); err == nil {
			c.MotionOverrides.StartDelayMs = &v
		}
	}
	if fs.Changed("stop-delay-ms") {
		if v, err := fs.GetInt64("stop-delay-ms"); err == nil {
			c.MotionOverrides.StopDelayMs = &v
		}
	}
}

// EstimatorConfig resolves the preset and applies the overrides
func (c *Config) EstimatorConfig() (motion.Config, error) {
	cfg, err := motion.PresetByName(c.MotionPreset)
	if err != nil {
		return motion.Config{}, err
	}

	o := c.MotionOverrides
	if o.FilterAlpha != nil {
		cfg.FilterAlpha = *o.FilterAlpha
	}
	if o.AccelSmoothingAlpha != nil {
		cfg.AccelSmoothingAlpha = *o.AccelSmoothingAlpha
	}
	if o.MotionStartThreshold != nil {
		cfg.MotionStartThreshold = *o.MotionStartThreshold
	}
	if o.MotionStopThreshold != nil {
		cfg.MotionStopThreshold = *o.MotionStopThreshold
	}
	if o.StartDelayMs != nil {
		cfg.StartDelayMs = *o.StartDelayMs
	}
	if o.StopDelayMs != nil {
		cfg.StopDelayMs = *o.StopDelayMs
	}
	if o.RMSAlpha != nil {
		cfg.RMSAlpha = *o.RMSAlpha
	}
	if o.SpikeThreshold != nil {
		cfg.SpikeThreshold = *o.SpikeThreshold
	}
	return cfg, nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT broker is required")
	}
	if c.MQTTPort <= 0 || c.MQTTPort > 65535 {
		return fmt.Errorf("MQTT port must be between 1 and 65535")
	}
	if c.RedisHost == "" {
		return fmt.Errorf("Redis host is required")
	}
	if c.RedisPort <= 0 || c.RedisPort > 65535 {
		return fmt.Errorf("Redis port must be between 1 and 65535")
	}
	if c.PostgresHost != "" && (c.PostgresPort <= 0 || c.PostgresPort > 65535) {
		return fmt.Errorf("Postgres port must be between 1 and 65535")
	}
	if c.HealthPort <= 0 || c.HealthPort > 65535 {
		return fmt.Errorf("Health port must be between 1 and 65535")
	}
	if c.ServiceName == "" {
		return fmt.Errorf("Service name is required")
	}
	if len(c.AccelTopics) == 0 {
		return fmt.Errorf("at least one accelerometer topic is required")
	}
	if c.MaxStateHistory <= 0 {
		return fmt.Errorf("max state history must be positive")
	}
	if c.MinGPSRequestIntervalMs < 0 {
		return fmt.Errorf("min GPS request interval must not be negative")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}
	if c.LogBackend != "slog" && c.LogBackend != "zap" {
		return fmt.Errorf("invalid log backend: %s (must be slog or zap)", c.LogBackend)
	}

	estimatorCfg, err := c.EstimatorConfig()
	if err != nil {
		return err
	}
	if err := estimatorCfg.Validate(); err != nil {
		return err
	}

	return nil
}

// MQTTAddress returns the full MQTT broker address
func (c *Config) MQTTAddress() string {
	return fmt.Sprintf("tcp://%s:%d", c.MQTTBroker, c.MQTTPort)
}

// RedisAddress returns the full Redis address
func (c *Config) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// PostgresEnabled reports whether a Postgres host is configured
func (c *Config) PostgresEnabled() bool {
	return c.PostgresHost != ""
}

// PostgresConnectionString returns the lib/pq connection string
func (c *Config) PostgresConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode)
}

// StateTTL returns the Redis TTL for per-device keys
func (c *Config) StateTTL() time.Duration {
	return time.Duration(c.StateTTLMinutes) * time.Minute
}
