package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/pflag"
)

// Config holds the configuration for the insight engine agent
type Config struct {
	// MQTT configuration
	MQTTBroker   string
	MQTTPort     int
	MQTTUser     string
	MQTTPassword string
	MQTTClientID string

	// Redis configuration
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int

	// Postgres configuration (pattern archive)
	PostgresHost           string
	PostgresPort           int
	PostgresUser           string
	PostgresPassword       string
	PostgresDB             string
	PostgresSSLMode        string
	PostgresMaxConnections int
	ArchiveEnabled         bool

	// Service configuration
	ServiceName string
	HealthPort  int
	LogLevel    string

	// Event buffer configuration
	BufferCapacity    int
	MaxSequenceLength int
	PruneThreshold    float64
	MinSequenceCount  int

	// Pattern mining configuration
	MinPatternFrequency int
	SequenceWindowHours int
	MaxSuggestions      int
	SimilarityThreshold float64
	MiningIntervalMin   int

	// Context derivation configuration
	Latitude      float64
	Longitude     float64
	DaylightAware bool

	// Automation configuration
	RulesFile            string
	SuccessRateStep      float64
	SuggestionRetentionH int
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		MQTTBroker:             "localhost",
		MQTTPort:               1883,
		MQTTUser:               "",
		MQTTPassword:           "",
		MQTTClientID:           "",
		RedisHost:              "localhost",
		RedisPort:              6379,
		RedisPassword:          "",
		RedisDB:                0,
		PostgresHost:           "localhost",
		PostgresPort:           5432,
		PostgresUser:           "insight",
		PostgresPassword:       "",
		PostgresDB:             "insight",
		PostgresSSLMode:        "disable",
		PostgresMaxConnections: 10,
		ArchiveEnabled:         false,
		ServiceName:            "insight-agent",
		HealthPort:             8080,
		LogLevel:               "info",
		BufferCapacity:         1000,
		MaxSequenceLength:      5,
		PruneThreshold:         0.05,
		MinSequenceCount:       3,
		MinPatternFrequency:    3,
		SequenceWindowHours:    24,
		MaxSuggestions:         5,
		SimilarityThreshold:    0.7,
		MiningIntervalMin:      30,
		// Helsinki coordinates
		Latitude:             60.1695,
		Longitude:            24.9354,
		DaylightAware:        false,
		RulesFile:            "",
		SuccessRateStep:      0.1,
		SuggestionRetentionH: 24,
	}
}

// LoadFromEnv loads configuration from environment variables with INSIGHT_ prefix
func (c *Config) LoadFromEnv() {
	// MQTT configuration
	if v := os.Getenv("INSIGHT_MQTT_BROKER"); v != "" {
		c.MQTTBroker = v
	}
	if v := os.Getenv("INSIGHT_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.MQTTPort = port
		}
	}
	if v := os.Getenv("INSIGHT_MQTT_USER"); v != "" {
		c.MQTTUser = v
	}
	if v := os.Getenv("INSIGHT_MQTT_PASSWORD"); v != "" {
		c.MQTTPassword = v
	}
	if v := os.Getenv("INSIGHT_MQTT_CLIENT_ID"); v != "" {
		c.MQTTClientID = v
	}

	// Redis configuration
	if v := os.Getenv("INSIGHT_REDIS_HOST"); v != "" {
		c.RedisHost = v
	}
	if v := os.Getenv("INSIGHT_REDIS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.RedisPort = port
		}
	}
	if v := os.Getenv("INSIGHT_REDIS_PASSWORD"); v != "" {
		c.RedisPassword = v
	}
	if v := os.Getenv("INSIGHT_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.RedisDB = db
		}
	}

	// Postgres configuration
	if v := os.Getenv("INSIGHT_POSTGRES_HOST"); v != "" {
		c.PostgresHost = v
	}
	if v := os.Getenv("INSIGHT_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.PostgresPort = port
		}
	}
	if v := os.Getenv("INSIGHT_POSTGRES_USER"); v != "" {
		c.PostgresUser = v
	}
	if v := os.Getenv("INSIGHT_POSTGRES_PASSWORD"); v != "" {
		c.PostgresPassword = v
	}
	if v := os.Getenv("INSIGHT_POSTGRES_DB"); v != "" {
		c.PostgresDB = v
	}
	if v := os.Getenv("INSIGHT_POSTGRES_SSLMODE"); v != "" {
		c.PostgresSSLMode = v
	}
	if v := os.Getenv("INSIGHT_ARCHIVE_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.ArchiveEnabled = enabled
		}
	}

	// Service configuration
	if v := os.Getenv("INSIGHT_SERVICE_NAME"); v != "" {
		c.ServiceName = v
	}
	if v := os.Getenv("INSIGHT_HEALTH_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.HealthPort = port
		}
	}
	if v := os.Getenv("INSIGHT_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}

	// Event buffer configuration
	if v := os.Getenv("INSIGHT_BUFFER_CAPACITY"); v != "" {
		if capacity, err := strconv.Atoi(v); err == nil {
			c.BufferCapacity = capacity
		}
	}
	if v := os.Getenv("INSIGHT_MAX_SEQUENCE_LENGTH"); v != "" {
		if length, err := strconv.Atoi(v); err == nil {
			c.MaxSequenceLength = length
		}
	}
	if v := os.Getenv("INSIGHT_PRUNE_THRESHOLD"); v != "" {
		if threshold, err := strconv.ParseFloat(v, 64); err == nil {
			c.PruneThreshold = threshold
		}
	}
	if v := os.Getenv("INSIGHT_MIN_SEQUENCE_COUNT"); v != "" {
		if count, err := strconv.Atoi(v); err == nil {
			c.MinSequenceCount = count
		}
	}

	// Pattern mining configuration
	if v := os.Getenv("INSIGHT_MIN_PATTERN_FREQUENCY"); v != "" {
		if freq, err := strconv.Atoi(v); err == nil {
			c.MinPatternFrequency = freq
		}
	}
	if v := os.Getenv("INSIGHT_SEQUENCE_WINDOW_HOURS"); v != "" {
		if hours, err := strconv.Atoi(v); err == nil {
			c.SequenceWindowHours = hours
		}
	}
	if v := os.Getenv("INSIGHT_MAX_SUGGESTIONS"); v != "" {
		if max, err := strconv.Atoi(v); err == nil {
			c.MaxSuggestions = max
		}
	}
	if v := os.Getenv("INSIGHT_SIMILARITY_THRESHOLD"); v != "" {
		if threshold, err := strconv.ParseFloat(v, 64); err == nil {
			c.SimilarityThreshold = threshold
		}
	}
	if v := os.Getenv("INSIGHT_MINING_INTERVAL_MIN"); v != "" {
		if interval, err := strconv.Atoi(v); err == nil {
			c.MiningIntervalMin = interval
		}
	}

	// Context derivation configuration
	if v := os.Getenv("INSIGHT_LATITUDE"); v != "" {
		if lat, err := strconv.ParseFloat(v, 64); err == nil {
			c.Latitude = lat
		}
	}
	if v := os.Getenv("INSIGHT_LONGITUDE"); v != "" {
		if lon, err := strconv.ParseFloat(v, 64); err == nil {
			c.Longitude = lon
		}
	}
	if v := os.Getenv("INSIGHT_DAYLIGHT_AWARE"); v != "" {
		if aware, err := strconv.ParseBool(v); err == nil {
			c.DaylightAware = aware
		}
	}

	// Automation configuration
	if v := os.Getenv("INSIGHT_RULES_FILE"); v != "" {
		c.RulesFile = v
	}
	if v := os.Getenv("INSIGHT_SUCCESS_RATE_STEP"); v != "" {
		if step, err := strconv.ParseFloat(v, 64); err == nil {
			c.SuccessRateStep = step
		}
	}
	if v := os.Getenv("INSIGHT_SUGGESTION_RETENTION_HOURS"); v != "" {
		if hours, err := strconv.Atoi(v); err == nil {
			c.SuggestionRetentionH = hours
		}
	}
}

// LoadFromFlags parses command-line flags and overrides config values
func (c *Config) LoadFromFlags() {
	// MQTT flags
	pflag.StringVar(&c.MQTTBroker, "mqtt-broker", c.MQTTBroker, "MQTT broker hostname")
	pflag.IntVar(&c.MQTTPort, "mqtt-port", c.MQTTPort, "MQTT broker port")
	pflag.StringVar(&c.MQTTUser, "mqtt-user", c.MQTTUser, "MQTT username")
	pflag.StringVar(&c.MQTTPassword, "mqtt-password", c.MQTTPassword, "MQTT password")
	pflag.StringVar(&c.MQTTClientID, "mqtt-client-id", c.MQTTClientID, "MQTT client ID")

	// Redis flags
	pflag.StringVar(&c.RedisHost, "redis-host", c.RedisHost, "Redis hostname")
	pflag.IntVar(&c.RedisPort, "redis-port", c.RedisPort, "Redis port")
	pflag.StringVar(&c.RedisPassword, "redis-password", c.RedisPassword, "Redis password")
	pflag.IntVar(&c.RedisDB, "redis-db", c.RedisDB, "Redis database number")

	// Postgres flags
	pflag.StringVar(&c.PostgresHost, "postgres-host", c.PostgresHost, "Postgres hostname")
	pflag.IntVar(&c.PostgresPort, "postgres-port", c.PostgresPort, "Postgres port")
	pflag.StringVar(&c.PostgresUser, "postgres-user", c.PostgresUser, "Postgres username")
	pflag.StringVar(&c.PostgresPassword, "postgres-password", c.PostgresPassword, "Postgres password")
	pflag.StringVar(&c.PostgresDB, "postgres-db", c.PostgresDB, "Postgres database name")
	pflag.StringVar(&c.PostgresSSLMode, "postgres-sslmode", c.PostgresSSLMode, "Postgres SSL mode")
	pflag.BoolVar(&c.ArchiveEnabled, "archive-enabled", c.ArchiveEnabled, "Enable Postgres pattern archive")

	// Service flags
	pflag.StringVar(&c.ServiceName, "service-name", c.ServiceName, "Service name")
	pflag.IntVar(&c.HealthPort, "health-port", c.HealthPort, "Health check HTTP port")
	pflag.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level (debug, info, warn, error)")

	// Event buffer flags
	pflag.IntVar(&c.BufferCapacity, "buffer-capacity", c.BufferCapacity, "Event buffer capacity")
	pflag.IntVar(&c.MaxSequenceLength, "max-sequence-length", c.MaxSequenceLength, "Maximum event sequence length to track")
	pflag.Float64Var(&c.PruneThreshold, "prune-threshold", c.PruneThreshold, "Relative frequency below which rare sequences are pruned")
	pflag.IntVar(&c.MinSequenceCount, "min-sequence-count", c.MinSequenceCount, "Absolute frequency that protects a sequence from pruning")

	// Pattern mining flags
	pflag.IntVar(&c.MinPatternFrequency, "min-pattern-frequency", c.MinPatternFrequency, "Minimum occurrences before a pattern is emitted")
	pflag.IntVar(&c.SequenceWindowHours, "sequence-window-hours", c.SequenceWindowHours, "Rolling window for sequential pattern detection (hours)")
	pflag.IntVar(&c.MaxSuggestions, "max-suggestions", c.MaxSuggestions, "Maximum suggestions returned per pass")
	pflag.Float64Var(&c.SimilarityThreshold, "similarity-threshold", c.SimilarityThreshold, "Task similarity threshold for clustering")
	pflag.IntVar(&c.MiningIntervalMin, "mining-interval", c.MiningIntervalMin, "Periodic mining interval in minutes")

	// Context derivation flags
	pflag.Float64Var(&c.Latitude, "latitude", c.Latitude, "Geographic latitude for daylight-aware time-of-day")
	pflag.Float64Var(&c.Longitude, "longitude", c.Longitude, "Geographic longitude for daylight-aware time-of-day")
	pflag.BoolVar(&c.DaylightAware, "daylight-aware", c.DaylightAware, "Derive evening/night boundaries from sun position")

	// Automation flags
	pflag.StringVar(&c.RulesFile, "rules-file", c.RulesFile, "YAML file with automation rule definitions")
	pflag.Float64Var(&c.SuccessRateStep, "success-rate-step", c.SuccessRateStep, "Success rate decrement on rule action failure")
	pflag.IntVar(&c.SuggestionRetentionH, "suggestion-retention-hours", c.SuggestionRetentionH, "Hours to retain terminal suggestions in snapshots")

	pflag.Parse()
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
	if c.HealthPort <= 0 || c.HealthPort > 65535 {
		return fmt.Errorf("Health port must be between 1 and 65535")
	}
	if c.ServiceName == "" {
		return fmt.Errorf("Service name is required")
	}
	if c.BufferCapacity <= 0 {
		return fmt.Errorf("buffer capacity must be positive")
	}
	if c.MaxSequenceLength < 2 {
		return fmt.Errorf("max sequence length must be at least 2")
	}
	if c.PruneThreshold < 0 || c.PruneThreshold >= 1 {
		return fmt.Errorf("prune threshold must be in [0, 1)")
	}
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold >= 1 {
		return fmt.Errorf("similarity threshold must be in (0, 1)")
	}
	if c.MiningIntervalMin <= 0 {
		return fmt.Errorf("mining interval must be positive")
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

// PostgresConnectionString returns the lib/pq connection string
func (c *Config) PostgresConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword,
		c.PostgresDB, c.PostgresSSLMode)
}
