package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	ServerPort   string
	ServerHost   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Vessel store
	StoreShards            int
	StaleAfter             time.Duration
	RetentionPeriod        time.Duration
	RetentionSweepInterval time.Duration

	// Ingestion
	FeedersFile   string
	UDPListenAddr string
	TCPListenAddr string

	// Enrichment
	EnrichmentBaseURL      string
	EnrichmentUserAgent    string
	EnrichmentTTL          time.Duration
	EnrichmentNegativeTTL  time.Duration
	EnrichmentFetchTimeout time.Duration
	EnrichmentRetries      int
	EnrichmentPersist      bool

	// OAuth2 client credentials for the enrichment source
	EnrichmentOAuthTokenURL     string
	EnrichmentOAuthClientID     string
	EnrichmentOAuthClientSecret string

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers      []string
	KafkaGroupID      string
	KafkaRawTopic     string
	KafkaDecodedTopic string

	// Relay
	RelaySourceAddr string
	RelayTargetAddr string
	RelayRetryDelay time.Duration
}

func Load() *Config {
	return &Config{
		ServerPort:   getEnv("SERVER_PORT", "8080"),
		ServerHost:   getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:  getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout: getDuration("WRITE_TIMEOUT", 30*time.Second),

		StoreShards:            getIntEnv("STORE_SHARDS", 32),
		StaleAfter:             getDuration("STALE_AFTER", 10*time.Minute),
		RetentionPeriod:        getDuration("RETENTION_PERIOD", 0),
		RetentionSweepInterval: getDuration("RETENTION_SWEEP_INTERVAL", 5*time.Minute),

		FeedersFile:   getEnv("FEEDERS_FILE", ""),
		UDPListenAddr: getEnv("UDP_LISTEN_ADDR", "0.0.0.0:10110"),
		TCPListenAddr: getEnv("TCP_LISTEN_ADDR", ""),

		EnrichmentBaseURL:      getEnv("ENRICHMENT_BASE_URL", "https://www.vesselfinder.com/vessels/details/"),
		EnrichmentUserAgent:    getEnv("ENRICHMENT_USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"),
		EnrichmentTTL:          getDuration("ENRICHMENT_TTL", 24*time.Hour),
		EnrichmentNegativeTTL:  getDuration("ENRICHMENT_NEGATIVE_TTL", 15*time.Minute),
		EnrichmentFetchTimeout: getDuration("ENRICHMENT_FETCH_TIMEOUT", 15*time.Second),
		EnrichmentRetries:      getIntEnv("ENRICHMENT_RETRIES", 3),
		EnrichmentPersist:      getBoolEnv("ENRICHMENT_PERSIST", false),

		EnrichmentOAuthTokenURL:     getEnv("ENRICHMENT_OAUTH_TOKEN_URL", ""),
		EnrichmentOAuthClientID:     getEnv("ENRICHMENT_OAUTH_CLIENT_ID", ""),
		EnrichmentOAuthClientSecret: getEnv("ENRICHMENT_OAUTH_CLIENT_SECRET", ""),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "aistrack"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "aistrack"),
		PostgresDB:       getEnv("POSTGRES_DB", "aistrack"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisEnabled:  getBoolEnv("REDIS_ENABLED", false),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers:      getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:      getEnv("KAFKA_GROUP_ID", "aistrack"),
		KafkaRawTopic:     getEnv("KAFKA_RAW_TOPIC", ""),
		KafkaDecodedTopic: getEnv("KAFKA_DECODED_TOPIC", ""),

		RelaySourceAddr: getEnv("RELAY_SOURCE_ADDR", "153.44.253.27:5631"),
		RelayTargetAddr: getEnv("RELAY_TARGET_ADDR", "localhost:10110"),
		RelayRetryDelay: getDuration("RELAY_RETRY_DELAY", 5*time.Second),
	}
}

// PostgresDSN renders the connection settings in libpq key/value form.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.PostgresHost,
		c.PostgresUser,
		c.PostgresPassword,
		c.PostgresDB,
		c.PostgresPort,
		c.PostgresSSLMode,
	)
}

func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
