package config

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"room-bridge/backend/pkg/dialect"
)

type EnvKey string

const (
	EnvPort      EnvKey = "PORT"
	EnvDataDir   EnvKey = "DATA_DIR"
	EnvLogLevel  EnvKey = "LOG_LEVEL"
	EnvLogToFile EnvKey = "LOG_TO_FILE"

	EnvDBDialect EnvKey = "DB_DIALECT"
	EnvDBHost    EnvKey = "DB_HOST"
	EnvDBPort    EnvKey = "DB_PORT"
	EnvDBName    EnvKey = "DB_NAME"
	EnvDBUser    EnvKey = "DB_USER"
	EnvDBPass    EnvKey = "DB_PASSWORD"
	EnvDBSSLMode EnvKey = "DB_SSLMODE"

	EnvValkeyAddr EnvKey = "VALKEY_ADDR"
	EnvValkeyTTL  EnvKey = "VALKEY_TTL"

	EnvMQTTServerEnabled EnvKey = "MQTT_SERVER_ENABLED"
	EnvMQTTServerPort    EnvKey = "MQTT_SERVER_PORT"

	EnvMQTTBroker      EnvKey = "MQTT_BROKER"
	EnvMQTTClientID    EnvKey = "MQTT_CLIENT_ID"
	EnvMQTTUsername    EnvKey = "MQTT_USERNAME"
	EnvMQTTPassword    EnvKey = "MQTT_PASSWORD"
	EnvMQTTTopicPrefix EnvKey = "MQTT_TOPIC_PREFIX"
	EnvMQTTRetryDelay  EnvKey = "MQTT_RETRY_DELAY"
	EnvMQTTRetryLimit  EnvKey = "MQTT_RETRY_LIMIT"

	EnvHubQueueLimit  EnvKey = "HUB_QUEUE_LIMIT"
	EnvHubSendTimeout EnvKey = "HUB_SEND_TIMEOUT"

	EnvCommandPublishTimeout EnvKey = "COMMAND_PUBLISH_TIMEOUT"
	EnvDeviceVocabularyFile  EnvKey = "DEVICE_VOCABULARY_FILE"
)

type Config struct {
	Port      int
	DataDir   string
	Database  string
	Dialect   dialect.Dialect
	LogLevel  slog.Leveler
	LogOutput io.Writer

	// Latest-value cache, disabled when ValkeyAddr is empty
	ValkeyAddr string
	ValkeyTTL  time.Duration

	// Embedded MQTT server configuration
	MQTTServerEnabled bool
	MQTTServerPort    int

	// MQTT client configuration
	MQTTBroker      string
	MQTTClientID    string
	MQTTUsername    string
	MQTTPassword    string
	MQTTTopicPrefix string
	MQTTRetryDelay  time.Duration
	MQTTRetryLimit  uint64

	// Fan-out hub
	HubQueueLimit  int
	HubSendTimeout time.Duration

	// Command gateway
	CommandPublishTimeout time.Duration
	DeviceVocabularyFile  string
}

func New() (*Config, error) {
	// Get data directory
	dataDir := getStringEnv(EnvDataDir, "data")

	// Ensure data directory exists
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	// Derive paths from data directory
	logPath := filepath.Join(dataDir, "bridge.log")

	var logOutput io.Writer = os.Stdout

	if getBoolEnv(EnvLogToFile, false) {
		f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}

		logOutput = f
	}

	dbDialect := dialect.Dialect(strings.ToLower(getStringEnv(EnvDBDialect, string(dialect.SQLite))))
	if err := dbDialect.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database dialect: %w", err)
	}

	// Build database connection string based on dialect
	var dbConnString string

	switch dbDialect {
	case dialect.SQLite:
		dbConnString = filepath.Join(dataDir, "database.sqlite")
	case dialect.PostgreSQL:
		host := getStringEnv(EnvDBHost, "localhost")
		port := getIntEnv(EnvDBPort, 5432)
		dbName := getStringEnv(EnvDBName, "bridge")
		user := getStringEnv(EnvDBUser, "bridge")
		password := getStringEnv(EnvDBPass, "")
		sslmode := getStringEnv(EnvDBSSLMode, "disable")

		dbConnString = fmt.Sprintf(
			"postgresql://%s:%s@%s/%s?sslmode=%s",
			url.QueryEscape(user),
			url.QueryEscape(password),
			net.JoinHostPort(host, strconv.Itoa(port)),
			dbName, sslmode,
		)
	}

	prefix := strings.Trim(getStringEnv(EnvMQTTTopicPrefix, "room_01"), "/")
	if prefix == "" {
		return nil, fmt.Errorf("%s must not be empty", EnvMQTTTopicPrefix)
	}

	retryLimit := getIntEnv(EnvMQTTRetryLimit, 10)
	if retryLimit < 0 {
		retryLimit = 0
	}

	return &Config{
		Port:                  getIntEnv(EnvPort, 8080),
		DataDir:               dataDir,
		Database:              dbConnString,
		Dialect:               dbDialect,
		LogLevel:              getLogLevelEnv(EnvLogLevel, slog.LevelInfo),
		LogOutput:             logOutput,
		ValkeyAddr:            getStringEnv(EnvValkeyAddr, ""),
		ValkeyTTL:             getDurationEnv(EnvValkeyTTL, 0),
		MQTTServerEnabled:     getBoolEnv(EnvMQTTServerEnabled, false),
		MQTTServerPort:        getIntEnv(EnvMQTTServerPort, 1883),
		MQTTBroker:            getStringEnv(EnvMQTTBroker, "tcp://127.0.0.1:1883"),
		MQTTClientID:          getStringEnv(EnvMQTTClientID, "room-bridge"),
		MQTTUsername:          getStringEnv(EnvMQTTUsername, ""),
		MQTTPassword:          getStringEnv(EnvMQTTPassword, ""),
		MQTTTopicPrefix:       prefix,
		MQTTRetryDelay:        getDurationEnv(EnvMQTTRetryDelay, 5*time.Second),
		MQTTRetryLimit:        uint64(retryLimit),
		HubQueueLimit:         max(getIntEnv(EnvHubQueueLimit, 0), 0),
		HubSendTimeout:        getDurationEnv(EnvHubSendTimeout, 5*time.Second),
		CommandPublishTimeout: getDurationEnv(EnvCommandPublishTimeout, 5*time.Second),
		DeviceVocabularyFile:  getStringEnv(EnvDeviceVocabularyFile, ""),
	}, nil
}

// Topic joins the configured prefix with a topic suffix, e.g. Topic("sensors") = "room_01/sensors".
func (c *Config) Topic(suffix string) string {
	return c.MQTTTopicPrefix + "/" + suffix
}

func (c *Config) Close() error {
	if f, ok := c.LogOutput.(*os.File); ok {
		if f != os.Stdout && f != os.Stderr {
			return f.Close()
		}
	}

	return nil
}

func getStringEnv(key EnvKey, defaultVal string) string {
	val, exists := os.LookupEnv(string(key))
	if !exists {
		return defaultVal
	}

	return val
}

func getBoolEnv(key EnvKey, defaultVal bool) bool {
	val, exists := os.LookupEnv(string(key))
	if !exists {
		return defaultVal
	}

	switch strings.ToLower(val) {
	case "true", "1":
		return true
	default:
		return false
	}
}

func getIntEnv(key EnvKey, defaultVal int) int {
	val, exists := os.LookupEnv(string(key))
	if !exists {
		return defaultVal
	}

	if intVal, err := strconv.Atoi(val); err == nil {
		return intVal
	}

	return defaultVal
}

// getDurationEnv accepts Go duration strings ("750ms", "5s") or a bare number of seconds.
func getDurationEnv(key EnvKey, defaultVal time.Duration) time.Duration {
	val, exists := os.LookupEnv(string(key))
	if !exists {
		return defaultVal
	}

	if d, err := time.ParseDuration(val); err == nil && d >= 0 {
		return d
	}

	if secs, err := strconv.ParseFloat(val, 64); err == nil && secs >= 0 {
		return time.Duration(secs * float64(time.Second))
	}

	return defaultVal
}

func getLogLevelEnv(key EnvKey, defaultVal slog.Leveler) slog.Leveler {
	val, exists := os.LookupEnv(string(key))
	if !exists {
		return defaultVal
	}

	switch strings.ToUpper(val) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	}

	return defaultVal
}
