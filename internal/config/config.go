package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

type HistoryBackend string

const (
	HistoryMemory   HistoryBackend = "memory"
	HistorySQLite   HistoryBackend = "sqlite"
	HistoryPostgres HistoryBackend = "postgres"
	HistoryRedis    HistoryBackend = "redis"
	HistoryDynamoDB HistoryBackend = "dynamodb"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	AI            AIConfig
	Dataset       DatasetConfig
	History       HistoryConfig
	ObjectStore   ObjectStoreConfig
	Chat          ChatConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type AIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

type DatasetConfig struct {
	Path            string
	Locator         string
	ObjectKey       string
	CacheDir        string
	RefreshInterval time.Duration
	RowLimit        int
}

type HistoryConfig struct {
	Backend         HistoryBackend
	ContextTurns    int
	SQLitePath      string
	PostgresDSN     string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	RedisKeyPrefix  string
	DynamoDBTable   string
	TTL             time.Duration
}

type ObjectStoreConfig struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

type ChatConfig struct {
	MaxQuestionLength int
	Timezone          string
	// DefaultLanguage answers questions whose language cannot be told apart.
	DefaultLanguage string
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("PDNCHAT_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid PDNCHAT_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	var backend string
	appliers := []func() error{
		func() error { return applyString(lookup, "PDNCHAT_SERVICE_NAME", &cfg.Service.Name) },
		func() error { return applyString(lookup, "PDNCHAT_HTTP_ADDR", &cfg.HTTP.Address) },
		func() error { return applyDuration(lookup, "PDNCHAT_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout) },
		func() error { return applyDuration(lookup, "PDNCHAT_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout) },
		func() error { return applyDuration(lookup, "PDNCHAT_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout) },
		func() error { return applyString(lookup, "PDNCHAT_AI_BASE_URL", &cfg.AI.BaseURL) },
		func() error { return applyString(lookup, "PDNCHAT_AI_API_KEY", &cfg.AI.APIKey) },
		func() error { return applyString(lookup, "PDNCHAT_AI_MODEL", &cfg.AI.Model) },
		func() error { return applyFloat(lookup, "PDNCHAT_AI_TEMPERATURE", &cfg.AI.Temperature) },
		func() error { return applyDuration(lookup, "PDNCHAT_AI_TIMEOUT", &cfg.AI.Timeout) },
		func() error { return applyString(lookup, "PDNCHAT_DATASET_PATH", &cfg.Dataset.Path) },
		func() error { return applyString(lookup, "PDNCHAT_DATASET_LOCATOR", &cfg.Dataset.Locator) },
		func() error { return applyString(lookup, "PDNCHAT_DATASET_OBJECT_KEY", &cfg.Dataset.ObjectKey) },
		func() error { return applyString(lookup, "PDNCHAT_DATASET_CACHE_DIR", &cfg.Dataset.CacheDir) },
		func() error {
			return applyDuration(lookup, "PDNCHAT_DATASET_REFRESH_INTERVAL", &cfg.Dataset.RefreshInterval)
		},
		func() error { return applyInt(lookup, "PDNCHAT_QUERY_ROW_LIMIT", &cfg.Dataset.RowLimit) },
		func() error { return applyString(lookup, "PDNCHAT_HISTORY_BACKEND", &backend) },
		func() error { return applyInt(lookup, "PDNCHAT_HISTORY_CONTEXT_TURNS", &cfg.History.ContextTurns) },
		func() error { return applyString(lookup, "PDNCHAT_HISTORY_SQLITE_PATH", &cfg.History.SQLitePath) },
		func() error { return applyString(lookup, "PDNCHAT_HISTORY_POSTGRES_DSN", &cfg.History.PostgresDSN) },
		func() error { return applyInt(lookup, "PDNCHAT_HISTORY_MAX_OPEN_CONNS", &cfg.History.MaxOpenConns) },
		func() error { return applyInt(lookup, "PDNCHAT_HISTORY_MAX_IDLE_CONNS", &cfg.History.MaxIdleConns) },
		func() error {
			return applyDuration(lookup, "PDNCHAT_HISTORY_CONN_MAX_IDLE_TIME", &cfg.History.ConnMaxIdleTime)
		},
		func() error {
			return applyDuration(lookup, "PDNCHAT_HISTORY_CONN_MAX_LIFETIME", &cfg.History.ConnMaxLifetime)
		},
		func() error { return applyString(lookup, "PDNCHAT_HISTORY_REDIS_ADDR", &cfg.History.RedisAddr) },
		func() error { return applyString(lookup, "PDNCHAT_HISTORY_REDIS_PASSWORD", &cfg.History.RedisPassword) },
		func() error { return applyInt(lookup, "PDNCHAT_HISTORY_REDIS_DB", &cfg.History.RedisDB) },
		func() error {
			return applyString(lookup, "PDNCHAT_HISTORY_REDIS_KEY_PREFIX", &cfg.History.RedisKeyPrefix)
		},
		func() error { return applyString(lookup, "PDNCHAT_HISTORY_DYNAMODB_TABLE", &cfg.History.DynamoDBTable) },
		func() error { return applyDuration(lookup, "PDNCHAT_HISTORY_TTL", &cfg.History.TTL) },
		func() error { return applyString(lookup, "PDNCHAT_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint) },
		func() error { return applyString(lookup, "PDNCHAT_OBJECTSTORE_REGION", &cfg.ObjectStore.Region) },
		func() error { return applyString(lookup, "PDNCHAT_OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket) },
		func() error {
			return applyString(lookup, "PDNCHAT_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID)
		},
		func() error {
			return applyString(lookup, "PDNCHAT_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey)
		},
		func() error { return applyBool(lookup, "PDNCHAT_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL) },
		func() error { return applyString(lookup, "PDNCHAT_OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix) },
		func() error {
			return applyBool(lookup, "PDNCHAT_OBJECTSTORE_AUTO_CREATE_BUCKET", &cfg.ObjectStore.AutoCreateBucket)
		},
		func() error { return applyInt(lookup, "PDNCHAT_CHAT_MAX_QUESTION_LENGTH", &cfg.Chat.MaxQuestionLength) },
		func() error { return applyString(lookup, "PDNCHAT_CHAT_TIMEZONE", &cfg.Chat.Timezone) },
		func() error { return applyString(lookup, "PDNCHAT_CHAT_DEFAULT_LANGUAGE", &cfg.Chat.DefaultLanguage) },
		func() error { return applyBool(lookup, "PDNCHAT_LOG_JSON", &cfg.Observability.LogJSON) },
		func() error { return applyLogLevel(lookup, "PDNCHAT_LOG_LEVEL", &cfg.Observability.LogLevel) },
	}
	for _, apply := range appliers {
		if err := apply(); err != nil {
			return Config{}, err
		}
	}

	if backend != "" {
		cfg.History.Backend = HistoryBackend(strings.ToLower(backend))
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Service.Name == "" {
		return fmt.Errorf("service name is required")
	}
	if c.HTTP.Address == "" {
		return fmt.Errorf("http address is required")
	}
	if c.History.ContextTurns <= 0 {
		return fmt.Errorf("invalid PDNCHAT_HISTORY_CONTEXT_TURNS: must be > 0")
	}
	if c.Dataset.RowLimit < 0 {
		return fmt.Errorf("invalid PDNCHAT_QUERY_ROW_LIMIT: must be >= 0")
	}
	if _, err := time.LoadLocation(c.Chat.Timezone); err != nil {
		return fmt.Errorf("invalid PDNCHAT_CHAT_TIMEZONE: %w", err)
	}
	if c.Chat.MaxQuestionLength <= 0 {
		return fmt.Errorf("invalid PDNCHAT_CHAT_MAX_QUESTION_LENGTH: must be > 0")
	}
	switch c.Chat.DefaultLanguage {
	case "en", "ms":
	default:
		return fmt.Errorf("invalid PDNCHAT_CHAT_DEFAULT_LANGUAGE: %q (want en or ms)", c.Chat.DefaultLanguage)
	}
	switch c.History.Backend {
	case HistoryMemory:
	case HistorySQLite:
		if c.History.SQLitePath == "" {
			return fmt.Errorf("PDNCHAT_HISTORY_SQLITE_PATH is required for sqlite history")
		}
	case HistoryPostgres:
		if c.History.PostgresDSN == "" {
			return fmt.Errorf("PDNCHAT_HISTORY_POSTGRES_DSN is required for postgres history")
		}
	case HistoryRedis:
		if c.History.RedisAddr == "" {
			return fmt.Errorf("PDNCHAT_HISTORY_REDIS_ADDR is required for redis history")
		}
	case HistoryDynamoDB:
		if c.History.DynamoDBTable == "" {
			return fmt.Errorf("PDNCHAT_HISTORY_DYNAMODB_TABLE is required for dynamodb history")
		}
	default:
		return fmt.Errorf("invalid PDNCHAT_HISTORY_BACKEND: %q", c.History.Backend)
	}
	return nil
}

// Location returns the time zone used to resolve "today" for questions.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Chat.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "pdnchat-api"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 90 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		AI: AIConfig{
			BaseURL:     "https://models.github.ai/inference",
			Model:       "openai/gpt-5",
			Temperature: 0.1,
			Timeout:     40 * time.Second,
		},
		Dataset: DatasetConfig{
			Path:            "blood_donation_events.csv",
			CacheDir:        os.TempDir(),
			RefreshInterval: 0,
			RowLimit:        200,
		},
		History: HistoryConfig{
			Backend:         HistoryMemory,
			ContextTurns:    5,
			SQLitePath:      "pdnchat-history.db",
			MaxOpenConns:    10,
			MaxIdleConns:    10,
			ConnMaxIdleTime: 5 * time.Minute,
			ConnMaxLifetime: 30 * time.Minute,
			RedisKeyPrefix:  "pdnchat:conv:",
			TTL:             30 * 24 * time.Hour,
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			Bucket:           "pdnchat",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			UseSSL:           false,
			Prefix:           "",
			AutoCreateBucket: true,
		},
		Chat: ChatConfig{
			MaxQuestionLength: 500,
			Timezone:          "Asia/Kuala_Lumpur",
			DefaultLanguage:   "en",
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Observability.LogLevel = slog.LevelWarn
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.ObjectStore.UseSSL = true
		cfg.ObjectStore.AutoCreateBucket = false
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
