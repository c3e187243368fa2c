package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/vladimiradmaev/wellnest/internal/logger"
)

type Config struct {
	Store     StoreConfig
	Redis     RedisConfig
	HTTP      HTTPConfig
	Telegram  TelegramConfig
	AI        AIConfig
	Fitbit    FitbitConfig
	LibreLink LibreLinkConfig
	MQTT      MQTTConfig
	Logger    LoggerConfig

	// DevFallbackOwner is used when a request carries no owner. Tests and
	// local development only; leave empty in production.
	DevFallbackOwner string
}

type StoreConfig struct {
	Driver   string // memory, postgres, mongo or sqlite
	Postgres DBConfig
	Mongo    MongoConfig
	SQLite   SQLiteConfig
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type MongoConfig struct {
	URI      string
	Database string
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type HTTPConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type TelegramConfig struct {
	Token string
	Debug bool
}

type AIConfig struct {
	GeminiAPIKey string
	GeminiModel  string
	OpenAIAPIKey string
	OpenAIModel  string
	Timeout      time.Duration
}

type FitbitConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	APIBase      string
	SyncInterval time.Duration
	Timeout      time.Duration
}

type LibreLinkConfig struct {
	URL      string
	Username string
	Password string
	Timeout  time.Duration
}

type MQTTConfig struct {
	Broker   string
	ClientID string
	Topic    string
	Username string
	Password string
}

type LoggerConfig struct {
	Level      logger.LogLevel
	OutputPath string
	Format     string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func parseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return logger.LevelDebug
	case "info":
		return logger.LevelInfo
	case "warn", "warning":
		return logger.LevelWarn
	case "error":
		return logger.LevelError
	default:
		return logger.LevelInfo
	}
}

// Load reads the configuration from the environment, after loading a .env
// file when one is present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv(), nil
}

// FromEnv builds the configuration from the current environment only.
func FromEnv() *Config {
	return &Config{
		Store: StoreConfig{
			Driver: strings.ToLower(getEnvOrDefault("STORE_DRIVER", "postgres")),
			Postgres: DBConfig{
				Host:     getEnvOrDefault("DB_HOST", "localhost"),
				Port:     getEnvOrDefault("DB_PORT", "5432"),
				User:     getEnvOrDefault("DB_USER", "postgres"),
				Password: getEnvOrDefault("DB_PASSWORD", "postgres"),
				DBName:   getEnvOrDefault("DB_NAME", "wellnest"),
				SSLMode:  getEnvOrDefault("DB_SSLMODE", "disable"),
			},
			Mongo: MongoConfig{
				URI:      getEnvOrDefault("MONGO_URI", "mongodb://localhost:27017/?replicaSet=rs0"),
				Database: getEnvOrDefault("MONGO_DATABASE", "wellnest"),
			},
			SQLite: SQLiteConfig{
				Path: getEnvOrDefault("SQLITE_PATH", "data/wellnest.db"),
			},
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getIntOrDefault("REDIS_DB", 0),
		},
		HTTP: HTTPConfig{
			Addr:            getEnvOrDefault("HTTP_ADDR", ":8080"),
			ReadTimeout:     getDurationOrDefault("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationOrDefault("HTTP_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getDurationOrDefault("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Telegram: TelegramConfig{
			Token: os.Getenv("TELEGRAM_BOT_TOKEN"),
			Debug: getEnvOrDefault("TELEGRAM_DEBUG", "false") == "true",
		},
		AI: AIConfig{
			GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
			GeminiModel:  getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-flash"),
			OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
			OpenAIModel:  getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
			Timeout:      getDurationOrDefault("AI_TIMEOUT", 30*time.Second),
		},
		Fitbit: FitbitConfig{
			ClientID:     os.Getenv("FITBIT_CLIENT_ID"),
			ClientSecret: os.Getenv("FITBIT_CLIENT_SECRET"),
			TokenURL:     getEnvOrDefault("FITBIT_TOKEN_URL", "https://api.fitbit.com/oauth2/token"),
			APIBase:      getEnvOrDefault("FITBIT_API_BASE", "https://api.fitbit.com"),
			SyncInterval: getDurationOrDefault("FITBIT_SYNC_INTERVAL", 0),
			Timeout:      getDurationOrDefault("FITBIT_TIMEOUT", 20*time.Second),
		},
		LibreLink: LibreLinkConfig{
			URL:      os.Getenv("LIBRELINK_URL"),
			Username: os.Getenv("LIBRELINK_USERNAME"),
			Password: os.Getenv("LIBRELINK_PASSWORD"),
			Timeout:  getDurationOrDefault("LIBRELINK_TIMEOUT", 20*time.Second),
		},
		MQTT: MQTTConfig{
			Broker:   os.Getenv("MQTT_BROKER"),
			ClientID: getEnvOrDefault("MQTT_CLIENT_ID", "wellnest-ingest"),
			Topic:    getEnvOrDefault("MQTT_TOPIC", "wellnest/+/cgm"),
			Username: os.Getenv("MQTT_USERNAME"),
			Password: os.Getenv("MQTT_PASSWORD"),
		},
		Logger: LoggerConfig{
			Level:      parseLogLevel(getEnvOrDefault("LOG_LEVEL", "info")),
			OutputPath: getEnvOrDefault("LOG_OUTPUT", "logs/app.log"),
			Format:     getEnvOrDefault("LOG_FORMAT", "json"),
			MaxSizeMB:  getIntOrDefault("LOG_MAX_SIZE_MB", 50),
			MaxBackups: getIntOrDefault("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: getIntOrDefault("LOG_MAX_AGE_DAYS", 30),
		},
		DevFallbackOwner: os.Getenv("DEV_FALLBACK_OWNER"),
	}
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case "memory":
	case "postgres":
		if c.Store.Postgres.Host == "" || c.Store.Postgres.DBName == "" {
			errs = append(errs, errors.New("postgres store requires DB_HOST and DB_NAME"))
		}
	case "mongo":
		if c.Store.Mongo.URI == "" || c.Store.Mongo.Database == "" {
			errs = append(errs, errors.New("mongo store requires MONGO_URI and MONGO_DATABASE"))
		}
	case "sqlite":
		if c.Store.SQLite.Path == "" {
			errs = append(errs, errors.New("sqlite store requires SQLITE_PATH"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver))
	}

	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("HTTP_ADDR is required"))
	}
	if (c.Fitbit.ClientID == "") != (c.Fitbit.ClientSecret == "") {
		errs = append(errs, errors.New("FITBIT_CLIENT_ID and FITBIT_CLIENT_SECRET must be set together"))
	}
	if c.Fitbit.SyncInterval < 0 {
		errs = append(errs, errors.New("FITBIT_SYNC_INTERVAL must not be negative"))
	}
	if c.LibreLink.URL != "" && c.LibreLink.Username == "" {
		errs = append(errs, errors.New("LIBRELINK_USERNAME is required when LIBRELINK_URL is set"))
	}
	switch c.Logger.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.Logger.Format))
	}

	return errors.Join(errs...)
}

// LoggerSettings converts the logger section for logger.InitWithConfig.
func (c *Config) LoggerSettings() logger.Config {
	return logger.Config{
		Level:      c.Logger.Level,
		OutputPath: c.Logger.OutputPath,
		Format:     c.Logger.Format,
		MaxSizeMB:  c.Logger.MaxSizeMB,
		MaxBackups: c.Logger.MaxBackups,
		MaxAgeDays: c.Logger.MaxAgeDays,
	}
}
