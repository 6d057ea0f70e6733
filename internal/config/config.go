// Package config defines the configuration contract and handles loading and validating environment configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// Canonical environment variable keys.
	KeyMongoURI            = "MONGO_URI"
	KeyMongoDB             = "MONGO_DB"
	KeyAppEnv              = "APP_ENV"
	KeyLogLevel            = "LOG_LEVEL"
	KeyLogFile             = "LOG_FILE"
	KeyHTTPPort            = "HTTP_PORT"
	KeyExternalAPIFile     = "EXTERNAL_API_FILE"
	KeyPresetsFile         = "PRESETS_FILE"
	KeyAccountGatewayURL   = "ACCOUNT_GATEWAY_URL"
	KeyFanOutWorkers       = "FANOUT_WORKERS"
	KeyTelegramCallTimeout = "TELEGRAM_CALL_TIMEOUT"

	// Allowed environment values.
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// Defaults for optional settings.
	DefaultAppEnv              = EnvProduction
	DefaultLogLevel            = "info"
	DefaultHTTPPort            = 8080
	DefaultExternalAPIFile     = "external_apis.yaml"
	DefaultPresetsFile         = "presets.toml"
	DefaultFanOutWorkers       = 1
	DefaultTelegramCallTimeout = 15 * time.Second

	// Recommended database names by environment.
	DefaultMongoDBProd = "moderation_panel"
	DefaultMongoDBDev  = "moderation_panel_dev"
)

// VarSpec describes a single configuration key.
type VarSpec struct {
	Key         string // environment variable name
	Example     string // human-friendly sample value
	Required    bool   // whether the panel must refuse to start without this value
	Default     string // default when unset (empty when required)
	Description string // what the variable controls
	Notes       string // extra guidance or policies
}

// Contract enumerates the authoritative configuration keys for the panel.
// .env loading is only permitted when APP_ENV=development; production must rely
// on environment variables supplied by the runtime.
var Contract = []VarSpec{
	{
		Key:         KeyMongoURI,
		Example:     "mongodb://localhost:27017",
		Required:    true,
		Description: "MongoDB connection string.",
		Notes:       "Must use the mongodb:// or mongodb+srv:// scheme.",
	},
	{
		Key:         KeyMongoDB,
		Example:     DefaultMongoDBProd + " / " + DefaultMongoDBDev,
		Required:    true,
		Description: "MongoDB database name.",
		Notes:       "Recommended: production=" + DefaultMongoDBProd + ", development=" + DefaultMongoDBDev + ".",
	},
	{
		Key:         KeyAppEnv,
		Example:     EnvDevelopment + " / " + EnvProduction,
		Default:     DefaultAppEnv,
		Description: "Runtime environment; controls log format and dotenv usage.",
		Notes:       "Load .env files only when APP_ENV=" + EnvDevelopment + ".",
	},
	{
		Key:         KeyLogLevel,
		Example:     DefaultLogLevel,
		Default:     DefaultLogLevel,
		Description: "Overrides default log level.",
	},
	{
		Key:         KeyLogFile,
		Example:     "/var/log/panel/panel.log",
		Description: "Optional rotated log file written alongside stdout.",
	},
	{
		Key:         KeyHTTPPort,
		Example:     strconv.Itoa(DefaultHTTPPort),
		Default:     strconv.Itoa(DefaultHTTPPort),
		Description: "HTTP API and health port.",
	},
	{
		Key:         KeyExternalAPIFile,
		Example:     DefaultExternalAPIFile,
		Default:     DefaultExternalAPIFile,
		Description: "YAML file with external API definitions (keys and scopes).",
		Notes:       "Reloaded automatically when the file changes.",
	},
	{
		Key:         KeyPresetsFile,
		Example:     DefaultPresetsFile,
		Default:     DefaultPresetsFile,
		Description: "TOML file holding named user ID presets.",
	},
	{
		Key:         KeyAccountGatewayURL,
		Example:     "http://127.0.0.1:9300",
		Description: "Account gateway used to rejoin chats; empty disables rejoin recovery.",
	},
	{
		Key:         KeyFanOutWorkers,
		Example:     "4",
		Default:     strconv.Itoa(DefaultFanOutWorkers),
		Description: "Number of bot groups processed concurrently during a kick.",
	},
	{
		Key:         KeyTelegramCallTimeout,
		Example:     "15s",
		Default:     DefaultTelegramCallTimeout.String(),
		Description: "Timeout applied to each Telegram Bot API call.",
	},
}

// Config mirrors resolved configuration values after loading.
type Config struct {
	MongoURI            string
	MongoDB             string
	AppEnv              string
	LogLevel            string
	LogFile             string
	HTTPPort            int
	ExternalAPIFile     string
	PresetsFile         string
	AccountGatewayURL   string
	FanOutWorkers       int
	TelegramCallTimeout time.Duration
}

// Load resolves configuration from the environment (with optional dotenv in development).
func Load() (Config, error) {
	appEnv, err := resolveAppEnv()
	if err != nil {
		return Config{}, err
	}

	if err := loadDotEnv(appEnv); err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:              firstNonEmpty(normalizeEnv(os.Getenv(KeyAppEnv)), appEnv),
		MongoURI:            strings.TrimSpace(os.Getenv(KeyMongoURI)),
		MongoDB:             strings.TrimSpace(os.Getenv(KeyMongoDB)),
		LogLevel:            firstNonEmpty(strings.TrimSpace(os.Getenv(KeyLogLevel)), DefaultLogLevel),
		LogFile:             strings.TrimSpace(os.Getenv(KeyLogFile)),
		HTTPPort:            DefaultHTTPPort,
		ExternalAPIFile:     firstNonEmpty(os.Getenv(KeyExternalAPIFile), DefaultExternalAPIFile),
		PresetsFile:         firstNonEmpty(os.Getenv(KeyPresetsFile), DefaultPresetsFile),
		AccountGatewayURL:   strings.TrimRight(strings.TrimSpace(os.Getenv(KeyAccountGatewayURL)), "/"),
		FanOutWorkers:       DefaultFanOutWorkers,
		TelegramCallTimeout: DefaultTelegramCallTimeout,
	}

	if err := validateAppEnv(cfg.AppEnv); err != nil {
		return Config{}, err
	}

	missing := make([]string, 0)

	if cfg.MongoURI == "" {
		missing = append(missing, KeyMongoURI)
	}

	if cfg.MongoDB == "" {
		missing = append(missing, KeyMongoDB)
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variable(s): %s", strings.Join(missing, ", "))
	}

	if !strings.HasPrefix(cfg.MongoURI, "mongodb://") && !strings.HasPrefix(cfg.MongoURI, "mongodb+srv://") {
		return Config{}, fmt.Errorf("invalid %s: must start with mongodb:// or mongodb+srv://", KeyMongoURI)
	}

	if cfg.AccountGatewayURL != "" {
		parsed, parseErr := url.Parse(cfg.AccountGatewayURL)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyAccountGatewayURL, parseErr)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return Config{}, fmt.Errorf("invalid %s: scheme must be http or https", KeyAccountGatewayURL)
		}
	}

	if port, ok, parseErr := positiveInt(KeyHTTPPort); parseErr != nil {
		return Config{}, parseErr
	} else if ok {
		cfg.HTTPPort = port
	}

	if workers, ok, parseErr := positiveInt(KeyFanOutWorkers); parseErr != nil {
		return Config{}, parseErr
	} else if ok {
		cfg.FanOutWorkers = workers
	}

	timeoutRaw := strings.TrimSpace(os.Getenv(KeyTelegramCallTimeout))
	if timeoutRaw != "" {
		timeout, parseErr := time.ParseDuration(timeoutRaw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyTelegramCallTimeout, parseErr)
		}
		if timeout <= 0 {
			return Config{}, fmt.Errorf("%s must be greater than 0", KeyTelegramCallTimeout)
		}
		cfg.TelegramCallTimeout = timeout
	}

	return cfg, nil
}

// IsDevelopment reports if APP_ENV is development.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

// RejoinEnabled reports whether an account gateway is configured.
func (c Config) RejoinEnabled() bool {
	return c.AccountGatewayURL != ""
}

// FormatRedacted renders the configuration for diagnostics with secrets masked.
func FormatRedacted(cfg Config) string {
	gateway := redactURL(cfg.AccountGatewayURL)
	if gateway == "" {
		gateway = "(disabled)"
	}

	logFile := cfg.LogFile
	if logFile == "" {
		logFile = "(stdout only)"
	}

	lines := []string{
		"app_env: " + cfg.AppEnv,
		"log_level: " + cfg.LogLevel,
		"log_file: " + logFile,
		"mongo_uri: " + redactURL(cfg.MongoURI),
		"mongo_db: " + cfg.MongoDB,
		"http_port: " + strconv.Itoa(cfg.HTTPPort),
		"external_api_file: " + cfg.ExternalAPIFile,
		"presets_file: " + cfg.PresetsFile,
		"account_gateway_url: " + gateway,
		"fanout_workers: " + strconv.Itoa(cfg.FanOutWorkers),
		"telegram_call_timeout: " + cfg.TelegramCallTimeout.String(),
	}

	return strings.Join(lines, "\n")
}

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "(unparseable)"
	}
	parsed.User = nil

	return parsed.String()
}

func positiveInt(key string) (int, bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, false, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("invalid %s: %w", key, err)
	}
	if value <= 0 {
		return 0, false, fmt.Errorf("%s must be greater than 0", key)
	}

	return value, true, nil
}

func resolveAppEnv() (string, error) {
	if explicit := normalizeEnv(os.Getenv(KeyAppEnv)); explicit != "" {
		return explicit, nil
	}

	dotEnvValues, err := godotenv.Read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultAppEnv, nil
		}
		return "", fmt.Errorf("read .env: %w", err)
	}

	if envFromFile := normalizeEnv(dotEnvValues[KeyAppEnv]); envFromFile != "" {
		return envFromFile, nil
	}

	return DefaultAppEnv, nil
}

func loadDotEnv(appEnv string) error {
	if appEnv != EnvDevelopment {
		return nil
	}

	if err := godotenv.Load(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load .env: %w", err)
	}

	return nil
}

func validateAppEnv(appEnv string) error {
	if appEnv == EnvDevelopment || appEnv == EnvProduction {
		return nil
	}

	return fmt.Errorf("invalid %s: must be %q or %q", KeyAppEnv, EnvDevelopment, EnvProduction)
}

func normalizeEnv(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func firstNonEmpty(values ...string) string {
	for _, val := range values {
		if strings.TrimSpace(val) != "" {
			return strings.TrimSpace(val)
		}
	}
	return ""
}
