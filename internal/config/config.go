package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/ent0n29/aide/internal/store"
)

const (
	InputConsole = "console"
	InputWS      = "ws"
)

// Config contains all runtime settings for the assistant process.
type Config struct {
	DataDir         string
	StoreDriver     string
	SQLitePath      string
	DatabaseURL     string
	PreferencesPath string

	Input         string
	ListenTimeout time.Duration
	MaxSilence    int
	HistoryWindow int
	AssistantName string

	ReminderPollInterval time.Duration

	HTTPAddr         string
	AllowAnyOrigin   bool
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	LogFormat        string

	OpenWeatherAPIKey string
	OpenWeatherURL    string
	DefaultLocation   string
	NewsAPIKey        string
	NewsAPIURL        string
	WolframAppID      string
	WolframURL        string
	TranslateURL      string
	TranslateAPIKey   string
	WikipediaURL      string
	ScreenshotDir     string
	ScreenshotCmd     string
	ServiceTimeout    time.Duration
}

// LoadEnvFile loads KEY=VALUE pairs from path without overriding variables
// already present in the environment. A missing file is not an error.
func LoadEnvFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	dataDir := envOrDefault("AIDE_DATA_DIR", store.DefaultDataDir())
	cfg := Config{
		DataDir:           dataDir,
		StoreDriver:       strings.ToLower(stringsTrimSpace("AIDE_STORE_DRIVER")),
		SQLitePath:        envOrDefault("AIDE_SQLITE_PATH", filepath.Join(dataDir, "aide.db")),
		DatabaseURL:       stringsTrimSpace("DATABASE_URL"),
		PreferencesPath:   envOrDefault("AIDE_PREFERENCES_PATH", filepath.Join(dataDir, "preferences.yaml")),
		Input:             strings.ToLower(envOrDefault("AIDE_INPUT", InputConsole)),
		ListenTimeout:     10 * time.Second,
		MaxSilence:        3,
		HistoryWindow:     100,
		AssistantName:     envOrDefault("AIDE_ASSISTANT_NAME", "Aide"),
		HTTPAddr:          stringsTrimSpace("AIDE_HTTP_ADDR"),
		ShutdownTimeout:   10 * time.Second,
		MetricsNamespace:  envOrDefault("AIDE_METRICS_NAMESPACE", "aide"),
		LogFormat:         strings.ToLower(envOrDefault("AIDE_LOG_FORMAT", "json")),
		OpenWeatherAPIKey: stringsTrimSpace("OPENWEATHER_API_KEY"),
		OpenWeatherURL:    envOrDefault("OPENWEATHER_URL", "https://api.openweathermap.org"),
		// Used when the utterance names no place.
		DefaultLocation: envOrDefault("AIDE_DEFAULT_LOCATION", "London"),
		NewsAPIKey:      stringsTrimSpace("NEWSAPI_KEY"),
		NewsAPIURL:      envOrDefault("NEWSAPI_URL", "https://newsapi.org"),
		WolframAppID:    stringsTrimSpace("WOLFRAM_APP_ID"),
		WolframURL:      envOrDefault("WOLFRAM_URL", "https://api.wolframalpha.com"),
		TranslateURL:    stringsTrimSpace("AIDE_TRANSLATE_URL"),
		TranslateAPIKey: stringsTrimSpace("AIDE_TRANSLATE_API_KEY"),
		WikipediaURL:    envOrDefault("AIDE_WIKIPEDIA_URL", "https://en.wikipedia.org"),
		ScreenshotDir:   envOrDefault("AIDE_SCREENSHOT_DIR", filepath.Join(dataDir, "screenshots")),
		ScreenshotCmd:   stringsTrimSpace("AIDE_SCREENSHOT_CMD"),
		ServiceTimeout:  5 * time.Second,

		ReminderPollInterval: 60 * time.Second,
	}

	var err error
	cfg.ListenTimeout, err = durationFromEnv("AIDE_LISTEN_TIMEOUT", cfg.ListenTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ReminderPollInterval, err = durationFromEnv("AIDE_REMINDER_POLL_INTERVAL", cfg.ReminderPollInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.ShutdownTimeout, err = durationFromEnv("AIDE_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ServiceTimeout, err = durationFromEnv("AIDE_SERVICE_TIMEOUT", cfg.ServiceTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("AIDE_ALLOW_ANY_ORIGIN", false)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxSilence, err = intFromEnv("AIDE_MAX_SILENCE", cfg.MaxSilence)
	if err != nil {
		return Config{}, err
	}
	cfg.HistoryWindow, err = intFromEnv("AIDE_HISTORY_WINDOW", cfg.HistoryWindow)
	if err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.ReminderPollInterval < time.Second {
		return fmt.Errorf("AIDE_REMINDER_POLL_INTERVAL must be at least 1s")
	}
	if c.ListenTimeout <= 0 {
		return fmt.Errorf("AIDE_LISTEN_TIMEOUT must be positive")
	}
	if c.ServiceTimeout <= 0 {
		return fmt.Errorf("AIDE_SERVICE_TIMEOUT must be positive")
	}
	if c.MaxSilence < 1 {
		return fmt.Errorf("AIDE_MAX_SILENCE must be >= 1")
	}
	if c.HistoryWindow < 1 {
		return fmt.Errorf("AIDE_HISTORY_WINDOW must be >= 1")
	}
	switch c.StoreDriver {
	case "", store.DriverSQLite, store.DriverMemory:
	case store.DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("AIDE_STORE_DRIVER=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("invalid AIDE_STORE_DRIVER: %q (expected sqlite|postgres|memory)", c.StoreDriver)
	}
	switch c.Input {
	case InputConsole, InputWS:
	default:
		return fmt.Errorf("invalid AIDE_INPUT: %q (expected console|ws)", c.Input)
	}
	if c.Input == InputWS && c.HTTPAddr == "" {
		return fmt.Errorf("AIDE_INPUT=ws requires AIDE_HTTP_ADDR")
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("invalid AIDE_LOG_FORMAT: %q (expected json|console)", c.LogFormat)
	}
	return nil
}

// StoreOptions maps the config onto store.NewStore options.
func (c Config) StoreOptions() store.Options {
	return store.Options{
		Driver:      c.StoreDriver,
		SQLitePath:  c.SQLitePath,
		DatabaseURL: c.DatabaseURL,
	}
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s parse error: %w", key, err)
	}
	return b, nil
}
