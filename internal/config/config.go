// Package config parses the process configuration once at start-up. Values come
// from flags, then METER_READER_* environment variables, then an optional YAML
// file; the unprefixed DATABASE_URL, GEMINI_API_KEY and TELEGRAM_BOT_TOKEN
// variables fill whatever is still empty.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/peterbourgon/ff/v4"
	"gopkg.in/yaml.v3"
)

// EnvVarPrefix prefixes every flag's environment variable
const EnvVarPrefix = "METER_READER"

// Function names served by the Lambda binary
const (
	FunctionReadings = "readings"
	FunctionOCR      = "ocr"
	FunctionNotify   = "notify"
)

// Store backends
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreBolt     = "bolt"
)

// Scanner kinds
const (
	ScannerDemo      = "demo"
	ScannerGemini    = "gemini"
	ScannerOllama    = "ollama"
	ScannerTesseract = "tesseract"
)

// Config holds every setting of both binaries
type Config struct {
	ConfigFile string

	Function string
	Port     int

	LogFormat string
	LogLevel  string

	Store       string
	DatabaseURL string
	Table       string
	SQLitePath  string
	BoltPath    string

	Scanner        string
	GeminiKey      string
	GeminiModel    string
	OllamaURL      string
	OllamaModel    string
	TesseractLangs string

	TelegramToken   string
	TelegramAPIURL  string
	MessageTemplate string

	PhotoDir string

	AuthUser string
	AuthPass string

	ShowVersion bool
}

// Parse reads configuration for the named program from args and the environment
func Parse(name string, args []string) (*Config, error) {
	cfg, fs := newFlagSet(name)

	if err := ff.Parse(fs, args,
		ff.WithEnvVarPrefix(EnvVarPrefix),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ParseYAML),
	); err != nil {
		return nil, err
	}

	cfg.applyFallbacks()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FlagSet returns the flags Parse accepts, for help output
func FlagSet(name string) *ff.FlagSet {
	_, fs := newFlagSet(name)
	return fs
}

func newFlagSet(name string) (*Config, *ff.FlagSet) {
	cfg := &Config{}
	fs := ff.NewFlagSet(name)

	fs.StringVar(&cfg.ConfigFile, 0, "config", "", "YAML config file (optional)")

	fs.StringVar(&cfg.Function, 0, "function", "", "Lambda function to serve: readings, ocr or notify")
	fs.IntVar(&cfg.Port, 0, "port", 8080, "HTTP server port")

	fs.StringVar(&cfg.LogFormat, 0, "log-format", "text", "Log format: text or json")
	fs.StringVar(&cfg.LogLevel, 0, "log-level", "info", "Log level: debug, info, warn or error")

	fs.StringVar(&cfg.Store, 0, "store", StorePostgres, "Readings store: postgres, sqlite or bolt")
	fs.StringVar(&cfg.DatabaseURL, 0, "database-url", "", "Postgres connection string (or DATABASE_URL)")
	fs.StringVar(&cfg.Table, 0, "table", "readings", "Postgres readings table, optionally schema-qualified")
	fs.StringVar(&cfg.SQLitePath, 0, "sqlite-path", "data/meter-reader.db", "SQLite database file")
	fs.StringVar(&cfg.BoltPath, 0, "bolt-path", "data/meter-reader.bolt", "Bolt database file")

	fs.StringVar(&cfg.Scanner, 0, "scanner", ScannerDemo, "Scanner: demo, gemini, ollama or tesseract")
	fs.StringVar(&cfg.GeminiKey, 0, "gemini-key", "", "Google Gemini API key (or GEMINI_API_KEY)")
	fs.StringVar(&cfg.GeminiModel, 0, "gemini-model", "gemini-2.5-flash", "Google Gemini model name")
	fs.StringVar(&cfg.OllamaURL, 0, "ollama-url", "http://localhost:11434", "Ollama API base URL")
	fs.StringVar(&cfg.OllamaModel, 0, "ollama-model", "llava", "Ollama vision model name")
	fs.StringVar(&cfg.TesseractLangs, 0, "tesseract-langs", "eng", "Comma-separated Tesseract languages")

	fs.StringVar(&cfg.TelegramToken, 0, "telegram-token", "", "Telegram bot token (or TELEGRAM_BOT_TOKEN)")
	fs.StringVar(&cfg.TelegramAPIURL, 0, "telegram-api-url", "https://api.telegram.org", "Telegram Bot API base URL")
	fs.StringVar(&cfg.MessageTemplate, 0, "message-template", "", "Notification HTML template (default built in)")

	fs.StringVar(&cfg.PhotoDir, 0, "photo-dir", "", "Directory for uploaded photos; empty disables storage")

	fs.StringVar(&cfg.AuthUser, 0, "auth-user", "", "Basic auth username (optional)")
	fs.StringVar(&cfg.AuthPass, 0, "auth-pass", "", "Basic auth password (optional)")

	fs.BoolVar(&cfg.ShowVersion, 0, "version", "Show version information")

	return cfg, fs
}

func (c *Config) applyFallbacks() {
	fallback := func(v *string, name string) {
		if *v == "" {
			*v = os.Getenv(name)
		}
	}
	fallback(&c.DatabaseURL, "DATABASE_URL")
	fallback(&c.GeminiKey, "GEMINI_API_KEY")
	fallback(&c.TelegramToken, "TELEGRAM_BOT_TOKEN")
}

// Validate checks the enumerated settings
func (c *Config) Validate() error {
	var errs []error
	check := func(name, value string, allowed ...string) {
		if !slices.Contains(allowed, value) {
			errs = append(errs, fmt.Errorf("invalid %s %q (valid: %s)", name, value, strings.Join(allowed, ", ")))
		}
	}
	check("store", c.Store, StorePostgres, StoreSQLite, StoreBolt)
	check("scanner", c.Scanner, ScannerDemo, ScannerGemini, ScannerOllama, ScannerTesseract)
	if c.Function != "" {
		check("function", c.Function, FunctionReadings, FunctionOCR, FunctionNotify)
	}
	return errors.Join(errs...)
}

// Languages splits TesseractLangs
func (c *Config) Languages() []string {
	var langs []string
	for _, l := range strings.Split(c.TesseractLangs, ",") {
		if l = strings.TrimSpace(l); l != "" {
			langs = append(langs, l)
		}
	}
	return langs
}

// ParseYAML reads a flat YAML mapping of flag names to values. Sequences are
// joined with commas.
func ParseYAML(r io.Reader, set func(name, value string) error) error {
	var values map[string]any
	if err := yaml.NewDecoder(r).Decode(&values); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("parsing YAML config: %w", err)
	}

	for name, raw := range values {
		var value string
		switch v := raw.(type) {
		case nil:
			continue
		case map[string]any:
			return fmt.Errorf("config key %q: nested mappings are not supported", name)
		case []any:
			parts := make([]string, 0, len(v))
			for _, item := range v {
				parts = append(parts, fmt.Sprint(item))
			}
			value = strings.Join(parts, ",")
		default:
			value = fmt.Sprint(v)
		}
		if err := set(name, value); err != nil {
			return err
		}
	}
	return nil
}
