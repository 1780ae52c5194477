package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Backend names accepted by DATA_BACKEND.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendSheets = "sheets"
)

var (
	backends  = []string{BackendMemory, BackendSheets, BackendSQLite}
	logLevels = []string{"debug", "info", "warn", "warning", "error"}
)

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int

	// Logging
	LogLevel string

	// Backend selection
	DataBackend   string
	DataDirectory string

	// Database
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleReportSheetName    string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Worker
	SyncBatchSize int
	SyncInterval  time.Duration

	// Consolidated report cache
	ReportCacheSize int
	ReportCacheTTL  time.Duration
}

func Load() *Config {
	cfg := &Config{
		Port:               getEnv("PORT", "8081"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		DataBackend:   getEnv("DATA_BACKEND", BackendMemory),
		DataDirectory: getEnv("DATA_DIRECTORY", "data"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/ausencias.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "ausencias"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "sync_records"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Ausencias"),
		GoogleReportSheetName:    getEnv("GOOGLE_REPORT_SHEET_NAME", "Consolidado"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		SyncBatchSize: getEnvInt("SYNC_BATCH_SIZE", 10),
		SyncInterval:  getEnvDuration("SYNC_INTERVAL", 30*time.Second),

		ReportCacheSize: getEnvInt("REPORT_CACHE_SIZE", 24),
		ReportCacheTTL:  getEnvDuration("REPORT_CACHE_TTL", 10*time.Minute),
	}

	return cfg
}

// HasAMQP reports whether a broker is configured.
func (c *Config) HasAMQP() bool {
	return c.AMQPURL != ""
}

// HasSheets reports whether enough Google Sheets settings exist to open a client.
func (c *Config) HasSheets() bool {
	return c.GoogleSpreadsheetID != "" && (c.GoogleServiceAccountJSON != "" || c.GoogleServiceAccountFile != "")
}

// problems collects validation failures so Validate can report them all at once.
type problems []string

func (p *problems) addf(format string, args ...any) {
	*p = append(*p, fmt.Sprintf(format, args...))
}

// Validate checks every section and returns one error listing all problems.
func (c *Config) Validate() error {
	var p problems
	c.validateServer(&p)
	c.validateBackend(&p)
	c.validateAMQP(&p)
	c.validateSheets(&p)
	c.validateWorker(&p)

	if len(p) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(p, "\n- "))
	}
	return nil
}

func (c *Config) validateServer(p *problems) {
	if port, err := strconv.Atoi(c.Port); err != nil {
		p.addf("invalid port '%s': must be a number", c.Port)
	} else if port < 1 || port > 65535 {
		p.addf("invalid port %d: must be between 1 and 65535", port)
	}
	if c.RateLimitPerMinute < 1 {
		p.addf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute)
	}
	if c.LogLevel != "" && !slices.Contains(logLevels, strings.ToLower(c.LogLevel)) {
		p.addf("invalid log level '%s': must be one of %v", c.LogLevel, logLevels)
	}
	if c.ReportCacheSize < 1 {
		p.addf("invalid report cache size %d: must be at least 1", c.ReportCacheSize)
	}
	if c.ReportCacheTTL <= 0 {
		p.addf("invalid report cache TTL %v: must be positive", c.ReportCacheTTL)
	}
}

func (c *Config) validateBackend(p *problems) {
	if !slices.Contains(backends, c.DataBackend) {
		p.addf("invalid data backend '%s': must be one of %v", c.DataBackend, backends)
	}
	if c.DataBackend == BackendSQLite && c.SQLiteDBPath == "" {
		p.addf("SQLite database path cannot be empty when using sqlite backend")
	}
}

func (c *Config) validateAMQP(p *problems) {
	if c.AMQPURL == "" {
		return
	}
	if u, err := url.Parse(c.AMQPURL); err != nil {
		p.addf("invalid AMQP URL '%s': %v", c.AMQPURL, err)
	} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
		p.addf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", u.Scheme)
	}
	if c.AMQPExchange == "" {
		p.addf("AMQP exchange name cannot be empty when AMQP URL is provided")
	}
	if c.AMQPQueue == "" {
		p.addf("AMQP queue name cannot be empty when AMQP URL is provided")
	}
}

func (c *Config) validateSheets(p *problems) {
	if c.DataBackend == BackendSheets {
		if c.GoogleSpreadsheetID == "" {
			p.addf("Google Spreadsheet ID is required when using sheets backend")
		}
		if c.GoogleSheetName == "" {
			p.addf("Google Sheet name is required when using sheets backend")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
			p.addf("either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for sheets backend")
		}
	}
	if c.GoogleSpreadsheetID != "" && c.GoogleReportSheetName == "" {
		p.addf("Google report sheet name cannot be empty when a spreadsheet is configured")
	}
	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); errors.Is(err, fs.ErrNotExist) {
			p.addf("Google service account file does not exist: %s", c.GoogleServiceAccountFile)
		}
	}
}

func (c *Config) validateWorker(p *problems) {
	if c.SyncBatchSize < 1 {
		p.addf("invalid sync batch size %d: must be at least 1", c.SyncBatchSize)
	} else if c.SyncBatchSize > 1000 {
		p.addf("invalid sync batch size %d: must be at most 1000", c.SyncBatchSize)
	}
	if c.SyncInterval < time.Second {
		p.addf("invalid sync interval %v: must be at least 1 second", c.SyncInterval)
	} else if c.SyncInterval > 24*time.Hour {
		p.addf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
