package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/example/court-reservations/internal/scheduler"
)

// Store drivers accepted by COURT_STORE_DRIVER.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config captures environment driven configuration values for the reservation service.
type Config struct {
	HTTPPort        int
	StoreDriver     string
	SQLitePath      string
	PostgresURL     string
	Court           Court
	AdminTokenHash  string
	AuditLogPath    string
	AuditExportCron string
	AuditExportPath string
	LogLevel        string
	LogFormat       string
}

// Court holds the booking rules of the court.
type Court struct {
	Name          string
	Timezone      string
	OpenHour      int
	LastSlotHour  int
	BookingBuffer time.Duration
	HorizonDays   int
	PendingTTL    time.Duration
}

// Location resolves the court timezone.
func (c Court) Location() (*time.Location, error) {
	return scheduler.LoadLocation(c.Timezone)
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		HTTPPort:     8080,
		StoreDriver:  DriverSQLite,
		SQLitePath:   "court_reservations.db",
		AuditLogPath: "reservations.txt",
		LogLevel:     "info",
		LogFormat:    "json",
		Court: Court{
			Timezone:      scheduler.DefaultTimezone,
			OpenHour:      scheduler.DefaultOpenHour,
			LastSlotHour:  scheduler.DefaultLastHour,
			BookingBuffer: 5 * time.Minute,
			HorizonDays:   7,
			PendingTTL:    30 * time.Minute,
		},
	}
}

// Load parses configuration values from the current process environment.
func Load() (Config, error) {
	return LoadWithFile("")
}

// LoadWithFile loads an optional .env file into the environment before parsing it.
// Variables already present in the environment win over the file. A missing file is
// not an error.
//
// Precedence is defaults, then the court file named by COURT_CONFIG_FILE, then
// individual environment variables.
func LoadWithFile(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	cfg := Defaults()

	if path := strings.TrimSpace(os.Getenv("COURT_CONFIG_FILE")); path != "" {
		file, err := LoadCourtFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := file.apply(&cfg.Court); err != nil {
			return Config{}, fmt.Errorf("court file %s: %w", path, err)
		}
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 4)

	intVar := func(key string, dst *int, valid func(int) bool) {
		value := strings.TrimSpace(os.Getenv(key))
		if value == "" {
			return
		}
		n, err := strconv.Atoi(value)
		if err != nil || !valid(n) {
			invalid = append(invalid, key)
			return
		}
		*dst = n
	}
	durationVar := func(key string, dst *time.Duration, valid func(time.Duration) bool) {
		value := strings.TrimSpace(os.Getenv(key))
		if value == "" {
			return
		}
		d, err := time.ParseDuration(value)
		if err != nil || !valid(d) {
			invalid = append(invalid, key)
			return
		}
		*dst = d
	}
	stringVar := func(key string, dst *string) {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			*dst = value
		}
	}

	intVar("COURT_HTTP_PORT", &cfg.HTTPPort, func(n int) bool { return n > 0 && n <= 65535 })

	stringVar("COURT_STORE_DRIVER", &cfg.StoreDriver)
	cfg.StoreDriver = strings.ToLower(cfg.StoreDriver)
	switch cfg.StoreDriver {
	case DriverSQLite, DriverPostgres, DriverMemory:
	default:
		invalid = append(invalid, "COURT_STORE_DRIVER")
	}

	stringVar("COURT_SQLITE_PATH", &cfg.SQLitePath)
	stringVar("COURT_POSTGRES_URL", &cfg.PostgresURL)
	if cfg.StoreDriver == DriverPostgres && cfg.PostgresURL == "" {
		missing = append(missing, "COURT_POSTGRES_URL")
	}

	stringVar("COURT_NAME", &cfg.Court.Name)
	stringVar("COURT_TIMEZONE", &cfg.Court.Timezone)
	if _, err := cfg.Court.Location(); err != nil {
		invalid = append(invalid, "COURT_TIMEZONE")
	}

	validHour := func(n int) bool { return n >= 0 && n <= 23 }
	intVar("COURT_OPEN_HOUR", &cfg.Court.OpenHour, validHour)
	intVar("COURT_LAST_SLOT_HOUR", &cfg.Court.LastSlotHour, validHour)
	if cfg.Court.OpenHour > cfg.Court.LastSlotHour {
		invalid = append(invalid, "COURT_LAST_SLOT_HOUR")
	}

	durationVar("COURT_BOOKING_BUFFER", &cfg.Court.BookingBuffer, func(d time.Duration) bool { return d >= 0 })
	intVar("COURT_HORIZON_DAYS", &cfg.Court.HorizonDays, func(n int) bool { return n >= 0 })
	durationVar("COURT_PENDING_TTL", &cfg.Court.PendingTTL, func(d time.Duration) bool { return d > 0 })

	stringVar("COURT_ADMIN_TOKEN_HASH", &cfg.AdminTokenHash)
	if value, ok := os.LookupEnv("COURT_AUDIT_LOG_PATH"); ok {
		cfg.AuditLogPath = strings.TrimSpace(value)
	}

	stringVar("COURT_AUDIT_EXPORT_CRON", &cfg.AuditExportCron)
	stringVar("COURT_AUDIT_EXPORT_PATH", &cfg.AuditExportPath)
	if (cfg.AuditExportCron == "") != (cfg.AuditExportPath == "") {
		if cfg.AuditExportCron == "" {
			missing = append(missing, "COURT_AUDIT_EXPORT_CRON")
		} else {
			missing = append(missing, "COURT_AUDIT_EXPORT_PATH")
		}
	}

	stringVar("COURT_LOG_LEVEL", &cfg.LogLevel)
	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		invalid = append(invalid, "COURT_LOG_LEVEL")
	}
	stringVar("COURT_LOG_FORMAT", &cfg.LogFormat)
	switch strings.ToLower(cfg.LogFormat) {
	case "json", "text":
	default:
		invalid = append(invalid, "COURT_LOG_FORMAT")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables are not set: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// Addr returns the HTTP listen address.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
