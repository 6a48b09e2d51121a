package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ilyakaznacheev/cleanenv"
)

// Duration parses "10s", "5m" or a bare number of seconds (e.g. "10" -> 10s),
// from the environment as well as from TOML.
type Duration time.Duration

// SetValue implements cleanenv.Setter.
func (d *Duration) SetValue(s string) error {
	v, err := parseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	return d.SetValue(string(text))
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	// Strip optional surrounding quotes: "10s" or '10s'
	if len(s) >= 2 && ((s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'')) {
		s = s[1 : len(s)-1]
	}

	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("duration must be like 10s, 5m or a number of seconds: %w", err)
	}
	return d, nil
}

const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"

	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

type Config struct {
	App       AppConfig       `toml:"app"`
	HTTP      HTTPConfig      `toml:"http"`
	Store     StoreConfig     `toml:"store"`
	Import    ImportConfig    `toml:"import"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
}

type AppConfig struct {
	LogLevel string `toml:"log_level" env:"LOG_LEVEL" env-default:"info"`
}

type HTTPConfig struct {
	Addr           string   `toml:"addr" env:"HTTP_ADDR" env-default:":8080"`
	ReadTimeout    Duration `toml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout   Duration `toml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"10s"`
	IdleTimeout    Duration `toml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	HandlerTimeout Duration `toml:"handler_timeout" env:"HTTP_HANDLER_TIMEOUT" env-default:"15s"`
	// Comma separated; "*" allows any origin.
	CORSOrigins []string `toml:"cors_origins" env:"CORS_ALLOWED_ORIGINS" env-default:"*" env-separator:","`
}

type StoreConfig struct {
	Driver     string `toml:"driver" env:"STORE_DRIVER" env-default:"file"`
	Path       string `toml:"path" env:"STORE_PATH" env-default:"db.json"`
	SQLitePath string `toml:"sqlite_path" env:"SQLITE_PATH" env-default:"data/tasks.db"`
}

type ImportConfig struct {
	CSVPath string `toml:"csv_path" env:"IMPORT_CSV_PATH" env-default:"tasks.csv"`
}

type TelemetryConfig struct {
	Exporter    string `toml:"exporter" env:"OTEL_EXPORTER" env-default:"none"`
	Endpoint    string `toml:"endpoint" env:"OTEL_ENDPOINT" env-default:"localhost:4318"`
	ServiceName string `toml:"service_name" env:"OTEL_SERVICE_NAME" env-default:"tasks-api"`
}

type RateLimitConfig struct {
	// 0 disables rate limiting.
	RPS   float64 `toml:"rps" env:"RATE_LIMIT_RPS" env-default:"0"`
	Burst int     `toml:"burst" env:"RATE_LIMIT_BURST" env-default:"20"`
}

// Load reads the optional TOML file at path, then the environment on top of
// it. Defaults only fill fields that are still empty.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	switch c.Store.Driver {
	case DriverFile, DriverSQLite:
	default:
		return fmt.Errorf("STORE_DRIVER must be %s or %s, got %q", DriverFile, DriverSQLite, c.Store.Driver)
	}

	c.Telemetry.Exporter = strings.ToLower(strings.TrimSpace(c.Telemetry.Exporter))
	switch c.Telemetry.Exporter {
	case ExporterNone, ExporterStdout, ExporterOTLP:
	default:
		return fmt.Errorf("OTEL_EXPORTER must be one of none, stdout, otlp, got %q", c.Telemetry.Exporter)
	}

	if c.RateLimit.RPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must not be negative")
	}
	return nil
}
