package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverBadger   = "badger"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Env        string     `yaml:"env"`
	HTTPServer HTTPServer `yaml:"http_server"`
	App        App        `yaml:"app"`
	Storage    Storage    `yaml:"storage"`
	Postgres   Postgres   `yaml:"postgres"`
	Redis      Redis      `yaml:"redis"`
	Badger     Badger     `yaml:"badger"`
}

type HTTPServer struct {
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
	CertFile       string        `yaml:"cert_file"`
	KeyFile        string        `yaml:"key_file"`
}

var defaultHTTPServer = HTTPServer{
	Port:           8080,
	ReadTimeout:    5 * time.Second,
	WriteTimeout:   10 * time.Second,
	IdleTimeout:    time.Minute,
	MaxHeaderBytes: 1 << 20,
}

func (s *HTTPServer) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// TLS reports whether both a certificate and a key are configured.
func (s *HTTPServer) TLS() bool {
	return s.CertFile != "" && s.KeyFile != ""
}

// App holds the settings of the shortener itself.
type App struct {
	// TableName names the postgres table, or the key prefix of the
	// redis and badger stores.
	TableName string `yaml:"table_name"`
	// NotFoundDestination receives unknown short links with 303. Empty
	// means answer 404.
	NotFoundDestination string        `yaml:"not_found_destination"`
	APIBaseURL          string        `yaml:"api_base_url"`
	ServiceBaseURL      string        `yaml:"service_base_url"`
	RequireSSL          bool          `yaml:"require_ssl"`
	SuggestLength       int           `yaml:"suggest_length"`
	MaxSuggestLength    int           `yaml:"max_suggest_length"`
	HitTimeout          time.Duration `yaml:"hit_timeout"`
}

var defaultApp = App{
	TableName:        "shortcodes",
	APIBaseURL:       "http://localhost",
	ServiceBaseURL:   "http://change.me",
	RequireSSL:       true,
	SuggestLength:    6,
	MaxSuggestLength: 32,
	HitTimeout:       5 * time.Second,
}

type Storage struct {
	Driver         string `yaml:"driver"`
	RunMigrations  bool   `yaml:"run_migrations"`
	MigrationsPath string `yaml:"migrations_path"`
}

var defaultStorage = Storage{
	Driver:         DriverMemory,
	RunMigrations:  true,
	MigrationsPath: "file://migrations",
}

type Postgres struct {
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	DB              string        `yaml:"db"`
	SSLMode         string        `yaml:"sslmode"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
}

var defaultPostgres = Postgres{
	Host:            "localhost",
	Port:            5432,
	SSLMode:         "disable",
	ConnMaxIdleTime: 5 * time.Minute,
	ConnMaxLifetime: 30 * time.Minute,
	MaxIdleConns:    5,
	MaxOpenConns:    25,
}

func (p *Postgres) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DB, p.SSLMode)
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

var defaultRedis = Redis{
	Addr: "localhost:6379",
}

type Badger struct {
	Dir      string `yaml:"dir"`
	InMemory bool   `yaml:"in_memory"`
}

var defaultBadger = Badger{
	Dir: "data/badger",
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	var cfg Config
	setDefaults(&cfg)
	return &cfg
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to open config file: %w", op, err)
		}
		defer f.Close()

		if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
			return nil, fmt.Errorf("%s: failed to decode config file: %w", op, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return cfg, nil
}

func setDefaults(cfg *Config) {
	cfg.Env = EnvDev
	cfg.HTTPServer = defaultHTTPServer
	cfg.App = defaultApp
	cfg.Storage = defaultStorage
	cfg.Postgres = defaultPostgres
	cfg.Redis = defaultRedis
	cfg.Badger = defaultBadger
}

// envKeys maps environment variables to config paths. The unprefixed names
// are kept for existing deployments.
var envKeys = map[string]string{
	"DB_TABLE_NAME":         "app.table_name",
	"API_BASE_URL":          "app.api_base_url",
	"SERVICE_BASE_URL":      "app.service_base_url",
	"NOT_FOUND_DESTINATION": "app.not_found_destination",
	"REQUIRE_SSL":           "app.require_ssl",

	"PETIT_ENV":                "env",
	"PETIT_HTTP_PORT":          "http_server.port",
	"PETIT_HTTP_READ_TIMEOUT":  "http_server.read_timeout",
	"PETIT_HTTP_WRITE_TIMEOUT": "http_server.write_timeout",
	"PETIT_HTTP_IDLE_TIMEOUT":  "http_server.idle_timeout",
	"PETIT_HTTP_CERT_FILE":     "http_server.cert_file",
	"PETIT_HTTP_KEY_FILE":      "http_server.key_file",

	"PETIT_SUGGEST_LENGTH":     "app.suggest_length",
	"PETIT_MAX_SUGGEST_LENGTH": "app.max_suggest_length",
	"PETIT_HIT_TIMEOUT":        "app.hit_timeout",

	"PETIT_STORAGE_DRIVER":  "storage.driver",
	"PETIT_RUN_MIGRATIONS":  "storage.run_migrations",
	"PETIT_MIGRATIONS_PATH": "storage.migrations_path",

	"PETIT_POSTGRES_USER":     "postgres.user",
	"PETIT_POSTGRES_PASSWORD": "postgres.password",
	"PETIT_POSTGRES_HOST":     "postgres.host",
	"PETIT_POSTGRES_PORT":     "postgres.port",
	"PETIT_POSTGRES_DB":       "postgres.db",
	"PETIT_POSTGRES_SSLMODE":  "postgres.sslmode",

	"PETIT_REDIS_ADDR":     "redis.addr",
	"PETIT_REDIS_PASSWORD": "redis.password",
	"PETIT_REDIS_DB":       "redis.db",

	"PETIT_BADGER_DIR":       "badger.dir",
	"PETIT_BADGER_IN_MEMORY": "badger.in_memory",
}

// envValue maps one environment variable to its config path and value.
// Unknown variables map to an empty path and are skipped.
func envValue(key, value string) (string, any) {
	path, ok := envKeys[strings.ToUpper(key)]
	if !ok {
		return "", nil
	}

	// Anything but the literal "false" keeps the SSL requirement on.
	if path == "app.require_ssl" {
		return path, value != "false"
	}

	return path, value
}

func applyEnv(cfg *Config) error {
	k := koanf.New(".")

	if err := k.Load(env.ProviderWithValue("", ".", envValue), nil); err != nil {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return fmt.Errorf("failed to apply environment variables: %w", err)
	}

	return nil
}

// Validate reports settings the service cannot start with.
func (c *Config) Validate() error {
	drivers := []string{DriverMemory, DriverPostgres, DriverRedis, DriverBadger}
	if !slices.Contains(drivers, c.Storage.Driver) {
		return fmt.Errorf("%w: unknown storage driver %q", ErrInvalidConfig, c.Storage.Driver)
	}

	if strings.TrimSpace(c.App.TableName) == "" {
		return fmt.Errorf("%w: table name is empty", ErrInvalidConfig)
	}

	if c.App.SuggestLength < 1 {
		return fmt.Errorf("%w: suggest length must be positive", ErrInvalidConfig)
	}

	if c.App.MaxSuggestLength < c.App.SuggestLength {
		return fmt.Errorf("%w: max suggest length is below suggest length", ErrInvalidConfig)
	}

	return nil
}
