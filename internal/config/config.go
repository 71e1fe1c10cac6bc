package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"cosmic-coffee/internal/fault"
)

const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config holds all configuration for the storefront
type Config struct {
	Log        LogConfig        `yaml:"log"`
	Server     ServerConfig     `yaml:"server"`
	Redis      RedisConfig      `yaml:"redis"`
	Database   DatabaseConfig   `yaml:"database"`
	RabbitMQ   RabbitMQConfig   `yaml:"rabbitmq"`
	Services   ServicesConfig   `yaml:"services"`
	Orders     OrdersConfig     `yaml:"orders"`
	Menu       MenuConfig       `yaml:"menu"`
	Cart       CartConfig       `yaml:"cart"`
	Middleware MiddlewareConfig `yaml:"middleware"`
	Faults     FaultsConfig     `yaml:"faults"`
	LoadGen    LoadGenConfig    `yaml:"loadgen"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// ServerConfig holds the listening port of each HTTP mode. Port, when set,
// overrides whichever mode is running.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	APIPort         int           `yaml:"api_port"`
	MiddlewarePort  int           `yaml:"middleware_port"`
	CartPort        int           `yaml:"cart_port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// RabbitMQConfig holds RabbitMQ connection configuration
type RabbitMQConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// ServicesConfig holds the base URLs of the collaborators.
type ServicesConfig struct {
	MiddlewareURL string `yaml:"middleware_url"`
	CartURL       string `yaml:"cart_url"`
	APIURL        string `yaml:"api_url"`
}

type OrdersConfig struct {
	Backend      string        `yaml:"backend"`
	TTL          time.Duration `yaml:"ttl"`
	LeaseTTL     time.Duration `yaml:"lease_ttl"`
	StrictStatus bool          `yaml:"strict_status"`
	PurgeEvery   time.Duration `yaml:"purge_every"`
}

type MenuConfig struct {
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// CartConfig covers the cart service and the api's client for it.
type CartConfig struct {
	TTL     time.Duration `yaml:"ttl"`
	Timeout time.Duration `yaml:"timeout"`
}

// MiddlewareConfig configures the client used to reach the middleware service.
type MiddlewareConfig struct {
	Timeout          time.Duration `yaml:"timeout"`
	BreakerThreshold int           `yaml:"breaker_threshold"`
	BreakerCooldown  time.Duration `yaml:"breaker_cooldown"`
}

// FaultsConfig holds the latency/failure policy of every injected call site.
type FaultsConfig struct {
	Enabled     bool         `yaml:"enabled"`
	Menu        fault.Policy `yaml:"menu"`
	Customers   fault.Policy `yaml:"customers"`
	OrdersList  fault.Policy `yaml:"orders_list"`
	OrderCreate fault.Policy `yaml:"order_create"`
	CartAddItem fault.Policy `yaml:"cart_add_item"`
}

type LoadGenConfig struct {
	BaseURL       string        `yaml:"base_url"`
	RequestRate   int           `yaml:"request_rate"`
	StatsInterval time.Duration `yaml:"stats_interval"`
}

// Default returns the configuration used when no file or environment says otherwise.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Server: ServerConfig{
			APIPort:         3001,
			MiddlewarePort:  3002,
			CartPort:        3003,
			ShutdownTimeout: 10 * time.Second,
		},
		Redis: RedisConfig{URL: "redis://localhost:6379"},
		RabbitMQ: RabbitMQConfig{
			Port: 5672,
		},
		Database: DatabaseConfig{
			Port: 5432,
		},
		Services: ServicesConfig{
			MiddlewareURL: "http://localhost:3002",
			CartURL:       "http://localhost:3003",
			APIURL:        "http://localhost:3001",
		},
		Orders: OrdersConfig{
			Backend:      BackendRedis,
			TTL:          time.Hour,
			LeaseTTL:     30 * time.Second,
			StrictStatus: true,
			PurgeEvery:   5 * time.Minute,
		},
		Menu: MenuConfig{CacheTTL: 5 * time.Minute},
		Cart: CartConfig{TTL: time.Hour, Timeout: 5 * time.Second},
		Middleware: MiddlewareConfig{
			Timeout:          5 * time.Second,
			BreakerThreshold: 5,
			BreakerCooldown:  30 * time.Second,
		},
		Faults: FaultsConfig{
			Enabled: true,
			Menu: fault.Policy{
				MinLatency:  50 * time.Millisecond,
				MaxLatency:  150 * time.Millisecond,
				FailureRate: 0.05,
				Message:     "simulated menu fetch error",
			},
			Customers: fault.Policy{
				MinLatency: 20 * time.Millisecond,
				MaxLatency: 70 * time.Millisecond,
			},
			OrdersList: fault.Policy{
				MinLatency: 30 * time.Millisecond,
				MaxLatency: 130 * time.Millisecond,
			},
			OrderCreate: fault.Policy{
				MinLatency:  100 * time.Millisecond,
				MaxLatency:  300 * time.Millisecond,
				FailureRate: 0.03,
				Message:     "simulated order processing error",
			},
		},
		LoadGen: LoadGenConfig{
			BaseURL:       "http://localhost:3001",
			RequestRate:   10,
			StatsInterval: 30 * time.Second,
		},
	}
}

// Load reads configuration from a YAML file on top of the defaults, then applies
// environment overrides. A missing file is not an error.
func Load(filename string) (*Config, error) {
	cfg := Default()

	if filename != "" {
		data, err := os.ReadFile(filename)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", filename, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.nameFaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Redis.URL = getEnv("REDIS_URL", c.Redis.URL)
	c.Database.URL = getEnv("DATABASE_URL", c.Database.URL)
	c.RabbitMQ.URL = getEnv("RABBITMQ_URL", c.RabbitMQ.URL)
	c.Services.MiddlewareURL = getEnv("MIDDLEWARE_URL", c.Services.MiddlewareURL)
	c.Services.CartURL = getEnv("CART_URL", c.Services.CartURL)
	c.Services.APIURL = getEnv("API_URL", c.Services.APIURL)
	c.LoadGen.BaseURL = getEnv("API_URL", c.LoadGen.BaseURL)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Orders.Backend = getEnv("STORE_BACKEND", c.Orders.Backend)

	var err error
	if c.Server.Port, err = getEnvInt("PORT", c.Server.Port); err != nil {
		return err
	}
	if c.LoadGen.RequestRate, err = getEnvInt("REQUEST_RATE", c.LoadGen.RequestRate); err != nil {
		return err
	}
	return nil
}

func (c *Config) nameFaults() {
	c.Faults.Menu = c.Faults.Menu.Named("menu")
	c.Faults.Customers = c.Faults.Customers.Named("customers")
	c.Faults.OrdersList = c.Faults.OrdersList.Named("orders_list")
	c.Faults.OrderCreate = c.Faults.OrderCreate.Named("order_create")
	c.Faults.CartAddItem = c.Faults.CartAddItem.Named("cart_add_item")
}

// Validate rejects settings no mode can run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Orders.Backend {
	case BackendRedis:
	case BackendPostgres:
		if c.Database.URL == "" && c.Database.Host == "" {
			errs = append(errs, errors.New("orders.backend postgres needs database.url or database.host"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown orders.backend %q", c.Orders.Backend))
	}

	durations := map[string]time.Duration{
		"orders.ttl":         c.Orders.TTL,
		"orders.lease_ttl":   c.Orders.LeaseTTL,
		"menu.cache_ttl":     c.Menu.CacheTTL,
		"cart.ttl":           c.Cart.TTL,
		"cart.timeout":       c.Cart.Timeout,
		"middleware.timeout": c.Middleware.Timeout,
	}
	for name, d := range durations {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}

	for _, p := range []fault.Policy{c.Faults.Menu, c.Faults.Customers, c.Faults.OrdersList, c.Faults.OrderCreate, c.Faults.CartAddItem} {
		if err := p.Validate(); err != nil {
			errs = append(errs, err)
		}
	}

	if c.LoadGen.RequestRate < 0 {
		errs = append(errs, errors.New("loadgen.request_rate must not be negative"))
	}

	return errors.Join(errs...)
}

// PortFor returns the port a given mode should listen on.
func (c *Config) PortFor(mode string) int {
	if c.Server.Port != 0 {
		return c.Server.Port
	}
	switch mode {
	case "middleware":
		return c.Server.MiddlewarePort
	case "cart":
		return c.Server.CartPort
	default:
		return c.Server.APIPort
	}
}

// DatabaseURL returns a PostgreSQL connection URL
func (c *Config) DatabaseURL() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User, c.Database.Password, c.Database.Host, c.Database.Port, c.Database.Database)
}

// RabbitMQEnabled reports whether a broker is configured at all.
func (c *Config) RabbitMQEnabled() bool {
	return c.RabbitMQ.URL != "" || c.RabbitMQ.Host != ""
}

// RabbitMQURL returns an AMQP connection URL
func (c *Config) RabbitMQURL() string {
	if c.RabbitMQ.URL != "" {
		return c.RabbitMQ.URL
	}
	return fmt.Sprintf("amqp://%s:%s@%s:%d/",
		c.RabbitMQ.User, c.RabbitMQ.Password, c.RabbitMQ.Host, c.RabbitMQ.Port)
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	return n, nil
}
