package config

import (
	"fmt"     // Error formatting
	"os"      // For environment variables
	"strconv" // For string to int conversion
	"time"    // Durations

	"github.com/joho/godotenv" // For loading .env files
	"gopkg.in/yaml.v3"         // Optional config file
)

// Config holds the application configuration
type Config struct {
	AppPort      string `yaml:"app_port"`      // Application port
	StoreBackend string `yaml:"store_backend"` // mysql, sqlite or memory
	DBUser       string `yaml:"db_user"`       // Database user
	DBPassword   string `yaml:"db_password"`   // Database password
	DBHost       string `yaml:"db_host"`       // Database host
	DBPort       string `yaml:"db_port"`       // Database port
	DBName       string `yaml:"db_name"`       // Database name
	SQLitePath   string `yaml:"sqlite_path"`   // Embedded store file
	JWTSecret    string `yaml:"jwt_secret"`    // JWT secret key
	RedisAddr    string `yaml:"redis_addr"`    // Redis server address
	RedisPass    string `yaml:"redis_pass"`    // Redis password
	RedisDB      int    `yaml:"redis_db"`      // Redis database number
	IsProd       bool   `yaml:"is_prod"`       // Is production environment

	StartingBalance int64 `yaml:"starting_balance"`    // Balance of new accounts
	HistoryLimit    int   `yaml:"history_limit"`       // History entries kept per account
	CoinStackSize   int64 `yaml:"coin_stack_size"`     // Units per deposit call
	SharedStore     bool  `yaml:"ledger_shared_store"` // Bypass the ledger cache
	StockCapacity   int64 `yaml:"shop_stock_capacity"` // Units a shop stock holds, 0 = unbounded

	VoteReward      int64         `yaml:"vote_reward"`       // Coins per vote
	VoteDedupWindow time.Duration `yaml:"vote_dedup_window"` // Repeat votes inside it are rejected
}

// Backends accepted by STORE_BACKEND
const (
	BackendMySQL  = "mysql"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// LoadConfig loads .env, then CONFIG_FILE if set, then environment overrides
func LoadConfig() (*Config, error) {
	_ = godotenv.Load() // Load .env file if present

	cfg := &Config{
		AppPort:         "8080",
		StoreBackend:    BackendMySQL,
		SQLitePath:      "data/coin_economy.db",
		HistoryLimit:    50,
		CoinStackSize:   64,
		StockCapacity:   1728,
		VoteReward:      100,
		VoteDedupWindow: time.Hour,
	}

	// Optional YAML file
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	envString("APP_PORT", &cfg.AppPort)
	envString("STORE_BACKEND", &cfg.StoreBackend)
	envString("DB_USER", &cfg.DBUser)
	envString("DB_PASSWORD", &cfg.DBPassword)
	envString("DB_HOST", &cfg.DBHost)
	envString("DB_PORT", &cfg.DBPort)
	envString("DB_NAME", &cfg.DBName)
	envString("SQLITE_PATH", &cfg.SQLitePath)
	envString("JWT_SECRET", &cfg.JWTSecret)
	envString("REDIS_ADDR", &cfg.RedisAddr)
	envString("REDIS_PASS", &cfg.RedisPass)

	var err error
	set := func(e error) {
		if err == nil {
			err = e
		}
	}
	set(envInt("REDIS_DB", &cfg.RedisDB))
	set(envBool("IS_PROD", &cfg.IsProd))
	set(envInt64("STARTING_BALANCE", &cfg.StartingBalance))
	set(envInt("HISTORY_LIMIT", &cfg.HistoryLimit))
	set(envInt64("COIN_STACK_SIZE", &cfg.CoinStackSize))
	set(envBool("LEDGER_SHARED_STORE", &cfg.SharedStore))
	set(envInt64("SHOP_STOCK_CAPACITY", &cfg.StockCapacity))
	set(envInt64("VOTE_REWARD", &cfg.VoteReward))
	set(envDuration("VOTE_DEDUP_WINDOW", &cfg.VoteDedupWindow))
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// MySQLDSN builds the Data Source Name for the relational backend
func (c *Config) MySQLDSN() string {
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?parseTime=true"
}

// Validate checks values that would make the server misbehave
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendMySQL:
		if c.DBHost == "" || c.DBName == "" {
			return fmt.Errorf("store_backend mysql needs db_host and db_name")
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("store_backend sqlite needs sqlite_path")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown store_backend %q", c.StoreBackend)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required")
	}
	if c.StartingBalance < 0 {
		return fmt.Errorf("starting_balance must not be negative")
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("history_limit must be positive")
	}
	if c.CoinStackSize <= 0 {
		return fmt.Errorf("coin_stack_size must be positive")
	}
	if c.StockCapacity < 0 {
		return fmt.Errorf("shop_stock_capacity must not be negative")
	}
	if c.VoteReward <= 0 {
		return fmt.Errorf("vote_reward must be positive")
	}
	if c.VoteDedupWindow <= 0 {
		return fmt.Errorf("vote_dedup_window must be positive")
	}
	return nil
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	*dst = n
	return nil
}

func envInt64(key string, dst *int64) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	*dst = n
	return nil
}

func envBool(key string, dst *bool) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s must be true or false, got %q", key, v)
	}
	*dst = b
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s must be a duration, got %q", key, v)
	}
	*dst = d
	return nil
}
