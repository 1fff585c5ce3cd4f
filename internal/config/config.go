package config

import (
	"betmaster/internal/domain" // Bet limits
	"fmt"
	"time"

	"github.com/caarlos0/env/v11" // Struct based env parsing
	"github.com/joho/godotenv"    // For loading .env files
	"github.com/shopspring/decimal"
)

// AppConfig holds HTTP server settings
type AppConfig struct {
	Port   string `env:"PORT" envDefault:"8080"` // Application port
	IsProd bool   `env:"IS_PROD"`                // Is production environment
}

// DBConfig holds the database connection settings
type DBConfig struct {
	Driver   string `env:"DRIVER" envDefault:"mysql"` // mysql or postgres
	User     string `env:"USER"`                      // Database user
	Password string `env:"PASSWORD"`                  // Database password
	Host     string `env:"HOST" envDefault:"127.0.0.1"`
	Port     string `env:"PORT"` // Database port, driver default when empty
	Name     string `env:"NAME" envDefault:"betmaster"`
	SSLMode  string `env:"SSL_MODE" envDefault:"disable"` // Postgres only
}

// DSN renders the driver specific data source name
func (c DBConfig) DSN() (string, error) {
	switch c.Driver {
	case "mysql":
		port := c.Port
		if port == "" {
			port = "3306"
		}
		return c.User + ":" + c.Password + "@tcp(" + c.Host + ":" + port + ")/" + c.Name + "?parseTime=true", nil
	case "postgres":
		port := c.Port
		if port == "" {
			port = "5432"
		}
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			c.Host, port, c.User, c.Password, c.Name, c.SSLMode), nil
	}
	return "", fmt.Errorf("unsupported DB_DRIVER %q", c.Driver)
}

// RedisConfig holds the cache settings. An empty address disables caching.
type RedisConfig struct {
	Addr string        `env:"ADDR"`                 // Redis server address
	Pass string        `env:"PASS"`                 // Redis password
	DB   int           `env:"DB"`                   // Redis database number
	TTL  time.Duration `env:"TTL" envDefault:"60s"` // Cache entry lifetime
}

// JWTConfig holds token settings
type JWTConfig struct {
	Secret string        `env:"SECRET,required,notEmpty"` // JWT secret key
	TTL    time.Duration `env:"TTL" envDefault:"24h"`     // Token lifetime
}

// GameConfig holds the house rules that are not fixed by the payout table
type GameConfig struct {
	MinBet         decimal.Decimal `env:"MIN_BET" envDefault:"10"`
	MaxBet         decimal.Decimal `env:"MAX_BET" envDefault:"10000"`
	InitialBalance decimal.Decimal `env:"INITIAL_BALANCE" envDefault:"1000"` // Credited on registration
	FirstRound     int64           `env:"FIRST_ROUND" envDefault:"28365"`    // Number of the very first round
	RoundInterval  time.Duration   `env:"ROUND_INTERVAL" envDefault:"60s"`   // Scheduler tick
	LatestLimit    int             `env:"LATEST_LIMIT" envDefault:"5"`       // Default size of the recent rounds list
}

// Limits returns the configured stake range
func (c GameConfig) Limits() domain.BetLimits {
	return domain.BetLimits{Min: c.MinBet, Max: c.MaxBet}
}

// BrokerConfig holds the Kafka settings for settlement events. No brokers disables publishing.
type BrokerConfig struct {
	Brokers []string `env:"BROKERS" envSeparator:","`
	Topic   string   `env:"TOPIC" envDefault:"betmaster.events"`
}

// AdminConfig seeds the first administrator
type AdminConfig struct {
	Username string          `env:"USERNAME" envDefault:"admin"`
	Password string          `env:"PASSWORD"`
	Email    string          `env:"EMAIL" envDefault:"admin@betmaster.local"`
	Balance  decimal.Decimal `env:"BALANCE" envDefault:"10000"`
}

// Config holds the application configuration
type Config struct {
	App    AppConfig    `envPrefix:"APP_"`
	DB     DBConfig     `envPrefix:"DB_"`
	Redis  RedisConfig  `envPrefix:"REDIS_"`
	JWT    JWTConfig    `envPrefix:"JWT_"`
	Game   GameConfig   `envPrefix:"GAME_"`
	Broker BrokerConfig `envPrefix:"BROKER_"`
	Admin  AdminConfig  `envPrefix:"ADMIN_"`
}

// LoadConfig loads configuration from the environment, reading .env first if present
func LoadConfig() (*Config, error) {
	_ = godotenv.Load() // Load .env file if present
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if cfg.Game.MinBet.GreaterThan(cfg.Game.MaxBet) {
		return nil, fmt.Errorf("GAME_MIN_BET %s exceeds GAME_MAX_BET %s", cfg.Game.MinBet, cfg.Game.MaxBet)
	}
	return cfg, nil
}
