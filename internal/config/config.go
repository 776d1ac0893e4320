package config

import (
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL      string        `env:"DATABASE_URL,required,notEmpty"`
	JWTSecret        string        `env:"JWT_SECRET,required,notEmpty"`
	JWTRefreshSecret string        `env:"JWT_REFRESH_SECRET,required,notEmpty"`
	JWTAccessTTL     time.Duration `env:"JWT_ACCESS_TTL" envDefault:"15m"`
	JWTRefreshTTL    time.Duration `env:"JWT_REFRESH_TTL" envDefault:"168h"`
	Port             int           `env:"PORT" envDefault:"8080"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv           string        `env:"APP_ENV" envDefault:"production"`

	RedisAddr      string        `env:"REDIS_ADDR"`
	RedisPassword  string        `env:"REDIS_PASSWORD"`
	RedisDB        int           `env:"REDIS_DB" envDefault:"0"`
	WalletCacheTTL time.Duration `env:"WALLET_CACHE_TTL" envDefault:"5m"`

	DefaultCurrency          string `env:"DEFAULT_CURRENCY" envDefault:"USD"`
	LedgerMaxRetries         int    `env:"LEDGER_MAX_RETRIES" envDefault:"3"`
	FeeWalletID              string `env:"FEE_WALLET_ID"`
	RecordFailedTransactions bool   `env:"RECORD_FAILED_TRANSACTIONS" envDefault:"true"`

	NotificationRetention       time.Duration `env:"NOTIFICATION_RETENTION" envDefault:"720h"`
	NotificationArchiveInterval time.Duration `env:"NOTIFICATION_ARCHIVE_INTERVAL" envDefault:"1h"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if cfg.LedgerMaxRetries < 1 {
		return nil, fmt.Errorf("config.Load: LEDGER_MAX_RETRIES must be at least 1")
	}
	if cfg.NotificationArchiveInterval <= 0 {
		return nil, fmt.Errorf("config.Load: NOTIFICATION_ARCHIVE_INTERVAL must be positive")
	}
	if cfg.NotificationRetention <= 0 {
		return nil, fmt.Errorf("config.Load: NOTIFICATION_RETENTION must be positive")
	}
	return &cfg, nil
}
