package params

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Ingest struct {
	SourcePath  string `toml:"source_path"`
	MaxAccounts int    `toml:"max_accounts"` // <= 0 loads every book in the source
}

// Balances decides the starting money and asset of each loaded account.
// With Random set, each account draws uniformly from [0, MaxMoney] and
// [0, MaxAsset] using Seed.
type Balances struct {
	Money    decimal.Decimal `toml:"money"`
	Asset    decimal.Decimal `toml:"asset"`
	Random   bool            `toml:"random"`
	Seed     int64           `toml:"seed"`
	MaxMoney decimal.Decimal `toml:"max_money"`
	MaxAsset decimal.Decimal `toml:"max_asset"`
}

type Server struct {
	Addr           string   `toml:"addr"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

type Journal struct {
	Path string `toml:"path"` // empty disables the journal
}

type Log struct {
	File  string `toml:"file"`
	Level string `toml:"level"`
}

type Config struct {
	Ingest   Ingest   `toml:"ingest"`
	Balances Balances `toml:"balances"`
	Server   Server   `toml:"server"`
	Journal  Journal  `toml:"journal"`
	Log      Log      `toml:"log"`
}

func Default() Config {
	return Config{
		Ingest: Ingest{
			SourcePath:  "order_books_data.zip",
			MaxAccounts: 10,
		},
		Balances: Balances{
			Money:    decimal.NewFromInt(9000),
			Asset:    decimal.NewFromInt(3),
			Seed:     1,
			MaxMoney: decimal.NewFromInt(10000),
			MaxAsset: decimal.NewFromInt(5),
		},
		Server: Server{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:3001"},
		},
		Log: Log{Level: "info"},
	}
}

// LoadFile overlays a TOML file onto cfg. Keys absent from the file keep
// their current value.
func LoadFile(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}
	return nil
}

// Load builds the effective configuration.
// Priority: ENV > .env file > TOML file > defaults
func Load(configPath, envPath string) (Config, error) {
	cfg := Default()
	if configPath != "" {
		if err := LoadFile(&cfg, configPath); err != nil {
			return cfg, err
		}
	}
	if err := applyEnv(&cfg, envPath); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) (Config, error) {
	return Load("", envPath)
}

func applyEnv(cfg *Config, envPath string) error {
	// godotenv never overrides variables already present in the environment
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg.Ingest.SourcePath = getEnv("SOURCE_PATH", cfg.Ingest.SourcePath)
	cfg.Server.Addr = getEnv("API_ADDR", cfg.Server.Addr)
	cfg.Journal.Path = getEnv("JOURNAL_PATH", cfg.Journal.Path)
	cfg.Log.File = getEnv("LOG_FILE", cfg.Log.File)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)

	if v := os.Getenv("MAX_ACCOUNTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MAX_ACCOUNTS: %w", err)
		}
		cfg.Ingest.MaxAccounts = n
	}
	if v := os.Getenv("RANDOM_SEED"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("RANDOM_SEED: %w", err)
		}
		cfg.Balances.Seed = n
	}
	if v := os.Getenv("RANDOM_BALANCES"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("RANDOM_BALANCES: %w", err)
		}
		cfg.Balances.Random = b
	}
	for key, dst := range map[string]*decimal.Decimal{
		"START_MONEY": &cfg.Balances.Money,
		"START_ASSET": &cfg.Balances.Asset,
	} {
		if v := os.Getenv(key); v != "" {
			d, err := decimal.NewFromString(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.Server.AllowedOrigins = origins
	}
	return nil
}

// Validate rejects balance settings the loader cannot honour
func (c Config) Validate() error {
	b := c.Balances
	if b.Money.IsNegative() || b.Asset.IsNegative() {
		return fmt.Errorf("starting balances must be non-negative: money=%s asset=%s", b.Money, b.Asset)
	}
	if b.Random && (b.MaxMoney.IsNegative() || b.MaxAsset.IsNegative()) {
		return fmt.Errorf("random balance bounds must be non-negative: max_money=%s max_asset=%s", b.MaxMoney, b.MaxAsset)
	}
	return nil
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
