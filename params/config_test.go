package params

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"SOURCE_PATH", "MAX_ACCOUNTS", "START_MONEY", "START_ASSET", "RANDOM_BALANCES",
	"RANDOM_SEED", "API_ADDR", "CORS_ORIGINS", "JOURNAL_PATH", "LOG_FILE", "LOG_LEVEL",
}

// clearEnv unsets every config key for the duration of the test
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "order_books_data.zip", cfg.Ingest.SourcePath)
	assert.Equal(t, 10, cfg.Ingest.MaxAccounts)
	assert.True(t, decimal.NewFromInt(9000).Equal(cfg.Balances.Money))
	assert.True(t, decimal.NewFromInt(3).Equal(cfg.Balances.Asset))
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Empty(t, cfg.Journal.Path)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFileOverlaysDefaults(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "metaexchange.toml", `
[ingest]
source_path = "books.zst"

[balances]
money = "1234.5"
asset = 2

[journal]
path = "/tmp/journal"
`)

	cfg, err := Load(path, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "books.zst", cfg.Ingest.SourcePath)
	assert.Equal(t, 10, cfg.Ingest.MaxAccounts, "untouched key keeps default")
	assert.True(t, decimal.RequireFromString("1234.5").Equal(cfg.Balances.Money), "money = %s", cfg.Balances.Money)
	assert.True(t, decimal.NewFromInt(2).Equal(cfg.Balances.Asset))
	assert.Equal(t, "/tmp/journal", cfg.Journal.Path)
}

func TestPrecedence(t *testing.T) {
	clearEnv(t)
	file := writeFile(t, "cfg.toml", "[ingest]\nsource_path = \"from-file.zip\"\nmax_accounts = 3\n")
	env := writeFile(t, ".env", "SOURCE_PATH=from-dotenv.zip\nMAX_ACCOUNTS=4\nLOG_LEVEL=debug\n")
	t.Setenv("SOURCE_PATH", "from-env.zip")

	cfg, err := Load(file, env)
	require.NoError(t, err)

	assert.Equal(t, "from-env.zip", cfg.Ingest.SourcePath, "ENV beats .env")
	assert.Equal(t, 4, cfg.Ingest.MaxAccounts, ".env beats file")
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestEnvParsing(t *testing.T) {
	clearEnv(t)
	t.Setenv("START_MONEY", "50.25")
	t.Setenv("RANDOM_BALANCES", "true")
	t.Setenv("RANDOM_SEED", "42")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test,")

	cfg, err := LoadFromEnv(filepath.Join(t.TempDir(), "none.env"))
	require.NoError(t, err)

	assert.True(t, decimal.RequireFromString("50.25").Equal(cfg.Balances.Money))
	assert.True(t, cfg.Balances.Random)
	assert.Equal(t, int64(42), cfg.Balances.Seed)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowedOrigins)
}

func TestEnvErrors(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"MAX_ACCOUNTS", "ten"},
		{"START_ASSET", "lots"},
		{"RANDOM_BALANCES", "maybe"},
		{"START_MONEY", "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			_, err := LoadFromEnv(filepath.Join(t.TempDir(), "none.env"))
			assert.Error(t, err)
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"), "")
	assert.Error(t, err)
}
