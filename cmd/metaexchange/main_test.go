package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/metaexchange/pkg/api"
	"github.com/uhyunpark/metaexchange/pkg/ingest"
	"github.com/uhyunpark/metaexchange/pkg/storage"
)

// isolate keeps the developer's environment and .env out of the test
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, k := range []string{"SOURCE_PATH", "MAX_ACCOUNTS", "START_MONEY", "START_ASSET",
		"RANDOM_BALANCES", "RANDOM_SEED", "JOURNAL_PATH", "LOG_FILE", "LOG_LEVEL"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	return dir
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestGenThenBuy(t *testing.T) {
	dir := isolate(t)
	src := filepath.Join(dir, "books.zip")
	env := filepath.Join(dir, "none.env")

	out, err := execute(t, "", "gen", "--out", src, "--books", "3", "--depth", "5", "--seed", "9")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 3 books")

	out, err = execute(t, "", "buy", "2", "--source", src, "--env", env)
	require.NoError(t, err, out)

	var res api.AllocationResponse
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "buy", res.Side)
	assert.True(t, decimal.NewFromInt(2).Equal(res.Requested))
	assert.NotEmpty(t, res.Fills)
	for i := 1; i < len(res.Fills); i++ {
		assert.False(t, res.Fills[i].OrderPrice.LessThan(res.Fills[i-1].OrderPrice))
	}
}

func TestSellJournalsAllocation(t *testing.T) {
	dir := isolate(t)
	src := filepath.Join(dir, "books.zst")
	journal := filepath.Join(dir, "journal")
	require.NoError(t, ingest.NewGenerator(1, 4).WriteFile(src, 2))
	t.Setenv("JOURNAL_PATH", journal)

	_, err := execute(t, "", "sell", "1", "--source", src, "--env", filepath.Join(dir, "none.env"))
	require.NoError(t, err)

	j, err := storage.OpenJournal(journal, nil)
	require.NoError(t, err)
	defer j.Close()
	recs, err := j.Recent(0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "sell", recs[0].Side.String())
}

func TestREPLIsDefault(t *testing.T) {
	dir := isolate(t)
	src := filepath.Join(dir, "books.txt")
	require.NoError(t, ingest.NewGenerator(3, 3).WriteFile(src, 2))

	out, err := execute(t, "A\nQ\n", "--source", src, "--max-accounts", "1", "--env", filepath.Join(dir, "none.env"))
	require.NoError(t, err)
	assert.Contains(t, out, "Money: 9000, Cryptocurrency 3")
	assert.Contains(t, out, "account=1 ")
	assert.NotContains(t, out, "account=2 ")
}

func TestErrors(t *testing.T) {
	dir := isolate(t)
	env := filepath.Join(dir, "none.env")

	_, err := execute(t, "", "buy", "1", "--source", filepath.Join(dir, "missing.zip"), "--env", env)
	assert.True(t, errors.Is(err, ingest.ErrSourceNotFound), "err = %v", err)

	_, err = execute(t, "", "buy", "lots", "--env", env)
	assert.Error(t, err)

	_, err = execute(t, "", "gen", "--books", "0", "--out", filepath.Join(dir, "x.zip"))
	assert.Error(t, err)
}
