package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starlightdeck/careon/pkg/security"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("CAREON_APP_ENV", "dev")
	t.Setenv("CAREON_BANK_PATH", filepath.Join(dir, "bank.json"))
	t.Setenv("CAREON_CODES_PATH", filepath.Join(dir, "codes.json"))
	t.Setenv("CAREON_REDIS_URL", "")
	t.Setenv("CAREON_NARRATOR_API_KEY", "")
	t.Setenv("CAREON_ARGON_MEMORY_KB", "1024")
	t.Setenv("CAREON_ARGON_TIME", "1")
	t.Setenv("CAREON_ARGON_PARALLELISM", "1")
	return dir
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--env-file", ""}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func decode[T any](t *testing.T, raw string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(raw), &v), raw)
	return v
}

func TestPhrasesHelpMatchesOrder(t *testing.T) {
	cmd, _, err := newRootCommand().Find([]string{"phrases"})
	require.NoError(t, err)
	assert.Contains(t, cmd.Short, "newest first")
}

func TestMintRejectsOutOfRangeValue(t *testing.T) {
	dir := setupEnv(t)

	for _, value := range []string{"0", "1000000001"} {
		_, err := execute(t, "", "mint", "--value", value)
		require.Error(t, err, value)
		assert.Contains(t, err.Error(), "--value must be between 1 and 1000000000")
	}
	_, statErr := os.Stat(filepath.Join(dir, "codes.json"))
	assert.True(t, os.IsNotExist(statErr), "rejected mint must not touch the code ledger")
}

func TestMintRedeemAndSummary(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "", "mint", "--value", "100", "--by", "ops", "--note", "stream prize")
	require.NoError(t, err)
	minted := decode[map[string]any](t, out)
	code, _ := minted["code"].(string)
	require.True(t, strings.HasPrefix(code, "DEP-"), code)

	out, err = execute(t, "", "outstanding")
	require.NoError(t, err)
	assert.JSONEq(t, `{"count":1,"value":100}`, out)

	out, err = execute(t, "", "redeem", strings.ToLower(code), "--by", "viewer")
	require.NoError(t, err)
	deposit := decode[map[string]any](t, out)
	assert.EqualValues(t, 95, deposit["net"])
	assert.EqualValues(t, 120, deposit["balance"])

	_, err = execute(t, "", "redeem", code)
	require.Error(t, err)

	out, err = execute(t, "", "summary")
	require.NoError(t, err)
	summary := decode[map[string]any](t, out)
	assert.EqualValues(t, 120, summary["balance"])
	assert.EqualValues(t, 5, summary["network_fund"])

	out, err = execute(t, "", "events", "--keep", "10")
	require.NoError(t, err)
	assert.Contains(t, out, `"ops"`)
	assert.Contains(t, out, `"viewer"`)
}

func TestYAMLOutput(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "", "-o", "yaml", "summary")
	require.NoError(t, err)
	assert.Contains(t, out, "balance: 25")
	assert.Contains(t, out, "community_goal: 1000")
}

func TestUnknownOutputFormat(t *testing.T) {
	setupEnv(t)

	_, err := execute(t, "", "-o", "xml", "summary")
	require.ErrorContains(t, err, "unsupported output format")
}

func TestPurchaseAndRepair(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "", "purchase", "usd-1")
	require.NoError(t, err)
	purchase := decode[map[string]any](t, out)
	assert.EqualValues(t, 1025, purchase["balance"])

	_, err = execute(t, "", "purchase", "usd-3")
	require.Error(t, err)

	out, err = execute(t, "", "repair")
	require.NoError(t, err)
	results := decode[[]map[string]any](t, out)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, false, r["repaired"])
	}
}

func TestHashPasswordFromStdin(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "hunter2\n", "hash-password")
	require.NoError(t, err)
	hash := decode[map[string]string](t, out)["hash"]

	ok, err := security.VerifyPassword("hunter2", hash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRenderYAMLKeepsJSONNames(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, render(buf, formatYAML, struct {
		NetworkFund int64 `json:"network_fund"`
	}{NetworkFund: 7}))
	assert.Equal(t, "network_fund: 7\n", buf.String())
}
