package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flipguard/internal/models"
)

type harness struct {
	t   *testing.T
	dir string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	for _, key := range []string{"DATABASE_PATH", "TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID", "FLIPGUARD_ADDR"} {
		t.Setenv(key, "")
	}
	return &harness{t: t, dir: t.TempDir()}
}

// run executes one command line against a fresh command tree sharing the
// harness config directory.
func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	rootCmd, _ := NewRootCmd(zerolog.Nop())
	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)
	rootCmd.SetArgs(append([]string{"--config", h.dir}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	require.NoError(h.t, err, out)
	return out
}

func TestVersion(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("version", "--json")

	var v map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, Version, v["version"])
}

func TestConfigPathAndValidate(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("config", "path")
	assert.Equal(t, filepath.Join(h.dir, "config.toml")+"\n", out)
	assert.FileExists(t, filepath.Join(h.dir, "config.toml"))

	out = h.mustRun("config", "validate")
	assert.Contains(t, out, "Configuration is valid")
}

func TestInstrumentLifecycle(t *testing.T) {
	h := newHarness(t)

	h.mustRun("instrument", "add", "nifty", "-t", "15m", "--buy-url", "https://hooks.example.com/buy")

	_, err := h.run("instrument", "add", "NIFTY", "-t", "15m")
	assert.Error(t, err, "duplicate symbol")

	_, err = h.run("instrument", "add", "BANKNIFTY", "-t", "5m", "--sell-url", "not-a-url")
	assert.Error(t, err, "invalid url")

	_, err = h.run("instrument", "add", "BANKNIFTY")
	assert.Error(t, err, "timeframe is required")

	h.mustRun("instrument", "edit", "NIFTY", "--close-url", "https://hooks.example.com/close")
	h.mustRun("instrument", "disable", "NIFTY")

	out := h.mustRun("instrument", "list", "--json")
	var listing []models.InstrumentStatus
	require.NoError(t, json.Unmarshal([]byte(out), &listing))
	require.Len(t, listing, 1)
	assert.Equal(t, "NIFTY", listing[0].Instrument.Symbol)
	assert.False(t, listing[0].Instrument.Active)
	assert.Equal(t, "https://hooks.example.com/buy", listing[0].Instrument.BuyURL)
	assert.Equal(t, "https://hooks.example.com/close", listing[0].Instrument.CloseURL)

	out = h.mustRun("instrument", "list", "--active")
	assert.Contains(t, out, "No instruments registered")

	out = h.mustRun("instrument", "list")
	assert.Contains(t, out, "buy,close")

	h.mustRun("instrument", "delete", "NIFTY")
	_, err = h.run("instrument", "delete", "NIFTY")
	assert.Error(t, err)
}

func TestSignalFlipSuppression(t *testing.T) {
	h := newHarness(t)
	h.mustRun("instrument", "add", "NIFTY", "-t", "15m")

	out := h.mustRun("signal", "-s", "NIFTY", "-g", "ENTRY_LONG", "-p", "19500", "--timestamp", "C1")
	assert.Contains(t, out, "NEW TRADE ENTRY")
	assert.Contains(t, out, "success: Entered LONG")

	out = h.mustRun("signal", "-s", "NIFTY", "-g", "EXIT_LONG", "-p", "19550", "--timestamp", "C2")
	assert.Contains(t, out, "TRADE CLOSED")
	assert.Contains(t, out, "success: Trade Closed")

	out = h.mustRun("signal", "-s", "NIFTY", "-g", "ENTRY_SHORT", "-p", "19550", "--timestamp", "C2")
	assert.Contains(t, out, "FLIP ENTRY DETECTED")
	assert.Contains(t, out, "ignored: Flip Entry Detected - Ignored")

	out = h.mustRun("state", "show", "nifty", "--json")
	var state models.TradeState
	require.NoError(t, json.Unmarshal([]byte(out), &state))
	assert.Equal(t, models.StatusNone, state.Status)
	assert.Equal(t, "C2", state.LastCandleTimestamp)

	out = h.mustRun("signal", "-s", "NIFTY", "-g", "SELL", "--timestamp", "C3", "--json")
	var res models.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, models.ResultSuccess, res.Status)
	assert.Equal(t, "Entered SHORT", res.Message)

	out = h.mustRun("state", "list")
	assert.Contains(t, out, "SHORT")
	assert.Contains(t, out, "C3")
}

func TestSignalErrors(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("signal", "--symbol", "NIFTY")
	assert.Error(t, err, "signal flag is required")

	h.mustRun("instrument", "add", "NIFTY", "-t", "15m")
	out, err := h.run("signal", "-s", "NIFTY", "-g", "HODL")
	assert.Error(t, err)
	assert.Contains(t, out, "Unknown Signal Type: HODL")

	out = h.mustRun("signal", "-s", "SENSEX", "-g", "BUY")
	assert.Contains(t, out, "ignored")

	_, err = h.run("state", "show", "SENSEX")
	assert.Error(t, err)
}
