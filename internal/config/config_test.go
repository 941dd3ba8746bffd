package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
eth_ws_url: "wss://node.example/ws"
eth_http_url: "https://node.example"
venue_api_key: "key"
venue_secret_key: "secret"
venue_passphrase: "phrase"
wallet_address: "0xabc1000000000000000000000000000000000001"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, DefaultStartingCapital, cfg.StartingCapital)
	assert.Equal(t, DefaultMaxPositionFraction, cfg.MaxPositionFraction)
	assert.Equal(t, DefaultMaxPositions, cfg.MaxPositions)
	assert.Equal(t, DefaultMinStakeUSD, cfg.MinStakeUSD)
	assert.Equal(t, DefaultTakeProfitMultiplier, cfg.TakeProfitMultiplier)
	assert.Equal(t, DefaultStopLossMultiplier, cfg.StopLossMultiplier)
	assert.Equal(t, 24*time.Hour, cfg.MaxHold)
	assert.Equal(t, 10*time.Second, cfg.MonitorInterval)
	assert.Equal(t, "https://www.okx.com", cfg.VenueBaseURL)
	assert.Equal(t, "configs/watchlist.json", cfg.WatchlistPath)
}

func TestLoadConfigMissingCredentials(t *testing.T) {
	yaml := `
eth_ws_url: "wss://node.example/ws"
eth_http_url: "https://node.example"
wallet_address: "0xabc"
`
	_, err := LoadConfig(writeConfig(t, yaml))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "venue API credentials")
}

func TestLoadConfigRejectsBadURLs(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "http scheme on ws url",
			yaml:    validYAML + "\neth_ws_url: \"https://not-a-ws-node.example\"",
			wantErr: "eth_ws_url",
		},
		{
			name:    "plain http webhook",
			yaml:    validYAML + "\nwebhook_url: \"http://hooks.example/x\"",
			wantErr: "HTTPS",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadConfigRejectsBadNumbers(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"zero capital", validYAML + "\nstarting_capital: 0"},
		{"fraction above one", validYAML + "\nmax_position_fraction: 1.5"},
		{"take profit at one", validYAML + "\ntake_profit_multiplier: 1.0"},
		{"stop loss at one", validYAML + "\nstop_loss_multiplier: 1.0"},
		{"negative stake floor", validYAML + "\nmin_stake_usd: -1"},
		{"zero workers", validYAML + "\nworkers: 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestEnvironmentOverridesCredentials(t *testing.T) {
	t.Setenv("STAY_FLY_VENUE_API_KEY", "env-key")
	t.Setenv("STAY_FLY_WALLET_ADDRESS", "0xfeed")

	cfg, err := LoadConfig(writeConfig(t, validYAML))
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.VenueAPIKey)
	assert.Equal(t, "0xfeed", cfg.WalletAddress)
}
