package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBankrollConfigModeSwitch(t *testing.T) {
	test := BankrollConfig{Mode: BankrollTest, TestInitialBalance: 50, TestDailySpendCap: 5, ProdInitialBalance: 5000}
	assert.Equal(t, 50.0, test.InitialBalance())
	assert.Equal(t, 5.0, test.DailySpendCap())

	prod := test
	prod.Mode = BankrollProduction
	assert.Equal(t, 5000.0, prod.InitialBalance())
	assert.Zero(t, prod.DailySpendCap())
}

func TestFirmConfigDomain(t *testing.T) {
	fc := FirmConfig{Name: "firm-a", ModelID: "gpt-x", ColorTag: "blue", SizingStrategy: "KellyConservative"}
	d := fc.Domain()
	assert.Equal(t, "firm-a", d.Name)
	assert.Equal(t, "gpt-x", d.ModelID)
	assert.EqualValues(t, "KellyConservative", d.SizingStrategy)
}

func TestValidateRejectsEmptyFirms(t *testing.T) {
	cfg := Config{Bankroll: BankrollConfig{Mode: BankrollTest}}
	err := cfg.validate()
	require.Error(t, err)
}

func TestValidateRejectsUnknownBankrollMode(t *testing.T) {
	cfg := Config{Firms: []FirmConfig{{Name: "firm-a"}}, Bankroll: BankrollConfig{Mode: "BOGUS"}}
	err := cfg.validate()
	require.Error(t, err)
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	cfg := Config{Firms: []FirmConfig{{Name: "firm-a"}}, Bankroll: BankrollConfig{Mode: BankrollTest}}
	assert.NoError(t, cfg.validate())
}

func TestDefaultRiskTiersOrderedDescending(t *testing.T) {
	tiers := DefaultRiskTiers()
	require.Len(t, tiers, 5)
	for i := 1; i < len(tiers); i++ {
		assert.GreaterOrEqual(t, tiers[i-1].MinRatio, tiers[i].MinRatio)
	}
	assert.Equal(t, "Suspended", tiers[len(tiers)-1].Name)
	assert.Zero(t, tiers[len(tiers)-1].MinRatio)
}

func TestLoadFillsDefaultsAndParsesFirms(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
system_enabled: true
firms:
  - name: firm-a
    model_id: gpt-x
    sizing_strategy: KellyConservative
bankroll:
  mode: TEST
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("VENUE_API_KEY", "test-venue-key")
	t.Setenv("CUSTODY_WALLET_PRIVATE_KEY", "test-wallet-key")
	t.Setenv("MONITOR_SHARED_SECRET", "test-monitor-secret")
	t.Setenv("ADMIN_SHARED_SECRET", "test-admin-secret")

	cfg, secrets, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Firms, 1)
	assert.Equal(t, "firm-a", cfg.Firms[0].Name)
	assert.Equal(t, 50.0, cfg.Bankroll.InitialBalance())
	assert.Equal(t, 0.03, cfg.Venue.TakerFeeRate)
	assert.NotEmpty(t, cfg.Risk.Tiers) // filled from DefaultRiskTiers
	assert.Equal(t, "test-venue-key", secrets.VenueAPIKey)
}

func TestLoadMissingRequiredSecretErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
firms:
  - name: firm-a
bankroll:
  mode: TEST
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	for _, key := range []string{"VENUE_API_KEY", "CUSTODY_WALLET_PRIVATE_KEY", "MONITOR_SHARED_SECRET", "ADMIN_SHARED_SECRET"} {
		require.NoError(t, os.Unsetenv(key))
	}

	_, _, err := Load(path)
	require.Error(t, err)
}
