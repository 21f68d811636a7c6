// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	// Verify a few key defaults to ensure the mechanism works.
	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, "autoform", cfg.Logger().ServiceName)
	assert.True(t, cfg.Browser().Headless)
	assert.Equal(t, 4, cfg.Browser().Concurrency)
	assert.Contains(t, cfg.Browser().Args, "--no-sandbox")
	assert.Equal(t, 60*time.Second, cfg.Network().NavigationTimeout)
	assert.Equal(t, time.Second, cfg.Network().QuietPeriod)
	assert.Equal(t, 15*time.Second, cfg.Network().PostLoadTimeout)
	assert.Equal(t, 20*time.Second, cfg.Network().SubmitSettleTimeout)
	assert.Equal(t, 10*time.Second, cfg.Network().HarvestSettleTimeout)
	assert.Equal(t, ":8080", cfg.Server().Addr)
	assert.Equal(t, int64(10<<20), cfg.Server().MaxBodyBytes)
	assert.Equal(t, 10*time.Millisecond, cfg.Filler().KeyDelay)
	assert.Equal(t, 200*time.Millisecond, cfg.Filler().Pacing)
	assert.Equal(t, ".pdf", cfg.Harvest().Extension)
}

func TestScoringDefaults(t *testing.T) {
	s := NewDefaultConfig().Scoring()

	assert.Equal(t, 4, s.LabelForWeight)
	assert.Equal(t, 3, s.AncestorLabelWeight)
	assert.Equal(t, 2, s.AttributeWeight)
	assert.Equal(t, 2, s.TypeAffinityWeight)
	assert.Equal(t, 4, s.MaxCandidates)
	assert.Equal(t, []string{"correo", "email"}, s.EmailMarkers)
	assert.Equal(t, []string{"fecha"}, s.DateMarkers)
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	t.Run("Core Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()
		assert.NoError(t, cfg.Validate(), "A valid config should not produce a validation error")

		cfgInvalidBrowser := *cfg
		cfgInvalidBrowser.BrowserCfg.Concurrency = 0
		err := cfgInvalidBrowser.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "browser.concurrency must be a positive integer")

		cfgInvalidNav := *cfg
		cfgInvalidNav.NetworkCfg.NavigationTimeout = 0
		err = cfgInvalidNav.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "network.navigation_timeout must be a positive duration")

		cfgNoAddr := *cfg
		cfgNoAddr.ServerCfg.Addr = ""
		err = cfgNoAddr.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "server.addr is required")
	})

	t.Run("Scoring Validation", func(t *testing.T) {
		valid := NewDefaultConfig().Scoring()
		assert.NoError(t, valid.Validate())

		noCap := valid
		noCap.MaxCandidates = 0
		err := noCap.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "max_candidates must be a positive integer")

		negative := valid
		negative.AttributeWeight = -1
		err = negative.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "weights must not be negative")
	})

	t.Run("Filler Validation", func(t *testing.T) {
		valid := NewDefaultConfig().Filler()
		assert.NoError(t, valid.Validate())

		zeroDelay := valid
		zeroDelay.KeyDelay = 0
		assert.NoError(t, zeroDelay.Validate(), "typing without delay is allowed")

		negativePacing := valid
		negativePacing.Pacing = -time.Millisecond
		assert.Error(t, negativePacing.Validate())

		noTimeout := valid
		noTimeout.AttemptTimeout = 0
		err := noTimeout.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "attempt_timeout must be a positive duration")
	})
}

// -- Factory Function Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("Successful Load from YAML", func(t *testing.T) {
		yamlBytes := []byte(`
browser:
  concurrency: 2
scoring:
  label_for_weight: 6
  max_candidates: 3
filler:
  pacing: 50ms
dictionary:
  synonyms:
    referencia:
      - "referencia"
      - "no. de referencia"
`)
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlBytes)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, 2, cfg.Browser().Concurrency)
		assert.Equal(t, 6, cfg.Scoring().LabelForWeight)
		assert.Equal(t, 3, cfg.Scoring().MaxCandidates)
		assert.Equal(t, 50*time.Millisecond, cfg.Filler().Pacing)
		assert.Equal(t, []string{"referencia", "no. de referencia"}, cfg.Dictionary().Synonyms["referencia"])
		// Untouched sections keep their defaults.
		assert.Equal(t, 3, cfg.Scoring().AncestorLabelWeight)
		assert.Equal(t, "info", cfg.Logger().Level)
		assert.Equal(t, "es-MX", cfg.Browser().Locale)
		assert.Equal(t, "America/Mexico_City", cfg.Browser().Timezone)
		assert.Empty(t, cfg.Browser().UserAgent)
	})

	t.Run("Validation Failure", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("scoring.max_candidates", 0)

		cfg, err := NewConfigFromViper(v)
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "invalid configuration")
		assert.Contains(t, err.Error(), "max_candidates must be a positive integer")
	})

	t.Run("PORT Environment Variable", func(t *testing.T) {
		t.Setenv("PORT", "9191")
		v := viper.New()
		SetDefaults(v)

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, ":9191", cfg.Server().Addr)
	})

	t.Run("Explicit Address Wins Over PORT", func(t *testing.T) {
		t.Setenv("PORT", "9191")
		v := viper.New()
		SetDefaults(v)
		v.Set("server.addr", "127.0.0.1:7000")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "127.0.0.1:7000", cfg.Server().Addr)
	})
}

func TestSetters(t *testing.T) {
	cfg := NewDefaultConfig()
	var iface Interface = cfg

	iface.SetBrowserHeadless(false)
	iface.SetBrowserConcurrency(9)
	iface.SetServerAddr(":1234")

	assert.False(t, cfg.Browser().Headless)
	assert.Equal(t, 9, cfg.Browser().Concurrency)
	assert.Equal(t, ":1234", cfg.Server().Addr)
}
