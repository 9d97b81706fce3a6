package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "redis", cfg.Queue.Backend)
	assert.Equal(t, 3, cfg.Queue.Attempts)
	assert.Equal(t, 2*time.Second, cfg.Queue.BackoffBase)
	assert.Equal(t, time.Hour, cfg.Queue.CompletedTTL)
	assert.Equal(t, 100, cfg.Queue.CompletedKeep)
	assert.Equal(t, 24*time.Hour, cfg.Queue.FailedTTL)
	assert.Equal(t, "free_", cfg.Purchase.FreeSignaturePrefix)
	assert.Equal(t, int64(10_000_000), cfg.Purchase.SelfPurchaseFeeCeiling)
	assert.Equal(t, 10, cfg.Purchase.MaxDownloads)
	assert.Equal(t, 24*time.Hour, cfg.Purchase.DownloadTTL)
	assert.Equal(t, time.Hour, cfg.Storage.SignedURLTTL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("QUEUE_BACKEND", "memory")
	t.Setenv("QUEUE_BACKOFF_BASE", "500ms")
	t.Setenv("MAX_DOWNLOADS", "3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Queue.Backend)
	assert.Equal(t, 500*time.Millisecond, cfg.Queue.BackoffBase)
	assert.Equal(t, 3, cfg.Purchase.MaxDownloads)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name string
		key  string
		val  string
	}{
		{"zero attempts", "QUEUE_ATTEMPTS", "0"},
		{"unknown backend", "QUEUE_BACKEND", "kafka"},
		{"zero downloads", "MAX_DOWNLOADS", "0"},
		{"unparsable duration", "QUEUE_BACKOFF_BASE", "soon"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestValidateWorker(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Error(t, cfg.ValidateWorker())

	cfg.Ledger.CollectionAddress = "EQCollection"
	cfg.Ledger.ItemCodeBOC = "b5ee9c72"
	cfg.Ledger.WalletSeed = "word word"
	cfg.Storage.MetadataPublicBaseURL = "https://meta.example.com"
	assert.NoError(t, cfg.ValidateWorker())
}

func TestValidateAPI(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Error(t, cfg.ValidateAPI())

	cfg.Auth.TriggerSecret = "secret"
	assert.NoError(t, cfg.ValidateAPI())
}
