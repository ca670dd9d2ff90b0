package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("SHOPIFY_STORE_DOMAIN", "")
	t.Setenv("FCM_SERVER_KEY", "")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":3001", cfg.HTTPAddr)
	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "2025-01", cfg.Commerce.APIVersion)
	assert.Equal(t, "PK", cfg.Commerce.CountryCode)
	assert.Equal(t, "https://fcm.googleapis.com/fcm/send", cfg.Push.Endpoint)
	assert.False(t, cfg.Commerce.Configured())
	assert.False(t, cfg.Push.Configured())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("SHOPIFY_STORE_DOMAIN", "shop.example.com")
	t.Setenv("SHOPIFY_ADMIN_API_TOKEN", "shpat_test")
	t.Setenv("FCM_SERVER_KEY", "server-key")
	t.Setenv("KAFKA_BROKERS", "k1:9092, ,k2:9092")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.True(t, cfg.Commerce.Configured())
	assert.True(t, cfg.Push.Configured())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Brokers())
}

func TestLoadReadsEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("ORDER_TAG=from-dotenv\n"), 0o600))

	t.Setenv("ENV_FILE", path)
	t.Setenv("ORDER_TAG", "")
	require.NoError(t, os.Unsetenv("ORDER_TAG"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Commerce.OrderTag)
}

func TestLoadWithoutEnvFile(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	_, err := Load()
	assert.NoError(t, err)
}
