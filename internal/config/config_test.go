package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, StoreMemory, cfg.Store.Driver)
	assert.Equal(t, "https://api.chatrace.com", cfg.Chatrace.APIURL)
	assert.Equal(t, 3, cfg.Storage.MaxPhotos)
	assert.Equal(t, int64(5<<20), cfg.Storage.MaxPhotoBytes)
	assert.Equal(t, "farm-verifications", cfg.Storage.Folder)
	assert.Equal(t, 10, cfg.RequestID.MaxAttempts)
	assert.False(t, cfg.Chatrace.Enabled())
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"server": {"port": 7000},
		"storage": {"folder": "custom", "max_photos": 3, "max_photo_bytes": 1024},
		"chatrace": {"approval_flow_id": "from-file"}
	}`), 0o600))

	t.Setenv("PORT", "5050")
	t.Setenv("CHATRACE_API_KEY", "secret")
	t.Setenv("CHATRACE_FLOW_ID_REJECTION", "rej-flow")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 5050, cfg.Server.Port)
	assert.Equal(t, "custom", cfg.Storage.Folder)
	assert.Equal(t, int64(1024), cfg.Storage.MaxPhotoBytes)
	assert.Equal(t, "from-file", cfg.Chatrace.ApprovalFlowID)
	assert.Equal(t, "rej-flow", cfg.Chatrace.RejectionFlowID)
	assert.True(t, cfg.Chatrace.Enabled())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Logging.Development)
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Store.Driver = StoreMongo
	assert.Error(t, cfg.Validate())

	cfg.Mongo.URI = "mongodb://localhost:27017"
	assert.NoError(t, cfg.Validate())

	cfg.Store.Driver = "sqlite"
	assert.Error(t, cfg.Validate())
}

func TestRequestIDLocation(t *testing.T) {
	assert.Equal(t, time.UTC, RequestIDConfig{}.Location())
	assert.Equal(t, time.UTC, RequestIDConfig{Timezone: "Not/AZone"}.Location())
}
