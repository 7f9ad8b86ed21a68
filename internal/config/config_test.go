package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subhatanay/expenseapp/internal/domain"
	"github.com/subhatanay/expenseapp/internal/extract"
	"github.com/subhatanay/expenseapp/internal/infra/inmemory"
	"github.com/subhatanay/expenseapp/internal/ingest"
)

const sample = `
log_level: debug
gcp:
  project_id: my-project
  bucket: my-bucket
sync:
  interval: 5m
  fetch_timeout: 10s
telegram:
  token: "123:abc"
users:
  - id: alice
    telegram_chat_id: 4242
    gmail_credentials: /secrets/alice.json
    sources:
      - name: hdfc
        templates: [BANK, UPI]
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "expenseapp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "my-project", cfg.GCP.ProjectID)
	assert.Equal(t, "expenses", cfg.GCP.Dataset)
	assert.Equal(t, "my-bucket", cfg.GCP.Bucket)
	assert.Equal(t, 5*time.Minute, cfg.Sync.Interval)
	assert.Equal(t, 10*time.Second, cfg.Sync.FetchTimeout)
	assert.Equal(t, 15*time.Second, cfg.Sync.WriteTimeout)
	assert.Equal(t, 4, cfg.Sync.Concurrency)
	assert.Equal(t, "8080", cfg.Server.Port)

	require.Len(t, cfg.Users, 1)
	u := cfg.Users[0]
	assert.Equal(t, int64(4242), u.TelegramChatID)
	assert.Equal(t, []string{"BANK", "UPI"}, u.Sources[0].Templates)
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadRejectsDuplicateUsers(t *testing.T) {
	_, err := Load(writeConfig(t, "users:\n  - id: a\n  - id: a\n"))
	assert.ErrorContains(t, err, "duplicate user")
}

func TestRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Users = []UserConfig{{ID: "bob", Sources: []SourceConfig{{Name: "hdfc"}}}}
	cfg.Templates = []domain.Template{{Type: "X", Expression: `Rs\.(?P<amount>\d+)`, Sender: "a@b"}}

	path := filepath.Join(t.TempDir(), "expenseapp.yaml")
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Users, got.Users)
	assert.Equal(t, cfg.Templates, got.Templates)
	assert.Equal(t, cfg.Sync, got.Sync)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("GCS_BUCKET", "env-bucket")
	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")

	cfg := Default()
	cfg.GCP.Bucket = "file-bucket"
	cfg.ApplyEnv()

	assert.Equal(t, "env-bucket", cfg.GCP.Bucket)
	assert.Equal(t, "env-token", cfg.Telegram.Token)
}

func TestUserByChat(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	assert.Equal(t, "alice", cfg.UserByChat(4242))
	assert.Equal(t, "tg:99", cfg.UserByChat(99))
	assert.Equal(t, map[string]int64{"alice": 4242}, cfg.ChatIDs())
}

func TestRegistryAndSources(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	reg, err := cfg.Registry()
	require.NoError(t, err)
	assert.Len(t, reg.All(), len(extract.DefaultTemplates()))

	syncer := ingest.NewSyncer(nil, inmemory.NewLedger(), inmemory.NewCursorStore(), nil, extract.NewExtractor(), cfg.SyncOptions())
	require.NoError(t, cfg.RegisterSources(syncer, reg))
	assert.Equal(t, []string{"alice"}, syncer.Users())

	cfg.Users[0].Sources[0].Templates = []string{"NOPE"}
	assert.Error(t, cfg.RegisterSources(syncer, reg))
}

func TestRegistryRejectsBadTemplate(t *testing.T) {
	cfg := Default()
	cfg.Templates = []domain.Template{{Type: "BAD", Expression: "("}}
	_, err := cfg.Registry()
	assert.Error(t, err)
}
