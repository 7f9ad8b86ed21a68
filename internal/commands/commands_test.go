package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const debitAlert = "Rs.45.50 has been debited from account **1234 to VPA shop@okaxis SHOP NAME on 01-06-24. Your UPI transaction reference number is 987654."

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "expenseapp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("GCP_PROJECT_ID", "")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestExtract_FromStdin(t *testing.T) {
	cfg := writeConfig(t, "log_level: error\n")
	out, err := run(t, debitAlert, "--config", cfg, "extract")
	require.NoError(t, err)
	assert.Contains(t, out, `"template": "UPI`)
	assert.Contains(t, out, `"merchant": "SHOP NAME"`)
	assert.Contains(t, out, `"amount": "45.5`)
}

func TestExtract_NoMatch(t *testing.T) {
	cfg := writeConfig(t, "log_level: error\n")
	out, err := run(t, "Your statement is ready.", "--config", cfg, "extract")
	assert.Error(t, err)
	assert.Contains(t, out, "no template matched")
}

func TestExtract_UnknownTemplate(t *testing.T) {
	cfg := writeConfig(t, "log_level: error\n")
	_, err := run(t, debitAlert, "--config", cfg, "extract", "--templates", "NOPE")
	assert.Error(t, err)
}

func TestChat_Loop(t *testing.T) {
	cfg := writeConfig(t, "log_level: error\n")
	out, err := run(t, "create goa\nlist\nquit\nlist\n", "--config", cfg, "chat", "--user", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "Created context 'goa'")
	assert.Equal(t, 1, strings.Count(out, "• goa"))
}

func TestChat_RequiresUser(t *testing.T) {
	cfg := writeConfig(t, "log_level: error\n")
	_, err := run(t, "", "--config", cfg, "chat", "help")
	assert.Error(t, err)
}

func TestMissingExplicitConfig(t *testing.T) {
	_, err := run(t, "", "--config", filepath.Join(t.TempDir(), "absent.yaml"), "extract")
	assert.Error(t, err)
}

func TestMigrate_NeedsProject(t *testing.T) {
	cfg := writeConfig(t, "log_level: error\n")
	_, err := run(t, "", "--config", cfg, "migrate")
	assert.ErrorContains(t, err, "gcp.project_id")
}

func TestExportNotion_Validation(t *testing.T) {
	cfg := writeConfig(t, "log_level: error\n")
	_, err := run(t, "", "--config", cfg, "export", "notion", "--user", "alice", "--context", "goa", "--from", "2024-06-30", "--to", "2024-06-01")
	assert.ErrorContains(t, err, "--to")

	_, err = run(t, "", "--config", cfg, "export", "notion", "--user", "alice", "--context", "goa", "--from", "2024-06-01", "--to", "2024-06-30")
	assert.ErrorContains(t, err, "notion.token")
}

func TestSync_NoUsers(t *testing.T) {
	cfg := writeConfig(t, "log_level: error\n")
	_, err := run(t, "", "--config", cfg, "sync")
	assert.ErrorContains(t, err, "no users")
}
