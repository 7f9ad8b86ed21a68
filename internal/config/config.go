package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/subhatanay/expenseapp/internal/domain"
)

// Config is the top-level expenseapp.yaml configuration.
type Config struct {
	LogLevel  string            `yaml:"log_level"`
	GCP       GCPConfig         `yaml:"gcp"`
	Server    ServerConfig      `yaml:"server"`
	Sync      SyncConfig        `yaml:"sync"`
	Telegram  TelegramConfig    `yaml:"telegram"`
	Notion    NotionConfig      `yaml:"notion"`
	Templates []domain.Template `yaml:"templates,omitempty"`
	Users     []UserConfig      `yaml:"users"`
}

// GCPConfig locates the BigQuery dataset and the Cloud Storage bucket.
// An empty project selects the in-memory stores.
type GCPConfig struct {
	ProjectID string `yaml:"project_id"`
	Dataset   string `yaml:"dataset"`
	Bucket    string `yaml:"bucket"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Port   string `yaml:"port"`
	APIKey string `yaml:"api_key,omitempty"`
}

// SyncConfig controls ingestion scheduling and timeouts.
type SyncConfig struct {
	Interval     time.Duration `yaml:"interval"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	Concurrency  int           `yaml:"concurrency"`
}

// TelegramConfig holds the bot token used for notifications and chat.
type TelegramConfig struct {
	Token string `yaml:"token,omitempty"`
}

// NotionConfig holds the export target.
type NotionConfig struct {
	Token      string `yaml:"token,omitempty"`
	DatabaseID string `yaml:"database_id,omitempty"`
}

// UserConfig is one user of the bot with the mailboxes to sync.
type UserConfig struct {
	ID               string         `yaml:"id"`
	TelegramChatID   int64          `yaml:"telegram_chat_id,omitempty"`
	GmailCredentials string         `yaml:"gmail_credentials,omitempty"`
	Sources          []SourceConfig `yaml:"sources,omitempty"`
}

// SourceConfig names a mailbox source and its templates in priority order.
// An empty list selects every registered template.
type SourceConfig struct {
	Name      string   `yaml:"name"`
	Templates []string `yaml:"templates,omitempty"`
}

// Load reads an expenseapp.yaml file from disk and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a local run.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		GCP: GCPConfig{
			Dataset: "expenses",
		},
		Server: ServerConfig{
			Port: "8080",
		},
		Sync: SyncConfig{
			Interval:     15 * time.Minute,
			FetchTimeout: 30 * time.Second,
			WriteTimeout: 15 * time.Second,
			Concurrency:  4,
		},
	}
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.GCP.Dataset == "" {
		c.GCP.Dataset = d.GCP.Dataset
	}
	if c.Server.Port == "" {
		c.Server.Port = d.Server.Port
	}
	if c.Sync.Interval <= 0 {
		c.Sync.Interval = d.Sync.Interval
	}
	if c.Sync.FetchTimeout <= 0 {
		c.Sync.FetchTimeout = d.Sync.FetchTimeout
	}
	if c.Sync.WriteTimeout <= 0 {
		c.Sync.WriteTimeout = d.Sync.WriteTimeout
	}
	if c.Sync.Concurrency <= 0 {
		c.Sync.Concurrency = d.Sync.Concurrency
	}
}

// Validate checks user and source entries.
func (c *Config) Validate() error {
	seen := make(map[string]bool)
	for i, u := range c.Users {
		if u.ID == "" {
			return fmt.Errorf("Validate: users[%d]: id is required", i)
		}
		if seen[u.ID] {
			return fmt.Errorf("Validate: duplicate user %q", u.ID)
		}
		seen[u.ID] = true
		for j, s := range u.Sources {
			if s.Name == "" {
				return fmt.Errorf("Validate: users[%d].sources[%d]: name is required", i, j)
			}
		}
	}
	return nil
}

// ApplyEnv overrides file values from the environment, the way the
// binaries read GCS_BUCKET and friends.
func (c *Config) ApplyEnv() {
	setString(&c.GCP.ProjectID, "GCP_PROJECT_ID")
	setString(&c.GCP.Dataset, "BQ_DATASET")
	setString(&c.GCP.Bucket, "GCS_BUCKET")
	setString(&c.Server.APIKey, "API_KEY")
	setString(&c.Telegram.Token, "TELEGRAM_BOT_TOKEN")
	setString(&c.Notion.Token, "NOTION_TOKEN")
	setString(&c.Notion.DatabaseID, "NOTION_DATABASE_ID")
	setString(&c.LogLevel, "LOG_LEVEL")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// User returns the configured user with the given id.
func (c *Config) User(id string) (*UserConfig, bool) {
	for i := range c.Users {
		if c.Users[i].ID == id {
			return &c.Users[i], true
		}
	}
	return nil, false
}

// UserByChat resolves a Telegram chat id to a user id. Unknown chats get a
// synthetic "tg:<chat id>" user.
func (c *Config) UserByChat(chatID int64) string {
	for _, u := range c.Users {
		if u.TelegramChatID != 0 && u.TelegramChatID == chatID {
			return u.ID
		}
	}
	return "tg:" + strconv.FormatInt(chatID, 10)
}

// ChatIDs maps user ids to Telegram chat ids for the notifier.
func (c *Config) ChatIDs() map[string]int64 {
	out := make(map[string]int64)
	for _, u := range c.Users {
		if u.TelegramChatID != 0 {
			out[u.ID] = u.TelegramChatID
		}
	}
	return out
}

// GmailCredentials maps user ids to their Gmail credentials files.
func (c *Config) GmailCredentials() map[string]string {
	out := make(map[string]string)
	for _, u := range c.Users {
		if u.GmailCredentials != "" {
			out[u.ID] = u.GmailCredentials
		}
	}
	return out
}
