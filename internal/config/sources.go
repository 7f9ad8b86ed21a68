package config

import (
	"fmt"

	"github.com/subhatanay/expenseapp/internal/extract"
	"github.com/subhatanay/expenseapp/internal/ingest"
)

// Registry compiles the configured templates, or the built-in ones when the
// file declares none.
func (c *Config) Registry() (*extract.Registry, error) {
	if len(c.Templates) == 0 {
		return extract.DefaultRegistry(), nil
	}
	reg := extract.NewRegistry()
	for _, t := range c.Templates {
		if err := reg.Register(t); err != nil {
			return nil, fmt.Errorf("Registry: %w", err)
		}
	}
	return reg, nil
}

// RegisterSources registers every configured user source with the syncer.
func (c *Config) RegisterSources(syncer *ingest.Syncer, reg *extract.Registry) error {
	for _, u := range c.Users {
		for _, s := range u.Sources {
			patterns, err := reg.Templates(s.Templates...)
			if err != nil {
				return fmt.Errorf("RegisterSources: user %s source %s: %w", u.ID, s.Name, err)
			}
			syncer.Register(u.ID, ingest.Source{Name: s.Name, Patterns: patterns})
		}
	}
	return nil
}

// SyncOptions converts the sync section into ingest options.
func (c *Config) SyncOptions() ingest.Options {
	return ingest.Options{
		FetchTimeout: c.Sync.FetchTimeout,
		WriteTimeout: c.Sync.WriteTimeout,
	}
}
