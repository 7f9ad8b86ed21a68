package bigquery

import (
	"context"
	"crypto/sha256"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/subhatanay/expenseapp/internal/logger"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// migrationPattern matches migration files: 0001_name.sql
var migrationPattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

// Migration is one schema change file.
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// LoadMigrations reads the embedded migrations for ds, sorted by version.
func LoadMigrations(ds Dataset) ([]Migration, error) {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("LoadMigrations: %w", err)
	}
	return ReadMigrations(sub, ds)
}

// ReadMigrations reads NNNN_name.sql files from fsys and fills in the
// {{PROJECT_ID}} and {{DATASET_ID}} placeholders. The checksum is taken over
// the file as written, so the same migration has one checksum everywhere.
func ReadMigrations(fsys fs.FS, ds Dataset) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("ReadMigrations: reading directory: %w", err)
	}

	var migrations []Migration
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := migrationPattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		version, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}

		content, err := fs.ReadFile(fsys, e.Name())
		if err != nil {
			return nil, fmt.Errorf("ReadMigrations: reading %s: %w", e.Name(), err)
		}

		sql := strings.ReplaceAll(string(content), "{{PROJECT_ID}}", ds.ProjectID)
		sql = strings.ReplaceAll(sql, "{{DATASET_ID}}", ds.DatasetID)

		migrations = append(migrations, Migration{
			Version:  version,
			Name:     m[2],
			Filename: e.Name(),
			SQL:      sql,
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// Migrate applies every embedded migration not yet recorded in
// schema_migrations and returns how many ran.
func Migrate(ctx context.Context, client *bigquery.Client, ds Dataset, appliedBy string) (int, error) {
	log := logger.FromContext(ctx)

	if err := ensureSchemaMigrationsTable(ctx, client, ds); err != nil {
		return 0, fmt.Errorf("Migrate: ensuring schema_migrations: %w", err)
	}

	migrations, err := LoadMigrations(ds)
	if err != nil {
		return 0, fmt.Errorf("Migrate: %w", err)
	}

	applied, err := appliedVersions(ctx, client, ds)
	if err != nil {
		return 0, fmt.Errorf("Migrate: %w", err)
	}

	count := 0
	for _, m := range migrations {
		mlog := log.With().Int("version", m.Version).Str("name", m.Name).Logger()
		if applied[m.Version] {
			mlog.Debug().Msg("Migration already applied")
			continue
		}

		if _, err := runDML(ctx, client.Query(m.SQL)); err != nil {
			return count, fmt.Errorf("Migrate: applying %s: %w", m.Filename, err)
		}
		if err := recordMigration(ctx, client, ds, m, appliedBy); err != nil {
			return count, fmt.Errorf("Migrate: recording %s: %w", m.Filename, err)
		}
		mlog.Info().Msg("Applied migration")
		count++
	}
	return count, nil
}

func ensureSchemaMigrationsTable(ctx context.Context, client *bigquery.Client, ds Dataset) error {
	q := client.Query(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version    INT64 NOT NULL,
			name       STRING NOT NULL,
			applied_at TIMESTAMP NOT NULL,
			checksum   STRING,
			applied_by STRING
		)
	`, ds.Table("schema_migrations")))
	_, err := runDML(ctx, q)
	return err
}

func appliedVersions(ctx context.Context, client *bigquery.Client, ds Dataset) (map[int]bool, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT version
		FROM %s
		ORDER BY version ASC
	`, ds.Table("schema_migrations")))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	out := make(map[int]bool)
	for {
		var row struct {
			Version int64 `bigquery:"version"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating applied migrations: %w", err)
		}
		out[int(row.Version)] = true
	}
	return out, nil
}

func recordMigration(ctx context.Context, client *bigquery.Client, ds Dataset, m Migration, appliedBy string) error {
	q := client.Query(fmt.Sprintf(`
		INSERT INTO %s
		(version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
	`, ds.Table("schema_migrations")))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "version", Value: m.Version},
		{Name: "name", Value: m.Name},
		{Name: "checksum", Value: m.Checksum},
		{Name: "applied_by", Value: appliedBy},
	}
	_, err := runDML(ctx, q)
	return err
}
