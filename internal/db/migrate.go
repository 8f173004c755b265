package db

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"github.com/sirupsen/logrus"
)

//go:embed migrations/*.up.sql
var migrations embed.FS

// Migrate applies the embedded schema migrations in file name order.
// Every migration is idempotent, so running it on an existing schema is a no-op.
func Migrate(ctx context.Context, pool *Pool, log logrus.FieldLogger) error {
	names, err := fs.Glob(migrations, "migrations/*.up.sql")
	if err != nil {
		return fmt.Errorf("failed to list migrations: %w", err)
	}
	sort.Strings(names)

	for _, name := range names {
		sql, err := migrations.ReadFile(name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", name, err)
		}
		log.WithField("migration", name).Info("migration applied")
	}
	return nil
}
