package journal

import (
	"context"
	"embed"
	"fmt"
	"sort"
)

// migrationsFS embeds the schema migration files.
//
//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies all embedded migrations in filename order. Statements are
// idempotent, so re-running on an existing schema is safe.
func Migrate(ctx context.Context, pool *Pool) error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		sql, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return nil
}
