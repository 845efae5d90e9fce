package storage

import (
	"context"
	"fmt"
)

// Open connects the backend named by driver. For "postgres" pending
// migrations from migrationsPath are applied before connecting; "sqlite"
// creates its schema on open.
func Open(ctx context.Context, driver, path, dsn, migrationsPath string) (Store, error) {
	switch driver {
	case "sqlite":
		return OpenSQLite(path)
	case "postgres":
		if err := RunMigrations(dsn, migrationsPath); err != nil {
			return nil, err
		}
		return New(ctx, dsn)
	}
	return nil, fmt.Errorf("unsupported database driver %q", driver)
}
