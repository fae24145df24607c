// Package migration applies versioned schema changes to the SQLite database.
//
// Migrations are plain SQL files named {version}_{description}.sql (for
// example "001_initial_schema.sql") read from an fs.FS, normally an embedded
// directory compiled into the binary. Each file runs inside its own
// transaction and is recorded in the schema_migrations table so it is never
// applied twice.
//
// Example usage:
//
//	manager := NewMigrationManager(NewFileScanner(files), NewSQLiteExecutor(db), "migrations", logger)
//	if err := manager.RunMigrations(ctx); err != nil {
//		return fmt.Errorf("migrate: %w", err)
//	}
package migration
