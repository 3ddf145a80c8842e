// Package migration applies versioned SQL files to a SQLite database.
//
// Migration files are named {version}_{description}.sql (for example
// "001_initial_schema.sql") and are read from any fs.FS, typically an
// embedded directory. Each file runs inside its own transaction and is
// recorded in the schema_migrations table so it never runs twice.
//
//	manager := migration.NewManager(migration.NewScanner(files, "migrations"), migration.NewExecutor(db), logger)
//	if err := manager.RunMigrations(ctx); err != nil {
//		return err
//	}
package migration
