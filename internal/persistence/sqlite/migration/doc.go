// Package migration applies versioned SQL schema files to a SQLite database.
//
// Migration files are named {version}_{description}.sql (for example
// "001_create_reservations.sql") and are read from an fs.FS, normally an embedded
// directory. Applied versions are tracked in the schema_migrations table so each file
// runs exactly once, inside its own transaction.
//
// Example usage:
//
//	manager := migration.NewManager(migration.NewExecutor(db), schemaFS, logger)
//	if _, err := manager.Run(ctx); err != nil {
//		return err
//	}
package migration
