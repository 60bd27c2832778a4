// Package migrate handles SQL database migration for the Stagehand record store
package migrate

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

const (
	// DialectSQLite is used for SQLite databases
	DialectSQLite = "sqlite"
	// DialectPostgres is used for PostgreSQL databases
	DialectPostgres = "postgres"
)

type dbMigration struct {
	Version uint
	Queries []string
}

// Execute runs the current DB migration on the given database
func (mig *dbMigration) Execute(db *sqlx.DB, dialect string, logger *logrus.Entry) error {
	// Check if the migration has already run
	query := db.Rebind(`SELECT success FROM schema_migrations WHERE version = ?`)
	var success = false
	if err := db.QueryRow(query, mig.Version).Scan(&success); err != nil && err != sql.ErrNoRows {
		logger.WithError(err).Error("Failed to fetch version information")
		return err
	}
	if success {
		return nil
	}
	logger.Infof("Executing DB migration #%d", mig.Version)
	for i, query := range mig.Queries {
		logger.Debugf("Query %d of %d...", i+1, len(mig.Queries))
		if _, err := db.Exec(query); err != nil {
			logger.WithError(err).Errorf("Query #%d failed", i+1)
			if serr := saveStatus(db, dialect, mig.Version, false); serr != nil {
				logger.WithError(serr).Error("Failed to record the failed migration")
			}
			return err
		}
	}
	return saveStatus(db, dialect, mig.Version, true)
}

func saveStatus(db *sqlx.DB, dialect string, version uint, success bool) error {
	query := `INSERT OR REPLACE INTO schema_migrations(version, success) VALUES(?, ?)`
	if dialect == DialectPostgres {
		query = `INSERT INTO schema_migrations(version, success) VALUES(?, ?)
			ON CONFLICT (version) DO UPDATE SET success = EXCLUDED.success`
	}
	_, err := db.Exec(db.Rebind(query), version, success)
	return err
}

// ExecuteMigrationsOnDb executes the database migrations of the given dialect on the given database instance
func ExecuteMigrationsOnDb(db *sqlx.DB, dialect string, logger *logrus.Entry) error {
	migrations, ok := migrationsByDialect[dialect]
	if !ok {
		return fmt.Errorf("ExecuteMigrationsOnDb: Unknown SQL dialect '%s'", dialect)
	}
	// Create the migrations table if it does not exist, yet
	query := `CREATE TABLE IF NOT EXISTS schema_migrations (
                version   INTEGER NOT NULL,
                success   BOOLEAN NOT NULL DEFAULT FALSE,
                PRIMARY KEY(version)
            )`
	if _, err := db.Exec(query); err != nil {
		logger.WithError(err).Error("Failed to create migrations table")
		return err
	}
	for _, mig := range migrations {
		if err := mig.Execute(db, dialect, logger); err != nil {
			logger.WithError(err).Errorf("Failed to execute migration #%d", mig.Version)
			return err
		}
	}
	return nil
}

// For now, the migrations are part of the package...
var migrationsByDialect = map[string][]dbMigration{
	DialectSQLite: {
		{
			Version: 1,
			Queries: []string{
				`CREATE TABLE performances (
                    id VARCHAR(36) NOT NULL PRIMARY KEY,
                    title VARCHAR(255) NOT NULL,
                    description TEXT NULL,
                    cover_image TEXT NULL,
                    start_date VARCHAR(64) NULL,
                    end_date VARCHAR(64) NULL,
                    tagged_users TEXT NOT NULL DEFAULT '[]',
                    created_by VARCHAR(64) NOT NULL,
                    drive_folder_id VARCHAR(255) NULL,
                    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
                    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
                );`,
				`CREATE INDEX idx_performances_created_at ON performances (created_at DESC);`,
			},
		},
		{
			Version: 2,
			Queries: []string{
				`CREATE INDEX idx_performances_created_by ON performances (created_by ASC);`,
			},
		},
	},
	DialectPostgres: {
		{
			Version: 1,
			Queries: []string{
				`CREATE TABLE performances (
                    id UUID NOT NULL PRIMARY KEY DEFAULT gen_random_uuid(),
                    title VARCHAR(255) NOT NULL,
                    description TEXT NULL,
                    cover_image TEXT NULL,
                    start_date VARCHAR(64) NULL,
                    end_date VARCHAR(64) NULL,
                    tagged_users TEXT[] NOT NULL DEFAULT '{}',
                    created_by VARCHAR(64) NOT NULL,
                    drive_folder_id VARCHAR(255) NULL,
                    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
                    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
                );`,
				`CREATE INDEX idx_performances_created_at ON performances (created_at DESC);`,
			},
		},
		{
			Version: 2,
			Queries: []string{
				`CREATE INDEX idx_performances_created_by ON performances (created_by ASC);`,
			},
		},
	},
}
