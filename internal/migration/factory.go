package migration

import (
	"context"
	"fmt"

	"github.com/BaSui01/sunyadvisor/config"
	"go.uber.org/zap"
)

// NewMigratorFromDatabaseConfig builds a migrator for the configured database.
func NewMigratorFromDatabaseConfig(dbCfg config.DatabaseConfig) (*DefaultMigrator, error) {
	dbType, err := ParseDatabaseType(dbCfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("invalid database type: %w", err)
	}

	var dbURL string
	switch dbType {
	case DatabaseTypePostgres:
		dbURL = BuildDatabaseURL(dbType, dbCfg.Host, dbCfg.Port, dbCfg.Name, dbCfg.User, dbCfg.Password, dbCfg.SSLMode)
	case DatabaseTypeMySQL:
		dbURL = BuildDatabaseURL(dbType, dbCfg.Host, dbCfg.Port, dbCfg.Name, dbCfg.User, dbCfg.Password, "")
	case DatabaseTypeSQLite:
		dbURL = BuildDatabaseURL(dbType, "", 0, dbCfg.Name, "", "", "")
	}

	return NewMigrator(&Config{DatabaseType: dbType, DatabaseURL: dbURL})
}

// NewMigratorFromURL builds a migrator from an explicit DSN.
func NewMigratorFromURL(dbType, dbURL string) (*DefaultMigrator, error) {
	dt, err := ParseDatabaseType(dbType)
	if err != nil {
		return nil, err
	}
	return NewMigrator(&Config{DatabaseType: dt, DatabaseURL: dbURL})
}

// Apply brings the configured database to the latest schema. serve calls it
// when database.auto_migrate is set.
func Apply(ctx context.Context, dbCfg config.DatabaseConfig, logger *zap.Logger) error {
	m, err := NewMigratorFromDatabaseConfig(dbCfg)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(ctx); err != nil {
		return err
	}
	version, _, err := m.Version(ctx)
	if err != nil {
		return err
	}
	logger.Info("database schema is current",
		zap.String("driver", dbCfg.Driver),
		zap.Uint("version", version),
	)
	return nil
}
