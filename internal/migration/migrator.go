package migration

import (
	"cmp"
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationsFS embed.FS

// DatabaseType names a SQL dialect with its own migration set under
// migrations/<type>.
type DatabaseType string

const (
	DatabaseTypePostgres DatabaseType = "postgres"
	DatabaseTypeMySQL    DatabaseType = "mysql"
	DatabaseTypeSQLite   DatabaseType = "sqlite"
)

// dialect ties a DatabaseType to its database/sql driver and the
// golang-migrate driver that records applied versions in table.
type dialect struct {
	sqlDriver string
	instance  func(db *sql.DB, table string) (database.Driver, error)
}

var dialects = map[DatabaseType]dialect{
	DatabaseTypePostgres: {"postgres", func(db *sql.DB, table string) (database.Driver, error) {
		return postgres.WithInstance(db, &postgres.Config{MigrationsTable: table})
	}},
	DatabaseTypeMySQL: {"mysql", func(db *sql.DB, table string) (database.Driver, error) {
		return mysql.WithInstance(db, &mysql.Config{MigrationsTable: table})
	}},
	// "sqlite" is the pure-Go glebarez driver, so no cgo is needed.
	DatabaseTypeSQLite: {"sqlite", func(db *sql.DB, table string) (database.Driver, error) {
		return sqlite3.WithInstance(db, &sqlite3.Config{MigrationsTable: table})
	}},
}

func lookupDialect(t DatabaseType) (dialect, error) {
	d, ok := dialects[t]
	if !ok {
		return dialect{}, fmt.Errorf("unsupported database type: %s", t)
	}
	return d, nil
}

// MigrationStatus is one migration file and whether it is applied.
type MigrationStatus struct {
	Version uint
	Name    string
	Applied bool
	Dirty   bool
}

// MigrationInfo summarizes the schema state.
type MigrationInfo struct {
	CurrentVersion    uint
	Dirty             bool
	TotalMigrations   int
	AppliedMigrations int
	PendingMigrations int
}

type Config struct {
	DatabaseType DatabaseType
	// DatabaseURL is a driver DSN, see BuildDatabaseURL.
	DatabaseURL string
	// TableName defaults to schema_migrations.
	TableName   string
	LockTimeout time.Duration
}

// Migrator manages the conversation, account and assessment tables.
type Migrator interface {
	Up(ctx context.Context) error
	// Down rolls back one migration.
	Down(ctx context.Context) error
	DownAll(ctx context.Context) error
	// Steps applies n migrations, or rolls back -n when n is negative.
	Steps(ctx context.Context, n int) error
	// Force records version without running anything, clearing the dirty flag.
	Force(ctx context.Context, version int) error
	Version(ctx context.Context) (uint, bool, error)
	Status(ctx context.Context) ([]MigrationStatus, error)
	Info(ctx context.Context) (*MigrationInfo, error)
	Close() error
}

// DefaultMigrator runs the embedded SQL files through golang-migrate.
type DefaultMigrator struct {
	dbType  DatabaseType
	migrate *migrate.Migrate
}

var _ Migrator = (*DefaultMigrator)(nil)

// NewMigrator connects to the database and loads the migration set for
// its dialect.
func NewMigrator(cfg *Config) (*DefaultMigrator, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required")
	}
	d, err := lookupDialect(cfg.DatabaseType)
	if err != nil {
		return nil, err
	}
	table := cfg.TableName
	if table == "" {
		table = "schema_migrations"
	}

	db, err := sql.Open(d.sqlDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DatabaseType, err)
	}
	m, err := newWithDB(db, cfg.DatabaseType, d, table)
	if err != nil {
		db.Close()
		return nil, err
	}
	m.migrate.LockTimeout = cmp.Or(cfg.LockTimeout, 15*time.Second)
	return m, nil
}

func newWithDB(db *sql.DB, t DatabaseType, d dialect, table string) (*DefaultMigrator, error) {
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping %s: %w", t, err)
	}
	driver, err := d.instance(db, table)
	if err != nil {
		return nil, fmt.Errorf("migrate driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, path.Join("migrations", string(t)))
	if err != nil {
		return nil, fmt.Errorf("migration source: %w", err)
	}
	mg, err := migrate.NewWithInstance("iofs", src, string(t), driver)
	if err != nil {
		return nil, fmt.Errorf("migrate instance: %w", err)
	}
	return &DefaultMigrator{dbType: t, migrate: mg}, nil
}

// run treats ErrNoChange as success.
func run(op string, err error) error {
	if err == nil || errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (m *DefaultMigrator) Up(ctx context.Context) error {
	return run("migrate up", m.migrate.Up())
}

func (m *DefaultMigrator) Down(ctx context.Context) error {
	return run("migrate down", m.migrate.Steps(-1))
}

func (m *DefaultMigrator) DownAll(ctx context.Context) error {
	return run("migrate down all", m.migrate.Down())
}

func (m *DefaultMigrator) Steps(ctx context.Context, n int) error {
	return run(fmt.Sprintf("migrate %+d steps", n), m.migrate.Steps(n))
}

func (m *DefaultMigrator) Force(ctx context.Context, version int) error {
	if err := m.migrate.Force(version); err != nil {
		return fmt.Errorf("force version %d: %w", version, err)
	}
	return nil
}

// Version reports 0 when nothing has been applied.
func (m *DefaultMigrator) Version(ctx context.Context) (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return 0, false, nil
	case err != nil:
		return 0, false, fmt.Errorf("read schema version: %w", err)
	}
	return version, dirty, nil
}

// Status lists every embedded migration. A migration counts as applied when
// its version is at or below the recorded one.
func (m *DefaultMigrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	current, dirty, err := m.Version(ctx)
	if err != nil {
		return nil, err
	}
	files, err := availableMigrations(m.dbType)
	if err != nil {
		return nil, err
	}
	out := make([]MigrationStatus, len(files))
	for i, f := range files {
		out[i] = MigrationStatus{
			Version: f.version,
			Name:    f.name,
			Applied: f.version <= current,
			Dirty:   dirty && f.version == current,
		}
	}
	return out, nil
}

func (m *DefaultMigrator) Info(ctx context.Context) (*MigrationInfo, error) {
	current, dirty, err := m.Version(ctx)
	if err != nil {
		return nil, err
	}
	statuses, err := m.Status(ctx)
	if err != nil {
		return nil, err
	}
	info := &MigrationInfo{CurrentVersion: current, Dirty: dirty, TotalMigrations: len(statuses)}
	for _, s := range statuses {
		if s.Applied {
			info.AppliedMigrations++
		}
	}
	info.PendingMigrations = info.TotalMigrations - info.AppliedMigrations
	return info, nil
}

// Close releases the source and the database handle.
func (m *DefaultMigrator) Close() error {
	if m.migrate == nil {
		return nil
	}
	sourceErr, dbErr := m.migrate.Close()
	return errors.Join(sourceErr, dbErr)
}

type migrationFile struct {
	version uint
	name    string
}

// availableMigrations reads the NNNNNN_name.up.sql files of a dialect,
// ordered by version.
func availableMigrations(t DatabaseType) ([]migrationFile, error) {
	if _, err := lookupDialect(t); err != nil {
		return nil, err
	}
	matches, err := fs.Glob(migrationsFS, path.Join("migrations", string(t), "*.up.sql"))
	if err != nil {
		return nil, err
	}
	files := make([]migrationFile, 0, len(matches))
	for _, p := range matches {
		prefix, rest, ok := strings.Cut(path.Base(p), "_")
		if !ok {
			continue
		}
		v, err := strconv.ParseUint(prefix, 10, 32)
		if err != nil {
			continue
		}
		files = append(files, migrationFile{version: uint(v), name: strings.TrimSuffix(rest, ".up.sql")})
	}
	slices.SortFunc(files, func(a, b migrationFile) int { return int(a.version) - int(b.version) })
	return files, nil
}

// ParseDatabaseType accepts the driver names used in config and on the
// command line, plus common aliases.
func ParseDatabaseType(s string) (DatabaseType, error) {
	switch strings.ToLower(s) {
	case "postgres", "postgresql", "pg":
		return DatabaseTypePostgres, nil
	case "mysql", "mariadb":
		return DatabaseTypeMySQL, nil
	case "sqlite", "sqlite3":
		return DatabaseTypeSQLite, nil
	}
	return "", fmt.Errorf("unsupported database type: %s", s)
}

// BuildDatabaseURL builds the DSN for t. MySQL needs multiStatements for
// the multi-table migrations. For SQLite name is the file path.
func BuildDatabaseURL(t DatabaseType, host string, port int, name, user, password, sslMode string) string {
	switch t {
	case DatabaseTypePostgres:
		return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s", user, password, host, port, name, cmp.Or(sslMode, "require"))
	case DatabaseTypeMySQL:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&multiStatements=true", user, password, host, port, name)
	case DatabaseTypeSQLite:
		return "file:" + name + "?_pragma=foreign_keys(1)"
	}
	return ""
}
