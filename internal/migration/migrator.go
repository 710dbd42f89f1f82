package migration

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

// =============================================================================
// Embedded migration files
// =============================================================================

//go:embed migrations
var migrationsFS embed.FS

// DefaultTable is the version table golang-migrate keeps.
const DefaultTable = "schema_migrations"

// Dialect selects the SQL flavour of the embedded migrations.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
	DialectSQLite   Dialect = "sqlite"
)

// ParseDialect accepts the driver names used in configuration and by gorm.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(s) {
	case "postgres", "postgresql", "pg":
		return DialectPostgres, nil
	case "mysql", "mariadb":
		return DialectMySQL, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("unsupported database dialect: %s", s)
	}
}

// Dir returns the embedded directory holding d's migrations.
func (d Dialect) Dir() string {
	return path.Join("migrations", string(d))
}

// Status describes one migration.
type Status struct {
	Version uint   `json:"version"`
	Name    string `json:"name"`
	Applied bool   `json:"applied"`
	Dirty   bool   `json:"dirty"`
}

// Info summarises the migration state.
type Info struct {
	CurrentVersion    uint `json:"current_version"`
	Dirty             bool `json:"dirty"`
	TotalMigrations   int  `json:"total_migrations"`
	AppliedMigrations int  `json:"applied_migrations"`
	PendingMigrations int  `json:"pending_migrations"`
}

// =============================================================================
// Migrator
// =============================================================================

// Migrator applies the embedded schema to a database handle it does not own.
// Close releases the migrator's own resources and leaves db open.
type Migrator struct {
	dialect Dialect
	table   string
	migrate *migrate.Migrate
	source  source.Driver
	driver  database.Driver
	conn    *sql.Conn
	logger  *zap.Logger
}

// Option configures a Migrator.
type Option func(*Migrator)

// WithTable overrides the version table name.
func WithTable(name string) Option {
	return func(m *Migrator) {
		if name != "" {
			m.table = name
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Migrator) {
		if l != nil {
			m.logger = l
		}
	}
}

// New prepares a migrator for db. Postgres and MySQL run on a dedicated
// connection taken from db; SQLite shares the handle.
func New(ctx context.Context, db *sql.DB, dialect Dialect, opts ...Option) (*Migrator, error) {
	if db == nil {
		return nil, errors.New("database handle is required")
	}
	m := &Migrator{
		dialect: dialect,
		table:   DefaultTable,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(zap.String("component", "migration"), zap.String("dialect", string(dialect)))

	var err error
	if m.driver, err = m.openDriver(ctx, db); err != nil {
		m.release()
		return nil, fmt.Errorf("create %s migration driver: %w", dialect, err)
	}
	if m.source, err = iofs.New(migrationsFS, dialect.Dir()); err != nil {
		m.release()
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	if m.migrate, err = migrate.NewWithInstance("iofs", m.source, string(dialect), m.driver); err != nil {
		m.release()
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	return m, nil
}

func (m *Migrator) openDriver(ctx context.Context, db *sql.DB) (database.Driver, error) {
	switch m.dialect {
	case DialectPostgres, DialectMySQL:
		conn, err := db.Conn(ctx)
		if err != nil {
			return nil, err
		}
		m.conn = conn
		if m.dialect == DialectPostgres {
			drv, err := postgres.WithConnection(ctx, conn, &postgres.Config{MigrationsTable: m.table})
			if err != nil {
				return nil, err
			}
			return drv, nil
		}
		drv, err := mysql.WithConnection(ctx, conn, &mysql.Config{MigrationsTable: m.table})
		if err != nil {
			return nil, err
		}
		return drv, nil
	case DialectSQLite:
		return sqlite3.WithInstance(db, &sqlite3.Config{MigrationsTable: m.table})
	default:
		return nil, fmt.Errorf("unsupported database dialect: %s", m.dialect)
	}
}

// Up applies all pending migrations.
func (m *Migrator) Up(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.migrate.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	m.logVersion("migrations applied")
	return nil
}

// Down rolls back the last migration.
func (m *Migrator) Down(ctx context.Context) error {
	return m.Steps(ctx, -1)
}

// DownAll rolls back every migration.
func (m *Migrator) DownAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.migrate.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down all failed: %w", err)
	}
	m.logVersion("migrations rolled back")
	return nil
}

// Steps applies n migrations, or rolls back -n when n is negative.
func (m *Migrator) Steps(ctx context.Context, n int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.migrate.Steps(n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration steps failed: %w", err)
	}
	m.logVersion("migration steps applied")
	return nil
}

// Goto migrates up or down to version.
func (m *Migrator) Goto(ctx context.Context, version uint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.migrate.Migrate(version); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration goto failed: %w", err)
	}
	return nil
}

// Force records version without running anything. It is the way out of a
// dirty state after a failed migration was fixed by hand.
func (m *Migrator) Force(ctx context.Context, version int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.migrate.Force(version); err != nil {
		return fmt.Errorf("migration force failed: %w", err)
	}
	m.logger.Warn("migration version forced", zap.Int("version", version))
	return nil
}

// Version returns the applied version; zero means nothing was applied.
func (m *Migrator) Version(ctx context.Context) (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get version: %w", err)
	}
	return version, dirty, nil
}

// Status lists every embedded migration with its state.
func (m *Migrator) Status(ctx context.Context) ([]Status, error) {
	current, dirty, err := m.Version(ctx)
	if err != nil {
		return nil, err
	}
	files, err := available(m.dialect)
	if err != nil {
		return nil, err
	}

	statuses := make([]Status, 0, len(files))
	for _, f := range files {
		statuses = append(statuses, Status{
			Version: f.version,
			Name:    f.name,
			Applied: f.version <= current,
			Dirty:   dirty && f.version == current,
		})
	}
	return statuses, nil
}

// Info summarises Status.
func (m *Migrator) Info(ctx context.Context) (*Info, error) {
	statuses, err := m.Status(ctx)
	if err != nil {
		return nil, err
	}
	current, dirty, err := m.Version(ctx)
	if err != nil {
		return nil, err
	}
	applied := 0
	for _, s := range statuses {
		if s.Applied {
			applied++
		}
	}
	return &Info{
		CurrentVersion:    current,
		Dirty:             dirty,
		TotalMigrations:   len(statuses),
		AppliedMigrations: applied,
		PendingMigrations: len(statuses) - applied,
	}, nil
}

// Close releases the migration source and the dedicated connection.
func (m *Migrator) Close() error {
	return m.release()
}

// release closes what the migrator opened. The SQLite driver's Close would
// close the shared handle, so it is skipped.
func (m *Migrator) release() error {
	var errs []error
	if m.source != nil {
		if err := m.source.Close(); err != nil {
			errs = append(errs, err)
		}
		m.source = nil
	}
	if m.conn != nil {
		if m.driver != nil {
			if err := m.driver.Close(); err != nil {
				errs = append(errs, err)
			}
		} else if err := m.conn.Close(); err != nil {
			errs = append(errs, err)
		}
		m.conn = nil
	}
	m.driver = nil
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to close migrator: %w", err)
	}
	return nil
}

func (m *Migrator) logVersion(msg string) {
	version, dirty, err := m.migrate.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		m.logger.Warn("failed to read migration version", zap.Error(err))
		return
	}
	m.logger.Info(msg, zap.Uint("version", version), zap.Bool("dirty", dirty))
}

// =============================================================================
// Embedded files
// =============================================================================

type migrationFile struct {
	version uint
	name    string
}

// available lists the embedded migrations of d in version order. Names
// follow golang-migrate's 000001_name.up.sql layout.
func available(d Dialect) ([]migrationFile, error) {
	entries, err := fs.ReadDir(migrationsFS, d.Dir())
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var files []migrationFile
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		prefix, rest, ok := strings.Cut(name, "_")
		if !ok {
			continue
		}
		version, err := strconv.ParseUint(prefix, 10, 32)
		if err != nil {
			continue
		}
		files = append(files, migrationFile{
			version: uint(version),
			name:    strings.TrimSuffix(rest, ".up.sql"),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].version < files[j].version })
	return files, nil
}
