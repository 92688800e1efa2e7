// Package db provides Neo4j graph store connectivity using the official driver.
package db

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/MacJediWizard/orggraph/internal/metrics"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/config"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.cypher
var migrationsFS embed.FS

// Config holds graph store connection configuration.
type Config struct {
	URI                          string
	Username                     string
	Password                     string
	Database                     string
	MaxConnectionPoolSize        int
	ConnectionAcquisitionTimeout time.Duration
	// MaxChainDepth bounds every variable-length SUPERVISED_BY traversal.
	MaxChainDepth int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(uri string) Config {
	return Config{
		URI:                          uri,
		Username:                     "neo4j",
		Database:                     "neo4j",
		MaxConnectionPoolSize:        50,
		ConnectionAcquisitionTimeout: 30 * time.Second,
		MaxChainDepth:                32,
	}
}

// RoundTripRecorder receives one call per store round trip.
type RoundTripRecorder interface {
	RecordRoundTrip(ctx context.Context)
}

type nopRecorder struct{}

func (nopRecorder) RecordRoundTrip(context.Context) {}

// DB wraps a Neo4j driver with helper methods.
type DB struct {
	Driver        neo4j.DriverWithContext
	database      string
	uri           string
	maxChainDepth int
	recorder      RoundTripRecorder
	logger        zerolog.Logger
}

// New creates a driver and verifies connectivity.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) (*DB, error) {
	driver, err := neo4j.NewDriverWithContext(
		cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
		func(c *config.Config) {
			if cfg.MaxConnectionPoolSize > 0 {
				c.MaxConnectionPoolSize = cfg.MaxConnectionPoolSize
			}
			if cfg.ConnectionAcquisitionTimeout > 0 {
				c.ConnectionAcquisitionTimeout = cfg.ConnectionAcquisitionTimeout
			}
		},
	)
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}

	depth := cfg.MaxChainDepth
	if depth <= 0 {
		depth = DefaultConfig(cfg.URI).MaxChainDepth
	}

	db := &DB{
		Driver:        driver,
		database:      cfg.Database,
		uri:           cfg.URI,
		maxChainDepth: depth,
		recorder:      nopRecorder{},
		logger:        logger.With().Str("component", "db").Logger(),
	}

	if err := db.Ping(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("ping database: %w", err)
	}

	db.logger.Info().Str("uri", cfg.URI).Str("database", cfg.Database).Msg("graph store connection established")
	return db, nil
}

// SetRecorder installs the recorder that is told about every round trip.
func (db *DB) SetRecorder(r RoundTripRecorder) {
	if r == nil {
		r = nopRecorder{}
	}
	db.recorder = r
}

// MaxChainDepth returns the configured bound on supervision traversals.
func (db *DB) MaxChainDepth() int {
	return db.maxChainDepth
}

// Ping verifies the database connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.Driver.VerifyConnectivity(ctx)
}

// Close closes the driver and its connection pool.
func (db *DB) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.Driver.Close(ctx); err != nil {
		db.logger.Warn().Err(err).Msg("error closing graph store driver")
		return
	}
	db.logger.Info().Msg("graph store connection closed")
}

// Health returns basic information about the connected server.
func (db *DB) Health(ctx context.Context) map[string]any {
	health := map[string]any{
		"uri":      db.uri,
		"database": db.database,
	}
	info, err := db.Driver.GetServerInfo(ctx)
	if err != nil {
		health["error"] = err.Error()
		return health
	}
	health["address"] = info.Address()
	health["agent"] = info.Agent()
	return health
}

// run executes a single auto-committed statement as one round trip.
func (db *DB) run(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	db.logStatement(ctx, query)
	db.recorder.RecordRoundTrip(ctx)

	result, err := neo4j.ExecuteQuery(ctx, db.Driver, query, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(db.database),
	)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	return result, nil
}

// ExecTx runs fn inside a managed write transaction. The whole transaction
// counts as one round trip; statements run through txRun are still logged.
func (db *DB) ExecTx(ctx context.Context, fn func(tx neo4j.ManagedTransaction) error) error {
	db.recorder.RecordRoundTrip(ctx)

	session := db.Driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: db.database,
		AccessMode:   neo4j.AccessModeWrite,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, fn(tx)
	})
	return err
}

// txRun executes one statement inside a transaction and collects its records.
func (db *DB) txRun(ctx context.Context, tx neo4j.ManagedTransaction, query string, params map[string]any) ([]*neo4j.Record, error) {
	db.logStatement(ctx, query)

	result, err := tx.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}
	return result.Collect(ctx)
}

func (db *DB) logStatement(ctx context.Context, query string) {
	db.logger.Debug().
		Str("operation", metrics.OperationFrom(ctx)).
		Str("cypher", strings.Join(strings.Fields(query), " ")).
		Msg("executing statement")
}

// Migration represents a schema migration.
type Migration struct {
	Version int
	Name    string
	Cypher  string
}

// Statements splits the migration into individually executable statements.
// Schema changes cannot share a transaction with writes, so each runs alone.
func (m Migration) Statements() []string {
	var lines []string
	for _, line := range strings.Split(m.Cypher, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "//") {
			continue
		}
		lines = append(lines, line)
	}

	var stmts []string
	for _, stmt := range strings.Split(strings.Join(lines, "\n"), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// GetMigrations returns all embedded migrations sorted by version.
func GetMigrations() ([]Migration, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}

	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".cypher") {
			continue
		}

		content, err := fs.ReadFile(migrationsFS, "migrations/"+entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		var version int
		var name string
		_, err = fmt.Sscanf(entry.Name(), "%d_%s", &version, &name)
		if err != nil {
			return nil, fmt.Errorf("parse migration filename %s: %w", entry.Name(), err)
		}

		name = strings.TrimSuffix(entry.Name(), ".cypher")

		migrations = append(migrations, Migration{
			Version: version,
			Name:    name,
			Cypher:  string(content),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// Migrate runs all pending schema migrations. Every migration statement is
// idempotent, so two servers racing on startup converge on the same schema.
func (db *DB) Migrate(ctx context.Context) error {
	applied, err := db.AppliedVersions(ctx)
	if err != nil {
		return err
	}

	migrations, err := GetMigrations()
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.Version] {
			db.logger.Debug().Int("version", m.Version).Str("name", m.Name).Msg("migration already applied")
			continue
		}

		db.logger.Info().Int("version", m.Version).Str("name", m.Name).Msg("applying migration")

		for _, stmt := range m.Statements() {
			if _, err := db.run(ctx, stmt, nil); err != nil {
				return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Name, err)
			}
		}

		if _, err := db.run(ctx, `
			MERGE (m:SchemaMigration {version: $version})
			SET m.name = $name, m.appliedAt = datetime()
		`, map[string]any{"version": m.Version, "name": m.Name}); err != nil {
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		db.logger.Info().Int("version", m.Version).Str("name", m.Name).Msg("migration applied successfully")
	}

	return nil
}

// AppliedVersions returns the set of migration versions recorded in the store.
func (db *DB) AppliedVersions(ctx context.Context) (map[int]bool, error) {
	result, err := db.run(ctx, `MATCH (m:SchemaMigration) RETURN m.version AS version`, nil)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}

	applied := make(map[int]bool, len(result.Records))
	for _, record := range result.Records {
		v, _, err := neo4j.GetRecordValue[int64](record, "version")
		if err != nil {
			return nil, fmt.Errorf("read migration version: %w", err)
		}
		applied[int(v)] = true
	}
	return applied, nil
}

// CurrentVersion returns the current schema version.
func (db *DB) CurrentVersion(ctx context.Context) (int, error) {
	result, err := db.run(ctx, `MATCH (m:SchemaMigration) RETURN coalesce(max(m.version), 0) AS version`, nil)
	if err != nil {
		return 0, fmt.Errorf("get current version: %w", err)
	}
	if len(result.Records) == 0 {
		return 0, nil
	}
	v, _, err := neo4j.GetRecordValue[int64](result.Records[0], "version")
	if err != nil {
		return 0, fmt.Errorf("get current version: %w", err)
	}
	return int(v), nil
}
