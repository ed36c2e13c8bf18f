package graphstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/njsecure/orbit"
	"github.com/njsecure/orbit/ingest"
)

// Neo4jConfig holds connection settings.
type Neo4jConfig struct {
	URI       string `yaml:"uri"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	Database  string `yaml:"database"`
	BatchSize int    `yaml:"batch_size"`

	// ConnectTimeout bounds connection acquisition. Zero uses 30s.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// Validate checks the configuration.
func (c Neo4jConfig) Validate() error {
	if c.URI == "" {
		return fmt.Errorf("%w: neo4j uri is required", orbit.ErrInvalidConfig)
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("%w: neo4j batch size must not be negative", orbit.ErrInvalidConfig)
	}
	return nil
}

// Neo4jLoader loads results into Neo4j in a single write transaction per
// load.
type Neo4jLoader struct {
	config Neo4jConfig
	driver neo4j.DriverWithContext
	logger *slog.Logger

	// exec runs a plan; replaced in tests.
	exec func(ctx context.Context, stmts []Statement) (LoadStats, error)
}

// NewNeo4jLoader connects to Neo4j and verifies connectivity.
func NewNeo4jLoader(ctx context.Context, cfg Neo4jConfig, logger *slog.Logger) (*Neo4jLoader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, orbit.NewConfigurationError("graphstore.NewNeo4jLoader", err)
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
		func(c *neo4j.Config) {
			c.ConnectionAcquisitionTimeout = cfg.ConnectTimeout
		})
	if err != nil {
		return nil, orbit.NewStorageError("graphstore.NewNeo4jLoader", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, orbit.NewStorageError("graphstore.NewNeo4jLoader",
			fmt.Errorf("connect to %s: %w", cfg.URI, err))
	}

	return newNeo4jLoader(cfg, driver, logger), nil
}

func newNeo4jLoader(cfg Neo4jConfig, driver neo4j.DriverWithContext, logger *slog.Logger) *Neo4jLoader {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Neo4jLoader{config: cfg, driver: driver, logger: logger}
	l.exec = l.executeWrite
	return l
}

// EnsureSchema creates the node id uniqueness constraint if it is missing.
func (l *Neo4jLoader) EnsureSchema(ctx context.Context) error {
	cypher := fmt.Sprintf("CREATE CONSTRAINT orbit_node_id IF NOT EXISTS FOR (n:%s) REQUIRE n.id IS UNIQUE", NodeLabel)
	if _, err := l.exec(ctx, []Statement{{Cypher: cypher}}); err != nil {
		return orbit.NewStorageError("Neo4jLoader.EnsureSchema", err)
	}
	return nil
}

// Load merges the result's nodes and edges. Aborted results are refused.
func (l *Neo4jLoader) Load(ctx context.Context, res *ingest.Result) (LoadStats, error) {
	if res == nil {
		return LoadStats{}, errors.New("graphstore: nil result")
	}
	if res.Aborted() {
		return LoadStats{}, fmt.Errorf("graphstore: refusing to load aborted run %s", res.RunID)
	}

	stmts := Plan(res, l.config.BatchSize)
	stats, err := l.exec(ctx, stmts)
	if err != nil {
		return LoadStats{}, orbit.NewStorageError("Neo4jLoader.Load", err).WithContext(map[string]any{
			"run_id": res.RunID,
		})
	}
	stats.Statements = len(stmts)
	stats.Nodes = len(res.Nodes)
	stats.Edges = len(res.Edges)

	l.logger.Info("result loaded into neo4j",
		"run_id", res.RunID,
		"nodes", stats.Nodes,
		"edges", stats.Edges,
		"nodes_created", stats.NodesCreated,
		"relationships_created", stats.RelationshipsCreated)
	return stats, nil
}

func (l *Neo4jLoader) executeWrite(ctx context.Context, stmts []Statement) (LoadStats, error) {
	session := l.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: l.config.Database,
		AccessMode:   neo4j.AccessModeWrite,
	})
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		var stats LoadStats
		for _, stmt := range stmts {
			res, err := tx.Run(ctx, stmt.Cypher, stmt.Params)
			if err != nil {
				return nil, err
			}
			summary, err := res.Consume(ctx)
			if err != nil {
				return nil, err
			}
			if c := summary.Counters(); c != nil {
				stats.NodesCreated += c.NodesCreated()
				stats.RelationshipsCreated += c.RelationshipsCreated()
				stats.PropertiesSet += c.PropertiesSet()
			}
		}
		return stats, nil
	})
	if err != nil {
		return LoadStats{}, err
	}
	return result.(LoadStats), nil
}

// Ping verifies connectivity.
func (l *Neo4jLoader) Ping(ctx context.Context) error {
	return l.driver.VerifyConnectivity(ctx)
}

// Close releases the driver.
func (l *Neo4jLoader) Close(ctx context.Context) error {
	if l.driver == nil {
		return nil
	}
	return l.driver.Close(ctx)
}
