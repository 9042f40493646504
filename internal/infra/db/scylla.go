package db

import (
	"context"
	"fmt"

	"github.com/gocql/gocql"

	"github.com/acme/call-connection/internal/config"
)

// Scylla wraps a gocql session.
type Scylla struct {
	session *gocql.Session
}

// NewScylla creates a new Scylla session. The keyspace is created with
// SimpleStrategy when it does not exist yet.
func NewScylla(cfg config.ScyllaConfig) (*Scylla, error) {
	if cfg.Keyspace != "" {
		if err := ensureKeyspace(cfg); err != nil {
			return nil, err
		}
	}

	cluster := newCluster(cfg)
	cluster.Keyspace = cfg.Keyspace

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("scylla: create session: %w", err)
	}

	return &Scylla{session: session}, nil
}

func newCluster(cfg config.ScyllaConfig) *gocql.ClusterConfig {
	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Port = cfg.Port
	cluster.Consistency = parseConsistency(cfg.Consistency)
	cluster.Timeout = cfg.Timeout
	cluster.RetryPolicy = &gocql.SimpleRetryPolicy{NumRetries: 3}
	return cluster
}

func ensureKeyspace(cfg config.ScyllaConfig) error {
	session, err := newCluster(cfg).CreateSession()
	if err != nil {
		return fmt.Errorf("scylla: bootstrap session: %w", err)
	}
	defer session.Close()

	stmt := fmt.Sprintf(`CREATE KEYSPACE IF NOT EXISTS %s
		WITH replication = {'class': 'SimpleStrategy', 'replication_factor': 1}`, cfg.Keyspace)
	if err := session.Query(stmt).Exec(); err != nil {
		return fmt.Errorf("scylla: create keyspace %s: %w", cfg.Keyspace, err)
	}
	return nil
}

// Ping runs a trivial query against the local node.
func (s *Scylla) Ping(ctx context.Context) error {
	return s.session.Query("SELECT now() FROM system.local").WithContext(ctx).Exec()
}

// Session exposes the gocql session.
func (s *Scylla) Session() *gocql.Session {
	return s.session
}

// Close shuts down the session.
func (s *Scylla) Close() error {
	if s.session != nil {
		s.session.Close()
	}
	return nil
}

func parseConsistency(level string) gocql.Consistency {
	switch level {
	case "one":
		return gocql.One
	case "local_quorum":
		return gocql.LocalQuorum
	case "local_one":
		return gocql.LocalOne
	case "each_quorum":
		return gocql.EachQuorum
	case "quorum":
		fallthrough
	default:
		return gocql.Quorum
	}
}
