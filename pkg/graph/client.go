// Package graph mirrors contact clusters into a Bolt graph store (Memgraph or Neo4j)
package graph

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Work is a unit of Cypher run inside a managed transaction
type Work func(tx neo4j.ManagedTransaction) (any, error)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	// Database is left empty for Memgraph, which has a single database
	Database string
}

func (c Config) URI() string {
	return fmt.Sprintf("bolt://%s:%d", c.Host, c.Port)
}

func (c Config) auth() neo4j.AuthToken {
	if c.Username == "" {
		return neo4j.NoAuth()
	}
	return neo4j.BasicAuth(c.Username, c.Password, "")
}

type Client struct {
	driver   neo4j.DriverWithContext
	database string
	logger   ectologger.Logger
}

func NewClient(cfg Config, logger ectologger.Logger) (*Client, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI(), cfg.auth())
	if err != nil {
		return nil, fmt.Errorf("failed to create graph driver for %s: %w", cfg.URI(), err)
	}
	return &Client{driver: driver, database: cfg.Database, logger: logger}, nil
}

func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

// VerifyConnectivity doubles as the health probe for the graph store
func (c *Client) VerifyConnectivity(ctx context.Context) error {
	return c.driver.VerifyConnectivity(ctx)
}

func (c *Client) ExecuteWrite(ctx context.Context, work Work) (any, error) {
	return c.execute(ctx, neo4j.AccessModeWrite, work)
}

func (c *Client) ExecuteRead(ctx context.Context, work Work) (any, error) {
	return c.execute(ctx, neo4j.AccessModeRead, work)
}

func (c *Client) execute(ctx context.Context, mode neo4j.AccessMode, work Work) (any, error) {
	write := mode == neo4j.AccessModeWrite
	ctx, span := tracing.StartSpan(ctx, "graph.Client.execute", attribute.Bool("graph.write", write))
	defer span.End()

	session := c.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: c.database})
	defer session.Close(ctx)

	var (
		out any
		err error
	)
	if write {
		out, err = session.ExecuteWrite(ctx, neo4j.ManagedTransactionWork(work))
	} else {
		out, err = session.ExecuteRead(ctx, neo4j.ManagedTransactionWork(work))
	}
	if err != nil {
		tracing.Fail(span, err)
		c.logger.WithContext(ctx).WithError(err).WithField("write", write).Error("Graph transaction failed")
		return nil, err
	}
	return out, nil
}
