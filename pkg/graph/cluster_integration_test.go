package graph

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Ramsey-B/clover/pkg/models"
)

func startMemgraph(t *testing.T) *Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping memgraph integration test in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "memgraph/memgraph:latest",
			ExposedPorts: []string{"7687/tcp"},
			WaitingFor: wait.ForLog("Server is fully armed and operational").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "7687")
	require.NoError(t, err)
	portNumber, err := strconv.Atoi(port.Port())
	require.NoError(t, err)

	client, err := NewClient(Config{Host: host, Port: portNumber}, ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close(ctx) })

	require.Eventually(t, func() bool {
		return client.VerifyConnectivity(ctx) == nil
	}, 30*time.Second, 500*time.Millisecond)
	return client
}

type link struct {
	from int64
	to   int64
}

func readLinks(t *testing.T, client *Client) []link {
	t.Helper()
	ctx := context.Background()

	out, err := client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, `
			MATCH (s:Contact)-[:LINKED_TO]->(p:Contact)
			RETURN s.id AS from, p.id AS to
			ORDER BY from`, nil)
		if err != nil {
			return nil, err
		}
		records, err := result.Collect(ctx)
		if err != nil {
			return nil, err
		}

		links := make([]link, 0, len(records))
		for _, record := range records {
			from, _ := record.Get("from")
			to, _ := record.Get("to")
			links = append(links, link{from: from.(int64), to: to.(int64)})
		}
		return links, nil
	})
	require.NoError(t, err)
	return out.([]link)
}

func TestClusterService_ProjectReplacesStaleLinks(t *testing.T) {
	client := startMemgraph(t)
	service := NewClusterService(client, ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
	ctx := context.Background()
	require.NoError(t, service.Clear(ctx))

	now := time.Now().UTC()
	contact := func(id int64, linkedID *int64) models.Contact {
		precedence := models.LinkPrecedencePrimary
		if linkedID != nil {
			precedence = models.LinkPrecedenceSecondary
		}
		return models.Contact{ID: id, Email: models.StringPtr("c" + strconv.FormatInt(id, 10) + "@hillvalley.edu"), LinkedID: linkedID, LinkPrecedence: precedence, CreatedAt: now, UpdatedAt: now}
	}

	require.NoError(t, service.Project(ctx, []models.Contact{contact(5, nil), contact(6, models.Int64Ptr(5))}))
	assert.Equal(t, []link{{from: 6, to: 5}}, readLinks(t, client))

	require.NoError(t, service.OnIdentify(ctx, &models.IdentifyOutcome{
		Cluster: []models.Contact{contact(1, nil), contact(5, models.Int64Ptr(1)), contact(6, models.Int64Ptr(1))},
	}))
	assert.Equal(t, []link{{from: 5, to: 1}, {from: 6, to: 1}}, readLinks(t, client))

	require.NoError(t, service.Clear(ctx))
	assert.Empty(t, readLinks(t, client))
}
