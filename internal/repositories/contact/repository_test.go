package contact

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/identity"
)

func startPostgres(t *testing.T) database.DB {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:15-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "clover",
				"POSTGRES_PASSWORD": "clover",
				"POSTGRES_DB":       "clover",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	db, err := database.Connect(ctx, database.ConnectionConfig{
		Host:     host,
		Port:     port.Port(),
		UserName: "clover",
		Password: "clover",
		Name:     "clover",
		SSLMode:  "disable",
	}, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	driver, err := database.NewPostgresDriver(db.SQLX(), "clover")
	require.NoError(t, err)
	migrations := database.NewMigrationService(testLogger(), &database.MigrationConfig{
		MigrationFolderPath: "../../../db/pg",
	})
	require.NoError(t, migrations.Migrate("clover", driver))

	return db
}

func TestRepository_Contract(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	db := startPostgres(t)
	repo := NewRepository(db, testLogger())

	runStoreContract(t, func(t *testing.T) identity.Store {
		require.NoError(t, repo.Reset(context.Background()))
		return repo
	})
}

func TestRepository_EngineScenario(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	db := startPostgres(t)
	engine := identity.NewEngine(NewRepository(db, testLogger()), testLogger())
	ctx := context.Background()

	for i, pair := range [][2]string{{"b@y.com", "789"}, {"c@z.com", "000"}} {
		resp, err := engine.Identify(ctx, identifyRequest(pair[0], pair[1]))
		require.NoError(t, err)
		require.Equal(t, int64(i+1), resp.PrimaryID, fmt.Sprintf("pair %v", pair))
	}

	resp, err := engine.Identify(ctx, identifyRequest("b@y.com", "000"))
	require.NoError(t, err)
	require.Equal(t, int64(1), resp.PrimaryID)
	require.Equal(t, []string{"b@y.com", "c@z.com"}, resp.Emails)
	require.Equal(t, []string{"789", "000"}, resp.PhoneNumbers)
	require.Equal(t, []int64{2}, resp.SecondaryIDs)
}
