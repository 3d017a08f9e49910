//go:build integration

package db

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/raphaelgruber/spidersync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var testDB *Client

func TestMain(m *testing.M) {
	// Ryuk is unreliable in some CI environments.
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v3.0.0-beta.1",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--log", "info", "--user", "root", "--pass", "root"},
			WaitingFor:   wait.ForLog("Started web server").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("Failed to start SurrealDB container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}
	if host == "" || host == "null" {
		host = "localhost"
	}
	port, err := container.MappedPort(ctx, "8000")
	if err != nil {
		log.Fatalf("Failed to get mapped port: %v", err)
	}

	testDB, err = NewClient(ctx, Config{
		URL:       fmt.Sprintf("ws://%s:%s/rpc", host, port.Port()),
		Namespace: "test",
		Database:  "test",
		Username:  "root",
		Password:  "root",
		AuthLevel: AuthLevelRoot,
	}, nil)
	if err != nil {
		log.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := testDB.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	code := m.Run()

	_ = testDB.Close(ctx)
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func TestInitSchemaIsIdempotent(t *testing.T) {
	require.NoError(t, testDB.InitSchema(context.Background()))
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testDB.WipeData(ctx))

	started := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, testDB.CreateRun(ctx, "run00001", "CH_BGer", "jobs/CH_BGer/12", "update", started))

	run, err := testDB.GetRun(ctx, "run00001")
	require.NoError(t, err)
	assert.Equal(t, "run00001", models.MustRecordIDString(run.ID))
	assert.Equal(t, "pending", run.Status)
	assert.Equal(t, "CH_BGer", run.Collection)
	assert.True(t, started.Equal(run.StartedAt), "started_at %v", run.StartedAt)
	assert.Nil(t, run.CompletedAt)

	require.NoError(t, testDB.UpdateRunStatus(ctx, "run00001", "running", 4))
	require.NoError(t, testDB.CompleteRun(ctx, "run00001", 1, 2, 1))

	run, err = testDB.GetRun(ctx, "run00001")
	require.NoError(t, err)
	assert.Equal(t, "completed", run.Status)
	assert.Equal(t, 4, run.Groups)
	assert.Equal(t, 1, run.Inserted)
	assert.Equal(t, 2, run.Updated)
	assert.Equal(t, 1, run.Deleted)
	assert.NotNil(t, run.CompletedAt)
}

func TestFailRun(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testDB.WipeData(ctx))

	require.NoError(t, testDB.CreateRun(ctx, "run00002", "ZH_OG", "jobs/ZH_OG/3", "neu", time.Now()))
	require.NoError(t, testDB.FailRun(ctx, "run00002", "X/1.pdf: not found"))

	run, err := testDB.GetRun(ctx, "run00002")
	require.NoError(t, err)
	assert.Equal(t, "failed", run.Status)
	require.NotNil(t, run.Error)
	assert.Equal(t, "X/1.pdf: not found", *run.Error)
}

func TestCreateRunTwice(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testDB.WipeData(ctx))

	require.NoError(t, testDB.CreateRun(ctx, "run00003", "ZH_OG", "jobs/ZH_OG/3", "update", time.Now()))
	err := testDB.CreateRun(ctx, "run00003", "ZH_OG", "jobs/ZH_OG/3", "update", time.Now())
	assert.ErrorIs(t, err, ErrRunAlreadyExists)
}

func TestGetRunMissing(t *testing.T) {
	_, err := testDB.GetRun(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListRuns(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testDB.WipeData(ctx))

	base := time.Now().UTC().Truncate(time.Second)
	for i, collection := range []string{"ZH_OG", "CH_BGer", "ZH_OG"} {
		id := fmt.Sprintf("list%04d", i)
		require.NoError(t, testDB.CreateRun(ctx, id, collection, "jobs/x/1", "update", base.Add(time.Duration(i)*time.Minute)))
	}

	runs, err := testDB.ListRuns(ctx, nil, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "list0002", models.MustRecordIDString(runs[0].ID))

	zh := "ZH_OG"
	runs, err = testDB.ListRuns(ctx, &zh, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "list0002", models.MustRecordIDString(runs[0].ID))
}
