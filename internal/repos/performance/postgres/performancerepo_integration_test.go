//go:build integration

package postgres

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/derWhity/stagehand/internal/migrate"
	"github.com/derWhity/stagehand/internal/models"
	"github.com/derWhity/stagehand/internal/repos"
)

// startPostgres runs a throwaway PostgreSQL container, migrates it and returns a pool connected to it
func startPostgres(t *testing.T, ctx context.Context) *pgxpool.Pool {
	t.Helper()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_PASSWORD": "password",
			"POSTGRES_USER":     "postgres",
			"POSTGRES_DB":       "stagehand",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("skipping integration test, cannot start postgres: %v", err)
	}
	t.Cleanup(func() { container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mapped, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)
	dsn := fmt.Sprintf("postgres://postgres:password@%s:%s/stagehand?sslmode=disable", host, mapped.Port())

	db, err := sqlx.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	deadline := time.Now().Add(20 * time.Second)
	for {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("postgres did not become ready: %v", err)
		}
		time.Sleep(200 * time.Millisecond)
	}
	logger, _ := test.NewNullLogger()
	require.NoError(t, migrate.ExecuteMigrationsOnDb(db, migrate.DialectPostgres, logrus.NewEntry(logger)))

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestPerformanceRepoIntegration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	pool := startPostgres(t, ctx)
	logger, _ := test.NewNullLogger()
	repo := New(pool, logrus.NewEntry(logger))

	first := &models.Performance{Title: "Winter Concert", CreatedBy: "u1", DriveFolderID: ptr("fld_1")}
	require.NoError(t, repo.Create(ctx, first))
	second := &models.Performance{Title: "Spring Concert", CreatedBy: "u1", TaggedUsers: []string{"u2", "u3"}}
	require.NoError(t, repo.Create(ctx, second))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Spring Concert", list[0].Title)
	assert.Equal(t, []string{"u2", "u3"}, list[0].TaggedUsers)
	assert.Equal(t, ptr("fld_1"), list[1].DriveFolderID)

	updated, err := repo.Update(ctx, &models.PerformancePatch{ID: first.ID, Description: models.Some("Annual show")})
	require.NoError(t, err)
	assert.Equal(t, "Winter Concert", updated.Title)
	assert.Equal(t, ptr("Annual show"), updated.Description)

	require.NoError(t, repo.Delete(ctx, first.ID))
	_, err = repo.GetByID(ctx, first.ID)
	assert.Equal(t, repos.ErrEntityNotExisting, err)

	// The longest values passing validation fit into the columns
	date := strings.Repeat("1", models.MaxDateLength)
	widest := &models.Performance{
		Title:     strings.Repeat("x", models.MaxTitleLength),
		CreatedBy: strings.Repeat("u", models.MaxUserIDLength),
		StartDate: &date,
		EndDate:   &date,
	}
	require.NoError(t, repo.Create(ctx, widest))
	_, err = repo.Update(ctx, &models.PerformancePatch{ID: widest.ID, StartDate: models.Some(date), EndDate: models.Some(date)})
	require.NoError(t, err)
}
