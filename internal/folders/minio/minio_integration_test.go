//go:build integration

package minio

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/derWhity/stagehand/internal/models"
)

// startMinio runs a throwaway MinIO server and returns the folder configuration pointing to it
func startMinio(t *testing.T, ctx context.Context) models.FolderConfig {
	t.Helper()
	req := testcontainers.ContainerRequest{
		Image:        "minio/minio:latest",
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     "stagehand",
			"MINIO_ROOT_PASSWORD": "stagehand-secret",
		},
		Cmd:        []string{"server", "/data"},
		WaitingFor: wait.ForHTTP("/minio/health/ready").WithPort("9000/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("skipping integration test, cannot start minio: %v", err)
	}
	t.Cleanup(func() { container.Terminate(context.Background()) })

	endpoint, err := container.PortEndpoint(ctx, "9000/tcp", "")
	require.NoError(t, err)
	return models.FolderConfig{
		Backend:   models.FolderBackendMinio,
		Endpoint:  endpoint,
		AccessKey: "stagehand",
		SecretKey: "stagehand-secret",
		Bucket:    "performances",
		Parent:    "performances",
	}
}

func TestFolderServiceIntegration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	cfg := startMinio(t, ctx)
	logger, _ := test.NewNullLogger()

	svc, err := New(ctx, cfg, logrus.NewEntry(logger))
	require.NoError(t, err)
	// A second start finds the bucket in place
	_, err = New(ctx, cfg, logrus.NewEntry(logger))
	require.NoError(t, err)

	id, err := svc.CreateFolder(ctx, "Winter Concert")
	require.NoError(t, err)
	assert.Regexp(t, `^winter-concert-[0-9a-f]{8}$`, id)

	deleted, err := svc.DeleteFolder(ctx, id)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = svc.DeleteFolder(ctx, id)
	require.NoError(t, err)
	assert.False(t, deleted)
}
