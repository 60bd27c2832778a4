package internal

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derWhity/stagehand/internal/models"
)

func newTestManager(t *testing.T) (*PerformanceManager, *serviceFixture) {
	f := newServiceFixture(t, PerformanceOptions{})
	return NewPerformanceManager(f.svc), f
}

func TestManagerLifecycle(t *testing.T) {
	m, f := newTestManager(t)
	ctx := context.Background()

	p := m.CreatePerformance(ctx, models.PerformanceInput{Title: "Winter Concert", CreatedBy: "u1"})
	require.NotNil(t, p)
	assert.Equal(t, "fld_1", *p.DriveFolderID)
	assert.Empty(t, p.TaggedUsers)
	assert.Nil(t, p.Description)

	got := m.GetPerformance(ctx, p.ID)
	require.NotNil(t, got)
	assert.Equal(t, p.ID, got.ID)

	updated := m.UpdatePerformance(ctx, models.PerformancePatch{ID: p.ID, Description: models.Some("Annual show")})
	require.NotNil(t, updated)
	assert.Equal(t, "Winter Concert", updated.Title)
	assert.Equal(t, "Annual show", *updated.Description)

	assert.Len(t, m.ListPerformances(ctx), 1)
	assert.True(t, m.DeletePerformance(ctx, p.ID))
	assert.Equal(t, []string{"fld_1"}, f.folders.deleted)
	assert.Nil(t, m.GetPerformance(ctx, p.ID))
	assert.False(t, m.DeletePerformance(ctx, p.ID))
}

func TestManagerMissingPerformance(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	assert.Nil(t, m.GetPerformance(ctx, "missing-id"))
	assert.Nil(t, m.UpdatePerformance(ctx, models.PerformancePatch{ID: "missing-id", Title: models.Some("X")}))
	assert.False(t, m.DeletePerformance(ctx, "missing-id"))
}

func TestManagerFailuresBecomeAbsentResults(t *testing.T) {
	m, f := newTestManager(t)
	ctx := context.Background()
	f.repo.listErr = fmt.Errorf("connection lost")
	f.repo.createErr = fmt.Errorf("connection lost")

	list := m.ListPerformances(ctx)
	assert.NotNil(t, list)
	assert.Empty(t, list)
	assert.Nil(t, m.CreatePerformance(ctx, models.PerformanceInput{Title: "Winter Concert", CreatedBy: "u1"}))
	assert.Nil(t, m.CreatePerformance(ctx, models.PerformanceInput{CreatedBy: "u1"}))
}

func TestManagerFolderFailures(t *testing.T) {
	m, f := newTestManager(t)
	ctx := context.Background()
	f.folders.createID = ""
	f.folders.createErr = fmt.Errorf("unavailable")

	p := m.CreatePerformance(ctx, models.PerformanceInput{Title: "Winter Concert", CreatedBy: "u1"})
	require.NotNil(t, p)
	assert.Nil(t, p.DriveFolderID)

	f.folders.createID = "fld_2"
	f.folders.createErr = nil
	p = m.CreatePerformance(ctx, models.PerformanceInput{Title: "Spring Concert", CreatedBy: "u1"})
	require.NotNil(t, p)

	f.folders.deleteErr = fmt.Errorf("unavailable")
	assert.True(t, m.DeletePerformance(ctx, p.ID))
	assert.Nil(t, m.GetPerformance(ctx, p.ID))
}
