package internal

import (
	"golang.org/x/net/context"

	"github.com/derWhity/stagehand/internal/models"
)

// PerformanceManager is the library facing API for performances. It never returns errors: every failure is logged by
// the underlying service and surfaces as an absent result (nil, an empty list or false).
// Callers cannot tell "not found" and "storage failure" apart - use the PerformanceService if that matters.
type PerformanceManager struct {
	service PerformanceService
}

// NewPerformanceManager creates a new manager wrapping the given service
func NewPerformanceManager(service PerformanceService) *PerformanceManager {
	return &PerformanceManager{service: service}
}

// ListPerformances returns all performances, newest first. The result is empty - never nil - on failure.
func (m *PerformanceManager) ListPerformances(ctx context.Context) []models.Performance {
	list, err := m.service.List(ctx)
	if err != nil || list == nil {
		return []models.Performance{}
	}
	return list
}

// GetPerformance returns the performance with the given ID or nil if it does not exist or could not be read
func (m *PerformanceManager) GetPerformance(ctx context.Context, id string) *models.Performance {
	p, err := m.service.Get(ctx, id)
	if err != nil {
		return nil
	}
	return p
}

// CreatePerformance creates a new performance together with its remote folder. It returns nil if the performance
// could not be stored.
func (m *PerformanceManager) CreatePerformance(ctx context.Context, input models.PerformanceInput) *models.Performance {
	p, err := m.service.Create(ctx, &input)
	if err != nil {
		return nil
	}
	return p
}

// UpdatePerformance changes the fields present in the patch and returns the updated performance or nil on failure
func (m *PerformanceManager) UpdatePerformance(ctx context.Context, patch models.PerformancePatch) *models.Performance {
	p, err := m.service.Update(ctx, &patch)
	if err != nil {
		return nil
	}
	return p
}

// DeletePerformance removes the performance and its remote folder. It returns true only if the performance itself
// has been deleted.
func (m *PerformanceManager) DeletePerformance(ctx context.Context, id string) bool {
	return m.service.Delete(ctx, id) == nil
}
