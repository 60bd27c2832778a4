// Package repos contains the repository interfaces needed in Stagehand
// It exists to prevent circular dependencies between the services and the repo implementations
package repos

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/derWhity/stagehand/internal/models"
)

var (
	// ErrEntityNotExisting is fired by a repository when an entity that is read, updated or deleted does not exist
	ErrEntityNotExisting = fmt.Errorf("entity does not exist")
)

// PerformanceRepo defines a repository that stores performance records
type PerformanceRepo interface {
	// List returns all performances, newest first
	List(ctx context.Context) ([]models.Performance, error)
	// GetByID returns the performance with the given ID
	GetByID(ctx context.Context, id string) (*models.Performance, error)
	// Create stores a new performance and fills in its ID and timestamps
	Create(ctx context.Context, p *models.Performance) error
	// Update writes the fields set in the patch and returns the updated performance
	Update(ctx context.Context, patch *models.PerformancePatch) (*models.Performance, error)
	// Delete removes the performance with the given ID
	Delete(ctx context.Context, id string) error
}

// UserRepo defines a repository that is able to store, query and authenticate users
type UserRepo interface {
	// Create creates a new user
	Create(u *models.User) error
	// GetByID returns the user with the given ID
	GetByID(id string) (*models.User, error)
	// GetByCredentials returns the user which has the given username and password - this is used for login
	GetByCredentials(username string, password string) (*models.User, error)
}

// SessionRepo stores information about active API sessions
type SessionRepo interface {
	// CreateFor creates a new session for the given user ID
	CreateFor(userID string) (*models.Session, error)
	// GetByID returns the session associated with the given session ID and extends it's expiry if requested
	GetByID(sessionID string, extend bool) (*models.Session, error)
	// Delete removes a session from the session storage
	Delete(sessionID string) error
}

// -- Helpers for SQLX repos -------------------------------------------------------------------------------------------

// DoRollback rolls back a transaction and catches any error resulting from it while appending the original error
func DoRollback(tx *sqlx.Tx, originalError error) error {
	if err := tx.Rollback(); err != nil {
		return fmt.Errorf("doRollback: Transaction rollback failed: %v; Recent error: %v", err, originalError)
	}
	return originalError
}
