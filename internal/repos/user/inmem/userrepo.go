// Package inmem provides a user repository that works from memory.
package inmem

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/derWhity/stagehand/internal/models"
	"github.com/derWhity/stagehand/internal/repos"
)

// UserRepo provides a simple in-memory user storage
type UserRepo struct {
	mtx   sync.RWMutex
	users map[string]models.User
}

// New creates a new user repository instance
func New() *UserRepo {
	return &UserRepo{
		users: make(map[string]models.User),
	}
}

// Create creates a new user. Users without an ID get a new one assigned.
func (r *UserRepo) Create(u *models.User) error {
	u.Name = strings.ToLower(strings.TrimSpace(u.Name))
	if u.Name == "" {
		return fmt.Errorf("Create: A user needs a name")
	}
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	} else if _, ok := r.users[u.ID]; ok {
		return fmt.Errorf("Create: A user with the given ID does already exist")
	}
	for _, existing := range r.users {
		if existing.Name == u.Name {
			return fmt.Errorf("Create: A user named '%s' does already exist", u.Name)
		}
	}
	r.users[u.ID] = *u
	return nil
}

// GetByID returns the user with the given ID
func (r *UserRepo) GetByID(id string) (*models.User, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	if u, ok := r.users[id]; ok {
		// Copy the user
		ret := u
		return &ret, nil
	}
	return nil, repos.ErrEntityNotExisting
}

// GetByCredentials returns the user which has the given username and password - this is used for login.
// No user and no error are returned if the credentials do not match.
func (r *UserRepo) GetByCredentials(username string, password string) (*models.User, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	for _, u := range r.users {
		if u.Name == username && u.CheckPassword(password) == nil {
			ret := u // copy
			return &ret, nil
		}
	}
	return nil, nil
}
