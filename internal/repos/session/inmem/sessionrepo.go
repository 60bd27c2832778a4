// Package inmem provides a session repository that holds the session data in-memory
package inmem

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/derWhity/stagehand/internal/models"
	"github.com/derWhity/stagehand/internal/repos"
)

const (
	// How long does a session last after the last update?
	expireMinutes = 60
)

// ErrClosed is returned by every call made after the repository has been closed
var ErrClosed = fmt.Errorf("session repository has been closed")

// sessionRequest is a generic session request that can be sent over one of the repo's channels to execute functions
// inside the control goroutine
type sessionRequest struct {
	sessionID string
	userID    string
	extend    bool
	answer    chan<- sessionResponse
}

// sessionResponse is a generic response to a session request that contains the answer to the request made
type sessionResponse struct {
	session *models.Session
	err     error
}

// SessionRepo is a session repository that stores the session data in-memory
type SessionRepo struct {
	// make is a channel to trigger session creation
	make chan<- sessionRequest
	// get is a channel to request a session by ID (and to extend it optionally)
	get chan<- sessionRequest
	// del is a channel to request a session to be deleted
	del chan<- sessionRequest
	// done stops the control goroutine when closed
	done      chan struct{}
	closeOnce sync.Once
	now       func() time.Time
}

// New creates a new session repository instance
func New() *SessionRepo {
	return newRepo(time.Now, time.Minute)
}

func newRepo(now func() time.Time, purgeInterval time.Duration) *SessionRepo {
	repo := &SessionRepo{
		done: make(chan struct{}),
		now:  now,
	}
	// Spin up the control goroutine
	m := make(chan sessionRequest)
	g := make(chan sessionRequest)
	d := make(chan sessionRequest)
	go repo.control(m, g, d, purgeInterval)
	repo.make = m
	repo.get = g
	repo.del = d
	return repo
}

// Close stops the control goroutine. All sessions are lost.
func (r *SessionRepo) Close() {
	r.closeOnce.Do(func() { close(r.done) })
}

func (r *SessionRepo) expired(sess *models.Session) bool {
	return sess.ExpiresAt.Before(r.now())
}

// control is the control goroutine that runs until the repository is closed waiting for requests for managing sessions
func (r *SessionRepo) control(
	make <-chan sessionRequest,
	get <-chan sessionRequest,
	del <-chan sessionRequest,
	purgeInterval time.Duration,
) {
	sessions := map[string]*models.Session{}
	// Purge all expired sessions regularly
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.done:
			return
		case req := <-make:
			// Create a new session
			sess := models.Session{
				ID:        uuid.NewString(),
				UserID:    req.userID,
				ExpiresAt: r.now().Add(time.Minute * expireMinutes),
			}
			sessions[sess.ID] = &sess
			copy := sess
			req.answer <- sessionResponse{session: &copy}
		case req := <-get:
			sess, ok := sessions[req.sessionID]
			switch {
			case !ok:
				req.answer <- sessionResponse{err: repos.ErrEntityNotExisting}
			case r.expired(sess):
				delete(sessions, req.sessionID)
				req.answer <- sessionResponse{err: repos.ErrEntityNotExisting}
			default:
				if req.extend {
					sess.ExpiresAt = r.now().Add(time.Minute * expireMinutes)
				}
				copy := *sess
				req.answer <- sessionResponse{session: &copy}
			}
		case req := <-del:
			delete(sessions, req.sessionID)
			req.answer <- sessionResponse{}
		case <-ticker.C:
			for key, sess := range sessions {
				if r.expired(sess) {
					delete(sessions, key)
				}
			}
		}
	}
}

// send hands the request to the control goroutine and waits for its answer
func (r *SessionRepo) send(sessionID string, userID string, extend bool, channel chan<- sessionRequest) sessionResponse {
	answer := make(chan sessionResponse, 1)
	req := sessionRequest{
		sessionID: sessionID,
		userID:    userID,
		extend:    extend,
		answer:    answer,
	}
	select {
	case channel <- req:
		return <-answer
	case <-r.done:
		return sessionResponse{err: ErrClosed}
	}
}

// CreateFor creates a new session for the given user ID
func (r *SessionRepo) CreateFor(userID string) (*models.Session, error) {
	resp := r.send("", userID, false, r.make)
	if resp.err != nil {
		return nil, resp.err
	}
	return resp.session, nil
}

// GetByID returns the session associated with the given session ID and extends it's expiry if requested
func (r *SessionRepo) GetByID(sessionID string, extend bool) (*models.Session, error) {
	resp := r.send(sessionID, "", extend, r.get)
	if resp.err != nil {
		return nil, resp.err
	}
	return resp.session, nil
}

// Delete removes a session from the session storage
func (r *SessionRepo) Delete(sessionID string) error {
	return r.send(sessionID, "", false, r.del).err
}
