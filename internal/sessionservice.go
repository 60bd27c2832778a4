package internal

import (
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	"github.com/derWhity/stagehand/internal/ctxhelper"
	"github.com/derWhity/stagehand/internal/log"
	"github.com/derWhity/stagehand/internal/models"
	"github.com/derWhity/stagehand/internal/repos"
)

// SessionService ties session tokens to the users that create and change performances
type SessionService interface {
	// Login checks the credentials and opens a session for the user
	Login(ctx context.Context, user string, password string) (*SessionInfo, error)
	// Logout closes the session behind the token. Unknown tokens are ignored.
	Logout(ctx context.Context, token string) error
	// WhoAmI describes the session behind the token
	WhoAmI(ctx context.Context, token string) (*SessionInfo, error)
	// Resolve looks up the session and its user for an incoming request. Both are nil when the token does not belong
	// to a live session. The HTTP layer uses this to decide who is acting; there is no endpoint for it.
	Resolve(ctx context.Context, token string, extend bool) (*models.Session, *models.User, error)
}

// SessionInfo is handed to the client after logging in. Its UserID is what performances record as their creator.
type SessionInfo struct {
	SessionID    string `json:"sessionId"`
	UserID       string `json:"userId"`
	UserName     string `json:"userName"`
	UserFullName string `json:"userFullName"`
}

func newSessionInfo(sess *models.Session, user *models.User) *SessionInfo {
	return &SessionInfo{
		SessionID:    sess.ID,
		UserID:       user.ID,
		UserName:     user.Name,
		UserFullName: user.FullName,
	}
}

// -- SessionService implementation ------------------------------------------------------------------------------------

type sessionService struct {
	logger   *logrus.Entry
	sessions repos.SessionRepo
	users    repos.UserRepo
}

// NewSessionService creates a session service on top of the given session and user stores
func NewSessionService(sr repos.SessionRepo, ur repos.UserRepo, logger *logrus.Entry) SessionService {
	return &sessionService{
		logger:   logger,
		sessions: sr,
		users:    ur,
	}
}

func (s *sessionService) loggerFor(ctx context.Context) *logrus.Entry {
	return ctxhelper.Logger(ctx, s.logger)
}

// storeFailure logs a failing session or user store and hides the details from the client
func storeFailure(logger *logrus.Entry, err error, msg string) error {
	logger.WithError(err).Error(msg)
	return MakeError(http.StatusInternalServerError, ErrCodeRepoError, msg)
}

func (s *sessionService) Login(ctx context.Context, user string, password string) (*SessionInfo, error) {
	name := strings.ToLower(strings.TrimSpace(user))
	logger := s.loggerFor(ctx).WithField("name", name)
	u, err := s.users.GetByCredentials(name, password)
	switch {
	case err != nil:
		return nil, storeFailure(logger, err, "Failed to authenticate user")
	case u == nil:
		logger.Info("Login failed")
		return nil, MakeError(http.StatusForbidden, ErrCodeLoginFailed, "Login failed")
	}
	sess, err := s.sessions.CreateFor(u.ID)
	if err != nil {
		return nil, storeFailure(logger, err, "Failed to create session")
	}
	logger.WithField(log.FldUser, u.ID).Info("User logged in")
	return newSessionInfo(sess, u), nil
}

func (s *sessionService) Logout(ctx context.Context, token string) error {
	if err := s.sessions.Delete(token); err != nil {
		return storeFailure(s.loggerFor(ctx).WithField(log.FldSession, token), err, "Failed to close session")
	}
	return nil
}

func (s *sessionService) WhoAmI(ctx context.Context, token string) (*SessionInfo, error) {
	sess, u, err := s.Resolve(ctx, token, false)
	if err != nil {
		return nil, err
	}
	if sess == nil || u == nil {
		return nil, ErrNotLoggedIn
	}
	return newSessionInfo(sess, u), nil
}

func (s *sessionService) Resolve(ctx context.Context, token string, extend bool) (*models.Session, *models.User, error) {
	logger := s.loggerFor(ctx).WithField(log.FldSession, token)
	sess, err := s.sessions.GetByID(token, extend)
	switch {
	case err == repos.ErrEntityNotExisting:
		return nil, nil, nil
	case err != nil:
		return nil, nil, storeFailure(logger, err, "Failed to read session")
	}
	u, err := s.users.GetByID(sess.UserID)
	switch {
	case err == repos.ErrEntityNotExisting:
		// The user is gone - the session is worthless
		return nil, nil, nil
	case err != nil:
		return nil, nil, storeFailure(logger.WithField(log.FldUser, sess.UserID), err, "Failed to read user of session")
	}
	return sess, u, nil
}
