package internal

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derWhity/stagehand/internal/models"
	sessionrepo "github.com/derWhity/stagehand/internal/repos/session/inmem"
	userrepo "github.com/derWhity/stagehand/internal/repos/user/inmem"
)

// newTestSessionService creates a session service knowing the user "admin" with the password "secret"
func newTestSessionService(t *testing.T) (SessionService, *models.User) {
	logger, _ := newTestLogger()
	users := userrepo.New()
	u := &models.User{Name: "admin", FullName: "Stage Manager"}
	require.NoError(t, u.SetPassword("secret"))
	require.NoError(t, users.Create(u))
	sessions := sessionrepo.New()
	t.Cleanup(sessions.Close)
	return NewSessionService(sessions, users, logger), u
}

func TestLoginWhoAmILogout(t *testing.T) {
	s, u := newTestSessionService(t)
	ctx := context.Background()

	info, err := s.Login(ctx, " Admin ", "secret")
	require.NoError(t, err)
	assert.NotEmpty(t, info.SessionID)
	assert.Equal(t, u.ID, info.UserID)
	assert.Equal(t, "admin", info.UserName)
	assert.Equal(t, "Stage Manager", info.UserFullName)

	who, err := s.WhoAmI(ctx, info.SessionID)
	require.NoError(t, err)
	assert.Equal(t, *info, *who)

	sess, user, err := s.Resolve(ctx, info.SessionID, true)
	require.NoError(t, err)
	assert.Equal(t, info.SessionID, sess.ID)
	assert.Equal(t, u.ID, user.ID)

	require.NoError(t, s.Logout(ctx, info.SessionID))
	_, err = s.WhoAmI(ctx, info.SessionID)
	assert.Equal(t, ErrCodeNotLoggedIn, ErrorKind(err))
}

func TestLoginFailed(t *testing.T) {
	s, _ := newTestSessionService(t)
	_, err := s.Login(context.Background(), "admin", "wrong")
	assert.Equal(t, ErrCodeLoginFailed, ErrorKind(err))
	assert.Equal(t, 403, err.(*HTTPError).Status())
}

func TestResolveUnknownSession(t *testing.T) {
	s, _ := newTestSessionService(t)
	sess, user, err := s.Resolve(context.Background(), "unknown", false)
	assert.NoError(t, err)
	assert.Nil(t, sess)
	assert.Nil(t, user)
}

func TestResolveClosedStore(t *testing.T) {
	logger, hook := newTestLogger()
	sessions := sessionrepo.New()
	sessions.Close()
	s := NewSessionService(sessions, userrepo.New(), logger)

	sess, user, err := s.Resolve(context.Background(), "some-token", true)
	assert.Nil(t, sess)
	assert.Nil(t, user)
	assert.Equal(t, ErrCodeRepoError, ErrorKind(err))
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, sessionrepo.ErrClosed, hook.LastEntry().Data[logrus.ErrorKey])

	_, err = s.Login(context.Background(), "admin", "secret")
	assert.Equal(t, ErrCodeLoginFailed, ErrorKind(err))
}
