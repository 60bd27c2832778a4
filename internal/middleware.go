package internal

import (
	"net/http"

	"github.com/go-kit/kit/endpoint"
	"golang.org/x/net/context"

	"github.com/derWhity/stagehand/internal/ctxhelper"
)

// ErrNotLoggedIn is returned by endpoints that need a logged-in user when there is no valid session
var ErrNotLoggedIn = MakeError(
	http.StatusForbidden,
	ErrCodeNotLoggedIn,
	"This function needs a logged-in user",
)

// EnsureUserLoggedIn is a middleware that checks if there is a valid user session for the current call
func EnsureUserLoggedIn(next endpoint.Endpoint) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		if ctxhelper.User(ctx) == nil {
			// Nobody logged in
			return nil, ErrNotLoggedIn
		}
		return next(ctx, request)
	}
}
