package internal

import (
	"fmt"

	"github.com/go-kit/kit/endpoint"
	"golang.org/x/net/context"

	"github.com/derWhity/stagehand/internal/ctxhelper"
	"github.com/derWhity/stagehand/internal/models"
)

// PerformanceEndpoints is a collection of endpoints for working with the performance service
type PerformanceEndpoints struct {
	List   endpoint.Endpoint
	Get    endpoint.Endpoint
	Create endpoint.Endpoint
	Update endpoint.Endpoint
	Delete endpoint.Endpoint
}

// SessionEndpoints is a collection of endpoints for working with the session service
type SessionEndpoints struct {
	Login  endpoint.Endpoint
	Logout endpoint.Endpoint
	WhoAmI endpoint.Endpoint
}

// The base for all responses which always contains an "ok" property to show if the call was successful and a
// data element containing the result of the request
type basicResponse struct {
	OK   bool        `json:"ok"`
	Data interface{} `json:"data"`
}

// A request made when logging in
type loginRequest struct {
	User string `json:"user"`
	Pass string `json:"password"`
}

// -- Performances -----------------------------------------------------------------------------------------------------

// MakePerformanceEndpoints creates the endpoints needed to use the performance service. Reading is open to everyone,
// changes need a logged-in user.
func MakePerformanceEndpoints(s PerformanceService) PerformanceEndpoints {
	return PerformanceEndpoints{
		List:   makeListPerformancesEndpoint(s),
		Get:    makeGetPerformanceEndpoint(s),
		Create: EnsureUserLoggedIn(makeCreatePerformanceEndpoint(s)),
		Update: EnsureUserLoggedIn(makeUpdatePerformanceEndpoint(s)),
		Delete: EnsureUserLoggedIn(makeDeletePerformanceEndpoint(s)),
	}
}

func makeListPerformancesEndpoint(s PerformanceService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		list, err := s.List(ctx)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, list}, nil
	}
}

func makeGetPerformanceEndpoint(s PerformanceService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		id, ok := request.(string)
		if !ok {
			return nil, fmt.Errorf("illegal performance ID")
		}
		p, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, p}, nil
	}
}

func makeCreatePerformanceEndpoint(s PerformanceService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		input, ok := request.(models.PerformanceInput)
		if !ok {
			return nil, fmt.Errorf("illegal performance parameter")
		}
		// The creator is always the user of the session
		if user := ctxhelper.User(ctx); user != nil {
			input.CreatedBy = user.ID
		}
		p, err := s.Create(ctx, &input)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, p}, nil
	}
}

func makeUpdatePerformanceEndpoint(s PerformanceService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		patch, ok := request.(models.PerformancePatch)
		if !ok {
			return nil, fmt.Errorf("illegal performance parameter")
		}
		p, err := s.Update(ctx, &patch)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, p}, nil
	}
}

func makeDeletePerformanceEndpoint(s PerformanceService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		id, ok := request.(string)
		if !ok {
			return nil, fmt.Errorf("illegal performance ID")
		}
		if err := s.Delete(ctx, id); err != nil {
			return nil, err
		}
		return basicResponse{true, nil}, nil
	}
}

// -- Sessions ---------------------------------------------------------------------------------------------------------

// MakeSessionEndpoints builds the endpoints needed to communicate with the Session Service
func MakeSessionEndpoints(s SessionService) SessionEndpoints {
	return SessionEndpoints{
		Login:  makeLoginEndpoint(s),
		Logout: makeLogoutEndpoint(s),
		WhoAmI: makeWhoAmIEndpoint(s),
	}
}

func makeLoginEndpoint(s SessionService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		se, ok := request.(loginRequest)
		if !ok {
			return nil, fmt.Errorf("illegal login request")
		}
		si, err := s.Login(ctx, se.User, se.Pass)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, si}, nil
	}
}

func makeLogoutEndpoint(s SessionService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		id, ok := request.(string)
		if !ok {
			return nil, fmt.Errorf("illegal session token")
		}
		err := s.Logout(ctx, id)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, nil}, nil
	}
}

func makeWhoAmIEndpoint(s SessionService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		id, ok := request.(string)
		if !ok {
			return nil, fmt.Errorf("illegal session token")
		}
		si, err := s.WhoAmI(ctx, id)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, si}, nil
	}
}
