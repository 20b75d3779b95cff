package session

import "context"

// DefaultLoginRoute is the login entry point handed to the Navigator.
const DefaultLoginRoute = "/login"

// Navigator routes the surrounding application to its login entry point
// after the session could not be recovered.
type Navigator interface {
	NavigateToLogin(ctx context.Context, route string)
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(ctx context.Context, route string)

// NavigateToLogin calls f(ctx, route).
func (f NavigatorFunc) NavigateToLogin(ctx context.Context, route string) {
	f(ctx, route)
}

type nopNavigator struct{}

func (nopNavigator) NavigateToLogin(context.Context, string) {}
