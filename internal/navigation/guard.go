package navigation

import (
	"context"
	"net/url"
	"strings"
)

// UserCheck reports whether a user is signed in and whether they are an
// admin.
type UserCheck func() (signedIn, admin bool)

// RequireUser returns the login redirect for route when nobody is signed
// in, and "" when access is allowed.
func RequireUser(check UserCheck, route string) string {
	signedIn, _ := check()
	if signedIn {
		return ""
	}
	return LoginRedirect(route)
}

// RequireAdmin returns the login redirect for route unless an admin is
// signed in, and "" when access is allowed.
func RequireAdmin(check UserCheck, route string) string {
	signedIn, admin := check()
	if signedIn && admin {
		return ""
	}
	return LoginRedirect(route)
}

// LoginRedirect returns the login route remembering from.
func LoginRedirect(from string) string {
	if from == "" || from == RouteLogin {
		return RouteLogin
	}
	return RouteLogin + "?" + url.Values{FromParam: []string{from}}.Encode()
}

// RedirectTarget extracts the remembered route from a login redirect.
// It returns fallback when none is present or it is not a local route.
func RedirectTarget(loginRoute, fallback string) string {
	u, err := url.Parse(loginRoute)
	if err != nil {
		return fallback
	}
	from := u.Query().Get(FromParam)
	if validateRoute(from) != nil {
		return fallback
	}
	return from
}

// Visit applies guard to route and navigates either to route or to the
// redirect the guard returned. It returns the route actually reached.
func (r *Router) Visit(ctx context.Context, route string, guard func(route string) string) (string, error) {
	target := route
	if guard != nil {
		if redirect := guard(route); redirect != "" {
			target = redirect
		}
	}
	if err := r.NavigateTo(ctx, target); err != nil {
		return r.Current(), err
	}
	return target, nil
}

// IsAdminRoute reports whether route lives under the admin area.
func IsAdminRoute(route string) bool {
	path := route
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	return path == RouteAdmin || strings.HasPrefix(path, RouteAdmin+"/")
}
