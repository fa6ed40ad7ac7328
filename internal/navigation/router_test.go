package navigation

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_NavigateTo(t *testing.T) {
	t.Parallel()

	r := NewRouter()
	assert.Equal(t, RouteHome, r.Current())

	var moves []string
	unregister := r.OnNavigate(func(from, to string) {
		moves = append(moves, from+"->"+to)
	})

	require.NoError(t, r.NavigateTo(context.Background(), RouteDashboard))
	require.NoError(t, r.NavigateTo(context.Background(), RouteLogin))
	require.NoError(t, r.NavigateTo(context.Background(), RouteLogin))

	assert.Equal(t, RouteLogin, r.Current())
	assert.Equal(t, []string{RouteHome, RouteDashboard, RouteLogin}, r.History())
	assert.Equal(t, []string{"/->/dashboard", "/dashboard->/login"}, moves)

	unregister()
	require.NoError(t, r.NavigateTo(context.Background(), RouteSignUp))
	assert.Len(t, moves, 2)
}

func TestRouter_InvalidRoutes(t *testing.T) {
	t.Parallel()

	r := NewRouter()
	for _, route := range []string{"", "login", "//evil.example", "http://x/login"} {
		err := r.NavigateTo(context.Background(), route)
		assert.ErrorIs(t, err, ErrInvalidRoute, route)
	}
	assert.Equal(t, RouteHome, r.Current())
}

func TestRouter_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRouter()
	assert.ErrorIs(t, r.NavigateTo(ctx, RouteLogin), context.Canceled)
	assert.Equal(t, RouteHome, r.Current())
}

func TestRouter_Back(t *testing.T) {
	t.Parallel()

	r := NewRouter(WithInitialRoute(RouteDashboard))
	_, ok := r.Back()
	assert.False(t, ok)

	require.NoError(t, r.NavigateTo(context.Background(), "/dashboard/transfer"))
	to, ok := r.Back()
	assert.True(t, ok)
	assert.Equal(t, RouteDashboard, to)
	assert.Equal(t, RouteDashboard, r.Current())
}

func TestRouter_HistoryLimit(t *testing.T) {
	t.Parallel()

	r := NewRouter(WithHistoryLimit(3))
	for i := 0; i < 5; i++ {
		require.NoError(t, r.NavigateTo(context.Background(), fmt.Sprintf("/page/%d", i)))
	}
	assert.Equal(t, []string{"/page/2", "/page/3", "/page/4"}, r.History())
}

func TestRouter_ConcurrentRedirects(t *testing.T) {
	t.Parallel()

	r := NewRouter(WithInitialRoute(RouteDashboard))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, r.NavigateTo(context.Background(), RouteLogin))
		}()
	}
	wg.Wait()

	assert.Equal(t, []string{RouteDashboard, RouteLogin}, r.History())
}

func TestGuards(t *testing.T) {
	t.Parallel()

	anonymous := func() (bool, bool) { return false, false }
	member := func() (bool, bool) { return true, false }
	admin := func() (bool, bool) { return true, true }

	tests := []struct {
		name  string
		guard func(UserCheck, string) string
		check UserCheck
		route string
		want  string
	}{
		{"user guard anonymous", RequireUser, anonymous, "/dashboard/loan", "/login?from=%2Fdashboard%2Floan"},
		{"user guard member", RequireUser, member, "/dashboard/loan", ""},
		{"admin guard member", RequireAdmin, member, "/admin/users", "/login?from=%2Fadmin%2Fusers"},
		{"admin guard admin", RequireAdmin, admin, "/admin/users", ""},
		{"admin guard anonymous", RequireAdmin, anonymous, "/admin", "/login?from=%2Fadmin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.guard(tt.check, tt.route))
		})
	}
}

func TestRedirectTarget(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/admin/users", RedirectTarget(LoginRedirect("/admin/users"), RouteHome))
	assert.Equal(t, RouteHome, RedirectTarget(RouteLogin, RouteHome))
	assert.Equal(t, RouteHome, RedirectTarget("/login?from=https://evil.example", RouteHome))
	assert.Equal(t, RouteLogin, LoginRedirect(RouteLogin))
	assert.Equal(t, RouteLogin, LoginRedirect(""))
}

func TestRouter_Visit(t *testing.T) {
	t.Parallel()

	r := NewRouter()
	guard := func(route string) string {
		return RequireAdmin(func() (bool, bool) { return true, false }, route)
	}

	reached, err := r.Visit(context.Background(), RouteAdminDashboard, guard)
	require.NoError(t, err)
	assert.Equal(t, "/login?from=%2Fadmin%2Fdashboard", reached)
	assert.Equal(t, reached, r.Current())

	reached, err = r.Visit(context.Background(), RouteDashboard, nil)
	require.NoError(t, err)
	assert.Equal(t, RouteDashboard, reached)
}

func TestIsAdminRoute(t *testing.T) {
	t.Parallel()

	assert.True(t, IsAdminRoute("/admin"))
	assert.True(t, IsAdminRoute("/admin/loans?page=2"))
	assert.False(t, IsAdminRoute("/administrator"))
	assert.False(t, IsAdminRoute("/dashboard"))
}
