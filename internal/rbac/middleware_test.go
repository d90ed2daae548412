package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type fakeSource struct {
	perms map[int64][]string
}

func (f *fakeSource) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	return f.perms[userID], nil
}

func requestAsUser(t *testing.T, userID string) *http.Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	sess := &shared.Session{}
	sess.SetUser(userID)
	return r.WithContext(shared.ContextWithSession(r.Context(), sess))
}

func okHandler() (http.Handler, *bool) {
	called := false
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}), &called
}

func TestRequireAnyGrants(t *testing.T) {
	mw := Middleware{Source: &fakeSource{perms: map[int64][]string{1: {"inventory.view"}}}}
	next, called := okHandler()

	rec := httptest.NewRecorder()
	mw.RequireAny("inventory.view", "inventory.edit")(next).ServeHTTP(rec, requestAsUser(t, "1"))
	require.True(t, *called)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAllDeniesPartialGrant(t *testing.T) {
	mw := Middleware{Source: &fakeSource{perms: map[int64][]string{1: {"sales.view"}}}}
	next, called := okHandler()

	rec := httptest.NewRecorder()
	mw.RequireAll("sales.view", "sales.annul")(next).ServeHTTP(rec, requestAsUser(t, "1"))
	require.False(t, *called)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireDeniesAnonymous(t *testing.T) {
	mw := Middleware{Source: &fakeSource{}}
	next, called := okHandler()

	rec := httptest.NewRecorder()
	mw.RequireAny("inventory.view")(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.False(t, *called)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPermissionNamesAreCaseInsensitive(t *testing.T) {
	mw := Middleware{Source: &fakeSource{perms: map[int64][]string{1: {"Inventory.Edit"}}}}
	next, called := okHandler()

	rec := httptest.NewRecorder()
	mw.RequireAll("INVENTORY.EDIT")(next).ServeHTTP(rec, requestAsUser(t, "1"))
	require.True(t, *called)
}
