package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/learnhub/internal/bootstrap"
	"github.com/hitoshi/learnhub/internal/model"
	"github.com/hitoshi/learnhub/internal/routeguard"
	"github.com/hitoshi/learnhub/internal/session"
	"github.com/hitoshi/learnhub/internal/storage"
)

// --- モック定義 ---

type mockBootstrapper struct {
	runFn     func(ctx context.Context, st storage.ClientStorage, store *session.Store, currentPath string) bootstrap.Result
	restoreFn func(ctx context.Context, st storage.ClientStorage, store *session.Store) bootstrap.Result
}

func (m *mockBootstrapper) Run(ctx context.Context, st storage.ClientStorage, store *session.Store, currentPath string) bootstrap.Result {
	if m.runFn != nil {
		return m.runFn(ctx, st, store, currentPath)
	}
	return bootstrap.Result{}
}

func (m *mockBootstrapper) Restore(ctx context.Context, st storage.ClientStorage, store *session.Store) bootstrap.Result {
	if m.restoreFn != nil {
		return m.restoreFn(ctx, st, store)
	}
	return bootstrap.Result{}
}

type stubAuthorizer struct {
	allowed map[string]bool
}

func (a *stubAuthorizer) Can(identity *model.Identity, capability string) bool {
	return identity != nil && a.allowed[capability]
}

func memoryFactory(mem *storage.MemoryStorage) storage.Factory {
	return func(http.ResponseWriter, *http.Request) storage.ClientStorage { return mem }
}

// authenticatedRestore はIdentityを公開するRestoreを返す。
func authenticatedRestore(uid string) func(context.Context, storage.ClientStorage, *session.Store) bootstrap.Result {
	return func(_ context.Context, _ storage.ClientStorage, store *session.Store) bootstrap.Result {
		store.Publish(&model.Identity{UID: uid, Roles: []string{"admin"}})
		store.MarkInitialized()
		return bootstrap.Result{Outcome: bootstrap.OutcomeAuthenticated}
	}
}

// --- テスト ---

func TestPageSessionMiddleware_RedirectsOnDecision(t *testing.T) {
	b := &mockBootstrapper{
		runFn: func(_ context.Context, _ storage.ClientStorage, _ *session.Store, currentPath string) bootstrap.Result {
			if currentPath != "/dashboard/profile" {
				t.Errorf("currentPath = %q, want /dashboard/profile", currentPath)
			}
			return bootstrap.Result{Decision: routeguard.GoTo("/login")}
		},
	}

	handler := NewPageSessionMiddleware(memoryFactory(storage.NewMemoryStorage("", "")), b)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called on redirect")
		}),
	)

	req := httptest.NewRequest(http.MethodGet, "/dashboard/profile", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusFound)
	}
	if loc := w.Header().Get("Location"); loc != "/login" {
		t.Errorf("Location = %q, want /login", loc)
	}
}

func TestPageSessionMiddleware_PassesQueryString(t *testing.T) {
	var got string
	b := &mockBootstrapper{
		runFn: func(_ context.Context, _ storage.ClientStorage, _ *session.Store, currentPath string) bootstrap.Result {
			got = currentPath
			return bootstrap.Result{}
		},
	}

	handler := NewPageSessionMiddleware(memoryFactory(storage.NewMemoryStorage("", "")), b)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
	)
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/dashboard/my-courses?tab=lessons", nil))

	if got != "/dashboard/my-courses?tab=lessons" {
		t.Errorf("currentPath = %q, want request URI with query", got)
	}
}

func TestPageSessionMiddleware_SamePathDoesNotRedirect(t *testing.T) {
	b := &mockBootstrapper{
		runFn: func(context.Context, storage.ClientStorage, *session.Store, string) bootstrap.Result {
			return bootstrap.Result{Decision: routeguard.GoTo("/courses")}
		},
	}

	called := false
	handler := NewPageSessionMiddleware(memoryFactory(storage.NewMemoryStorage("", "")), b)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}),
	)

	req := httptest.NewRequest(http.MethodGet, "/courses", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !called {
		t.Error("handler should be called when target equals current path")
	}
}

func TestPageSessionMiddleware_InjectsSessionIntoContext(t *testing.T) {
	b := &mockBootstrapper{
		runFn: func(_ context.Context, _ storage.ClientStorage, store *session.Store, _ string) bootstrap.Result {
			store.Publish(&model.Identity{UID: "user-page"})
			return bootstrap.Result{Decision: routeguard.NoRedirect(), Outcome: bootstrap.OutcomeAuthenticated}
		},
	}
	mem := storage.NewMemoryStorage("tok", "")

	var gotUserID string
	var gotStorage storage.ClientStorage
	handler := NewPageSessionMiddleware(memoryFactory(mem), b)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUserID, _ = UserIDFromContext(r.Context())
			gotStorage, _ = storage.FromContext(r.Context())
		}),
	)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if gotUserID != "user-page" {
		t.Errorf("user id = %q, want user-page", gotUserID)
	}
	if gotStorage != mem {
		t.Error("client storage was not injected into context")
	}
}

func TestAPISessionMiddleware_UsesRestore(t *testing.T) {
	b := &mockBootstrapper{
		runFn: func(context.Context, storage.ClientStorage, *session.Store, string) bootstrap.Result {
			t.Fatal("Run should not be called for API requests")
			return bootstrap.Result{}
		},
		restoreFn: authenticatedRestore("user-api"),
	}

	var identity *model.Identity
	handler := NewAPISessionMiddleware(memoryFactory(storage.NewMemoryStorage("tok", "")), b)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity = IdentityFromContext(r.Context())
		}),
	)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/session", nil))

	if identity == nil || identity.UID != "user-api" {
		t.Errorf("identity = %+v, want user-api", identity)
	}
}

func TestRequireIdentity(t *testing.T) {
	tests := []struct {
		name       string
		restore    func(context.Context, storage.ClientStorage, *session.Store) bootstrap.Result
		wantStatus int
	}{
		{"authenticated", authenticatedRestore("user-1"), http.StatusOK},
		{"anonymous", nil, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &mockBootstrapper{restoreFn: tt.restore}
			handler := NewAPISessionMiddleware(memoryFactory(storage.NewMemoryStorage("", "")), b)(
				RequireIdentity()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusOK)
				})),
			)

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestRequireCapability(t *testing.T) {
	tests := []struct {
		name       string
		restore    func(context.Context, storage.ClientStorage, *session.Store) bootstrap.Result
		allowed    map[string]bool
		wantStatus int
	}{
		{"allowed", authenticatedRestore("admin-1"), map[string]bool{"catalog:refresh": true}, http.StatusOK},
		{"forbidden", authenticatedRestore("user-1"), map[string]bool{}, http.StatusForbidden},
		{"anonymous", nil, map[string]bool{"catalog:refresh": true}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &mockBootstrapper{restoreFn: tt.restore}
			authorizer := &stubAuthorizer{allowed: tt.allowed}
			handler := NewAPISessionMiddleware(memoryFactory(storage.NewMemoryStorage("", "")), b)(
				RequireCapability(authorizer, "catalog:refresh")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusOK)
				})),
			)

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/admin/catalog/refresh", nil))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestUserIDFromContext_Missing_ReturnsError(t *testing.T) {
	if _, err := UserIDFromContext(context.Background()); err == nil {
		t.Error("expected error for missing user id, got nil")
	}
}
