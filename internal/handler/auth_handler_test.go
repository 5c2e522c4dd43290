package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/learnhub/internal/auth"
	"github.com/hitoshi/learnhub/internal/model"
	"github.com/hitoshi/learnhub/internal/routeguard"
	"github.com/hitoshi/learnhub/internal/session"
	"github.com/hitoshi/learnhub/internal/storage"
)

// --- モック定義 ---

// mockAuthService はAuthServiceInterfaceのモック実装。
type mockAuthService struct {
	loginFn                func(ctx context.Context, st storage.ClientStorage, store *session.Store, email, password, currentPath string) (*auth.LoginResult, error)
	signupFn               func(ctx context.Context, email, password, displayName string) (string, error)
	logoutFn               func(ctx context.Context, st storage.ClientStorage, store *session.Store)
	resetPasswordFn        func(ctx context.Context, email string) (string, error)
	confirmPasswordResetFn func(ctx context.Context, code, newPassword string) (string, error)
}

func (m *mockAuthService) Login(ctx context.Context, st storage.ClientStorage, store *session.Store, email, password, currentPath string) (*auth.LoginResult, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, st, store, email, password, currentPath)
	}
	return nil, model.NewInvalidCredentialsError()
}

func (m *mockAuthService) Signup(ctx context.Context, email, password, displayName string) (string, error) {
	if m.signupFn != nil {
		return m.signupFn(ctx, email, password, displayName)
	}
	return "", nil
}

func (m *mockAuthService) Logout(ctx context.Context, st storage.ClientStorage, store *session.Store) {
	if m.logoutFn != nil {
		m.logoutFn(ctx, st, store)
	}
}

func (m *mockAuthService) ResetPassword(ctx context.Context, email string) (string, error) {
	if m.resetPasswordFn != nil {
		return m.resetPasswordFn(ctx, email)
	}
	return "", nil
}

func (m *mockAuthService) ConfirmPasswordReset(ctx context.Context, code, newPassword string) (string, error) {
	if m.confirmPasswordResetFn != nil {
		return m.confirmPasswordResetFn(ctx, code, newPassword)
	}
	return "", nil
}

// --- テストヘルパー ---

// withTestSession はテスト用にストレージとセッションストアをコンテキストに注入する。
func withTestSession(r *http.Request, st storage.ClientStorage, store *session.Store) *http.Request {
	ctx := storage.WithStorage(r.Context(), st)
	ctx = session.WithStore(ctx, store)
	return r.WithContext(ctx)
}

// jsonRequest はJSONボディ付きのリクエストを生成する。
func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

func strPtr(s string) *string { return &s }

// --- Login ---

func TestAuthHandler_Login_Success(t *testing.T) {
	st := storage.NewMemoryStorage("", "")
	store := session.NewStore()

	var gotPath string
	svc := &mockAuthService{
		loginFn: func(_ context.Context, s storage.ClientStorage, sessStore *session.Store, email, password, currentPath string) (*auth.LoginResult, error) {
			if email != "a@example.com" || password != "secret1" {
				t.Errorf("unexpected credentials: %q / %q", email, password)
			}
			gotPath = currentPath
			s.SetToken("tok-1")
			identity := &model.Identity{UID: "u1", DisplayName: strPtr("Alice"), MembershipStatus: model.MembershipActive}
			sessStore.Publish(identity)
			return &auth.LoginResult{
				Identity:         identity,
				MembershipStatus: model.MembershipActive,
				Decision:         routeguard.Decision{Target: "/dashboard"},
			}, nil
		},
	}
	h := NewAuthHandler(svc)

	req := withTestSession(jsonRequest(http.MethodPost, "/api/auth/login",
		`{"email":"a@example.com","password":"secret1"}`), st, store)
	w := httptest.NewRecorder()
	h.Login(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body=%s)", w.Code, http.StatusOK, w.Body.String())
	}
	if gotPath != defaultLoginPath {
		t.Errorf("currentPath = %q, want %q", gotPath, defaultLoginPath)
	}

	var resp loginResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Identity == nil || resp.Identity.UID != "u1" {
		t.Errorf("identity = %+v, want uid u1", resp.Identity)
	}
	if resp.MembershipStatus != model.MembershipActive {
		t.Errorf("membershipStatus = %q, want active", resp.MembershipStatus)
	}
	if resp.Redirect != "/dashboard" {
		t.Errorf("redirect = %q, want /dashboard", resp.Redirect)
	}
	if st.Token() != "tok-1" {
		t.Errorf("token = %q, want tok-1", st.Token())
	}
}

func TestAuthHandler_Login_CurrentPathMustBeLocal(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{"local path", "/courses/intro", "/courses/intro"},
		{"protocol relative", "//evil.example.com", defaultLoginPath},
		{"absolute url", "https://evil.example.com/", defaultLoginPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			svc := &mockAuthService{
				loginFn: func(_ context.Context, _ storage.ClientStorage, _ *session.Store, _, _, currentPath string) (*auth.LoginResult, error) {
					got = currentPath
					return &auth.LoginResult{}, nil
				},
			}
			h := NewAuthHandler(svc)

			body := `{"email":"a@example.com","password":"secret1","currentPath":"` + tt.path + `"}`
			req := withTestSession(jsonRequest(http.MethodPost, "/api/auth/login", body),
				storage.NewMemoryStorage("", ""), session.NewStore())
			h.Login(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Errorf("currentPath = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAuthHandler_Login_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid credentials", model.NewInvalidCredentialsError(), http.StatusUnauthorized, model.ErrCodeInvalidCredentials},
		{"network error", model.NewNetworkError(), http.StatusBadGateway, model.ErrCodeNetworkError},
		{"profile fetch failed", model.NewProfileFetchFailedError(), http.StatusBadGateway, model.ErrCodeProfileFetchFailed},
		{"backend reason", model.NewBackendError("アカウントが無効です"), http.StatusBadRequest, model.ErrCodeBackendError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAuthService{
				loginFn: func(context.Context, storage.ClientStorage, *session.Store, string, string, string) (*auth.LoginResult, error) {
					return nil, tt.err
				},
			}
			h := NewAuthHandler(svc)

			req := withTestSession(jsonRequest(http.MethodPost, "/api/auth/login",
				`{"email":"a@example.com","password":"x"}`), storage.NewMemoryStorage("", ""), session.NewStore())
			w := httptest.NewRecorder()
			h.Login(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			body := parseAPIErrorResponse(t, w)
			if body["code"] != tt.wantCode {
				t.Errorf("code = %q, want %q", body["code"], tt.wantCode)
			}
		})
	}
}

func TestAuthHandler_Login_InvalidJSON_Returns400(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{})

	req := withTestSession(jsonRequest(http.MethodPost, "/api/auth/login", `{not json`),
		storage.NewMemoryStorage("", ""), session.NewStore())
	w := httptest.NewRecorder()
	h.Login(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if body := parseAPIErrorResponse(t, w); body["code"] != model.ErrCodeInvalidRequest {
		t.Errorf("code = %q, want %q", body["code"], model.ErrCodeInvalidRequest)
	}
}

func TestAuthHandler_Login_WithoutSession_Returns500(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{})

	w := httptest.NewRecorder()
	h.Login(w, jsonRequest(http.MethodPost, "/api/auth/login", `{}`))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

func TestAuthHandler_Login_OversizedBody_Returns400(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{})

	body := `{"email":"` + strings.Repeat("a", maxRequestBodyBytes) + `"}`
	req := withTestSession(jsonRequest(http.MethodPost, "/api/auth/login", body),
		storage.NewMemoryStorage("", ""), session.NewStore())
	w := httptest.NewRecorder()
	h.Login(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// --- Signup ---

func TestAuthHandler_Signup(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"success", nil, http.StatusCreated, ""},
		{"email exists", model.NewEmailAlreadyExistsError(), http.StatusConflict, model.ErrCodeEmailAlreadyExists},
		{"weak password", model.NewWeakPasswordError(), http.StatusBadRequest, model.ErrCodeWeakPassword},
		{"invalid email", model.NewInvalidEmailError(), http.StatusBadRequest, model.ErrCodeInvalidEmail},
		{"registration failed", model.NewRegistrationFailedError(), http.StatusBadRequest, model.ErrCodeRegistrationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAuthService{
				signupFn: func(_ context.Context, email, password, displayName string) (string, error) {
					if displayName != "Alice" {
						t.Errorf("displayName = %q, want Alice", displayName)
					}
					if tt.err != nil {
						return "", tt.err
					}
					return "確認メールを送信しました。", nil
				},
			}
			h := NewAuthHandler(svc)

			w := httptest.NewRecorder()
			h.Signup(w, jsonRequest(http.MethodPost, "/api/auth/signup",
				`{"email":"a@example.com","password":"secret1","displayName":"Alice"}`))

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			body := parseAPIErrorResponse(t, w)
			if tt.err == nil {
				if body["status"] != "registered" || body["message"] == "" {
					t.Errorf("body = %v, want registered with message", body)
				}
				return
			}
			if body["code"] != tt.wantCode {
				t.Errorf("code = %q, want %q", body["code"], tt.wantCode)
			}
		})
	}
}

// --- Logout ---

func TestAuthHandler_Logout_AlwaysSucceeds(t *testing.T) {
	st := storage.NewMemoryStorage("tok", "")
	store := session.NewStore()
	store.Publish(&model.Identity{UID: "u1"})

	called := false
	svc := &mockAuthService{
		logoutFn: func(_ context.Context, s storage.ClientStorage, sessStore *session.Store) {
			called = true
			s.ClearToken()
			sessStore.Clear()
		},
	}
	h := NewAuthHandler(svc)

	w := httptest.NewRecorder()
	h.Logout(w, withTestSession(httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil), st, store))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !called {
		t.Error("service Logout should be called")
	}
	if st.Token() != "" || store.Identity() != nil {
		t.Error("token and identity should be cleared")
	}
}

// --- Password reset ---

func TestAuthHandler_ResetPassword_SuccessIsNotAnError(t *testing.T) {
	svc := &mockAuthService{
		resetPasswordFn: func(_ context.Context, email string) (string, error) {
			if email != "a@example.com" {
				t.Errorf("email = %q", email)
			}
			return "パスワードリセット用のメールを送信しました。", nil
		},
	}
	h := NewAuthHandler(svc)

	w := httptest.NewRecorder()
	h.ResetPassword(w, jsonRequest(http.MethodPost, "/api/auth/reset-password", `{"email":"a@example.com"}`))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body := parseAPIErrorResponse(t, w)
	if body["status"] != "sent" {
		t.Errorf("status = %q, want sent", body["status"])
	}
	if body["message"] != "パスワードリセット用のメールを送信しました。" {
		t.Errorf("message = %q", body["message"])
	}
	if _, ok := body["code"]; ok {
		t.Error("success response must not carry an error code")
	}
}

func TestAuthHandler_ResetPassword_InvalidEmail(t *testing.T) {
	svc := &mockAuthService{
		resetPasswordFn: func(context.Context, string) (string, error) {
			return "", model.NewInvalidEmailError()
		},
	}
	h := NewAuthHandler(svc)

	w := httptest.NewRecorder()
	h.ResetPassword(w, jsonRequest(http.MethodPost, "/api/auth/reset-password", `{"email":"nope"}`))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestAuthHandler_ConfirmPasswordReset(t *testing.T) {
	var gotCode, gotPassword string
	svc := &mockAuthService{
		confirmPasswordResetFn: func(_ context.Context, code, newPassword string) (string, error) {
			gotCode, gotPassword = code, newPassword
			return "パスワードを変更しました。", nil
		},
	}
	h := NewAuthHandler(svc)

	w := httptest.NewRecorder()
	h.ConfirmPasswordReset(w, jsonRequest(http.MethodPost, "/api/auth/confirm-password-reset",
		`{"oobCode":"code-123","newPassword":"newpass1"}`))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotCode != "code-123" || gotPassword != "newpass1" {
		t.Errorf("got code=%q password=%q", gotCode, gotPassword)
	}
	if body := parseAPIErrorResponse(t, w); body["status"] != "reset" {
		t.Errorf("status = %q, want reset", body["status"])
	}
}
