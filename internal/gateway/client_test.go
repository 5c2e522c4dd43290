package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/hitoshi/learnhub/internal/metrics"
	"github.com/hitoshi/learnhub/internal/model"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	var buf bytes.Buffer
	return NewClient(server.Client(), server.URL, newTestLogger(&buf), nil)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func assertCode(t *testing.T, err error, want string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *model.APIError", err)
	}
	if apiErr.Code != want {
		t.Errorf("code = %s, want %s", apiErr.Code, want)
	}
}

func TestClient_VerifyToken_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/verify-token" {
			t.Errorf("path = %s, want /auth/verify-token", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer tok-1")
		}
		writeJSON(w, http.StatusOK, map[string]string{"uid": "user-1"})
	})

	uid, err := c.VerifyToken(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("VerifyToken returned error: %v", err)
	}
	if uid != "user-1" {
		t.Errorf("uid = %q, want %q", uid, "user-1")
	}
}

func TestClient_VerifyToken_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"unauthorized", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "expired"})
		}},
		{"empty uid", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"uid": ""})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler)
			_, err := c.VerifyToken(context.Background(), "tok")
			assertCode(t, err, model.ErrCodeInvalidToken)
		})
	}
}

// バックエンド障害でトークンが無効扱いにならないことを検証する。
func TestClient_VerifyToken_BackendFailure_ReturnsNetworkError(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"service unavailable", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "maintenance"})
		}},
		{"internal server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte("<html>gateway</html>"))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler)
			_, err := c.VerifyToken(context.Background(), "tok")
			assertCode(t, err, model.ErrCodeNetworkError)
		})
	}
}

func TestClient_VerifyToken_Unreachable_ReturnsNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	var buf bytes.Buffer
	c := NewClient(http.DefaultClient, server.URL, newTestLogger(&buf), nil)

	_, err := c.VerifyToken(context.Background(), "tok")
	assertCode(t, err, model.ErrCodeNetworkError)
}

func TestClient_Login_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != "a@example.com" || body["password"] != "secret1" {
			t.Errorf("body = %v", body)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"token": "tok-1",
			"user":  map[string]any{"uid": "user-1", "email": "a@example.com"},
		})
	})

	resp, err := c.Login(context.Background(), "a@example.com", "secret1")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if resp.Token != "tok-1" {
		t.Errorf("token = %q, want %q", resp.Token, "tok-1")
	}
	if resp.User == nil || resp.User.UID != "user-1" {
		t.Errorf("user = %+v, want uid user-1", resp.User)
	}
}

func TestClient_Login_ErrorNormalization(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     any
		wantCode string
		wantMsg  string
	}{
		{"401", http.StatusUnauthorized, map[string]string{}, model.ErrCodeInvalidCredentials, ""},
		{"firebase wrong password", http.StatusBadRequest, map[string]string{"code": "auth/wrong-password"}, model.ErrCodeInvalidCredentials, ""},
		{"backend reason", http.StatusBadRequest, map[string]string{"error": "アカウントが無効化されています"}, model.ErrCodeBackendError, "アカウントが無効化されています"},
		{"500 without reason", http.StatusInternalServerError, "oops", model.ErrCodeNetworkError, ""},
		{"400 without reason", http.StatusBadRequest, map[string]string{}, model.ErrCodeInvalidCredentials, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})
			_, err := c.Login(context.Background(), "a@example.com", "pw")
			assertCode(t, err, tt.wantCode)
			if tt.wantMsg != "" {
				var apiErr *model.APIError
				errors.As(err, &apiErr)
				if apiErr.Message != tt.wantMsg {
					t.Errorf("message = %q, want %q", apiErr.Message, tt.wantMsg)
				}
			}
		})
	}
}

func TestClient_Login_MissingToken_ReturnsInvalidCredentials(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"user": map[string]string{"uid": "u"}})
	})
	_, err := c.Login(context.Background(), "a@example.com", "pw")
	assertCode(t, err, model.ErrCodeInvalidCredentials)
}

func TestClient_Signup_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["displayName"] != "Alice" {
			t.Errorf("displayName = %q, want Alice", body["displayName"])
		}
		writeJSON(w, http.StatusCreated, map[string]string{"message": "確認メールを送信しました"})
	})

	msg, err := c.Signup(context.Background(), "a@example.com", "secret1", "Alice")
	if err != nil {
		t.Fatalf("Signup returned error: %v", err)
	}
	if msg != "確認メールを送信しました" {
		t.Errorf("message = %q", msg)
	}
}

func TestClient_Signup_ErrorNormalization(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     map[string]string
		wantCode string
	}{
		{"conflict", http.StatusConflict, map[string]string{}, model.ErrCodeEmailAlreadyExists},
		{"firebase email in use", http.StatusBadRequest, map[string]string{"error": "auth/email-already-in-use"}, model.ErrCodeEmailAlreadyExists},
		{"weak password code", http.StatusBadRequest, map[string]string{"code": "WEAK_PASSWORD"}, model.ErrCodeWeakPassword},
		{"invalid email", http.StatusBadRequest, map[string]string{"code": "auth/invalid-email"}, model.ErrCodeInvalidEmail},
		{"namespaced weak password code", http.StatusBadRequest, map[string]string{"code": "auth/weak-password"}, model.ErrCodeWeakPassword},
		{"namespaced email in use code", http.StatusBadRequest, map[string]string{"code": "auth/email-already-in-use"}, model.ErrCodeEmailAlreadyExists},
		{"unknown", http.StatusInternalServerError, map[string]string{"error": "internal"}, model.ErrCodeRegistrationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})
			_, err := c.Signup(context.Background(), "a@example.com", "secret1", "Alice")
			assertCode(t, err, tt.wantCode)
		})
	}
}

func TestClient_GetProfile(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/users/user-1" {
			t.Errorf("path = %s, want /auth/users/user-1", r.URL.Path)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"uid":              "user-1",
			"displayName":      "Alice",
			"membershipStatus": "active",
			"planType":         "annual",
			"roles":            []string{"admin"},
		})
	})

	id, err := c.GetProfile(context.Background(), "tok", "user-1")
	if err != nil {
		t.Fatalf("GetProfile returned error: %v", err)
	}
	if id.Name() != "Alice" {
		t.Errorf("name = %q, want Alice", id.Name())
	}
	if id.MembershipStatus != model.MembershipActive {
		t.Errorf("membershipStatus = %q, want active", id.MembershipStatus)
	}
	if !id.HasRole("admin") {
		t.Error("expected admin role")
	}
}

func TestClient_GetProfile_Failure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})
	_, err := c.GetProfile(context.Background(), "tok", "user-1")
	assertCode(t, err, model.ErrCodeProfileFetchFailed)
}

func TestClient_UpdateProfile_OmitsAbsentFields(t *testing.T) {
	var raw []byte
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s, want PUT", r.Method)
		}
		raw, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	})

	err := c.UpdateProfile(context.Background(), "tok", "user-1", ProfileUpdate{DisplayName: model.StringPtr("Bob")})
	if err != nil {
		t.Fatalf("UpdateProfile returned error: %v", err)
	}

	var body map[string]any
	json.Unmarshal(raw, &body)
	if body["displayName"] != "Bob" {
		t.Errorf("displayName = %v, want Bob", body["displayName"])
	}
	if _, ok := body["photoURL"]; ok {
		t.Error("photoURL should be omitted when not set")
	}
}

func TestClient_UpdateProfile_Failure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	err := c.UpdateProfile(context.Background(), "tok", "user-1", ProfileUpdate{DisplayName: model.StringPtr("Bob")})
	assertCode(t, err, model.ErrCodeProfileUpdateFailed)
}

func TestClient_ResetPassword(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "リセットメールを送信しました"})
	})
	msg, err := c.ResetPassword(context.Background(), "a@example.com")
	if err != nil {
		t.Fatalf("ResetPassword returned error: %v", err)
	}
	if msg != "リセットメールを送信しました" {
		t.Errorf("message = %q", msg)
	}
}

func TestClient_ConfirmPasswordReset_BackendReason(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["oobCode"] != "code-1" || body["newPassword"] != "newpass" {
			t.Errorf("body = %v", body)
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "コードの有効期限が切れています"})
	})
	_, err := c.ConfirmPasswordReset(context.Background(), "code-1", "newpass")
	assertCode(t, err, model.ErrCodeBackendError)

	var apiErr *model.APIError
	errors.As(err, &apiErr)
	if apiErr.Message != "コードの有効期限が切れています" {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestClient_Logout_SendsBearer(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		w.WriteHeader(http.StatusNoContent)
	})
	if err := c.Logout(context.Background(), "tok"); err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}
	if !called {
		t.Error("backend logout should be called")
	}
}

func TestClient_RecordsMetrics(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	var buf bytes.Buffer
	c := NewClient(server.Client(), server.URL, newTestLogger(&buf), collector)

	c.VerifyToken(context.Background(), "tok")

	count, err := testutil.GatherAndCount(reg, "learnhub_gateway_calls_total")
	if err != nil {
		t.Fatalf("GatherAndCount returned error: %v", err)
	}
	if count != 1 {
		t.Errorf("gateway_calls_total series = %d, want 1", count)
	}
}
