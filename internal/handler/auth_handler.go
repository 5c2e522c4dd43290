package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/learnhub/internal/auth"
	"github.com/hitoshi/learnhub/internal/model"
	"github.com/hitoshi/learnhub/internal/session"
	"github.com/hitoshi/learnhub/internal/storage"
)

// defaultLoginPath はログインリクエストに現在パスが含まれない場合に使うパス。
const defaultLoginPath = "/login"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, st storage.ClientStorage, store *session.Store, email, password, currentPath string) (*auth.LoginResult, error)
	Signup(ctx context.Context, email, password, displayName string) (string, error)
	Logout(ctx context.Context, st storage.ClientStorage, store *session.Store)
	ResetPassword(ctx context.Context, email string) (string, error)
	ConfirmPasswordReset(ctx context.Context, code, newPassword string) (string, error)
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

type loginRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	CurrentPath string `json:"currentPath"`
}

type loginResponse struct {
	Identity         *model.Identity        `json:"identity"`
	MembershipStatus model.MembershipStatus `json:"membershipStatus"`
	Redirect         string                 `json:"redirect,omitempty"`
}

type signupRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

type resetPasswordRequest struct {
	Email string `json:"email"`
}

type confirmPasswordResetRequest struct {
	OOBCode     string `json:"oobCode"`
	NewPassword string `json:"newPassword"`
}

// Login はメールアドレスとパスワードでログインする。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	st, store, err := sessionFromRequest(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	currentPath := req.CurrentPath
	if !storage.IsLocalPath(currentPath) {
		currentPath = defaultLoginPath
	}

	result, err := h.service.Login(r.Context(), st, store, req.Email, req.Password, currentPath)
	if err != nil {
		slog.Info("login failed", slog.String("error", err.Error()))
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Identity:         result.Identity,
		MembershipStatus: result.MembershipStatus,
		Redirect:         result.Decision.Target,
	})
}

// Signup はアカウントを登録する。登録後もログイン状態にはならない。
// POST /api/auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	msg, err := h.service.Signup(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, statusResponse{Status: "registered", Message: msg})
}

// Logout はトークンとIdentityを破棄する。バックエンドの失敗に関わらず成功を返す。
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	st, store, err := sessionFromRequest(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.service.Logout(r.Context(), st, store)
	writeJSON(w, http.StatusOK, statusResponse{Status: "signed_out"})
}

// ResetPassword はパスワードリセットメールの送信を依頼する。
// 成功時のメッセージはエラーではなく成功レスポンスとして返す。
// POST /api/auth/reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	msg, err := h.service.ResetPassword(r.Context(), req.Email)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "sent", Message: msg})
}

// ConfirmPasswordReset はリセットコードで新しいパスワードを設定する。
// POST /api/auth/confirm-password-reset
func (h *AuthHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req confirmPasswordResetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	msg, err := h.service.ConfirmPasswordReset(r.Context(), req.OOBCode, req.NewPassword)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "reset", Message: msg})
}
