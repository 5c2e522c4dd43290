// Package gateway は認証・プロフィールバックエンドのRESTクライアントを提供する。
// バックエンドのエラーはそのまま返さず、model.APIErrorの分類に正規化する。
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/learnhub/internal/metrics"
	"github.com/hitoshi/learnhub/internal/model"
)

const (
	userAgent = "Learnhub/1.0"
	// maxBodySize はバックエンドレスポンスの読み取り上限。
	maxBodySize = 1 << 20
)

// LoginResponse はログインAPIのレスポンス。
type LoginResponse struct {
	Token   string          `json:"token"`
	User    *model.Identity `json:"user"`
	Message string          `json:"message,omitempty"`
}

// ProfileUpdate はプロフィール更新で送信するフィールド。
// nilのフィールドは送信しない（nullで上書きしない）。
type ProfileUpdate struct {
	DisplayName *string `json:"displayName,omitempty"`
	PhotoURL    *string `json:"photoURL,omitempty"`
}

// IsEmpty は送信するフィールドがないかどうかを返す。
func (u ProfileUpdate) IsEmpty() bool {
	return u.DisplayName == nil && u.PhotoURL == nil
}

// backendError はバックエンドのエラーレスポンスボディ。
type backendError struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// reason は表示用の理由文を返す。errorを優先する。
func (e backendError) reason() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}

// matches はコードまたは理由文にいずれかのキーワードが含まれるかを判定する。
func (e backendError) matches(keywords ...string) bool {
	code := strings.ToLower(e.Code)
	text := strings.ToLower(e.Error + " " + e.Message)
	for _, k := range keywords {
		k = strings.ToLower(k)
		if (code != "" && strings.Contains(code, k)) || strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// statusError は2xx以外のレスポンスを表す。
type statusError struct {
	status int
	body   backendError
}

func (e *statusError) Error() string {
	return fmt.Sprintf("backend returned status %d: %s", e.status, e.body.reason())
}

// Client は認証バックエンドのクライアント。
type Client struct {
	httpClient *http.Client
	baseURL    string // テスト用に差し替え可能
	logger     *slog.Logger
	metrics    metrics.MetricsCollector
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, baseURL string, logger *slog.Logger, m metrics.MetricsCollector) *Client {
	if m == nil {
		m = metrics.NopCollector{}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
		metrics:    m,
	}
}

// VerifyToken はトークンを検証し、ユーザーIDを返す。
func (c *Client) VerifyToken(ctx context.Context, token string) (string, error) {
	var out struct {
		UID string `json:"uid"`
	}
	err := c.call(ctx, "verify_token", http.MethodGet, "/auth/verify-token", token, nil, &out, func(err error) *model.APIError {
		// 5xxや応答の解釈失敗はトークンの無効ではなくバックエンド障害として扱う
		var se *statusError
		if !errors.As(err, &se) || se.status >= http.StatusInternalServerError {
			return model.NewNetworkError()
		}
		return model.NewInvalidTokenError()
	})
	if err != nil {
		return "", err
	}
	if out.UID == "" {
		c.logger.Warn("トークン検証レスポンスにuidが含まれていません")
		return "", model.NewInvalidTokenError()
	}
	return out.UID, nil
}

// Login はメールアドレスとパスワードで認証し、トークンを取得する。
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	body := map[string]string{"email": email, "password": password}
	var out LoginResponse
	err := c.call(ctx, "login", http.MethodPost, "/auth/login", "", body, &out, func(err error) *model.APIError {
		var se *statusError
		if !errors.As(err, &se) {
			return model.NewNetworkError()
		}
		switch {
		case se.status == http.StatusUnauthorized,
			se.body.matches(model.ErrCodeInvalidCredentials, "invalid-credential", "wrong-password", "user-not-found"):
			return model.NewInvalidCredentialsError()
		case se.body.reason() != "":
			return model.NewBackendError(se.body.reason())
		case se.status >= http.StatusInternalServerError:
			return model.NewNetworkError()
		default:
			return model.NewInvalidCredentialsError()
		}
	})
	if err != nil {
		return nil, err
	}
	if out.Token == "" {
		c.logger.Error("ログインレスポンスにトークンが含まれていません")
		return nil, model.NewInvalidCredentialsError()
	}
	return &out, nil
}

// Signup はアカウントを登録する。メール確認が完了するまでトークンは発行されない。
func (c *Client) Signup(ctx context.Context, email, password, displayName string) (string, error) {
	body := map[string]string{"email": email, "password": password, "displayName": displayName}
	var out struct {
		Message string `json:"message"`
	}
	err := c.call(ctx, "signup", http.MethodPost, "/auth/signup", "", body, &out, func(err error) *model.APIError {
		var se *statusError
		if !errors.As(err, &se) {
			return model.NewNetworkError()
		}
		switch {
		case se.status == http.StatusConflict,
			se.body.matches(model.ErrCodeEmailAlreadyExists, "email-already-in-use", "email already exists"):
			return model.NewEmailAlreadyExistsError()
		case se.body.matches(model.ErrCodeWeakPassword, "weak-password"):
			return model.NewWeakPasswordError()
		case se.body.matches(model.ErrCodeInvalidEmail, "invalid-email"):
			return model.NewInvalidEmailError()
		default:
			return model.NewRegistrationFailedError()
		}
	})
	if err != nil {
		return "", err
	}
	return out.Message, nil
}

// Logout はバックエンドのセッションを終了する。
// 失敗しても呼び出し元はローカルのセッションを終了させる。
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.call(ctx, "logout", http.MethodPost, "/auth/logout", token, nil, nil, func(err error) *model.APIError {
		if isTransport(err) {
			return model.NewNetworkError()
		}
		return model.NewBackendError("ログアウト処理に失敗しました。")
	})
}

// GetProfile はユーザーのプロフィールを取得する。
func (c *Client) GetProfile(ctx context.Context, token, uid string) (*model.Identity, error) {
	var out model.Identity
	err := c.call(ctx, "get_profile", http.MethodGet, "/auth/users/"+url.PathEscape(uid), token, nil, &out, func(error) *model.APIError {
		return model.NewProfileFetchFailedError()
	})
	if err != nil {
		return nil, err
	}
	if out.UID == "" {
		out.UID = uid
	}
	return &out, nil
}

// UpdateProfile はプロフィールを更新する。指定されたフィールドのみ送信する。
func (c *Client) UpdateProfile(ctx context.Context, token, uid string, update ProfileUpdate) error {
	return c.call(ctx, "update_profile", http.MethodPut, "/auth/users/"+url.PathEscape(uid), token, update, nil, func(error) *model.APIError {
		return model.NewProfileUpdateFailedError()
	})
}

// ResetPassword はパスワードリセットメールの送信を依頼する。
func (c *Client) ResetPassword(ctx context.Context, email string) (string, error) {
	return c.messageCall(ctx, "reset_password", "/auth/reset-password",
		map[string]string{"email": email}, "パスワードリセットメールの送信に失敗しました。")
}

// ConfirmPasswordReset はリセットコードと新しいパスワードでパスワードを再設定する。
func (c *Client) ConfirmPasswordReset(ctx context.Context, code, newPassword string) (string, error) {
	return c.messageCall(ctx, "confirm_password_reset", "/auth/confirm-password-reset",
		map[string]string{"oobCode": code, "newPassword": newPassword}, "パスワードの再設定に失敗しました。")
}

// messageCall は{message}を返すPOSTを実行する。失敗時はバックエンドの理由文を返す。
func (c *Client) messageCall(ctx context.Context, op, path string, body any, fallback string) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	err := c.call(ctx, op, http.MethodPost, path, "", body, &out, func(err error) *model.APIError {
		var se *statusError
		if !errors.As(err, &se) {
			return model.NewNetworkError()
		}
		if reason := se.body.reason(); reason != "" {
			return model.NewBackendError(reason)
		}
		return model.NewBackendError(fallback)
	})
	if err != nil {
		return "", err
	}
	return out.Message, nil
}

// call はリクエストを送信し、成功時はレスポンスをoutにデコードする。
// 失敗時はclassifyで正規化したAPIErrorを返す。
func (c *Client) call(ctx context.Context, op, method, path, token string, in, out any, classify func(error) *model.APIError) error {
	start := time.Now()
	err := c.do(ctx, method, path, token, in, out)
	if err == nil {
		c.metrics.RecordGatewayCall(op, "success", time.Since(start))
		return nil
	}

	apiErr := classify(err)
	c.metrics.RecordGatewayCall(op, apiErr.Code, time.Since(start))
	c.logger.Warn("バックエンド呼び出しに失敗しました",
		slog.String("operation", op),
		slog.String("code", apiErr.Code),
		slog.String("error", err.Error()),
	)
	return apiErr
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var reqBody io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &transportError{err: err}
	}
	defer resp.Body.Close()
	c.metrics.RecordBackendStatus(resp.StatusCode)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return &transportError{err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		se := &statusError{status: resp.StatusCode}
		// エラーボディがJSONでない場合は理由文なしとして扱う
		_ = json.Unmarshal(body, &se.body)
		return se
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// transportError は接続失敗などバックエンドに到達できなかったことを表す。
type transportError struct {
	err error
}

func (e *transportError) Error() string {
	return "backend unreachable: " + e.err.Error()
}

func (e *transportError) Unwrap() error {
	return e.err
}

func isTransport(err error) bool {
	var te *transportError
	return errors.As(err, &te)
}
