// Package auth はAuth Gatewayの業務ロジックを提供する。
// バックエンド呼び出しに加え、クライアントストレージへのトークン保存、
// セッションストアへのIdentity公開、ログイン後の遷移先判定を行う。
package auth

import (
	"context"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/hitoshi/learnhub/internal/gateway"
	"github.com/hitoshi/learnhub/internal/model"
	"github.com/hitoshi/learnhub/internal/routeguard"
	"github.com/hitoshi/learnhub/internal/security"
	"github.com/hitoshi/learnhub/internal/session"
	"github.com/hitoshi/learnhub/internal/storage"
)

// minPasswordLength はバックエンドが受け付けるパスワードの最小長。
const minPasswordLength = 6

// Backend は認証バックエンドのインターフェース。gateway.Clientが実装する。
type Backend interface {
	VerifyToken(ctx context.Context, token string) (string, error)
	Login(ctx context.Context, email, password string) (*gateway.LoginResponse, error)
	Signup(ctx context.Context, email, password, displayName string) (string, error)
	Logout(ctx context.Context, token string) error
	GetProfile(ctx context.Context, token, uid string) (*model.Identity, error)
	UpdateProfile(ctx context.Context, token, uid string, update gateway.ProfileUpdate) error
	ResetPassword(ctx context.Context, email string) (string, error)
	ConfirmPasswordReset(ctx context.Context, code, newPassword string) (string, error)
}

// SignOutListener はログアウト時に呼ばれる。uidは未認証の場合空文字列。
type SignOutListener func(ctx context.Context, uid string)

// LoginResult はログイン成功時の結果。
type LoginResult struct {
	Identity         *model.Identity
	MembershipStatus model.MembershipStatus
	Decision         routeguard.Decision
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	backend   Backend
	sanitizer security.ContentSanitizerService
	urlGuard  security.URLGuardService
	logger    *slog.Logger
	listeners []SignOutListener
}

// NewService はServiceを生成する。
func NewService(
	backend Backend,
	sanitizer security.ContentSanitizerService,
	urlGuard security.URLGuardService,
	logger *slog.Logger,
) *Service {
	return &Service{
		backend:   backend,
		sanitizer: sanitizer,
		urlGuard:  urlGuard,
		logger:    logger,
	}
}

// OnSignOut はログアウト時のリスナーを登録する。起動時にのみ呼ぶこと。
func (s *Service) OnSignOut(fn SignOutListener) {
	s.listeners = append(s.listeners, fn)
}

// VerifyToken はトークンを検証し、ユーザーIDを返す。
func (s *Service) VerifyToken(ctx context.Context, token string) (string, error) {
	return s.backend.VerifyToken(ctx, token)
}

// Login は認証後にトークンを保存し、プロフィールを取得してストアに公開する。
// 公開後、ブートストラップと同じ判定表で遷移先を決定し、
// 保存済みのリダイレクト先を使用した場合は削除する。
func (s *Service) Login(
	ctx context.Context,
	st storage.ClientStorage,
	store *session.Store,
	email, password, currentPath string,
) (*LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, model.NewInvalidCredentialsError()
	}

	resp, err := s.backend.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	st.SetToken(resp.Token)

	uid := ""
	if resp.User != nil {
		uid = resp.User.UID
	}
	if uid == "" {
		uid, err = s.backend.VerifyToken(ctx, resp.Token)
		if err != nil {
			st.ClearToken()
			return nil, err
		}
	}

	profile, err := s.backend.GetProfile(ctx, resp.Token, uid)
	if err != nil {
		// プロフィールが取れない状態でログイン済みにはしない
		st.ClearToken()
		return nil, err
	}

	// 会員ステータスはプロフィールを優先し、なければログインレスポンスの値を使う
	if profile.MembershipStatus == "" && resp.User != nil {
		profile.MembershipStatus = resp.User.MembershipStatus
	}
	store.Publish(profile)
	store.SetError(nil)

	decision := routeguard.Decide(routeguard.Facts{
		PendingRedirect:  st.PendingRedirect(),
		MembershipStatus: profile.MembershipStatus,
		CurrentPath:      currentPath,
	})
	if decision.ConsumesPending {
		st.ClearPendingRedirect()
	}

	s.logger.Info("user logged in",
		slog.String("user_id", profile.UID),
		slog.String("membership_status", string(profile.MembershipStatus)),
	)

	return &LoginResult{
		Identity:         store.Identity(),
		MembershipStatus: profile.MembershipStatus,
		Decision:         decision,
	}, nil
}

// Signup はアカウントを登録する。メール確認が完了するまで利用できないため、
// トークンの保存やIdentityの公開は行わない。
func (s *Service) Signup(ctx context.Context, email, password, displayName string) (string, error) {
	email = strings.TrimSpace(email)
	if !isValidEmail(email) {
		return "", model.NewInvalidEmailError()
	}
	if len(password) < minPasswordLength {
		return "", model.NewWeakPasswordError()
	}
	return s.backend.Signup(ctx, email, password, s.sanitizer.StripTags(displayName))
}

// Logout はトークンとIdentityを必ず破棄する。
// バックエンドの失敗はログに記録するだけで呼び出し元には返さない。
func (s *Service) Logout(ctx context.Context, st storage.ClientStorage, store *session.Store) {
	token := st.Token()
	uid := ""
	if id := store.Identity(); id != nil {
		uid = id.UID
	}

	st.ClearToken()
	store.Clear()

	if token != "" {
		if err := s.backend.Logout(ctx, token); err != nil {
			s.logger.Warn("backend logout failed",
				slog.String("user_id", uid),
				slog.String("error", err.Error()),
			)
		}
	}

	for _, fn := range s.listeners {
		fn(ctx, uid)
	}

	s.logger.Info("user logged out", slog.String("user_id", uid))
}

// GetProfile はプロフィールを取得する。
func (s *Service) GetProfile(ctx context.Context, token, uid string) (*model.Identity, error) {
	return s.backend.GetProfile(ctx, token, uid)
}

// UpdateProfile は指定されたフィールドのみ更新する。
// 表示名はタグを除去し、アバターURLは公開URLであることを検証する。
func (s *Service) UpdateProfile(ctx context.Context, token, uid string, update gateway.ProfileUpdate) error {
	if update.DisplayName != nil {
		name := s.sanitizer.StripTags(*update.DisplayName)
		if name == "" {
			return model.NewInvalidRequestError("表示名が空です")
		}
		update.DisplayName = &name
	}
	if update.PhotoURL != nil {
		if err := s.urlGuard.ValidateURL(*update.PhotoURL); err != nil {
			s.logger.Warn("rejected photo URL",
				slog.String("user_id", uid),
				slog.String("error", err.Error()),
			)
			return model.NewInvalidRequestError("アバター画像のURLが不正です")
		}
	}
	if update.IsEmpty() {
		return model.NewInvalidRequestError("更新する項目がありません")
	}
	return s.backend.UpdateProfile(ctx, token, uid, update)
}

// ResetPassword はパスワードリセットメールの送信を依頼する。
func (s *Service) ResetPassword(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)
	if !isValidEmail(email) {
		return "", model.NewInvalidEmailError()
	}
	return s.backend.ResetPassword(ctx, email)
}

// ConfirmPasswordReset はリセットコードで新しいパスワードを設定する。
func (s *Service) ConfirmPasswordReset(ctx context.Context, code, newPassword string) (string, error) {
	if strings.TrimSpace(code) == "" {
		return "", model.NewInvalidRequestError("リセットコードが指定されていません")
	}
	if len(newPassword) < minPasswordLength {
		return "", model.NewWeakPasswordError()
	}
	return s.backend.ConfirmPasswordReset(ctx, code, newPassword)
}

// isValidEmail は表示名なしの単一アドレスかどうかを判定する。
func isValidEmail(email string) bool {
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
