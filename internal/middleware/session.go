// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/learnhub/internal/authz"
	"github.com/hitoshi/learnhub/internal/bootstrap"
	"github.com/hitoshi/learnhub/internal/model"
	"github.com/hitoshi/learnhub/internal/session"
	"github.com/hitoshi/learnhub/internal/storage"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
var userIDContextKey = contextKey("user_id")

// SessionBootstrapper はリクエストごとのセッション確立処理。bootstrap.Bootstrapperが実装する。
type SessionBootstrapper interface {
	Run(ctx context.Context, st storage.ClientStorage, store *session.Store, currentPath string) bootstrap.Result
	Restore(ctx context.Context, st storage.ClientStorage, store *session.Store) bootstrap.Result
}

// NewPageSessionMiddleware はページ遷移用のセッションミドルウェアを返す。
// Cookieからセッションを確立し、ルートガードの判定結果がリダイレクトの場合は302で遷移させる。
func NewPageSessionMiddleware(factory storage.Factory, b SessionBootstrapper) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st := factory(w, r)
			store := session.NewStore()

			result := b.Run(r.Context(), st, store, r.URL.RequestURI())

			ctx := withSession(r.Context(), st, store)
			target := result.Decision.Target
			if result.Decision.Redirect() && target != r.URL.Path && target != r.URL.RequestURI() {
				http.Redirect(w, r.WithContext(ctx), result.Decision.Target, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewAPISessionMiddleware はAPI用のセッションミドルウェアを返す。
// セッションの確立のみ行い、リダイレクトや保留中リダイレクト先の消費はしない。
// 未認証でも後続のハンドラーを呼び出す（認証必須のルートはRequireIdentityを併用する）。
func NewAPISessionMiddleware(factory storage.Factory, b SessionBootstrapper) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st := factory(w, r)
			store := session.NewStore()

			b.Restore(r.Context(), st, store)

			next.ServeHTTP(w, r.WithContext(withSession(r.Context(), st, store)))
		})
	}
}

// RequireIdentity は認証済みでないリクエストに401を返すミドルウェアを返す。
// NewAPISessionMiddlewareの後に配置する。
func RequireIdentity() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IdentityFromContext(r.Context()) == nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireCapability は指定ケイパビリティを持たないリクエストを拒否するミドルウェアを返す。
// 未認証は401、権限不足は403を返す。
func RequireCapability(authorizer authz.Authorizer, capability string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := IdentityFromContext(r.Context())
			if identity == nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			if !authorizer.Can(identity, capability) {
				slog.Warn("capability check failed",
					slog.String("user_id", identity.UID),
					slog.String("capability", capability),
				)
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IdentityFromContext はセッションミドルウェアが確立したIdentityを返す。未認証の場合はnil。
func IdentityFromContext(ctx context.Context) *model.Identity {
	store, ok := session.FromContext(ctx)
	if !ok {
		return nil
	}
	return store.Identity()
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// セッションミドルウェアで認証済みとなったリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// ロギングミドルウェアの内側で呼ばれた場合はアクセスログにも反映する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	if info := requestInfoFromContext(ctx); info != nil {
		info.userID = userID
	}
	return context.WithValue(ctx, userIDContextKey, userID)
}

func withSession(ctx context.Context, st storage.ClientStorage, store *session.Store) context.Context {
	ctx = storage.WithStorage(ctx, st)
	ctx = session.WithStore(ctx, store)
	if identity := store.Identity(); identity != nil {
		ctx = ContextWithUserID(ctx, identity.UID)
	}
	return ctx
}
