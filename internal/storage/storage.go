// Package storage はクライアント側の永続ストレージ（認証トークンとログイン後リダイレクト先）を提供する。
// 2つのスロットはどちらも単純な文字列で、トークンはログアウト時、リダイレクト先は消費時にクリアされる。
package storage

import (
	"context"
	"strings"
)

// ClientStorage はクライアント永続ストレージの2つのスロットへのアクセスを定義する。
type ClientStorage interface {
	// Token は保存済みのBearerトークンを返す。未保存の場合は空文字列。
	Token() string
	SetToken(token string)
	ClearToken()

	// PendingRedirect はログイン後に遷移すべきパスを返す。未保存の場合は空文字列。
	PendingRedirect() string
	SetPendingRedirect(path string)
	ClearPendingRedirect()
}

type contextKey string

var storageContextKey = contextKey("client_storage")

// WithStorage はコンテキストにClientStorageを格納する。
func WithStorage(ctx context.Context, s ClientStorage) context.Context {
	return context.WithValue(ctx, storageContextKey, s)
}

// FromContext はコンテキストからClientStorageを取得する。
func FromContext(ctx context.Context) (ClientStorage, bool) {
	s, ok := ctx.Value(storageContextKey).(ClientStorage)
	return s, ok && s != nil
}

// IsLocalPath はオープンリダイレクトにならないサイト内パスかどうかを判定する。
// "/"で始まり、"//"や"/\"で始まらないものだけを許可する。
func IsLocalPath(p string) bool {
	if p == "" || p[0] != '/' {
		return false
	}
	if strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return false
	}
	return !strings.ContainsAny(p, "\r\n")
}
