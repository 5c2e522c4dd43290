package storage

import (
	"log/slog"
	"net/http"
)

const (
	// TokenCookieName はBearerトークンを保持するCookie名。
	TokenCookieName = "auth_token"
	// RedirectCookieName はログイン後リダイレクト先を保持するCookie名。
	RedirectCookieName = "pending_redirect"
)

// CookieConfig はCookieストレージの設定。
type CookieConfig struct {
	Domain      string
	Secure      bool
	TokenMaxAge int // トークンCookieの有効期間（秒）
}

// CookieStorage はHTTP Only Cookieを使ったClientStorage実装。
// 1リクエスト内で書き込んだ値は以降の読み取りにも反映される。
type CookieStorage struct {
	w      http.ResponseWriter
	config CookieConfig
	signer *RedirectSigner

	token    string
	redirect string
}

// NewCookieStorage はリクエストのCookieから現在値を読み込んだCookieStorageを生成する。
// 署名が不正または期限切れのリダイレクト先は無視する。
func NewCookieStorage(w http.ResponseWriter, r *http.Request, config CookieConfig, signer *RedirectSigner) *CookieStorage {
	s := &CookieStorage{w: w, config: config, signer: signer}

	if c, err := r.Cookie(TokenCookieName); err == nil {
		s.token = c.Value
	}
	if c, err := r.Cookie(RedirectCookieName); err == nil && c.Value != "" {
		path, err := signer.Verify(c.Value)
		if err != nil {
			slog.Warn("discarding pending redirect cookie", slog.String("error", err.Error()))
		} else {
			s.redirect = path
		}
	}
	return s
}

// Factory はリクエストごとにClientStorageを生成する関数。
type Factory func(w http.ResponseWriter, r *http.Request) ClientStorage

// NewCookieFactory はCookieStorageを生成するFactoryを返す。
func NewCookieFactory(config CookieConfig, signer *RedirectSigner) Factory {
	return func(w http.ResponseWriter, r *http.Request) ClientStorage {
		return NewCookieStorage(w, r, config, signer)
	}
}

func (s *CookieStorage) Token() string {
	return s.token
}

func (s *CookieStorage) SetToken(token string) {
	s.token = token
	s.setCookie(TokenCookieName, token, s.config.TokenMaxAge)
}

func (s *CookieStorage) ClearToken() {
	s.token = ""
	s.setCookie(TokenCookieName, "", -1)
}

func (s *CookieStorage) PendingRedirect() string {
	return s.redirect
}

// SetPendingRedirect はサイト内パスを署名して保存する。
func (s *CookieStorage) SetPendingRedirect(path string) {
	signed, err := s.signer.Sign(path)
	if err != nil {
		slog.Warn("refusing to store pending redirect", slog.String("error", err.Error()))
		return
	}
	s.redirect = path
	s.setCookie(RedirectCookieName, signed, int(s.signer.ttl.Seconds()))
}

func (s *CookieStorage) ClearPendingRedirect() {
	s.redirect = ""
	s.setCookie(RedirectCookieName, "", -1)
}

func (s *CookieStorage) setCookie(name, value string, maxAge int) {
	http.SetCookie(s.w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   s.config.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// compile-time interface check
var _ ClientStorage = (*CookieStorage)(nil)
