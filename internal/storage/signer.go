package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// redirectClaims はリダイレクト先Cookieに格納するJWTのクレーム。
type redirectClaims struct {
	Path string `json:"path"`
	jwt.RegisteredClaims
}

// RedirectSigner はリダイレクト先パスをHS256署名付きJWTとして封印する。
// Cookieの改ざんによるオープンリダイレクトを防ぐ。
type RedirectSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewRedirectSigner はRedirectSignerを生成する。
func NewRedirectSigner(secret string, ttl time.Duration) *RedirectSigner {
	return &RedirectSigner{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Sign はパスを署名付きトークンに変換する。サイト内パス以外はエラー。
func (s *RedirectSigner) Sign(path string) (string, error) {
	if !IsLocalPath(path) {
		return "", fmt.Errorf("redirect path is not local: %q", path)
	}
	now := s.now()
	claims := redirectClaims{
		Path: path,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign redirect: %w", err)
	}
	return signed, nil
}

// Verify は署名と有効期限を検証し、パスを取り出す。
func (s *RedirectSigner) Verify(signed string) (string, error) {
	claims := &redirectClaims{}
	_, err := jwt.ParseWithClaims(signed, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("invalid redirect token: %w", err)
	}
	if !IsLocalPath(claims.Path) {
		return "", errors.New("redirect path is not local")
	}
	return claims.Path, nil
}
