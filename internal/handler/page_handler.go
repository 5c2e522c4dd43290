package handler

import (
	_ "embed"
	"net/http"
)

//go:embed static/index.html
var indexHTML []byte

// PagePaths はSPAシェルを返すページのルートパターン。
// ページセッションミドルウェアのルートガードを通過したリクエストのみ到達する。
var PagePaths = []string{
	"/",
	"/login",
	"/register",
	"/courses",
	"/courses/{slug}",
	"/dashboard",
	"/dashboard/*",
	"/ai-tools",
	"/investors",
}

// ServePage はSPAシェルを返す。セッション状態はクライアントが/api/sessionから取得する。
func ServePage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		w.Write(indexHTML)
	}
}
