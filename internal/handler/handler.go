// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/learnhub/internal/middleware"
	"github.com/hitoshi/learnhub/internal/model"
	"github.com/hitoshi/learnhub/internal/session"
	"github.com/hitoshi/learnhub/internal/storage"
)

// maxRequestBodyBytes はJSONリクエストボディの上限サイズ。
const maxRequestBodyBytes = 64 << 10

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// decodeJSON はリクエストボディをデコードする。
// 空ボディ、不正なJSON、上限超過はいずれもINVALID_REQUESTとして扱う。
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return model.NewInvalidRequestError("リクエストボディが大きすぎます")
		case errors.Is(err, io.EOF):
			return model.NewInvalidRequestError("リクエストボディが空です")
		default:
			return model.NewInvalidRequestError("JSONの解析に失敗しました")
		}
	}
	return nil
}

// sessionFromRequest はセッションミドルウェアが格納したストレージとストアを取り出す。
// ルーター構成の誤りでしか失敗しないため、失敗時は内部エラーとする。
func sessionFromRequest(r *http.Request) (storage.ClientStorage, *session.Store, error) {
	st, ok := storage.FromContext(r.Context())
	if !ok {
		return nil, nil, errors.New("client storage not found in context")
	}
	store, ok := session.FromContext(r.Context())
	if !ok {
		return nil, nil, errors.New("session store not found in context")
	}
	return st, store, nil
}

// statusResponse は本文を持たない操作の成功レスポンス。
type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// writeServiceError はサービス層のエラーを統一エラーフォーマットで書き込む。
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	middleware.WriteError(w, r, err)
}
