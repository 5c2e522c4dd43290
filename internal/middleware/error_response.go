package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/learnhub/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// statusByCode はエラーコードとHTTPステータスの対応表。
var statusByCode = map[string]int{
	model.ErrCodeInvalidCredentials:  http.StatusUnauthorized,
	model.ErrCodeInvalidToken:        http.StatusUnauthorized,
	model.ErrCodeUnauthorized:        http.StatusUnauthorized,
	model.ErrCodeForbidden:           http.StatusForbidden,
	model.ErrCodeCSRFTokenInvalid:    http.StatusForbidden,
	model.ErrCodeEmailAlreadyExists:  http.StatusConflict,
	model.ErrCodeWeakPassword:        http.StatusBadRequest,
	model.ErrCodeInvalidEmail:        http.StatusBadRequest,
	model.ErrCodeInvalidRequest:      http.StatusBadRequest,
	model.ErrCodeRegistrationFailed:  http.StatusBadRequest,
	model.ErrCodeBackendError:        http.StatusBadRequest,
	model.ErrCodeCourseNotFound:      http.StatusNotFound,
	model.ErrCodeRateLimitExceeded:   http.StatusTooManyRequests,
	model.ErrCodeNetworkError:        http.StatusBadGateway,
	model.ErrCodeProfileFetchFailed:  http.StatusBadGateway,
	model.ErrCodeProfileUpdateFailed: http.StatusBadGateway,
	model.ErrCodeCatalogFetchFailed:  http.StatusServiceUnavailable,
}

// StatusForError はAPIErrorに対応するHTTPステータスを返す。未定義のコードは500とする。
func StatusForError(apiErr *model.APIError) int {
	if status, ok := statusByCode[apiErr.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// すべてのAPIエンドポイントで一貫したエラーレスポンスを提供する。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteError はerrorを統一エラーフォーマットで書き込む。
// *model.APIErrorはコードに応じたステータスで返し、それ以外は詳細をログに記録して500を返す。
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		WriteErrorResponse(w, StatusForError(apiErr), apiErr)
		return
	}

	slog.Error("unhandled error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("request_id", RequestIDFromContext(r.Context())),
		slog.String("error", err.Error()),
	)
	WriteInternalServerError(w)
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}
