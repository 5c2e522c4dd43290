package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/learnhub/internal/catalog"
	"github.com/hitoshi/learnhub/internal/middleware"
	"github.com/hitoshi/learnhub/internal/model"
)

// CatalogServiceInterface はコースハンドラーが必要とするサービスインターフェース。
// catalog.Loaderが実装する。
type CatalogServiceInterface interface {
	Courses(ctx context.Context) ([]model.Course, error)
	Refresh(ctx context.Context) ([]model.Course, error)
	Find(ctx context.Context, idOrSlug string) (*model.Course, error)
}

// CourseHandler はコースカタログのHTTPハンドラー。
type CourseHandler struct {
	service CatalogServiceInterface
}

// NewCourseHandler はCourseHandlerを生成する。
func NewCourseHandler(service CatalogServiceInterface) *CourseHandler {
	return &CourseHandler{service: service}
}

type courseListResponse struct {
	Courses []model.Course `json:"courses"`
	Total   int            `json:"total"`
}

// ListCourses はコース一覧を返す。
// GET /api/courses?q=...&new=true&trending=true
func (h *CourseHandler) ListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.service.Courses(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	q := r.URL.Query()
	filtered := catalog.Filter(courses, catalog.Query{
		Text:         q.Get("q"),
		OnlyNew:      parseBoolQuery(q.Get("new")),
		OnlyTrending: parseBoolQuery(q.Get("trending")),
	})
	if filtered == nil {
		filtered = []model.Course{}
	}

	writeJSON(w, http.StatusOK, courseListResponse{Courses: filtered, Total: len(filtered)})
}

// GetCourse はIDまたはslugでコースを返す。
// GET /api/courses/{id}
func (h *CourseHandler) GetCourse(w http.ResponseWriter, r *http.Request) {
	idOrSlug := chi.URLParam(r, "id")
	if idOrSlug == "" {
		writeServiceError(w, r, model.NewInvalidRequestError("コースIDが指定されていません"))
		return
	}

	course, err := h.service.Find(r.Context(), idOrSlug)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, course)
}

// RefreshCatalog はカタログを再取得する。失敗時は直前の一覧が維持される。
// POST /api/admin/catalog/refresh
func (h *CourseHandler) RefreshCatalog(w http.ResponseWriter, r *http.Request) {
	courses, err := h.service.Refresh(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	userID, _ := middleware.UserIDFromContext(r.Context())
	slog.Info("course catalog refreshed",
		slog.String("user_id", userID),
		slog.Int("courses", len(courses)),
	)
	writeJSON(w, http.StatusOK, courseListResponse{Courses: courses, Total: len(courses)})
}

// parseBoolQuery はクエリパラメータを真偽値として解釈する。解釈できない値はfalse。
func parseBoolQuery(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
