package handler

import (
	"net/http"

	"github.com/hitoshi/learnhub/internal/directory"
	"github.com/hitoshi/learnhub/internal/model"
)

// DirectoryInterface はディレクトリハンドラーが必要とするインターフェース。
type DirectoryInterface interface {
	ListTools(f directory.Filter) []model.AITool
	ListInvestors(f directory.Filter) []model.Investor
	Categories() []string
}

// DirectoryHandler はAIツール・投資家ディレクトリのHTTPハンドラー。
type DirectoryHandler struct {
	dir DirectoryInterface
}

// NewDirectoryHandler はDirectoryHandlerを生成する。
func NewDirectoryHandler(dir DirectoryInterface) *DirectoryHandler {
	return &DirectoryHandler{dir: dir}
}

type aiToolsResponse struct {
	Tools      []model.AITool `json:"tools"`
	Categories []string       `json:"categories"`
}

type investorsResponse struct {
	Investors []model.Investor `json:"investors"`
}

// ListAITools はAIツール一覧を返す。
// GET /api/ai-tools?category=...&q=...
func (h *DirectoryHandler) ListAITools(w http.ResponseWriter, r *http.Request) {
	tools := h.dir.ListTools(filterFromQuery(r))
	if tools == nil {
		tools = []model.AITool{}
	}
	writeJSON(w, http.StatusOK, aiToolsResponse{Tools: tools, Categories: h.dir.Categories()})
}

// ListInvestors は投資家一覧を返す。
// GET /api/investors?category=...&q=...
func (h *DirectoryHandler) ListInvestors(w http.ResponseWriter, r *http.Request) {
	investors := h.dir.ListInvestors(filterFromQuery(r))
	if investors == nil {
		investors = []model.Investor{}
	}
	writeJSON(w, http.StatusOK, investorsResponse{Investors: investors})
}

func filterFromQuery(r *http.Request) directory.Filter {
	q := r.URL.Query()
	return directory.Filter{Category: q.Get("category"), Text: q.Get("q")}
}
