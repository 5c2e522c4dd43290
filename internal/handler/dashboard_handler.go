package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/learnhub/internal/dashboard"
	"github.com/hitoshi/learnhub/internal/model"
	"github.com/hitoshi/learnhub/internal/session"
)

// DashboardServiceInterface はダッシュボードハンドラーが必要とするサービスインターフェース。
type DashboardServiceInterface interface {
	Load(ctx context.Context, identity *model.Identity) (*model.DashboardState, error)
	ToggleDarkMode(ctx context.Context, identity *model.Identity) (*model.DashboardState, error)
	ToggleSidebar(ctx context.Context, identity *model.Identity) (*model.DashboardState, error)
	SetActiveSection(ctx context.Context, identity *model.Identity, section string) (*model.DashboardState, error)
	StartEdit(ctx context.Context, identity *model.Identity) (*model.DashboardState, error)
	SetDraft(ctx context.Context, identity *model.Identity, draft string) (*model.DashboardState, error)
	CancelEdit(ctx context.Context, identity *model.Identity) (*model.DashboardState, error)
	UpdateDisplayName(ctx context.Context, token string, store *session.Store) (dashboard.Outcome, *model.DashboardState, error)
}

// DashboardHandler はダッシュボードのHTTPハンドラー。
// ルーターでRequireIdentityの内側に配置する前提。
type DashboardHandler struct {
	service DashboardServiceInterface
}

// NewDashboardHandler はDashboardHandlerを生成する。
func NewDashboardHandler(service DashboardServiceInterface) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// dashboardResponse はビュー状態と表示用のIdentityをまとめたレスポンス。
type dashboardResponse struct {
	Outcome    dashboard.Outcome     `json:"outcome,omitempty"`
	State      *model.DashboardState `json:"state"`
	Identity   *model.Identity       `json:"identity"`
	BadgeColor string                `json:"badgeColor"`
}

type sectionRequest struct {
	Section string `json:"section"`
}

type draftRequest struct {
	DraftName string `json:"draftName"`
}

// GetDashboard はビュー状態を返す。
// GET /api/dashboard
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.service.Load)
}

// ToggleDarkMode はダークモードを切り替える。
// POST /api/dashboard/dark-mode
func (h *DashboardHandler) ToggleDarkMode(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.service.ToggleDarkMode)
}

// ToggleSidebar はサイドバーの開閉を切り替える。
// POST /api/dashboard/sidebar
func (h *DashboardHandler) ToggleSidebar(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.service.ToggleSidebar)
}

// SetActiveSection は表示中のセクションを切り替える。
// POST /api/dashboard/section
func (h *DashboardHandler) SetActiveSection(w http.ResponseWriter, r *http.Request) {
	var req sectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.respond(w, r, func(ctx context.Context, identity *model.Identity) (*model.DashboardState, error) {
		return h.service.SetActiveSection(ctx, identity, req.Section)
	})
}

// StartEditName は表示名の編集を開始する。
// POST /api/dashboard/name/edit
func (h *DashboardHandler) StartEditName(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.service.StartEdit)
}

// SetDraftName は編集中の表示名を更新する。
// POST /api/dashboard/name/draft
func (h *DashboardHandler) SetDraftName(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.respond(w, r, func(ctx context.Context, identity *model.Identity) (*model.DashboardState, error) {
		return h.service.SetDraft(ctx, identity, req.DraftName)
	})
}

// CancelEditName は編集を取り消し、下書きを確定済みの表示名に戻す。
// POST /api/dashboard/name/cancel
func (h *DashboardHandler) CancelEditName(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.service.CancelEdit)
}

// SaveName は下書きの表示名をバックエンドに保存する。
// バックエンドの失敗はエラーレスポンスではなく、outcome=failedと通知付きのビュー状態で返す。
// POST /api/dashboard/name/save
func (h *DashboardHandler) SaveName(w http.ResponseWriter, r *http.Request) {
	st, store, err := sessionFromRequest(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	outcome, state, err := h.service.UpdateDisplayName(r.Context(), st.Token(), store)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	identity := store.Identity()
	writeJSON(w, http.StatusOK, dashboardResponse{
		Outcome:    outcome,
		State:      state,
		Identity:   identity,
		BadgeColor: badgeColorFor(state, identity),
	})
}

func (h *DashboardHandler) respond(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, identity *model.Identity) (*model.DashboardState, error),
) {
	_, store, err := sessionFromRequest(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	identity := store.Identity()

	state, err := op(r.Context(), identity)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboardResponse{
		State:      state,
		Identity:   identity,
		BadgeColor: badgeColorFor(state, identity),
	})
}

// badgeColorFor はビュー状態の会員種別からバッジ色を決める。
func badgeColorFor(state *model.DashboardState, identity *model.Identity) string {
	if state != nil {
		return dashboard.BadgeColor(state.MembershipType)
	}
	if identity != nil {
		return dashboard.BadgeColor(identity.MembershipType)
	}
	return dashboard.BadgeColor("")
}
