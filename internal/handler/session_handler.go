package handler

import (
	"net/http"

	"github.com/hitoshi/learnhub/internal/authz"
	"github.com/hitoshi/learnhub/internal/session"
)

// exposedCapabilities はクライアントに判定結果を返すケイパビリティ。
var exposedCapabilities = []string{
	authz.CapabilityCatalogRefresh,
	authz.CapabilityAdminView,
}

// SessionHandler はセッション状態のHTTPハンドラー。
type SessionHandler struct {
	authorizer authz.Authorizer
}

// NewSessionHandler はSessionHandlerを生成する。
func NewSessionHandler(authorizer authz.Authorizer) *SessionHandler {
	return &SessionHandler{authorizer: authorizer}
}

type sessionResponse struct {
	session.State
	Capabilities []string `json:"capabilities"`
}

// GetSession はブートストラップ済みのセッション状態を返す。未認証でも200を返す。
// GET /api/session
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	_, store, err := sessionFromRequest(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	snapshot := store.Snapshot()
	caps := []string{}
	if snapshot.Identity != nil && h.authorizer != nil {
		for _, c := range exposedCapabilities {
			if h.authorizer.Can(snapshot.Identity, c) {
				caps = append(caps, c)
			}
		}
	}

	writeJSON(w, http.StatusOK, sessionResponse{State: snapshot, Capabilities: caps})
}
