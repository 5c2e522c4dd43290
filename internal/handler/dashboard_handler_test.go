package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/learnhub/internal/dashboard"
	"github.com/hitoshi/learnhub/internal/gateway"
	"github.com/hitoshi/learnhub/internal/model"
	"github.com/hitoshi/learnhub/internal/security"
	"github.com/hitoshi/learnhub/internal/session"
	"github.com/hitoshi/learnhub/internal/storage"
)

// mockDashboardService はDashboardServiceInterfaceのモック実装。
// 未設定の操作は呼び出された操作名を記録したビュー状態を返す。
type mockDashboardService struct {
	calls               []string
	setActiveSectionFn  func(ctx context.Context, identity *model.Identity, section string) (*model.DashboardState, error)
	setDraftFn          func(ctx context.Context, identity *model.Identity, draft string) (*model.DashboardState, error)
	updateDisplayNameFn func(ctx context.Context, token string, store *session.Store) (dashboard.Outcome, *model.DashboardState, error)
}

func (m *mockDashboardService) record(op string, identity *model.Identity) (*model.DashboardState, error) {
	m.calls = append(m.calls, op)
	return &model.DashboardState{UID: identity.UID, MembershipType: "Premium", ActiveSection: op}, nil
}

func (m *mockDashboardService) Load(_ context.Context, identity *model.Identity) (*model.DashboardState, error) {
	return m.record("load", identity)
}

func (m *mockDashboardService) ToggleDarkMode(_ context.Context, identity *model.Identity) (*model.DashboardState, error) {
	return m.record("dark-mode", identity)
}

func (m *mockDashboardService) ToggleSidebar(_ context.Context, identity *model.Identity) (*model.DashboardState, error) {
	return m.record("sidebar", identity)
}

func (m *mockDashboardService) SetActiveSection(ctx context.Context, identity *model.Identity, section string) (*model.DashboardState, error) {
	if m.setActiveSectionFn != nil {
		return m.setActiveSectionFn(ctx, identity, section)
	}
	return m.record("section", identity)
}

func (m *mockDashboardService) StartEdit(_ context.Context, identity *model.Identity) (*model.DashboardState, error) {
	return m.record("edit", identity)
}

func (m *mockDashboardService) SetDraft(ctx context.Context, identity *model.Identity, draft string) (*model.DashboardState, error) {
	if m.setDraftFn != nil {
		return m.setDraftFn(ctx, identity, draft)
	}
	return m.record("draft", identity)
}

func (m *mockDashboardService) CancelEdit(_ context.Context, identity *model.Identity) (*model.DashboardState, error) {
	return m.record("cancel", identity)
}

func (m *mockDashboardService) UpdateDisplayName(ctx context.Context, token string, store *session.Store) (dashboard.Outcome, *model.DashboardState, error) {
	if m.updateDisplayNameFn != nil {
		return m.updateDisplayNameFn(ctx, token, store)
	}
	return dashboard.OutcomeSkipped, nil, nil
}

func authenticatedRequest(method, target, body, uid string) (*http.Request, *session.Store) {
	store := session.NewStore()
	store.Publish(&model.Identity{UID: uid, DisplayName: strPtr("Alice")})
	req := withTestSession(jsonRequest(method, target, body), storage.NewMemoryStorage("tok-"+uid, ""), store)
	return req, store
}

func decodeDashboard(t *testing.T, w *httptest.ResponseRecorder) dashboardResponse {
	t.Helper()
	var resp dashboardResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func TestDashboardHandler_SimpleOperations(t *testing.T) {
	tests := []struct {
		name   string
		invoke func(h *DashboardHandler) http.HandlerFunc
		body   string
		wantOp string
	}{
		{"get", func(h *DashboardHandler) http.HandlerFunc { return h.GetDashboard }, "", "load"},
		{"dark mode", func(h *DashboardHandler) http.HandlerFunc { return h.ToggleDarkMode }, "", "dark-mode"},
		{"sidebar", func(h *DashboardHandler) http.HandlerFunc { return h.ToggleSidebar }, "", "sidebar"},
		{"section", func(h *DashboardHandler) http.HandlerFunc { return h.SetActiveSection }, `{"section":"billing"}`, "section"},
		{"edit", func(h *DashboardHandler) http.HandlerFunc { return h.StartEditName }, "", "edit"},
		{"draft", func(h *DashboardHandler) http.HandlerFunc { return h.SetDraftName }, `{"draftName":"Bob"}`, "draft"},
		{"cancel", func(h *DashboardHandler) http.HandlerFunc { return h.CancelEditName }, "", "cancel"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockDashboardService{}
			h := NewDashboardHandler(svc)

			req, _ := authenticatedRequest(http.MethodPost, "/api/dashboard", tt.body, "u1")
			w := httptest.NewRecorder()
			tt.invoke(h)(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d (body=%s)", w.Code, http.StatusOK, w.Body.String())
			}
			if len(svc.calls) != 1 || svc.calls[0] != tt.wantOp {
				t.Errorf("calls = %v, want [%s]", svc.calls, tt.wantOp)
			}
			resp := decodeDashboard(t, w)
			if resp.State == nil || resp.State.UID != "u1" {
				t.Errorf("state = %+v, want uid u1", resp.State)
			}
			if resp.Identity == nil || resp.Identity.UID != "u1" {
				t.Errorf("identity = %+v, want uid u1", resp.Identity)
			}
			if resp.BadgeColor != "badge-premium" {
				t.Errorf("badgeColor = %q, want badge-premium", resp.BadgeColor)
			}
		})
	}
}

func TestDashboardHandler_SetActiveSection_PassesSection(t *testing.T) {
	var got string
	svc := &mockDashboardService{
		setActiveSectionFn: func(_ context.Context, identity *model.Identity, section string) (*model.DashboardState, error) {
			got = section
			return &model.DashboardState{UID: identity.UID, ActiveSection: section}, nil
		},
	}
	h := NewDashboardHandler(svc)

	req, _ := authenticatedRequest(http.MethodPost, "/api/dashboard/section", `{"section":"billing"}`, "u1")
	w := httptest.NewRecorder()
	h.SetActiveSection(w, req)

	if got != "billing" {
		t.Errorf("section = %q, want billing", got)
	}
	if resp := decodeDashboard(t, w); resp.BadgeColor != "badge-default" {
		t.Errorf("badgeColor = %q, want badge-default for empty membership type", resp.BadgeColor)
	}
}

func TestDashboardHandler_ServiceError(t *testing.T) {
	svc := &mockDashboardService{
		setActiveSectionFn: func(context.Context, *model.Identity, string) (*model.DashboardState, error) {
			return nil, model.NewInvalidRequestError("不明なセクションです")
		},
		setDraftFn: func(context.Context, *model.Identity, string) (*model.DashboardState, error) {
			return nil, errors.New("redis: connection refused")
		},
	}
	h := NewDashboardHandler(svc)

	req, _ := authenticatedRequest(http.MethodPost, "/api/dashboard/section", `{"section":"nope"}`, "u1")
	w := httptest.NewRecorder()
	h.SetActiveSection(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("section status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	req, _ = authenticatedRequest(http.MethodPost, "/api/dashboard/name/draft", `{"draftName":"x"}`, "u1")
	w = httptest.NewRecorder()
	h.SetDraftName(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("draft status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

func TestDashboardHandler_InvalidBody_Returns400(t *testing.T) {
	svc := &mockDashboardService{}
	h := NewDashboardHandler(svc)

	req, _ := authenticatedRequest(http.MethodPost, "/api/dashboard/section", `[`, "u1")
	w := httptest.NewRecorder()
	h.SetActiveSection(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if len(svc.calls) != 0 {
		t.Errorf("service should not be called, got %v", svc.calls)
	}
}

func TestDashboardHandler_SaveName_PassesTokenAndOutcome(t *testing.T) {
	var gotToken string
	svc := &mockDashboardService{
		updateDisplayNameFn: func(_ context.Context, token string, store *session.Store) (dashboard.Outcome, *model.DashboardState, error) {
			gotToken = token
			id := store.Identity()
			id.DisplayName = strPtr("Bob")
			store.Publish(id)
			return dashboard.OutcomeSaved, &model.DashboardState{UID: id.UID, MembershipType: "Lifetime"}, nil
		},
	}
	h := NewDashboardHandler(svc)

	req, _ := authenticatedRequest(http.MethodPost, "/api/dashboard/name/save", "", "u1")
	w := httptest.NewRecorder()
	h.SaveName(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotToken != "tok-u1" {
		t.Errorf("token = %q, want tok-u1", gotToken)
	}
	resp := decodeDashboard(t, w)
	if resp.Outcome != dashboard.OutcomeSaved {
		t.Errorf("outcome = %q, want saved", resp.Outcome)
	}
	if resp.Identity == nil || resp.Identity.DisplayName == nil || *resp.Identity.DisplayName != "Bob" {
		t.Errorf("identity = %+v, want display name Bob", resp.Identity)
	}
	if resp.BadgeColor != "badge-lifetime" {
		t.Errorf("badgeColor = %q, want badge-lifetime", resp.BadgeColor)
	}
}

func TestDashboardHandler_SaveName_Discarded(t *testing.T) {
	svc := &mockDashboardService{
		updateDisplayNameFn: func(context.Context, string, *session.Store) (dashboard.Outcome, *model.DashboardState, error) {
			return dashboard.OutcomeDiscarded, nil, nil
		},
	}
	h := NewDashboardHandler(svc)

	req, _ := authenticatedRequest(http.MethodPost, "/api/dashboard/name/save", "", "u1")
	w := httptest.NewRecorder()
	h.SaveName(w, req)

	resp := decodeDashboard(t, w)
	if resp.Outcome != dashboard.OutcomeDiscarded || resp.State != nil {
		t.Errorf("outcome = %q state = %+v, want discarded with nil state", resp.Outcome, resp.State)
	}
}

// stubProfileUpdater は実際のdashboard.Serviceと組み合わせるためのProfileUpdater。
type stubProfileUpdater struct {
	err error
}

func (s stubProfileUpdater) UpdateProfile(context.Context, string, string, gateway.ProfileUpdate) error {
	return s.err
}

func TestDashboardHandler_SaveName_BackendFailureKeepsEditing(t *testing.T) {
	svc := dashboard.NewService(
		dashboard.NewMemoryStateStore(),
		stubProfileUpdater{err: model.NewProfileUpdateFailedError()},
		security.NewContentSanitizer(),
		slog.New(slog.NewJSONHandler(io.Discard, nil)),
		nil,
		5*time.Second,
	)
	h := NewDashboardHandler(svc)

	req, store := authenticatedRequest(http.MethodPost, "/api/dashboard/name/edit", "", "u1")
	h.StartEditName(httptest.NewRecorder(), req)

	req = withTestSession(jsonRequest(http.MethodPost, "/api/dashboard/name/draft", `{"draftName":"Bob"}`),
		storage.NewMemoryStorage("tok-u1", ""), store)
	h.SetDraftName(httptest.NewRecorder(), req)

	req = withTestSession(jsonRequest(http.MethodPost, "/api/dashboard/name/save", ""),
		storage.NewMemoryStorage("tok-u1", ""), store)
	w := httptest.NewRecorder()
	h.SaveName(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body=%s)", w.Code, http.StatusOK, w.Body.String())
	}
	resp := decodeDashboard(t, w)
	if resp.Outcome != dashboard.OutcomeFailed {
		t.Fatalf("outcome = %q, want failed", resp.Outcome)
	}
	if !resp.State.EditingName || resp.State.DraftName != "Bob" || resp.State.SavingName {
		t.Errorf("state = %+v, want editing with draft Bob and not saving", resp.State)
	}
	if len(resp.State.Notifications) != 1 || resp.State.Notifications[0].Kind != model.NotificationError {
		t.Errorf("notifications = %+v, want one error toast", resp.State.Notifications)
	}
	if *resp.Identity.DisplayName != "Alice" {
		t.Errorf("display name = %q, want Alice unchanged", *resp.Identity.DisplayName)
	}
}
