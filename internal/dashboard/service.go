// Package dashboard はダッシュボードのビュー状態と表示名の更新フローを提供する。
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/learnhub/internal/gateway"
	"github.com/hitoshi/learnhub/internal/metrics"
	"github.com/hitoshi/learnhub/internal/model"
	"github.com/hitoshi/learnhub/internal/security"
	"github.com/hitoshi/learnhub/internal/session"
)

// Outcome は表示名更新の結果。
type Outcome string

const (
	OutcomeSkipped   Outcome = "skipped"   // 未認証または下書きが空のため何もしなかった
	OutcomeSaved     Outcome = "saved"     // バックエンドに保存し確定した
	OutcomeFailed    Outcome = "failed"    // バックエンドが失敗し、編集状態を維持した
	OutcomeDiscarded Outcome = "discarded" // 通信中にビュー状態が破棄されたため結果を捨てた
)

const (
	toastNameSaved  = "表示名を更新しました。"
	toastNameFailed = "表示名の更新に失敗しました。"
)

// ProfileUpdater はプロフィール更新のインターフェース。auth.Serviceが実装する。
type ProfileUpdater interface {
	UpdateProfile(ctx context.Context, token, uid string, update gateway.ProfileUpdate) error
}

// Service はダッシュボードのビュー状態を操作する。
type Service struct {
	store     StateStore
	updater   ProfileUpdater
	sanitizer security.ContentSanitizerService
	logger    *slog.Logger
	metrics   metrics.MetricsCollector
	toastTTL  time.Duration
	now       func() time.Time

	// 同一インスタンス内での読み取り・更新・保存の競合を防ぐ
	mu sync.Mutex
}

// NewService はServiceを生成する。
func NewService(
	store StateStore,
	updater ProfileUpdater,
	sanitizer security.ContentSanitizerService,
	logger *slog.Logger,
	m metrics.MetricsCollector,
	toastTTL time.Duration,
) *Service {
	if m == nil {
		m = metrics.NopCollector{}
	}
	return &Service{
		store:     store,
		updater:   updater,
		sanitizer: sanitizer,
		logger:    logger,
		metrics:   m,
		toastTTL:  toastTTL,
		now:       time.Now,
	}
}

// Load はビュー状態を返す。未作成の場合は初期値を作成して保存する。
// 期限切れの通知は取り除いた状態で返す。
func (s *Service) Load(ctx context.Context, identity *model.Identity) (*model.DashboardState, error) {
	if identity == nil {
		return nil, model.NewUnauthorizedError()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx, identity)
}

// ToggleDarkMode はダークモードを切り替える。
func (s *Service) ToggleDarkMode(ctx context.Context, identity *model.Identity) (*model.DashboardState, error) {
	return s.mutate(ctx, identity, func(st *model.DashboardState) error {
		st.DarkMode = !st.DarkMode
		return nil
	})
}

// ToggleSidebar はサイドバーの開閉を切り替える。
func (s *Service) ToggleSidebar(ctx context.Context, identity *model.Identity) (*model.DashboardState, error) {
	return s.mutate(ctx, identity, func(st *model.DashboardState) error {
		st.SidebarOpen = !st.SidebarOpen
		return nil
	})
}

// SetActiveSection は表示中のセクションを切り替える。
func (s *Service) SetActiveSection(ctx context.Context, identity *model.Identity, section string) (*model.DashboardState, error) {
	if !slices.Contains(Sections, section) {
		return nil, model.NewInvalidRequestError(fmt.Sprintf("不明なセクションです: %s", section))
	}
	return s.mutate(ctx, identity, func(st *model.DashboardState) error {
		st.ActiveSection = section
		return nil
	})
}

// StartEdit は表示名の編集を開始する。下書きは確定済みの表示名で初期化する。
func (s *Service) StartEdit(ctx context.Context, identity *model.Identity) (*model.DashboardState, error) {
	return s.mutate(ctx, identity, func(st *model.DashboardState) error {
		st.EditingName = true
		st.DraftName = identity.Name()
		return nil
	})
}

// SetDraft は編集中の下書きを更新する。確定済みの表示名は変更しない。
func (s *Service) SetDraft(ctx context.Context, identity *model.Identity, draft string) (*model.DashboardState, error) {
	return s.mutate(ctx, identity, func(st *model.DashboardState) error {
		if !st.EditingName {
			return model.NewInvalidRequestError("表示名を編集中ではありません")
		}
		st.DraftName = draft
		return nil
	})
}

// CancelEdit は編集を取り消し、下書きを確定済みの表示名に戻す。
func (s *Service) CancelEdit(ctx context.Context, identity *model.Identity) (*model.DashboardState, error) {
	return s.mutate(ctx, identity, func(st *model.DashboardState) error {
		st.EditingName = false
		st.DraftName = identity.Name()
		return nil
	})
}

// UpdateDisplayName は下書きをバックエンドに保存し、成功した場合のみ確定済みの表示名を差し替える。
//
// Identityが無い、または下書きが空白のみの場合は何もしない（保存中フラグも変化しない）。
// バックエンドが失敗した場合はIdentityを変更せず、編集状態と下書きを維持したまま通知を追加する。
// 保存中フラグは結果に関わらず解除する。通信中にログアウト等でビュー状態が破棄された場合は結果を捨てる。
func (s *Service) UpdateDisplayName(ctx context.Context, token string, store *session.Store) (Outcome, *model.DashboardState, error) {
	identity := store.Identity()
	if identity == nil {
		s.metrics.RecordNameUpdate(string(OutcomeSkipped))
		return OutcomeSkipped, nil, nil
	}

	// 第1段階: 下書きを確定し、保存中として記録する
	s.mu.Lock()
	st, err := s.loadLocked(ctx, identity)
	if err != nil {
		s.mu.Unlock()
		return "", nil, err
	}
	name := s.sanitizer.StripTags(strings.TrimSpace(st.DraftName))
	if name == "" {
		s.mu.Unlock()
		s.metrics.RecordNameUpdate(string(OutcomeSkipped))
		return OutcomeSkipped, st, nil
	}
	st.SavingName = true
	if err := s.store.Save(ctx, st); err != nil {
		s.mu.Unlock()
		return "", nil, err
	}
	sessionID := st.SessionID
	s.mu.Unlock()

	updateErr := s.updater.UpdateProfile(ctx, token, identity.UID, gateway.ProfileUpdate{DisplayName: &name})

	// 第2段階: ビュー状態が残っている場合のみ結果を反映する。
	// 通信中にリクエストが切断されても保存中フラグを解除できるよう、キャンセルは引き継がない
	persistCtx := context.WithoutCancel(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	var applied bool
	defer func() {
		if !applied {
			s.clearSavingLocked(persistCtx, identity.UID, sessionID)
		}
	}()

	current, err := s.store.Get(persistCtx, identity.UID)
	if err != nil {
		return "", nil, err
	}
	if current == nil || current.SessionID != sessionID {
		s.logger.Info("表示名の更新結果を破棄しました",
			slog.String("user_id", identity.UID),
		)
		applied = true
		s.metrics.RecordNameUpdate(string(OutcomeDiscarded))
		return OutcomeDiscarded, nil, nil
	}

	current.SavingName = false
	outcome := OutcomeSaved
	if updateErr != nil {
		outcome = OutcomeFailed
		s.logger.Warn("表示名の更新に失敗しました",
			slog.String("user_id", identity.UID),
			slog.String("error", updateErr.Error()),
		)
		s.addNotification(current, model.NotificationError, failureMessage(updateErr))
	} else {
		committed := identity.Clone()
		committed.DisplayName = &name
		store.Publish(committed)

		current.EditingName = false
		current.DraftName = name
		s.addNotification(current, model.NotificationSuccess, toastNameSaved)
	}

	if err := s.store.Save(persistCtx, current); err != nil {
		return "", nil, err
	}
	applied = true
	s.metrics.RecordNameUpdate(string(outcome))
	return outcome, current, nil
}

// clearSavingLocked は結果を反映できなかった場合に保存中フラグだけを解除する。
// 失敗はログに記録するのみ。s.muを保持した状態で呼ぶこと。
func (s *Service) clearSavingLocked(ctx context.Context, uid, sessionID string) {
	st, err := s.store.Get(ctx, uid)
	if err == nil && (st == nil || st.SessionID != sessionID || !st.SavingName) {
		return
	}
	if err == nil {
		st.SavingName = false
		err = s.store.Save(ctx, st)
	}
	if err != nil {
		s.logger.Error("保存中フラグの解除に失敗しました",
			slog.String("user_id", uid),
			slog.String("error", err.Error()),
		)
	}
}

// Teardown はビュー状態を破棄する。ログアウト時に呼ばれる。
func (s *Service) Teardown(ctx context.Context, uid string) error {
	if uid == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Delete(ctx, uid)
}

// OnSignOut はauth.ServiceのSignOutListenerとして登録する関数。
func (s *Service) OnSignOut(ctx context.Context, uid string) {
	if err := s.Teardown(ctx, uid); err != nil {
		s.logger.Error("failed to tear down dashboard state",
			slog.String("user_id", uid),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Service) mutate(
	ctx context.Context,
	identity *model.Identity,
	fn func(st *model.DashboardState) error,
) (*model.DashboardState, error) {
	if identity == nil {
		return nil, model.NewUnauthorizedError()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.loadLocked(ctx, identity)
	if err != nil {
		return nil, err
	}
	if err := fn(st); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Service) loadLocked(ctx context.Context, identity *model.Identity) (*model.DashboardState, error) {
	st, err := s.store.Get(ctx, identity.UID)
	if err != nil {
		return nil, err
	}
	if st == nil {
		st = newState(identity, uuid.NewString(), s.now())
		if err := s.store.Save(ctx, st); err != nil {
			return nil, err
		}
		return st, nil
	}
	s.pruneNotifications(st)
	return st, nil
}

func (s *Service) addNotification(st *model.DashboardState, kind model.NotificationKind, message string) {
	s.pruneNotifications(st)
	st.Notifications = append(st.Notifications, model.Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		Message:   message,
		ExpiresAt: s.now().Add(s.toastTTL),
	})
}

func (s *Service) pruneNotifications(st *model.DashboardState) {
	now := s.now()
	st.Notifications = slices.DeleteFunc(st.Notifications, func(n model.Notification) bool {
		return !n.ExpiresAt.After(now)
	})
	if st.Notifications == nil {
		st.Notifications = []model.Notification{}
	}
}

func failureMessage(err error) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return toastNameFailed
}
