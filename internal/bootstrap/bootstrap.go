// Package bootstrap はアプリケーション起動時のセッション確立処理を提供する。
//
// 状態遷移: NotStarted -> Verifying -> {Authenticated, Unauthenticated} -> Initialized
// どの分岐を通ってもInitializedへの遷移は1回だけ、最後の状態変更として行う。
package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/hitoshi/learnhub/internal/metrics"
	"github.com/hitoshi/learnhub/internal/model"
	"github.com/hitoshi/learnhub/internal/routeguard"
	"github.com/hitoshi/learnhub/internal/session"
	"github.com/hitoshi/learnhub/internal/storage"
)

// Phase はブートストラップの状態。
type Phase string

const (
	PhaseNotStarted      Phase = "not_started"
	PhaseVerifying       Phase = "verifying"
	PhaseAuthenticated   Phase = "authenticated"
	PhaseUnauthenticated Phase = "unauthenticated"
	PhaseInitialized     Phase = "initialized"
)

// Outcome はメトリクスとログに記録する結果の分類。
const (
	OutcomeNoToken       = "no_token"
	OutcomeInvalidToken  = "invalid_token"
	OutcomeVerifyFailed  = "verify_failed"
	OutcomeProfileFailed = "profile_failed"
	OutcomeAuthenticated = "authenticated"
)

// Verifier はトークン検証とプロフィール取得を行う。auth.Serviceが実装する。
type Verifier interface {
	VerifyToken(ctx context.Context, token string) (string, error)
	GetProfile(ctx context.Context, token, uid string) (*model.Identity, error)
}

// Result はブートストラップの結果。
type Result struct {
	Decision routeguard.Decision
	Phases   []Phase
	Outcome  string
}

// Authenticated は認証済みで終了したかどうかを返す。
func (r Result) Authenticated() bool {
	return r.Outcome == OutcomeAuthenticated
}

// Bootstrapper はセッションのブートストラップを実行する。
type Bootstrapper struct {
	verifier Verifier
	logger   *slog.Logger
	metrics  metrics.MetricsCollector
}

// New はBootstrapperを生成する。
func New(verifier Verifier, logger *slog.Logger, m metrics.MetricsCollector) *Bootstrapper {
	if m == nil {
		m = metrics.NopCollector{}
	}
	return &Bootstrapper{verifier: verifier, logger: logger, metrics: m}
}

// Run はページ遷移時のブートストラップを実行し、遷移先を決定する。
// currentPathにはクエリ文字列を含むリクエストURIを渡せる。判定はパス部分のみで行う。
// 未認証で保護パスにアクセスした場合は、ログイン後に戻れるよう要求URIを保存する。
func (b *Bootstrapper) Run(ctx context.Context, st storage.ClientStorage, store *session.Store, currentPath string) Result {
	return b.run(ctx, st, store, currentPath, true)
}

// Restore はAPIリクエスト用にセッションのみを復元する。
// 遷移先の判定は行わず、保存済みのリダイレクト先も消費しない。
func (b *Bootstrapper) Restore(ctx context.Context, st storage.ClientStorage, store *session.Store) Result {
	return b.run(ctx, st, store, "", false)
}

func (b *Bootstrapper) run(
	ctx context.Context,
	st storage.ClientStorage,
	store *session.Store,
	currentPath string,
	guard bool,
) (result Result) {
	result.Phases = []Phase{PhaseNotStarted}
	store.SetLoading(true)

	requestURI := currentPath
	currentPath, _, _ = strings.Cut(currentPath, "?")

	// 終了処理は全ての分岐で必ず実行する。Initializedへの遷移が最後の状態変更になる。
	defer func() {
		b.metrics.RecordBootstrap(result.Outcome)
		store.SetLoading(false)
		if store.MarkInitialized() {
			result.Phases = append(result.Phases, PhaseInitialized)
		}
	}()

	token := st.Token()
	if token == "" {
		result.Phases = append(result.Phases, PhaseUnauthenticated)
		result.Outcome = OutcomeNoToken
		clearIdentity(store)
		result.Decision = b.unauthenticatedDecision(st, currentPath, requestURI, guard)
		return result
	}

	result.Phases = append(result.Phases, PhaseVerifying)
	uid, err := b.verifier.VerifyToken(ctx, token)
	if err != nil {
		result.Phases = append(result.Phases, PhaseUnauthenticated)
		if isCode(err, model.ErrCodeNetworkError) {
			// バックエンドに到達できない場合はトークンを保持し、次回の起動で再検証する
			result.Outcome = OutcomeVerifyFailed
			store.SetError(err)
		} else {
			result.Outcome = OutcomeInvalidToken
			st.ClearToken()
		}
		clearIdentity(store)
		b.logger.Info("session verification failed",
			slog.String("outcome", result.Outcome),
			slog.String("error", err.Error()),
		)
		result.Decision = b.unauthenticatedDecision(st, currentPath, requestURI, guard)
		return result
	}

	profile, err := b.verifier.GetProfile(ctx, token, uid)
	if err != nil {
		result.Phases = append(result.Phases, PhaseUnauthenticated)
		result.Outcome = OutcomeProfileFailed
		store.SetError(err)
		clearIdentity(store)
		b.logger.Warn("profile fetch failed during bootstrap",
			slog.String("user_id", uid),
			slog.String("error", err.Error()),
		)
		result.Decision = b.unauthenticatedDecision(st, currentPath, requestURI, guard)
		return result
	}

	result.Phases = append(result.Phases, PhaseAuthenticated)
	result.Outcome = OutcomeAuthenticated
	store.Publish(profile)
	store.SetError(nil)

	if guard {
		result.Decision = routeguard.Decide(routeguard.Facts{
			PendingRedirect:  st.PendingRedirect(),
			MembershipStatus: profile.MembershipStatus,
			CurrentPath:      currentPath,
		})
		if result.Decision.ConsumesPending {
			st.ClearPendingRedirect()
		}
	}
	return result
}

// unauthenticatedDecision は未認証時の遷移先を返す。
// 保護パスの場合はログインページへ誘導し、要求パスをリダイレクト先として保存する。
func (b *Bootstrapper) unauthenticatedDecision(st storage.ClientStorage, currentPath, requestURI string, guard bool) routeguard.Decision {
	if !guard || !routeguard.IsProtected(currentPath) {
		return routeguard.NoRedirect()
	}
	st.SetPendingRedirect(requestURI)
	return routeguard.GoTo(routeguard.LoginPath)
}

func clearIdentity(store *session.Store) {
	if store.Identity() != nil {
		store.Clear()
	}
}

func isCode(err error, code string) bool {
	var apiErr *model.APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}
