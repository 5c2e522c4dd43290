// Package session はアプリケーション起動1回分のセッション状態（Identity、初期化フラグ、読み込み中フラグ、エラー）を保持する。
// プロセス全体のシングルトンではなく、リクエストごとに生成してコンテキスト経由で受け渡す。
package session

import (
	"context"
	"slices"
	"sync"

	"github.com/hitoshi/learnhub/internal/model"
)

// ChangeKind はストアに対する状態変更の種類。
type ChangeKind string

const (
	ChangeIdentity    ChangeKind = "identity"
	ChangeLoading     ChangeKind = "loading"
	ChangeError       ChangeKind = "error"
	ChangeInitialized ChangeKind = "initialized"
)

// Change はSubscribeで通知される状態変更。
type Change struct {
	Kind  ChangeKind
	State State
}

// State はストアのスナップショット。
type State struct {
	Identity    *model.Identity `json:"identity"`
	Initialized bool            `json:"initialized"`
	Loading     bool            `json:"loading"`
	Error       *string         `json:"error"`
}

// Store はセッション状態のコンテナ。ロジックは持たない。
// Initializedは一度だけfalseからtrueへ遷移し、以降は変化しない。
type Store struct {
	mu          sync.Mutex
	identity    *model.Identity
	initialized bool
	loading     bool
	err         *string
	listeners   []func(Change)
}

// NewStore は未初期化のStoreを生成する。
func NewStore() *Store {
	return &Store{}
}

// Publish はIdentityを確定させる。nilを渡すとサインアウト状態になる。
func (s *Store) Publish(identity *model.Identity) {
	s.mu.Lock()
	s.identity = identity.Clone()
	s.mu.Unlock()
	s.notify(ChangeIdentity)
}

// Clear はIdentityを破棄する。
func (s *Store) Clear() {
	s.Publish(nil)
}

// SetLoading は読み込み中フラグを設定する。
func (s *Store) SetLoading(loading bool) {
	s.mu.Lock()
	s.loading = loading
	s.mu.Unlock()
	s.notify(ChangeLoading)
}

// SetError はエラーメッセージを設定する。nilでクリアする。
func (s *Store) SetError(err error) {
	s.mu.Lock()
	if err == nil {
		s.err = nil
	} else {
		msg := err.Error()
		s.err = &msg
	}
	s.mu.Unlock()
	s.notify(ChangeError)
}

// SetErrorMessage は表示用メッセージをそのままエラーとして設定する。
func (s *Store) SetErrorMessage(msg string) {
	s.mu.Lock()
	s.err = &msg
	s.mu.Unlock()
	s.notify(ChangeError)
}

// MarkInitialized は初期化済みフラグを立てる。
// 初回の呼び出しのみtrueを返し、2回目以降は何もしない。
func (s *Store) MarkInitialized() bool {
	s.mu.Lock()
	if s.initialized {
		s.mu.Unlock()
		return false
	}
	s.initialized = true
	s.mu.Unlock()
	s.notify(ChangeInitialized)
	return true
}

// Initialized は初期化済みかどうかを返す。
func (s *Store) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// Identity は現在のIdentityのコピーを返す。未認証の場合はnil。
func (s *Store) Identity() *model.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity.Clone()
}

// Snapshot は現在の状態のコピーを返す。
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe は状態変更のリスナーを登録する。
// リスナーは変更を行ったゴルーチン上で、ロックを保持しない状態で呼ばれる。
func (s *Store) Subscribe(fn func(Change)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Store) snapshotLocked() State {
	st := State{
		Identity:    s.identity.Clone(),
		Initialized: s.initialized,
		Loading:     s.loading,
	}
	if s.err != nil {
		msg := *s.err
		st.Error = &msg
	}
	return st
}

func (s *Store) notify(kind ChangeKind) {
	s.mu.Lock()
	if len(s.listeners) == 0 {
		s.mu.Unlock()
		return
	}
	listeners := slices.Clone(s.listeners)
	st := s.snapshotLocked()
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(Change{Kind: kind, State: st})
	}
}

type contextKey string

var storeContextKey = contextKey("session_store")

// WithStore はコンテキストにStoreを格納する。
func WithStore(ctx context.Context, s *Store) context.Context {
	return context.WithValue(ctx, storeContextKey, s)
}

// FromContext はコンテキストからStoreを取得する。
func FromContext(ctx context.Context) (*Store, bool) {
	s, ok := ctx.Value(storeContextKey).(*Store)
	return s, ok && s != nil
}
