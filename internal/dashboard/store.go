package dashboard

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/hitoshi/learnhub/internal/model"
)

// StateStore はダッシュボードのビュー状態をuid単位で保持する。
// Getは未作成の場合 (nil, nil) を返す。実装は並行アクセスに安全であること。
type StateStore interface {
	Get(ctx context.Context, uid string) (*model.DashboardState, error)
	Save(ctx context.Context, state *model.DashboardState) error
	Delete(ctx context.Context, uid string) error
}

// MemoryStateStore はプロセス内メモリにビュー状態を保持するStateStore。
// REDIS_URL未設定時と単体テストで使用する。
// Redisと異なりTTLを持たないため、期限切れの削除はCleanupJobが行う。
type MemoryStateStore struct {
	mu     sync.RWMutex
	states map[string]memoryEntry
	now    func() time.Time
}

type memoryEntry struct {
	state   *model.DashboardState
	savedAt time.Time
}

// NewMemoryStateStore はMemoryStateStoreを生成する。
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{
		states: make(map[string]memoryEntry),
		now:    time.Now,
	}
}

// Get はビュー状態のコピーを返す。
func (m *MemoryStateStore) Get(_ context.Context, uid string) (*model.DashboardState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.states[uid]
	if !ok {
		return nil, nil
	}
	return cloneState(e.state), nil
}

// Save はビュー状態のコピーを保存する。
func (m *MemoryStateStore) Save(_ context.Context, state *model.DashboardState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[state.UID] = memoryEntry{state: cloneState(state), savedAt: m.now()}
	return nil
}

// Delete はビュー状態を削除する。存在しない場合も成功とする。
func (m *MemoryStateStore) Delete(_ context.Context, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, uid)
	return nil
}

// DeleteExpired は最終保存からttl以上経過したビュー状態を削除し、削除件数を返す。
func (m *MemoryStateStore) DeleteExpired(_ context.Context, ttl time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-ttl)
	deleted := 0
	for uid, e := range m.states {
		if !e.savedAt.After(cutoff) {
			delete(m.states, uid)
			deleted++
		}
	}
	return deleted, nil
}

func cloneState(s *model.DashboardState) *model.DashboardState {
	if s == nil {
		return nil
	}
	c := *s
	c.PaymentHistory = slices.Clone(s.PaymentHistory)
	c.Achievements = slices.Clone(s.Achievements)
	c.CourseProgress = slices.Clone(s.CourseProgress)
	c.Notifications = slices.Clone(s.Notifications)
	return &c
}
