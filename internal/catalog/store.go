// Package catalog はコースカタログの取得・キャッシュ・検索を提供する。
// カタログは初回アクセス時に1回だけ取得してキャッシュし、明示的なRefreshでのみ再取得する。
package catalog

import (
	"sync"
	"time"

	"github.com/hitoshi/learnhub/internal/model"
)

// State はカタログストアのスナップショット。
type State struct {
	Courses   []model.Course `json:"courses"`
	Loading   bool           `json:"loading"`
	Error     *string        `json:"error"`
	FetchedAt *time.Time     `json:"fetchedAt,omitempty"`
}

// Store は取得済みコース一覧と読み込み状態を保持するコンテナ。
type Store struct {
	mu        sync.RWMutex
	courses   []model.Course
	loaded    bool
	loading   bool
	err       *string
	fetchedAt time.Time
}

// NewStore は空のStoreを生成する。
func NewStore() *Store {
	return &Store{}
}

// Snapshot は現在の状態のコピーを返す。
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := State{
		Courses: copyCourses(s.courses),
		Loading: s.loading,
	}
	if s.err != nil {
		msg := *s.err
		st.Error = &msg
	}
	if s.loaded {
		t := s.fetchedAt
		st.FetchedAt = &t
	}
	return st
}

// Loaded は一度でも取得に成功したかどうかを返す。
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Courses はキャッシュ済みコース一覧のコピーを返す。
func (s *Store) Courses() []model.Course {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyCourses(s.courses)
}

func (s *Store) setLoading(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = loading
}

// setCourses は取得結果を反映し、エラーをクリアする。
func (s *Store) setCourses(courses []model.Course, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.courses = courses
	s.loaded = true
	s.loading = false
	s.err = nil
	s.fetchedAt = at
}

// setError は取得失敗を記録する。取得済みのコース一覧は保持する。
func (s *Store) setError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = &msg
	s.loading = false
}

func copyCourses(courses []model.Course) []model.Course {
	if courses == nil {
		return nil
	}
	return append([]model.Course(nil), courses...)
}
