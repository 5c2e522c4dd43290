package catalog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/learnhub/internal/metrics"
	"github.com/hitoshi/learnhub/internal/model"
	"github.com/hitoshi/learnhub/internal/security"
)

// Source はコースカタログの取得元。
type Source interface {
	FetchCourses(ctx context.Context) ([]model.Course, error)
}

// call は実行中の取得処理。完了するとdoneがcloseされる。
type call struct {
	done chan struct{}
	err  error
}

// Loader はカタログの取得を一元化する。
// 同時に複数の呼び出しがあっても取得は1回だけ行い、結果を共有する。
type Loader struct {
	source    Source
	store     *Store
	sanitizer security.ContentSanitizerService
	logger    *slog.Logger
	metrics   metrics.MetricsCollector
	now       func() time.Time

	mu       sync.Mutex
	inflight *call
}

// NewLoader はLoaderを生成する。
func NewLoader(
	source Source,
	store *Store,
	sanitizer security.ContentSanitizerService,
	logger *slog.Logger,
	m metrics.MetricsCollector,
) *Loader {
	if m == nil {
		m = metrics.NopCollector{}
	}
	return &Loader{
		source:    source,
		store:     store,
		sanitizer: sanitizer,
		logger:    logger,
		metrics:   m,
		now:       time.Now,
	}
}

// Store はLoaderが更新するStoreを返す。
func (l *Loader) Store() *Store {
	return l.store
}

// Courses はキャッシュ済みのコース一覧を返す。未取得の場合は取得する。
// 取得に失敗した場合はキャッシュせず、次回の呼び出しで再試行する。
func (l *Loader) Courses(ctx context.Context) ([]model.Course, error) {
	if l.store.Loaded() {
		return l.store.Courses(), nil
	}
	return l.load(ctx, false)
}

// Refresh はキャッシュの有無に関わらず再取得する。
// 失敗した場合は直前のコース一覧を保持したままエラーを返す。
func (l *Loader) Refresh(ctx context.Context) ([]model.Course, error) {
	return l.load(ctx, true)
}

// Find はIDまたはslugでコースを検索する。
func (l *Loader) Find(ctx context.Context, idOrSlug string) (*model.Course, error) {
	courses, err := l.Courses(ctx)
	if err != nil {
		return nil, err
	}
	for i := range courses {
		if courses[i].ID == idOrSlug || (courses[i].Slug != "" && courses[i].Slug == idOrSlug) {
			c := courses[i]
			return &c, nil
		}
	}
	return nil, model.NewCourseNotFoundError(idOrSlug)
}

func (l *Loader) load(ctx context.Context, force bool) ([]model.Course, error) {
	l.mu.Lock()
	if !force && l.store.Loaded() {
		l.mu.Unlock()
		return l.store.Courses(), nil
	}
	if c := l.inflight; c != nil {
		l.mu.Unlock()
		return l.wait(ctx, c)
	}
	c := &call{done: make(chan struct{})}
	l.inflight = c
	l.mu.Unlock()

	// 呼び出し元のキャンセルで他の待機者の取得まで失敗させない
	go l.fetch(context.WithoutCancel(ctx), c)
	return l.wait(ctx, c)
}

func (l *Loader) wait(ctx context.Context, c *call) ([]model.Course, error) {
	select {
	case <-c.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if c.err != nil {
		return nil, c.err
	}
	return l.store.Courses(), nil
}

func (l *Loader) fetch(ctx context.Context, c *call) {
	defer func() {
		l.mu.Lock()
		l.inflight = nil
		l.mu.Unlock()
		close(c.done)
	}()

	start := l.now()
	l.store.setLoading(true)

	courses, err := l.source.FetchCourses(ctx)
	elapsed := l.now().Sub(start)
	if err != nil {
		apiErr := model.NewCatalogFetchFailedError()
		l.store.setError(apiErr.Message)
		l.metrics.RecordCatalogFetch(false, 0, elapsed)
		l.logger.Error("course catalog fetch failed",
			slog.String("error", err.Error()),
			slog.Duration("elapsed", elapsed),
		)
		c.err = apiErr
		return
	}

	sanitized := make([]model.Course, len(courses))
	for i, course := range courses {
		sanitized[i] = l.sanitizer.SanitizeCourse(course)
	}
	l.store.setCourses(sanitized, l.now())
	l.metrics.RecordCatalogFetch(true, len(sanitized), elapsed)
	l.logger.Info("course catalog loaded",
		slog.Int("courses", len(sanitized)),
		slog.Duration("elapsed", elapsed),
	)
}
