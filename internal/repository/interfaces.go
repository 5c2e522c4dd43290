// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/learnhub/internal/model"
)

// CourseRepository はコースカタログの永続化インターフェース。
type CourseRepository interface {
	// FetchCourses は全コースを表示順に取得する。catalog.Sourceとして使用する。
	FetchCourses(ctx context.Context) ([]model.Course, error)

	// FindByIDOrSlug はIDまたはslugでコースを取得する。見つからない場合はnilを返す。
	FindByIDOrSlug(ctx context.Context, idOrSlug string) (*model.Course, error)

	// UpsertAll はコースを一括で登録・更新する。
	// 配列の順序を表示順として保存する。1件でも失敗した場合は全件ロールバックする。
	UpsertAll(ctx context.Context, courses []model.Course) (int, error)
}
