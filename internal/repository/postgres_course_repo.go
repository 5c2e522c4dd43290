package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/learnhub/internal/model"
)

// courseColumns はSELECT対象のカラム。scanCourseの引数順と一致させる。
const courseColumns = `id, slug, title, description, duration, lessons, students, rating,
	instructor, sections, target_audience, faqs, is_new, is_trending`

// PostgresCourseRepo はPostgreSQLを使用したコースリポジトリ。
// 講師・セクション・FAQなどの入れ子の値はjsonbカラムに保存する。
type PostgresCourseRepo struct {
	db *sql.DB
}

// NewPostgresCourseRepo はPostgresCourseRepoを生成する。
func NewPostgresCourseRepo(db *sql.DB) *PostgresCourseRepo {
	return &PostgresCourseRepo{db: db}
}

// FetchCourses は全コースを表示順に取得する。
func (r *PostgresCourseRepo) FetchCourses(ctx context.Context) ([]model.Course, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+courseColumns+` FROM courses ORDER BY position ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("コース一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	courses := []model.Course{}
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		courses = append(courses, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("コース一覧の読み取りに失敗しました: %w", err)
	}
	return courses, nil
}

// FindByIDOrSlug はIDまたはslugでコースを取得する。見つからない場合はnilを返す。
func (r *PostgresCourseRepo) FindByIDOrSlug(ctx context.Context, idOrSlug string) (*model.Course, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE id = $1 OR slug = $1 LIMIT 1`,
		idOrSlug,
	)
	c, err := scanCourse(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// UpsertAll はコースを一括で登録・更新する。配列の順序をpositionとして保存する。
func (r *PostgresCourseRepo) UpsertAll(ctx context.Context, courses []model.Course) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO courses (
			id, slug, title, description, duration, lessons, students, rating,
			instructor, sections, target_audience, faqs, is_new, is_trending, position
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 ON CONFLICT (id) DO UPDATE SET
			slug = EXCLUDED.slug,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			duration = EXCLUDED.duration,
			lessons = EXCLUDED.lessons,
			students = EXCLUDED.students,
			rating = EXCLUDED.rating,
			instructor = EXCLUDED.instructor,
			sections = EXCLUDED.sections,
			target_audience = EXCLUDED.target_audience,
			faqs = EXCLUDED.faqs,
			is_new = EXCLUDED.is_new,
			is_trending = EXCLUDED.is_trending,
			position = EXCLUDED.position,
			updated_at = now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("UPSERT文の準備に失敗しました: %w", err)
	}
	defer stmt.Close()

	for i, c := range courses {
		docs, err := marshalCourseDocuments(c)
		if err != nil {
			return 0, fmt.Errorf("コース %s のエンコードに失敗しました: %w", c.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			c.ID, nullString(c.Slug), c.Title, c.Description, c.Duration,
			c.Lessons, c.Students, c.Rating,
			docs.instructor, docs.sections, docs.targetAudience, docs.faqs,
			c.IsNew, c.IsTrending, i,
		); err != nil {
			return 0, fmt.Errorf("コース %s のUPSERTに失敗しました: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return len(courses), nil
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCourse(s rowScanner) (*model.Course, error) {
	c := &model.Course{}
	var slug sql.NullString
	var instructor, sections, targetAudience, faqs []byte

	err := s.Scan(
		&c.ID, &slug, &c.Title, &c.Description, &c.Duration,
		&c.Lessons, &c.Students, &c.Rating,
		&instructor, &sections, &targetAudience, &faqs,
		&c.IsNew, &c.IsTrending,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("コースの読み取りに失敗しました: %w", err)
	}

	c.Slug = nullStringValue(slug)
	if err := unmarshalCourseDocuments(c, courseDocuments{
		instructor:     instructor,
		sections:       sections,
		targetAudience: targetAudience,
		faqs:           faqs,
	}); err != nil {
		return nil, fmt.Errorf("コース %s のデコードに失敗しました: %w", c.ID, err)
	}
	return c, nil
}

// courseDocuments はjsonbカラムに保存するエンコード済みの値。
type courseDocuments struct {
	instructor     []byte
	sections       []byte
	targetAudience []byte
	faqs           []byte
}

func marshalCourseDocuments(c model.Course) (courseDocuments, error) {
	var docs courseDocuments
	var err error

	if docs.instructor, err = json.Marshal(c.Instructor); err != nil {
		return docs, err
	}
	if docs.sections, err = json.Marshal(nonNil(c.Sections)); err != nil {
		return docs, err
	}
	if docs.targetAudience, err = json.Marshal(nonNil(c.TargetAudience)); err != nil {
		return docs, err
	}
	if docs.faqs, err = json.Marshal(nonNil(c.FAQs)); err != nil {
		return docs, err
	}
	return docs, nil
}

func unmarshalCourseDocuments(c *model.Course, docs courseDocuments) error {
	if len(docs.instructor) > 0 {
		if err := json.Unmarshal(docs.instructor, &c.Instructor); err != nil {
			return err
		}
	}
	if len(docs.sections) > 0 {
		if err := json.Unmarshal(docs.sections, &c.Sections); err != nil {
			return err
		}
	}
	if len(docs.targetAudience) > 0 {
		if err := json.Unmarshal(docs.targetAudience, &c.TargetAudience); err != nil {
			return err
		}
	}
	if len(docs.faqs) > 0 {
		if err := json.Unmarshal(docs.faqs, &c.FAQs); err != nil {
			return err
		}
	}
	return nil
}

// nonNil はnilスライスを空スライスに変換する。jsonbにnullを保存しないために使う。
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// nullString は空文字列をNULLとして扱う。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}
