package catalog

import (
	"strings"

	"github.com/hitoshi/learnhub/internal/model"
)

// Query はコース一覧の絞り込み条件。ゼロ値は全件。
type Query struct {
	Text         string
	OnlyNew      bool
	OnlyTrending bool
}

// Filter は条件に一致するコースを元の順序のまま返す。
// Textはタイトル・説明・講師名に対する大文字小文字を区別しない部分一致。
func Filter(courses []model.Course, q Query) []model.Course {
	text := strings.ToLower(strings.TrimSpace(q.Text))

	out := make([]model.Course, 0, len(courses))
	for _, c := range courses {
		if q.OnlyNew && !c.IsNew {
			continue
		}
		if q.OnlyTrending && !c.IsTrending {
			continue
		}
		if text != "" && !matchesText(c, text) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func matchesText(c model.Course, text string) bool {
	for _, field := range []string{c.Title, c.Description, c.Instructor.Name} {
		if strings.Contains(strings.ToLower(field), text) {
			return true
		}
	}
	return false
}
