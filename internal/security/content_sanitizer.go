// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService はコースカタログのHTMLとユーザー入力のテキストをサニタイズし、
// XSS攻撃などのセキュリティリスクからユーザーを保護する。
// bluemondayライブラリを使用した許可リストベースのポリシーで、
// 安全なタグと属性のみを通過させる。
package security

import (
	"html"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hitoshi/learnhub/internal/model"
)

// ContentSanitizerService はサニタイズ機能のインターフェースを定義する。
type ContentSanitizerService interface {
	// Sanitize はHTMLコンテンツをサニタイズして安全なHTMLを返す。
	// 許可タグ（p, br, a, ul, ol, li, strong, em, code）のみを通過させ、
	// script, iframe, styleタグおよびon*イベント属性を除去する。
	// aタグにはtarget="_blank"とrel="noopener noreferrer"が自動付与される。
	Sanitize(rawHTML string) string

	// StripTags は全てのタグを除去したプレーンテキストを返す。
	// 表示名などタグを一切含むべきでない入力に使用する。
	StripTags(input string) string

	// SanitizeCourse はコースの表示用テキストをサニタイズしたコピーを返す。
	SanitizeCourse(c model.Course) model.Course
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type contentSanitizer struct {
	policy *bluemonday.Policy
	strict *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// ポリシーの内容:
//   - 許可タグ: p, br, a, ul, ol, li, strong, em, code
//   - 禁止タグ: script, iframe, style および全てのon*イベント属性
//   - aタグ: httpsのみ、target="_blank" と rel="noopener noreferrer" を自動付与
func NewContentSanitizer() *contentSanitizer {
	p := bluemonday.NewPolicy()

	// script, iframe, style等は許可リストに含めないことで自動的に除去される
	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"strong", "em", "code",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AllowURLSchemeWithCustomPolicy("https", func(u *url.URL) bool {
		return true
	})
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	return &contentSanitizer{
		policy: p,
		strict: bluemonday.StrictPolicy(),
	}
}

// Sanitize はHTMLコンテンツをサニタイズして安全なHTMLを返す。
func (s *contentSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}

// StripTags は全てのタグを除去する。
// StrictPolicyはエスケープ済みの文字列を返すため、プレーンテキストに戻す。
func (s *contentSanitizer) StripTags(input string) string {
	return strings.TrimSpace(html.UnescapeString(s.strict.Sanitize(input)))
}

// SanitizeCourse は説明文とFAQ回答をサニタイズし、それ以外のテキストからタグを除去する。
func (s *contentSanitizer) SanitizeCourse(c model.Course) model.Course {
	c.Title = s.StripTags(c.Title)
	c.Description = s.Sanitize(c.Description)
	c.Instructor.Name = s.StripTags(c.Instructor.Name)
	c.Instructor.Title = s.StripTags(c.Instructor.Title)

	if c.FAQs != nil {
		faqs := make([]model.FAQ, len(c.FAQs))
		for i, f := range c.FAQs {
			faqs[i] = model.FAQ{
				Question: s.StripTags(f.Question),
				Answer:   s.Sanitize(f.Answer),
			}
		}
		c.FAQs = faqs
	}
	return c
}

var _ ContentSanitizerService = (*contentSanitizer)(nil)
