// Package directory はAIツールと投資家の静的ディレクトリを提供する。
// データはバイナリに埋め込んだYAMLから起動時に1回だけ読み込む。
package directory

import (
	"embed"
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hitoshi/learnhub/internal/model"
)

//go:embed data/*.yaml
var dataFS embed.FS

// Filter は一覧の絞り込み条件。空のフィールドは条件に含めない。
type Filter struct {
	Category string
	Text     string
}

// Directory は読み込み済みのディレクトリデータを保持する。読み取り専用のため並行アクセスに安全。
type Directory struct {
	tools     []model.AITool
	investors []model.Investor
}

type toolsDocument struct {
	Tools []model.AITool `yaml:"tools"`
}

type investorsDocument struct {
	Investors []model.Investor `yaml:"investors"`
}

// Load は埋め込みデータからDirectoryを生成する。
func Load() (*Directory, error) {
	toolsData, err := dataFS.ReadFile("data/ai_tools.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read ai tools data: %w", err)
	}
	investorsData, err := dataFS.ReadFile("data/investors.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read investors data: %w", err)
	}
	return Parse(toolsData, investorsData)
}

// Parse はYAMLバイト列からDirectoryを生成する。
func Parse(toolsData, investorsData []byte) (*Directory, error) {
	var tools toolsDocument
	if err := yaml.Unmarshal(toolsData, &tools); err != nil {
		return nil, fmt.Errorf("failed to parse ai tools: %w", err)
	}
	var investors investorsDocument
	if err := yaml.Unmarshal(investorsData, &investors); err != nil {
		return nil, fmt.Errorf("failed to parse investors: %w", err)
	}

	for i, t := range tools.Tools {
		if t.ID == "" || t.Name == "" {
			return nil, fmt.Errorf("ai tool at index %d is missing id or name", i)
		}
	}
	for i, inv := range investors.Investors {
		if inv.ID == "" || inv.Name == "" {
			return nil, fmt.Errorf("investor at index %d is missing id or name", i)
		}
	}

	return &Directory{tools: tools.Tools, investors: investors.Investors}, nil
}

// ListTools は条件に一致するAIツールを定義順に返す。
// Categoryは完全一致（大文字小文字を区別しない）、Textは名前・説明・タグの部分一致で判定する。
func (d *Directory) ListTools(f Filter) []model.AITool {
	result := make([]model.AITool, 0, len(d.tools))
	for _, t := range d.tools {
		if f.Category != "" && !strings.EqualFold(t.Category, f.Category) {
			continue
		}
		if !matchesText(f.Text, append([]string{t.Name, t.Description}, t.Tags...)...) {
			continue
		}
		result = append(result, cloneTool(t))
	}
	return result
}

// ListInvestors は条件に一致する投資家を定義順に返す。
// Categoryは投資領域（focus）のいずれかとの一致で判定する。
func (d *Directory) ListInvestors(f Filter) []model.Investor {
	result := make([]model.Investor, 0, len(d.investors))
	for _, inv := range d.investors {
		if f.Category != "" && !slices.ContainsFunc(inv.Focus, func(s string) bool {
			return strings.EqualFold(s, f.Category)
		}) {
			continue
		}
		if !matchesText(f.Text, inv.Name, inv.Firm, inv.Location) {
			continue
		}
		result = append(result, cloneInvestor(inv))
	}
	return result
}

// Categories はAIツールのカテゴリ一覧を出現順に重複なく返す。
func (d *Directory) Categories() []string {
	var cats []string
	for _, t := range d.tools {
		if !slices.Contains(cats, t.Category) {
			cats = append(cats, t.Category)
		}
	}
	return cats
}

func matchesText(text string, fields ...string) bool {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), text) {
			return true
		}
	}
	return false
}

func cloneTool(t model.AITool) model.AITool {
	t.Tags = slices.Clone(t.Tags)
	return t
}

func cloneInvestor(inv model.Investor) model.Investor {
	inv.Focus = slices.Clone(inv.Focus)
	return inv
}
