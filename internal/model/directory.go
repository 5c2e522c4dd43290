package model

// AITool はAIツールディレクトリの1件を表す。静的データのみで永続化しない。
type AITool struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Category    string   `json:"category" yaml:"category"`
	Description string   `json:"description" yaml:"description"`
	URL         string   `json:"url" yaml:"url"`
	Pricing     string   `json:"pricing" yaml:"pricing"`
	Tags        []string `json:"tags" yaml:"tags"`
}

// Investor は投資家ディレクトリの1件を表す。静的データのみで永続化しない。
type Investor struct {
	ID       string   `json:"id" yaml:"id"`
	Name     string   `json:"name" yaml:"name"`
	Firm     string   `json:"firm" yaml:"firm"`
	Focus    []string `json:"focus" yaml:"focus"`
	Stage    string   `json:"stage" yaml:"stage"`
	Location string   `json:"location" yaml:"location"`
	Website  string   `json:"website" yaml:"website"`
}
