package model

// Instructor はコースの講師を表す。
type Instructor struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	Image string `json:"image"`
}

// CourseSection はコース内のセクションを表す。Lessonsは表示順。
type CourseSection struct {
	Title    string   `json:"title"`
	Duration string   `json:"duration"`
	Lessons  []string `json:"lessons"`
}

// FAQ はコースのよくある質問を表す。
type FAQ struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Course はコースカタログの1レコードを表す。
// 起動時にカタログサービスから一括取得され、クライアント側では再取得以外で変更されない。
type Course struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Duration       string          `json:"duration"`
	Lessons        int             `json:"lessons"`
	Students       int             `json:"students"`
	Rating         float64         `json:"rating"`
	Instructor     Instructor      `json:"instructor"`
	Sections       []CourseSection `json:"sections"`
	TargetAudience []string        `json:"targetAudience"`
	FAQs           []FAQ           `json:"faqs"`
	Slug           string          `json:"slug,omitempty"`
	IsNew          bool            `json:"isNew,omitempty"`
	IsTrending     bool            `json:"isTrending,omitempty"`
}
