package dashboard

import (
	"time"

	"github.com/hitoshi/learnhub/internal/model"
)

// 課金・実績・進捗はバックエンドが提供するまでモック値を使う。
const (
	defaultMembershipType = "Premium"
	defaultDaysRemaining  = 245
	defaultSection        = "overview"
)

// Sections はダッシュボードで選択可能なセクション。
var Sections = []string{"overview", "courses", "achievements", "billing", "profile", "settings"}

func mockPaymentHistory(now time.Time) []model.Payment {
	return []model.Payment{
		{ID: "pay_003", Date: now.AddDate(0, -1, 0), Amount: 199, Status: "paid", Plan: "annual"},
		{ID: "pay_002", Date: now.AddDate(-1, -1, 0), Amount: 199, Status: "paid", Plan: "annual"},
		{ID: "pay_001", Date: now.AddDate(-2, -1, 0), Amount: 149, Status: "paid", Plan: "annual"},
	}
}

func mockAchievements() []model.Achievement {
	return []model.Achievement{
		{ID: "first-course", Title: "はじめの一歩", Description: "最初のコースを開始した", Earned: true},
		{ID: "streak-7", Title: "7日連続学習", Description: "7日間連続で学習した", Earned: true},
		{ID: "course-complete", Title: "修了", Description: "コースを1つ修了した", Earned: false},
	}
}

func mockCourseProgress() []model.CourseProgress {
	return []model.CourseProgress{
		{CourseID: "ai-fundamentals", Title: "AI Fundamentals", Percent: 65},
		{CourseID: "prompt-engineering", Title: "Prompt Engineering", Percent: 30},
	}
}

// newState はIdentityからビュー状態の初期値を生成する。
// バックエンドが会員情報を返した場合はそちらを優先する。
func newState(identity *model.Identity, sessionID string, now time.Time) *model.DashboardState {
	s := &model.DashboardState{
		UID:            identity.UID,
		SessionID:      sessionID,
		SidebarOpen:    true,
		ActiveSection:  defaultSection,
		DraftName:      identity.Name(),
		MembershipType: defaultMembershipType,
		DaysRemaining:  defaultDaysRemaining,
		PaymentHistory: mockPaymentHistory(now),
		Achievements:   mockAchievements(),
		CourseProgress: mockCourseProgress(),
		Notifications:  []model.Notification{},
	}

	switch {
	case identity.MembershipType != "":
		s.MembershipType = identity.MembershipType
	case identity.PlanType == model.PlanLifetime:
		s.MembershipType = "Lifetime"
	}
	if identity.DaysRemaining != nil {
		s.DaysRemaining = *identity.DaysRemaining
	}
	if identity.PaymentHistory != nil {
		s.PaymentHistory = append([]model.Payment(nil), identity.PaymentHistory...)
	}
	return s
}
