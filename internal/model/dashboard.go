package model

import "time"

// Payment は支払い履歴の1件を表す。課金は行わないためモックデータとして扱う。
type Payment struct {
	ID     string    `json:"id"`
	Date   time.Time `json:"date"`
	Amount float64   `json:"amount"`
	Status string    `json:"status"`
	Plan   string    `json:"plan"`
}

// Achievement は学習実績バッジを表す。
type Achievement struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Earned      bool   `json:"earned"`
}

// CourseProgress は受講中コースの進捗を表す。
type CourseProgress struct {
	CourseID string `json:"courseId"`
	Title    string `json:"title"`
	Percent  int    `json:"percent"`
}

// NotificationKind はトースト通知の種類。
type NotificationKind string

const (
	NotificationSuccess NotificationKind = "success"
	NotificationError   NotificationKind = "error"
)

// Notification は一定時間で自動的に消えるトースト通知を表す。
type Notification struct {
	ID        string           `json:"id"`
	Kind      NotificationKind `json:"kind"`
	Message   string           `json:"message"`
	ExpiresAt time.Time        `json:"expiresAt"`
}

// DashboardState はダッシュボードのビュー状態を表す。永続化対象ではなくセッション中のみ保持する。
type DashboardState struct {
	UID            string           `json:"uid"`
	SessionID      string           `json:"sessionId"` // ビュー状態の生成ごとに採番する
	DarkMode       bool             `json:"darkMode"`
	SidebarOpen    bool             `json:"sidebarOpen"`
	ActiveSection  string           `json:"activeSection"`
	EditingName    bool             `json:"editingName"`
	DraftName      string           `json:"draftName"`
	SavingName     bool             `json:"savingName"`
	MembershipType string           `json:"membershipType"`
	DaysRemaining  int              `json:"daysRemaining"`
	PaymentHistory []Payment        `json:"paymentHistory"`
	Achievements   []Achievement    `json:"achievements"`
	CourseProgress []CourseProgress `json:"courseProgress"`
	Notifications  []Notification   `json:"notifications"`
}
