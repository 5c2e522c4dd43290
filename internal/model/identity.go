// Package model はドメインモデルを定義する。
package model

import "time"

// MembershipStatus は会員ステータスを表す。
// ダッシュボードへのアクセス可否を判定する3値のフラグ。
type MembershipStatus string

const (
	MembershipActive   MembershipStatus = "active"
	MembershipInactive MembershipStatus = "inactive"
	MembershipExpired  MembershipStatus = "expired"
)

// IsActive は有効な会員かどうかを返す。未設定は有効とみなさない。
func (s MembershipStatus) IsActive() bool {
	return s == MembershipActive
}

// PlanType は契約プランの種類を表す。
type PlanType string

const (
	PlanAnnual   PlanType = "annual"
	PlanLifetime PlanType = "lifetime"
)

// Identity は認証済みユーザー（プリンシパル）を表す。
// ログイン・サインアップ・プロフィール取得時にAuth Gatewayが生成し、
// ログアウトまたはトークン検証失敗時に破棄される。
type Identity struct {
	UID                   string           `json:"uid"`
	Email                 *string          `json:"email"`
	DisplayName           *string          `json:"displayName"`
	PhotoURL              *string          `json:"photoURL"`
	EmailVerified         bool             `json:"emailVerified"`
	MembershipStatus      MembershipStatus `json:"membershipStatus,omitempty"`
	SubscriptionStartDate *time.Time       `json:"subscriptionStartDate,omitempty"`
	PlanType              PlanType         `json:"planType,omitempty"`

	// Roles は認可判定に使用するロール。管理者判定もここから行う。
	Roles []string `json:"roles,omitempty"`

	// 以下はバックエンドが将来返す想定の会員情報。未設定の場合はダッシュボード側でモック値を使う。
	MembershipType string    `json:"membershipType,omitempty"`
	DaysRemaining  *int      `json:"daysRemaining,omitempty"`
	PaymentHistory []Payment `json:"paymentHistory,omitempty"`
}

// Name は表示名を返す。未設定の場合は空文字列。
func (i *Identity) Name() string {
	if i == nil || i.DisplayName == nil {
		return ""
	}
	return *i.DisplayName
}

// EmailAddress はメールアドレスを返す。未設定の場合は空文字列。
func (i *Identity) EmailAddress() string {
	if i == nil || i.Email == nil {
		return ""
	}
	return *i.Email
}

// HasRole は指定ロールを持つかどうかを返す。
func (i *Identity) HasRole(role string) bool {
	if i == nil {
		return false
	}
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Clone はディープコピーを返す。
// 確定済みIdentityを直接書き換えないために使用する。
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	c := *i
	c.Email = cloneString(i.Email)
	c.DisplayName = cloneString(i.DisplayName)
	c.PhotoURL = cloneString(i.PhotoURL)
	if i.SubscriptionStartDate != nil {
		t := *i.SubscriptionStartDate
		c.SubscriptionStartDate = &t
	}
	if i.DaysRemaining != nil {
		d := *i.DaysRemaining
		c.DaysRemaining = &d
	}
	if i.Roles != nil {
		c.Roles = append([]string(nil), i.Roles...)
	}
	if i.PaymentHistory != nil {
		c.PaymentHistory = append([]Payment(nil), i.PaymentHistory...)
	}
	return &c
}

// StringPtr は文字列のポインタを返す。
func StringPtr(s string) *string {
	return &s
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
