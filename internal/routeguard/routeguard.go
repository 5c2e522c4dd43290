// Package routeguard はセッション情報から遷移先を決める純粋関数を提供する。
// 起動時のブートストラップとログイン成功時の両方で同じ判定表を使う。
package routeguard

import (
	"strings"

	"github.com/hitoshi/learnhub/internal/model"
)

const (
	LoginPath     = "/login"
	RegisterPath  = "/register"
	DashboardPath = "/dashboard"
)

// Facts は判定に使うセッション情報。
type Facts struct {
	PendingRedirect  string // 空文字列は未保存
	MembershipStatus model.MembershipStatus
	CurrentPath      string
}

// Decision は判定結果。Targetが空の場合はリダイレクトしない。
type Decision struct {
	Target string `json:"target,omitempty"`

	// ConsumesPending が true の場合、呼び出し元は保存済みのリダイレクト先を削除しなければならない。
	ConsumesPending bool `json:"-"`
}

// Redirect はリダイレクトが必要かどうかを返す。
func (d Decision) Redirect() bool {
	return d.Target != ""
}

// NoRedirect は現在のパスに留まる判定を返す。
func NoRedirect() Decision {
	return Decision{}
}

// GoTo は指定パスへ遷移する判定を返す。
func GoTo(path string) Decision {
	return Decision{Target: path}
}

// Decide は上から順に評価し、最初に一致したルールの判定を返す。
func Decide(f Facts) Decision {
	switch {
	case f.PendingRedirect != "":
		return Decision{Target: f.PendingRedirect, ConsumesPending: true}
	case f.MembershipStatus.IsActive() && f.CurrentPath == LoginPath:
		return GoTo(DashboardPath)
	case !f.MembershipStatus.IsActive() && IsProtected(f.CurrentPath):
		return GoTo(RegisterPath)
	default:
		return NoRedirect()
	}
}

// IsProtected はダッシュボード配下のパスかどうかを返す。
// "/dashboardx"のような前方一致だけのパスは対象外。
func IsProtected(path string) bool {
	return path == DashboardPath || strings.HasPrefix(path, DashboardPath+"/")
}
