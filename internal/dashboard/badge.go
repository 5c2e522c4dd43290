package dashboard

// BadgeColor は会員種別を表示用のバッジトークンに変換する。
// 未知の値や空文字列も含め、必ずいずれかのトークンを返す。
func BadgeColor(membershipType string) string {
	switch membershipType {
	case "Premium":
		return "badge-premium"
	case "Lifetime":
		return "badge-lifetime"
	default:
		return "badge-default"
	}
}
