// Package authz はロールに基づく操作権限（ケイパビリティ）の判定を提供する。
package authz

import (
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	casbinmodel "github.com/casbin/casbin/v2/model"

	"github.com/hitoshi/learnhub/internal/model"
)

// 定義済みケイパビリティ。"オブジェクト:アクション" の形式で表す。
const (
	CapabilityCatalogRefresh = "catalog:refresh"
	CapabilityAdminView      = "admin:view"
)

// RoleAdmin は管理者ロール名。
const RoleAdmin = "admin"

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && r.obj == p.obj && r.act == p.act
`

// Policy はロールに許可するケイパビリティの1件を表す。
type Policy struct {
	Role       string
	Capability string
}

// DefaultPolicies は起動時に読み込む既定のポリシー。
var DefaultPolicies = []Policy{
	{Role: RoleAdmin, Capability: CapabilityCatalogRefresh},
	{Role: RoleAdmin, Capability: CapabilityAdminView},
}

// Authorizer はケイパビリティ判定のインターフェース。
type Authorizer interface {
	Can(identity *model.Identity, capability string) bool
}

// Enforcer はcasbinを用いたAuthorizerの実装。
type Enforcer struct {
	enforcer *casbin.Enforcer
}

// NewEnforcer は指定ポリシーを読み込んだEnforcerを生成する。
func NewEnforcer(policies []Policy) (*Enforcer, error) {
	m, err := casbinmodel.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("failed to parse authorization model: %w", err)
	}

	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create enforcer: %w", err)
	}

	for _, p := range policies {
		obj, act, err := splitCapability(p.Capability)
		if err != nil {
			return nil, err
		}
		if _, err := e.AddPolicy(p.Role, obj, act); err != nil {
			return nil, fmt.Errorf("failed to add policy %s -> %s: %w", p.Role, p.Capability, err)
		}
	}

	return &Enforcer{enforcer: e}, nil
}

// Can はIdentityのいずれかのロールがケイパビリティを持つかどうかを返す。
// Identityがnil、またはケイパビリティの形式が不正な場合はfalseを返す。
func (e *Enforcer) Can(identity *model.Identity, capability string) bool {
	if identity == nil {
		return false
	}
	obj, act, err := splitCapability(capability)
	if err != nil {
		return false
	}

	for _, role := range identity.Roles {
		ok, err := e.enforcer.Enforce(role, obj, act)
		if err == nil && ok {
			return true
		}
	}
	return false
}

func splitCapability(capability string) (string, string, error) {
	obj, act, ok := strings.Cut(capability, ":")
	if !ok || obj == "" || act == "" {
		return "", "", fmt.Errorf("invalid capability %q: expected object:action", capability)
	}
	return obj, act, nil
}
