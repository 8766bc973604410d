package rbac

import (
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

// Permission is an "<object>.<action>" pair, e.g. "response.manage".
type Permission string

type Role struct {
	Name        string
	Description string
	Permissions []Permission
}

const casbinModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && r.obj == p.obj && r.act == p.act
`

// Policy answers "may any of these roles perform this permission". It is
// backed by an in-memory casbin enforcer; roles and their grants are loaded
// once at startup.
type Policy struct {
	enforcer *casbin.Enforcer
	roles    map[string]Role
}

func NewPolicy(roles []Role) *Policy {
	m, err := model.NewModelFromString(casbinModel)
	if err != nil {
		// The model is a compile-time constant; failure here is a programming error.
		panic(err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		panic(err)
	}
	p := &Policy{enforcer: e, roles: map[string]Role{}}
	for _, role := range roles {
		name := strings.ToLower(strings.TrimSpace(role.Name))
		if name == "" {
			continue
		}
		p.roles[name] = role
		for _, perm := range role.Permissions {
			obj, act, ok := splitPermission(perm)
			if !ok {
				continue
			}
			_, _ = e.AddPolicy(name, obj, act)
		}
	}
	return p
}

// Allowed reports whether any of the given role names grants perm.
func (p *Policy) Allowed(roles []string, perm Permission) bool {
	if p == nil || p.enforcer == nil {
		return false
	}
	obj, act, ok := splitPermission(perm)
	if !ok {
		return false
	}
	for _, role := range roles {
		name := strings.ToLower(strings.TrimSpace(role))
		if name == "" {
			continue
		}
		allowed, err := p.enforcer.Enforce(name, obj, act)
		if err == nil && allowed {
			return true
		}
	}
	return false
}

// KnownRole reports whether name is a configured role.
func (p *Policy) KnownRole(name string) bool {
	if p == nil {
		return false
	}
	_, ok := p.roles[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

func splitPermission(perm Permission) (obj, act string, ok bool) {
	s := strings.TrimSpace(string(perm))
	idx := strings.Index(s, ".")
	if idx <= 0 || idx == len(s)-1 {
		return "", "", false
	}
	return s[:idx], s[idx+1:], true
}
