// Package authz reduces the possible values of dynamic fields through casbin
// ACL policies.
package authz

import (
	"errors"
	"os"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
	stringadapter "github.com/casbin/casbin/v2/persist/string-adapter"
)

type Mode string

const (
	ModeEnforce  Mode = "enforce"
	ModeShadow   Mode = "shadow"
	ModeDisabled Mode = "disabled"
)

// DefaultModel allows every value unless a policy line denies it, so fields
// without rules keep their full value list.
const DefaultModel = `
[request_definition]
r = sub, field, value

[policy_definition]
p = sub, field, value, eft

[policy_effect]
e = !some(where (p.eft == deny))

[matchers]
m = (r.sub == p.sub || p.sub == "*") && keyMatch(r.field, p.field) && keyMatch(r.value, p.value)
`

func ModeFromEnv() (Mode, error) {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv("ACL_MODE")))
	if raw == "" {
		return ModeEnforce, nil
	}
	switch Mode(raw) {
	case ModeEnforce, ModeShadow:
		return Mode(raw), nil
	case ModeDisabled:
		if os.Getenv("ACL_UNSAFE_ALLOW_DISABLED") != "1" {
			return "", errors.New("authz: ACL_MODE=disabled requires ACL_UNSAFE_ALLOW_DISABLED=1")
		}
		return ModeDisabled, nil
	default:
		return "", errors.New("authz: invalid ACL_MODE (expected enforce|shadow|disabled)")
	}
}

type ValueACL struct {
	enforcer *casbin.Enforcer
	mode     Mode
}

// NewValueACL loads the model at modelPath (DefaultModel when empty) and the
// CSV policy at policyPath.
func NewValueACL(modelPath string, policyPath string, mode Mode) (*ValueACL, error) {
	m, err := loadModel(modelPath)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewEnforcer(m, fileadapter.NewAdapter(policyPath))
	if err != nil {
		return nil, err
	}
	return &ValueACL{enforcer: enforcer, mode: mode}, nil
}

// NewValueACLFromPolicy builds an ACL over DefaultModel from CSV policy lines.
func NewValueACLFromPolicy(policy string, mode Mode) (*ValueACL, error) {
	m, err := model.NewModelFromString(DefaultModel)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewEnforcer(m, stringadapter.NewAdapter(strings.TrimSpace(policy)))
	if err != nil {
		return nil, err
	}
	return &ValueACL{enforcer: enforcer, mode: mode}, nil
}

func loadModel(path string) (model.Model, error) {
	if strings.TrimSpace(path) == "" {
		return model.NewModelFromString(DefaultModel)
	}
	return model.NewModelFromFile(path)
}

func (a *ValueACL) Mode() Mode { return a.mode }

func SubjectFromRoleSlug(roleSlug string) string {
	roleSlug = strings.TrimSpace(strings.ToLower(roleSlug))
	if roleSlug == "" {
		roleSlug = "anonymous"
	}
	return "role:" + roleSlug
}

// Reduce returns the keys subject may choose for fieldName, in input order.
// enforced is false when the result was not restricted by the mode.
func (a *ValueACL) Reduce(subject string, fieldName string, keys []string) (allowed []string, enforced bool, err error) {
	switch a.mode {
	case ModeDisabled:
		return append([]string(nil), keys...), false, nil
	case ModeShadow, ModeEnforce:
	default:
		return nil, false, errors.New("authz: unknown mode")
	}

	allowed = make([]string, 0, len(keys))
	for _, key := range keys {
		ok, err := a.enforcer.Enforce(subject, fieldName, key)
		if err != nil {
			return nil, false, err
		}
		if ok || a.mode == ModeShadow {
			allowed = append(allowed, key)
		}
	}
	return allowed, a.mode == ModeEnforce, nil
}
