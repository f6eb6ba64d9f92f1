package authz

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestModeFromEnv_Default(t *testing.T) {
	t.Setenv("ACL_MODE", "")
	m, err := ModeFromEnv()
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if m != ModeEnforce {
		t.Fatalf("mode=%q", m)
	}
}

func TestModeFromEnv_DisabledRequiresUnsafe(t *testing.T) {
	t.Setenv("ACL_MODE", "disabled")
	t.Setenv("ACL_UNSAFE_ALLOW_DISABLED", "")
	if _, err := ModeFromEnv(); err == nil {
		t.Fatal("expected error")
	}
	t.Setenv("ACL_UNSAFE_ALLOW_DISABLED", "1")
	m, err := ModeFromEnv()
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if m != ModeDisabled {
		t.Fatalf("mode=%q", m)
	}
}

func TestModeFromEnv_Invalid(t *testing.T) {
	t.Setenv("ACL_MODE", "nope")
	if _, err := ModeFromEnv(); err == nil {
		t.Fatal("expected error")
	}
}

const testPolicy = `
p, role:agent, DynamicField_Priority, urgent, deny
p, *, DynamicField_Priority, legacy*, deny
`

func TestValueACL_Reduce(t *testing.T) {
	acl, err := NewValueACLFromPolicy(testPolicy, ModeEnforce)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	keys := []string{"low", "urgent", "legacy-high"}

	got, enforced, err := acl.Reduce(SubjectFromRoleSlug("Agent"), "DynamicField_Priority", keys)
	if err != nil || !enforced {
		t.Fatalf("err=%v enforced=%v", err, enforced)
	}
	if diff := cmp.Diff([]string{"low"}, got); diff != "" {
		t.Fatalf("allowed (-want +got):\n%s", diff)
	}

	got, _, _ = acl.Reduce(SubjectFromRoleSlug("admin"), "DynamicField_Priority", keys)
	if diff := cmp.Diff([]string{"low", "urgent"}, got); diff != "" {
		t.Fatalf("allowed (-want +got):\n%s", diff)
	}

	got, _, _ = acl.Reduce(SubjectFromRoleSlug("agent"), "DynamicField_Other", keys)
	if diff := cmp.Diff(keys, got); diff != "" {
		t.Fatalf("unrestricted field (-want +got):\n%s", diff)
	}
}

func TestValueACL_ShadowAndDisabled(t *testing.T) {
	shadow, err := NewValueACLFromPolicy(testPolicy, ModeShadow)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	got, enforced, err := shadow.Reduce("role:agent", "DynamicField_Priority", []string{"urgent"})
	if err != nil || enforced || len(got) != 1 {
		t.Fatalf("got=%v enforced=%v err=%v", got, enforced, err)
	}

	disabled, err := NewValueACLFromPolicy(testPolicy, ModeDisabled)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	got, enforced, _ = disabled.Reduce("role:agent", "DynamicField_Priority", []string{"urgent"})
	if enforced || len(got) != 1 {
		t.Fatalf("got=%v enforced=%v", got, enforced)
	}
}

func TestNewValueACL_Files(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "model.conf")
	policy := filepath.Join(dir, "policy.csv")
	if err := os.WriteFile(model, []byte(DefaultModel), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(policy, []byte("p, role:agent, DynamicField_Color, red, deny\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	acl, err := NewValueACL(model, policy, ModeEnforce)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	got, _, err := acl.Reduce("role:agent", "DynamicField_Color", []string{"red", "blue"})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if diff := cmp.Diff([]string{"blue"}, got); diff != "" {
		t.Fatalf("allowed (-want +got):\n%s", diff)
	}

	if _, err := NewValueACL(filepath.Join(dir, "missing.conf"), policy, ModeEnforce); err == nil {
		t.Fatal("expected error")
	}
}
