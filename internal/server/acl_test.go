package server

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoadValueACL_DefaultPolicy(t *testing.T) {
	t.Setenv("ACL_POLICY_PATH", "")
	t.Setenv("ACL_MODEL_PATH", "")
	t.Setenv("ACL_MODE", "")

	acl, err := loadValueACL()
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	allowed, enforced, err := acl.Reduce("role:agent", "DynamicField_Priority", []string{"low", "high"})
	if err != nil || !enforced {
		t.Fatalf("enforced=%v err=%v", enforced, err)
	}
	if diff := cmp.Diff([]string{"low"}, allowed); diff != "" {
		t.Fatalf("allowed mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadValueACL_PolicyPathAndMode(t *testing.T) {
	dir := t.TempDir()
	policy := filepath.Join(dir, "policy.csv")
	if err := os.WriteFile(policy, []byte("p, *, DynamicField_Priority, low, deny\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ACL_POLICY_PATH", policy)
	t.Setenv("ACL_MODEL_PATH", "")

	t.Setenv("ACL_MODE", "bogus")
	if _, err := loadValueACL(); err == nil {
		t.Fatal("expected mode error")
	}

	t.Setenv("ACL_MODE", "enforce")
	acl, err := loadValueACL()
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	allowed, _, err := acl.Reduce("role:customer", "DynamicField_Priority", []string{"low", "high"})
	if err != nil || !cmp.Equal(allowed, []string{"high"}) {
		t.Fatalf("allowed=%v err=%v", allowed, err)
	}
}

func TestSubjectFromRequest(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if got := subjectFromRequest(req); got != "" {
		t.Fatalf("got=%q", got)
	}
	req.Header.Set("X-Role", " Agent ")
	if got := subjectFromRequest(req); got != "role:agent" {
		t.Fatalf("got=%q", got)
	}
}

func TestFindConfigFile_Missing(t *testing.T) {
	if _, err := findConfigFile("config/none/missing.yaml"); err == nil {
		t.Fatal("expected error")
	}
}
