package server

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/jacksonlee411/dynfield/pkg/authz"
)

func loadValueACL() (*authz.ValueACL, error) {
	policyPath := os.Getenv("ACL_POLICY_PATH")
	if policyPath == "" {
		p, err := findConfigFile("config/access/policy.csv")
		if err != nil {
			return nil, err
		}
		policyPath = p
	}

	mode, err := authz.ModeFromEnv()
	if err != nil {
		return nil, err
	}

	// An empty model path selects the built-in deny-list model.
	return authz.NewValueACL(os.Getenv("ACL_MODEL_PATH"), policyPath, mode)
}

// subjectFromRequest maps the X-Role header to an ACL subject. Requests
// without a role are not reduced.
func subjectFromRequest(r *http.Request) string {
	role := strings.TrimSpace(r.Header.Get("X-Role"))
	if role == "" {
		return ""
	}
	return authz.SubjectFromRoleSlug(role)
}

func findConfigFile(path string) (string, error) {
	for range 8 {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("server: " + filepath.Base(path) + " not found")
}
