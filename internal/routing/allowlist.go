package routing

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Allowlist is the routing/allowlist.yaml document: every route an
// entrypoint serves, with its methods and route class.
type Allowlist struct {
	Version     int                   `yaml:"version"`
	Entrypoints map[string]Entrypoint `yaml:"entrypoints"`
}

type Entrypoint struct {
	Routes []Route `yaml:"routes"`
}

type Route struct {
	Path       string   `yaml:"path"`
	Methods    []string `yaml:"methods"`
	RouteClass string   `yaml:"route_class"`
}

var knownMethods = map[string]struct{}{
	http.MethodGet:    {},
	http.MethodHead:   {},
	http.MethodPost:   {},
	http.MethodPut:    {},
	http.MethodPatch:  {},
	http.MethodDelete: {},
}

var knownClasses = map[RouteClass]struct{}{
	RouteClassUI:          {},
	RouteClassInternalAPI: {},
	RouteClassPublicAPI:   {},
	RouteClassOps:         {},
	RouteClassStatic:      {},
}

func ParseAllowlistYAML(b []byte) (Allowlist, error) {
	var a Allowlist
	if err := yaml.Unmarshal(b, &a); err != nil {
		return Allowlist{}, err
	}
	if a.Version != 1 {
		return Allowlist{}, errors.New("allowlist: unsupported version")
	}
	if a.Entrypoints == nil {
		return Allowlist{}, errors.New("allowlist: missing entrypoints")
	}
	for name, ep := range a.Entrypoints {
		if err := ep.validate(); err != nil {
			return Allowlist{}, fmt.Errorf("allowlist: entrypoint %s: %w", name, err)
		}
	}
	return a, nil
}

func LoadAllowlist(path string) (Allowlist, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Allowlist{}, err
	}
	return ParseAllowlistYAML(b)
}

// validate rejects unknown methods or classes and paths listed twice.
func (ep Entrypoint) validate() error {
	seen := make(map[string]struct{}, len(ep.Routes))
	for _, r := range ep.Routes {
		if !strings.HasPrefix(r.Path, "/") {
			return fmt.Errorf("route %q: path must start with /", r.Path)
		}
		if _, dup := seen[r.Path]; dup {
			return fmt.Errorf("route %q: listed twice", r.Path)
		}
		seen[r.Path] = struct{}{}
		if _, ok := knownClasses[RouteClass(r.RouteClass)]; !ok {
			return fmt.Errorf("route %q: unknown route_class %q", r.Path, r.RouteClass)
		}
		if len(r.Methods) == 0 {
			return fmt.Errorf("route %q: no methods", r.Path)
		}
		for _, m := range r.Methods {
			if _, ok := knownMethods[m]; !ok {
				return fmt.Errorf("route %q: unknown method %q", r.Path, m)
			}
		}
	}
	return nil
}
