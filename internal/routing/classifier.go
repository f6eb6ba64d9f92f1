package routing

import (
	"errors"
	"slices"
	"strings"
)

type RouteClass string

const (
	RouteClassUI          RouteClass = "ui"
	RouteClassInternalAPI RouteClass = "internal_api"
	RouteClassPublicAPI   RouteClass = "public_api"
	RouteClassOps         RouteClass = "ops"
	RouteClassStatic      RouteClass = "static"
)

// Classifier maps request paths to route classes using the allowlist of one
// entrypoint, falling back to path conventions for unlisted paths.
type Classifier struct {
	entrypoint string
	exact      map[string]listedRoute
	patterns   []listedPattern
}

type listedRoute struct {
	rc      RouteClass
	methods []string
}

type listedPattern struct {
	pattern PathPattern
	listedRoute
}

func NewClassifier(a Allowlist, entrypoint string) (*Classifier, error) {
	ep, ok := a.Entrypoints[entrypoint]
	if !ok {
		return nil, errors.New("allowlist: missing entrypoint")
	}
	if len(ep.Routes) == 0 {
		return nil, errors.New("allowlist: entrypoint routes empty")
	}

	c := &Classifier{entrypoint: entrypoint, exact: make(map[string]listedRoute, len(ep.Routes))}
	for _, r := range ep.Routes {
		if r.Path == "" || r.RouteClass == "" {
			return nil, errors.New("allowlist: invalid route")
		}
		lr := listedRoute{rc: RouteClass(r.RouteClass), methods: r.Methods}
		if p, ok := parsePathPattern(r.Path); ok {
			c.patterns = append(c.patterns, listedPattern{pattern: p, listedRoute: lr})
			continue
		}
		c.exact[r.Path] = lr
	}
	return c, nil
}

func (c *Classifier) Entrypoint() string { return c.entrypoint }

func (c *Classifier) Classify(path string) RouteClass {
	if r, ok := c.exact[path]; ok {
		return r.rc
	}
	for _, p := range c.patterns {
		if p.pattern.Match(path) {
			return p.rc
		}
	}

	switch {
	case hasPrefixSegment(path, "/api/v1"):
		return RouteClassPublicAPI
	case isModuleInternalAPI(path):
		return RouteClassInternalAPI
	case hasPrefixSegment(path, "/assets") || hasPrefixSegment(path, "/static"):
		return RouteClassStatic
	default:
		return RouteClassUI
	}
}

// Listed reports whether the allowlist names method for route, where route
// is the path as registered ("{name}" segments compared literally).
func (c *Classifier) Listed(method string, route string) bool {
	if r, ok := c.exact[route]; ok {
		return slices.Contains(r.methods, method)
	}
	for _, p := range c.patterns {
		if p.pattern.raw == route {
			return slices.Contains(p.methods, method)
		}
	}
	return false
}

func hasPrefixSegment(path, prefix string) bool {
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}

func isModuleInternalAPI(path string) bool {
	// /{module}/api/*
	rest, ok := strings.CutPrefix(path, "/")
	if !ok {
		return false
	}
	module, after, ok := strings.Cut(rest, "/")
	if !ok || module == "" {
		return false
	}
	return hasPrefixSegment("/"+after, "/api")
}
