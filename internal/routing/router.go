package routing

import (
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"
)

type Router struct {
	classifier *Classifier
	logger     *zap.SugaredLogger
	routes     map[string]map[string]routeEntry
	patterns   []patternEntry
	unlisted   []string
}

type routeEntry struct {
	rc      RouteClass
	handler http.Handler
}

type patternEntry struct {
	pattern PathPattern
	methods map[string]routeEntry
}

func NewRouter(classifier *Classifier, logger *zap.SugaredLogger) *Router {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Router{
		classifier: classifier,
		logger:     logger,
		routes:     make(map[string]map[string]routeEntry),
	}
}

// Handle registers h for method and path. Paths containing "{name}" segments
// are matched as patterns in registration order, after exact paths; captured
// segments are available through Request.PathValue.
func (r *Router) Handle(rc RouteClass, method string, path string, h http.Handler) {
	if !r.classifier.Listed(method, path) {
		r.logger.Warnw("route not in allowlist", "entrypoint", r.classifier.Entrypoint(), "method", method, "path", path)
		r.unlisted = append(r.unlisted, method+" "+path)
	}
	entry := routeEntry{
		rc: rc,
		handler: http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					r.logger.Errorw("handler panic", "path", req.URL.Path, "method", req.Method, "panic", rec, "stack", string(debug.Stack()))
					WriteError(w, req, rc, http.StatusInternalServerError, "internal_error", "internal error")
				}
			}()
			h.ServeHTTP(w, req)
		}),
	}

	if p, ok := parsePathPattern(path); ok {
		for i := range r.patterns {
			if r.patterns[i].pattern.raw == path {
				r.patterns[i].methods[method] = entry
				return
			}
		}
		r.patterns = append(r.patterns, patternEntry{pattern: p, methods: map[string]routeEntry{method: entry}})
		return
	}

	if r.routes[path] == nil {
		r.routes[path] = make(map[string]routeEntry)
	}
	r.routes[path][method] = entry
}

// Unlisted returns the registered routes missing from the allowlist, as
// "METHOD path".
func (r *Router) Unlisted() []string {
	return append([]string(nil), r.unlisted...)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	methods, ok := r.routes[req.URL.Path]
	if !ok {
		for _, p := range r.patterns {
			params, matched := p.pattern.Params(req.URL.Path)
			if !matched {
				continue
			}
			for name, v := range params {
				req.SetPathValue(name, v)
			}
			methods, ok = p.methods, true
			break
		}
	}
	if !ok {
		WriteError(w, req, r.classifier.Classify(req.URL.Path), http.StatusNotFound, "not_found", "not found")
		return
	}
	entry, ok := methods[req.Method]
	if !ok {
		WriteError(w, req, entrypointClass(methods, r.classifier.Classify(req.URL.Path)), http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	entry.handler.ServeHTTP(w, req)
}

func entrypointClass(methods map[string]routeEntry, fallback RouteClass) RouteClass {
	for _, e := range methods {
		return e.rc
	}
	return fallback
}
