package server

import (
	"context"
	"net/http"
	"os"

	"github.com/jacksonlee411/dynfield/internal/fieldconfig"
	"github.com/jacksonlee411/dynfield/internal/routing"
	"github.com/jacksonlee411/dynfield/modules/dynamicfield/domain/ports"
	"github.com/jacksonlee411/dynfield/modules/dynamicfield/presentation/controllers"
	"github.com/jacksonlee411/dynfield/modules/dynamicfield/services"
	"github.com/jacksonlee411/dynfield/pkg/htmlsafety"
	"github.com/jacksonlee411/dynfield/pkg/logging"
	"github.com/jacksonlee411/dynfield/pkg/sqlpredicate"
	"go.uber.org/zap"
)

func NewHandler() (http.Handler, error) {
	return NewHandlerWithOptions(HandlerOptions{})
}

// HandlerOptions replaces pieces the handler would otherwise build from the
// environment. Zero fields are loaded from env and config files.
type HandlerOptions struct {
	Store      ports.ValueStore
	Dialect    sqlpredicate.Dialect
	Fields     *fieldconfig.Catalog
	Extensions map[string]services.Extension
	ACL        services.ACL
	Logger     *zap.SugaredLogger
}

func NewHandlerWithOptions(opts HandlerOptions) (http.Handler, error) {
	logger := logging.OrNop(opts.Logger)

	allowlistPath := os.Getenv("ALLOWLIST_PATH")
	if allowlistPath == "" {
		p, err := findConfigFile("config/routing/allowlist.yaml")
		if err != nil {
			return nil, err
		}
		allowlistPath = p
	}
	a, err := routing.LoadAllowlist(allowlistPath)
	if err != nil {
		return nil, err
	}
	classifier, err := routing.NewClassifier(a, "server")
	if err != nil {
		return nil, err
	}

	store, dialect := opts.Store, opts.Dialect
	if store == nil {
		s, err := OpenStore(context.Background(), logger)
		if err != nil {
			return nil, err
		}
		store, dialect = s.Values, s.Dialect
	}

	registry := services.NewRegistry(services.Deps{Store: store, Logger: logger, Dialect: dialect})
	extensions := opts.Extensions
	if extensions == nil {
		extensions, err = loadExtensions()
		if err != nil {
			return nil, err
		}
	}
	if err := registry.RegisterExtensions(extensions); err != nil {
		return nil, err
	}

	catalog := opts.Fields
	if catalog == nil {
		catalog, err = loadCatalog()
		if err != nil {
			return nil, err
		}
	}
	if err := catalog.CheckDrivers(registry); err != nil {
		return nil, err
	}

	acl := opts.ACL
	if acl == nil {
		valueACL, err := loadValueACL()
		if err != nil {
			return nil, err
		}
		acl = valueACL
	}

	backend := services.NewBackend(registry, services.WithACL(acl), services.WithSafetyPolicy(htmlsafety.DefaultPolicy()))
	fields := &controllers.FieldsController{Fields: catalog, Backend: backend, Subject: subjectFromRequest}
	safety := &controllers.HTMLSafetyController{Default: htmlsafety.DefaultPolicy()}

	router := routing.NewRouter(classifier, logger)

	router.Handle(routing.RouteClassOps, http.MethodGet, "/health", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}))
	router.Handle(routing.RouteClassOps, http.MethodGet, "/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}))

	router.Handle(routing.RouteClassPublicAPI, http.MethodGet, "/api/v1/dynamic-fields", http.HandlerFunc(fields.HandleFieldsAPI))
	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		router.Handle(routing.RouteClassPublicAPI, method, "/api/v1/dynamic-fields/{name}/values/{object_id}", http.HandlerFunc(fields.HandleValuesAPI))
	}
	router.Handle(routing.RouteClassPublicAPI, http.MethodPost, "/api/v1/dynamic-fields/{name}/validate", http.HandlerFunc(fields.HandleValidateAPI))
	router.Handle(routing.RouteClassPublicAPI, http.MethodGet, "/api/v1/dynamic-fields/{name}/display/{object_id}", http.HandlerFunc(fields.HandleDisplayAPI))
	router.Handle(routing.RouteClassPublicAPI, http.MethodGet, "/api/v1/dynamic-fields/{name}/edit/{object_id}", http.HandlerFunc(fields.HandleEditAPI))
	router.Handle(routing.RouteClassPublicAPI, http.MethodGet, "/api/v1/dynamic-fields/{name}/possible-values", http.HandlerFunc(fields.HandlePossibleValuesAPI))
	router.Handle(routing.RouteClassPublicAPI, http.MethodGet, "/api/v1/dynamic-fields/{name}/search", http.HandlerFunc(fields.HandleSearchAPI))

	router.Handle(routing.RouteClassPublicAPI, http.MethodPost, "/api/v1/html/safety", http.HandlerFunc(safety.HandleHTMLSafetyAPI))

	logger.Infow("handler ready", "fields", len(catalog.Fields("")), "field_types", len(registry.FieldTypes()))
	return router, nil
}

func loadCatalog() (*fieldconfig.Catalog, error) {
	path := os.Getenv("DYNFIELD_CONFIG")
	if path == "" {
		p, err := findConfigFile("config/dynamicfield/fields.yaml")
		if err != nil {
			return nil, err
		}
		path = p
	}
	return fieldconfig.Load(path)
}

// loadExtensions reads DYNFIELD_EXTENSIONS, or the default extension file
// when present. Running without extensions is allowed.
func loadExtensions() (map[string]services.Extension, error) {
	path := os.Getenv("DYNFIELD_EXTENSIONS")
	if path == "" {
		p, err := findConfigFile("config/dynamicfield/extensions.yaml")
		if err != nil {
			return map[string]services.Extension{}, nil
		}
		path = p
	}
	return fieldconfig.LoadExtensions(path)
}
