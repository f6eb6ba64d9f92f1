// Command dfctl inspects dynamic field configuration and edits stored values
// from the shell.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jacksonlee411/dynfield/internal/fieldconfig"
	"github.com/jacksonlee411/dynfield/internal/server"
	"github.com/jacksonlee411/dynfield/modules/dynamicfield/services"
	"github.com/jacksonlee411/dynfield/pkg/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type app struct {
	debug          bool
	configPath     string
	extensionsPath string
	logger         *zap.SugaredLogger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "dfctl",
		Short:         "Inspect dynamic fields and edit their values",
		SilenceUsage:  true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			logger, err := logging.New(a.debug)
			if err != nil {
				return err
			}
			a.logger = logger
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.BoolVar(&a.debug, "debug", logging.DebugFromEnv(), "development logging")
	flags.StringVar(&a.configPath, "config", getenvDefault("DYNFIELD_CONFIG", "config/dynamicfield/fields.yaml"), "field definition file")
	flags.StringVar(&a.extensionsPath, "extensions", os.Getenv("DYNFIELD_EXTENSIONS"), "driver extension file")

	root.AddCommand(
		newSanitizeCmd(),
		newSchemaCmd(),
		newFieldsCmd(a),
		newValueCmd(a),
		newRandomCmd(a),
	)
	return root
}

type session struct {
	catalog *fieldconfig.Catalog
	backend *services.Backend
	close   func()
}

// open loads the field catalog and connects the store selected by DB_DRIVER.
func (a *app) open(ctx context.Context) (*session, error) {
	catalog, err := fieldconfig.Load(a.configPath)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", a.configPath, err)
	}
	extensions := map[string]services.Extension{}
	if a.extensionsPath != "" {
		extensions, err = fieldconfig.LoadExtensions(a.extensionsPath)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", a.extensionsPath, err)
		}
	}

	store, err := server.OpenStore(ctx, a.logger)
	if err != nil {
		return nil, err
	}
	registry := services.NewRegistry(services.Deps{Store: store.Values, Logger: a.logger, Dialect: store.Dialect})
	if err := registry.RegisterExtensions(extensions); err != nil {
		store.Close()
		return nil, err
	}
	if err := catalog.CheckDrivers(registry); err != nil {
		store.Close()
		return nil, err
	}
	return &session{catalog: catalog, backend: services.NewBackend(registry), close: store.Close}, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
