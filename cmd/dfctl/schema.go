package main

import (
	"fmt"

	"github.com/jacksonlee411/dynfield/modules/dynamicfield/infrastructure/persistence"
	"github.com/jacksonlee411/dynfield/pkg/sqlpredicate"
	"github.com/spf13/cobra"
)

func newSchemaCmd() *cobra.Command {
	var dialect string
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the dynamic_field_value DDL for a SQL dialect",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := sqlpredicate.ParseDialect(dialect)
			if err != nil {
				return fmt.Errorf("--dialect %q: %w", dialect, err)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), persistence.SchemaScript(d))
			return err
		},
	}
	cmd.Flags().StringVar(&dialect, "dialect", "postgresql", "postgresql|mysql|oracle|mssql|sqlite")
	return cmd
}
