package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/jacksonlee411/dynfield/internal/fieldconfig"
	"github.com/spf13/cobra"
)

func newFieldsCmd(a *app) *cobra.Command {
	var objectType string
	cmd := &cobra.Command{
		Use:   "fields",
		Short: "List configured dynamic fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := fieldconfig.Load(a.configPath)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tTYPE\tOBJECT\tLABEL")
			for _, f := range catalog.Fields(objectType) {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", f.ID, f.Name, f.FieldType, f.ObjectType, f.Label)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&objectType, "object-type", "", "only fields of this object type")
	return cmd
}
