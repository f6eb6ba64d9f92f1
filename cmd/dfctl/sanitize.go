package main

import (
	"io"

	"github.com/jacksonlee411/dynfield/pkg/htmlsafety"
	"github.com/spf13/cobra"
)

func newSanitizeCmd() *cobra.Command {
	var (
		strict      bool
		replacement string
	)
	cmd := &cobra.Command{
		Use:   "sanitize",
		Short: "Filter HTML from stdin and write the safe form to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			p := htmlsafety.DefaultPolicy()
			if strict {
				p = htmlsafety.StrictPolicy()
			}
			p.ReplacementStr = replacement

			out, replaced := htmlsafety.Safety(string(in), p)
			if _, err := io.WriteString(cmd.OutOrStdout(), out); err != nil {
				return err
			}
			if replaced {
				cmd.PrintErrln("dfctl: content was modified")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "also block external source loading")
	cmd.Flags().StringVar(&replacement, "replacement", "", "text written in place of removed elements")
	return cmd
}
