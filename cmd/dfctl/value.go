package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/jacksonlee411/dynfield/modules/dynamicfield/domain/types"
	"github.com/jacksonlee411/dynfield/modules/dynamicfield/services"
	"github.com/spf13/cobra"
)

func newValueCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "value",
		Short: "Read and write stored field values",
	}
	cmd.AddCommand(newValueGetCmd(a), newValueSetCmd(a), newValueDeleteCmd(a))
	return cmd
}

func parseObjectID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("object id %q: must be a positive integer", raw)
	}
	return id, nil
}

func newValueGetCmd(a *app) *cobra.Command {
	var readable bool
	cmd := &cobra.Command{
		Use:   "get FIELD OBJECT_ID",
		Short: "Print the stored value as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			objectID, err := parseObjectID(args[1])
			if err != nil {
				return err
			}
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			cfg, err := s.catalog.Field(args[0])
			if err != nil {
				return err
			}
			v, err := s.backend.ValueGet(cmd.Context(), cfg, objectID)
			if err != nil {
				return err
			}
			if readable {
				rv, err := s.backend.ReadableValueRender(cfg, v, services.ReadableOptions{})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), rv.Value)
				return nil
			}
			b, err := json.Marshal(v)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	}
	cmd.Flags().BoolVar(&readable, "readable", false, "print the plain text rendering instead of JSON")
	return cmd
}

func newValueSetCmd(a *app) *cobra.Command {
	var (
		userID          int64
		noValidateRegex bool
	)
	cmd := &cobra.Command{
		Use:   "set FIELD OBJECT_ID JSON",
		Short: "Validate and store a value given as JSON",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			objectID, err := parseObjectID(args[1])
			if err != nil {
				return err
			}
			var v types.Value
			if err := json.Unmarshal([]byte(args[2]), &v); err != nil {
				return err
			}
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			cfg, err := s.catalog.Field(args[0])
			if err != nil {
				return err
			}
			if err := s.backend.ValueValidate(cfg, v, noValidateRegex); err != nil {
				return err
			}
			changed, err := s.backend.ValueSet(cmd.Context(), cfg, objectID, v, userID)
			if err != nil {
				return err
			}
			if changed {
				fmt.Fprintln(cmd.OutOrStdout(), "changed")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "unchanged")
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 1, "user id recorded with the change")
	cmd.Flags().BoolVar(&noValidateRegex, "no-validate-regex", false, "skip the field's regex checks")
	return cmd
}

func newValueDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete FIELD OBJECT_ID",
		Short: "Remove the stored value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			objectID, err := parseObjectID(args[1])
			if err != nil {
				return err
			}
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			cfg, err := s.catalog.Field(args[0])
			if err != nil {
				return err
			}
			return s.backend.ValueDelete(cmd.Context(), cfg, objectID)
		},
	}
}

func newRandomCmd(a *app) *cobra.Command {
	var (
		userID   int64
		setCount int
	)
	cmd := &cobra.Command{
		Use:   "random FIELD OBJECT_ID",
		Short: "Store a random value for test data and print it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			objectID, err := parseObjectID(args[1])
			if err != nil {
				return err
			}
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			cfg, err := s.catalog.Field(args[0])
			if err != nil {
				return err
			}
			v, err := s.backend.RandomValueSet(cmd.Context(), cfg, objectID, userID, setCount)
			if err != nil {
				return err
			}
			b, err := json.Marshal(v)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 1, "user id recorded with the change")
	cmd.Flags().IntVar(&setCount, "sets", 1, "number of value sets for set-capable fields")
	return cmd
}
