package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newSystemsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "systems",
		Short: "Inspect connected systems",
	}
	cmd.AddCommand(newSystemsListCmd(e), newSystemsShowCmd(e))
	return cmd
}

func newSystemsListCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List connected systems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := e.open(cmd.Context()); err != nil {
				return err
			}
			defer e.close()

			systems, err := e.app.Systems.List(cmd.Context())
			if err != nil {
				return err
			}
			if e.output == "json" {
				return printJSON(cmd.OutOrStdout(), systems)
			}
			rows := make([][]string, 0, len(systems))
			for _, s := range systems {
				count, err := e.app.Objects.CountBySystem(cmd.Context(), s.ID)
				if err != nil {
					return err
				}
				rows = append(rows, []string{s.Name, s.ID, strconv.FormatInt(count, 10), s.Description})
			}
			return printTable(cmd.OutOrStdout(), []string{"NAME", "ID", "OBJECTS", "DESCRIPTION"}, rows)
		},
	}
}

func newSystemsShowCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show one connected system with its object types and rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.open(cmd.Context()); err != nil {
				return err
			}
			defer e.close()
			ctx := cmd.Context()

			sys, err := e.app.Systems.GetByName(ctx, args[0])
			if err != nil {
				return err
			}
			types, err := e.app.Systems.ListObjectTypes(ctx, sys.ID)
			if err != nil {
				return err
			}
			rules, err := e.app.Rules.ListBySystem(ctx, sys.ID)
			if err != nil {
				return err
			}

			if e.output == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"system":      sys,
					"objectTypes": types,
					"syncRules":   rules,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "System: %s (%s)\n", sys.Name, sys.ID)
			if sys.Description != "" {
				fmt.Fprintf(out, "  %s\n", sys.Description)
			}
			fmt.Fprintln(out, "Object types:")
			for _, t := range types {
				fmt.Fprintf(out, "  %s (external id: %s, %d attributes)\n",
					t.Name, t.ExternalIDAttribute, len(t.Attributes))
			}
			fmt.Fprintln(out, "Sync rules:")
			for _, r := range rules {
				state := "enabled"
				if !r.Enabled {
					state = "disabled"
				}
				fmt.Fprintf(out, "  %s (%s, priority %d, %s)\n", r.Name, r.Direction, r.Priority, state)
			}
			return nil
		},
	}
}
