package cli

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"idsync/internal/db/repository"
)

func newAPIKeyCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage API keys for the ops API",
	}
	cmd.AddCommand(newAPIKeyCreateCmd(e), newAPIKeyDeleteCmd(e))
	return cmd
}

func newAPIKeyCreateCmd(e *env) *cobra.Command {
	var principal string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key for a principal",
		Long:  "Generates a random key and stores its hash. The key itself is printed once and cannot be recovered.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := e.open(cmd.Context()); err != nil {
				return err
			}
			defer e.close()

			raw := make([]byte, 32)
			if _, err := rand.Read(raw); err != nil {
				return err
			}
			key := "isk_" + hex.EncodeToString(raw)
			hash := sha256.Sum256([]byte(key))

			keys := repository.NewAPIKeyRepo(e.writeDB)
			id, err := keys.Create(cmd.Context(), principal, hex.EncodeToString(hash[:]))
			if err != nil {
				return err
			}

			if e.output == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]string{
					"id":        id,
					"principal": principal,
					"key":       key,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created API key %s for %s\n", id, principal)
			fmt.Fprintf(cmd.OutOrStdout(), "Key (store it now, it is not shown again): %s\n", key)
			return nil
		},
	}

	cmd.Flags().StringVar(&principal, "principal", "", "Principal name the key authenticates as (required)")
	_ = cmd.MarkFlagRequired("principal")
	return cmd
}

func newAPIKeyDeleteCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.open(cmd.Context()); err != nil {
				return err
			}
			defer e.close()

			keys := repository.NewAPIKeyRepo(e.writeDB)
			if err := keys.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted API key %s\n", args[0])
			return nil
		},
	}
}
