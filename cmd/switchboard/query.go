package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pario-ai/switchboard/pkg/models"
)

func newQueryCmd(configPath *string) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Answer a single query and print the JSON response",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				return fmt.Errorf("--email is required")
			}
			a, err := newApp(cmd.Context(), *configPath, os.Stderr)
			if err != nil {
				return err
			}
			defer a.Close()

			resp := a.orch.Handle(cmd.Context(), models.QueryRequest{
				Query:     strings.Join(args, " "),
				Email:     email,
				RequestID: uuid.NewString(),
			})

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(resp); err != nil {
				return err
			}
			if resp.Error != nil {
				return fmt.Errorf("query failed")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email address of the user the question is about")
	return cmd
}
