package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/ticketgate/internal/providers"
)

func (a *app) modelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Provider and model management",
	}
	cmd.AddCommand(a.modelsListCmd(), a.modelsDoctorCmd())
	return cmd
}

func (a *app) modelsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List supported providers and their default models",
		Run: func(cmd *cobra.Command, args []string) {
			for _, p := range providers.Names {
				model := providers.DefaultModel(p)
				if model == "" {
					model = "(set AZURE_DEPLOYMENT_MODEL)"
				}
				fmt.Fprintf(a.stdout, "%-10s %s\n", p, model)
			}
		},
	}
}

func (a *app) modelsDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Validate provider credentials with a one-token completion",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(a.stdout, "Checking %s...\n", cfg.Model.Provider)

			model, err := a.newModel(cmd.Context(), cfg.Model)
			if err != nil {
				fmt.Fprintf(a.stderr, "FAIL: %v\n", err)
				a.exitCode = ExitUsageError
				return nil
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			_, err = model.Complete(ctx, providers.CompletionRequest{
				Prompt:    "Respond with exactly: ok",
				MaxTokens: 10,
			})
			if err != nil {
				fmt.Fprintf(a.stderr, "FAIL: %v\n", err)
				if providers.IsAuthError(err) {
					a.exitCode = ExitAuthError
				} else {
					a.exitCode = ExitRuntimeError
				}
				return nil
			}

			fmt.Fprintf(a.stdout, "OK: %s is configured and responding\n", model.Name())
			return nil
		},
	}
}
