package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dshills/ticketgate/internal/config"
)

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage ticketgate configuration",
	}
	cmd.AddCommand(a.configInitCmd(), a.configSetCmd(), a.configShowCmd(), a.configValidateCmd())
	return cmd
}

func (a *app) configInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init <path>",
		Short: "Write a default configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if _, err := os.Stat(path); err == nil {
				fmt.Fprintf(a.stderr, "Config file already exists at %s\n", path)
				return nil
			}
			if err := config.Save(path, config.Default()); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Config file created at %s\n", path)
			return nil
		},
	}
}

func (a *app) configSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a value in the file given by --config",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg := config.Default()
			if err := config.LoadFile(a.configPath, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			if err := config.SetField(&cfg, args[0], args[1]); err != nil {
				return err
			}
			if err := config.Save(a.configPath, cfg); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Set %s = %s\n", args[0], args[1])
			return nil
		},
	}
}

func (a *app) configShowCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration with credentials masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			cfg = cfg.Redacted()

			var data []byte
			if asJSON {
				data, err = json.MarshalIndent(cfg, "", "  ")
				data = append(data, '\n')
			} else {
				data, err = yaml.Marshal(cfg)
			}
			if err != nil {
				return err
			}
			_, err = a.stdout.Write(data)
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON instead of YAML")
	return cmd
}

func (a *app) configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check that the effective configuration is complete",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				fmt.Fprintf(a.stderr, "Invalid configuration:\n%v\n", err)
				a.exitCode = ExitUsageError
				return nil
			}
			fmt.Fprintln(a.stdout, "Configuration OK")
			return nil
		},
	}
}
