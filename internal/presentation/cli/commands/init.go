package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jbctechsolutions/counttokens/internal/infrastructure/config"
	"github.com/jbctechsolutions/counttokens/internal/presentation/cli/output"
)

// InitResult holds the result of the init command for JSON output.
type InitResult struct {
	ConfigFile  string `json:"config_file"`
	Initialized bool   `json:"initialized"`
}

type initOptions struct {
	force   bool
	history bool
	asJSON  bool
}

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	var opts initOptions

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Long: `Write the default configuration to ~/.count-tokens/config.yaml, or to the
path given with --config.

The file holds the counting defaults (encoding, approximation ratios, chunk
size, directory patterns), logging, tracing and history settings. Flags given
on the command line always override it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(output.WithWriter(cmd.OutOrStdout()))
			return runInit(formatter, globalFlags.ConfigFile, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.force, "force", "f", false, "overwrite existing configuration")
	cmd.Flags().BoolVar(&opts.history, "history", false, "enable run history in the written configuration")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the result as JSON")

	return cmd
}

func runInit(formatter *output.Formatter, configPath string, opts initOptions) error {
	loader, err := config.NewLoader("")
	if err != nil {
		return err
	}
	if configPath == "" {
		configPath = loader.DefaultConfigPath()
	}

	if _, err := os.Stat(configPath); err == nil && !opts.force {
		if opts.asJSON {
			return formatter.JSON(InitResult{ConfigFile: configPath, Initialized: false})
		}
		_ = formatter.Warning("Configuration already exists at %s", configPath)
		return formatter.Println("Use --force to overwrite existing configuration")
	}

	cfg := config.NewDefaultConfig()
	cfg.History.Enabled = opts.history

	if err := loader.Save(cfg, configPath); err != nil {
		return fmt.Errorf("failed to write configuration: %w", err)
	}

	if opts.asJSON {
		return formatter.JSON(InitResult{ConfigFile: configPath, Initialized: true})
	}
	_ = formatter.Success("Configuration written")
	return formatter.Item("Config file", configPath)
}
