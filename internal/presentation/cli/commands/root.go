// Package commands implements the CLI commands for count-tokens.
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jbctechsolutions/counttokens/internal/application"
	"github.com/jbctechsolutions/counttokens/internal/infrastructure/config"
	"github.com/jbctechsolutions/counttokens/internal/presentation/cli/output"
)

// Version information - set at build time via ldflags.
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// GlobalFlags holds the global CLI flags.
type GlobalFlags struct {
	ConfigFile string
	Verbose    bool
	Record     bool
}

// AppContext holds the application runtime context.
type AppContext struct {
	Config    *config.Config
	Formatter *output.Formatter // diagnostics on stderr
	Flags     *GlobalFlags
	Container *application.Container
}

var (
	globalFlags GlobalFlags
	appCtx      *AppContext
	appCtxMu    sync.RWMutex // Protects appCtx for thread-safe access
)

// skipInit lists commands that run without loading config or opening history.
var skipInit = map[string]bool{
	"help":       true,
	"version":    true,
	"completion": true,
	"init":       true,
	"encodings":  true,
}

// NewRootCmd creates the root command for the count-tokens CLI.
func NewRootCmd() *cobra.Command {
	flags := &countFlags{}

	rootCmd := &cobra.Command{
		Use:   "count-tokens [file]",
		Short: "Count the number of tokens in text files",
		Long: `count-tokens counts the tokens a tiktoken encoding produces for a file,
a directory of files, or a literal string.

Counts can also be approximated without tokenizing, from the number of words
(-a w) or characters (-a c). Large files can be streamed in line-aligned
chunks with --stream.

Pass - as the file to read from standard input.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if skipInit[cmd.Name()] {
				return nil
			}
			return initializeApp(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCount(cmd, args, flags)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&globalFlags.ConfigFile, "config", "", "config file path (default: ~/.count-tokens/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "enable debug logging on stderr")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.Record, "record", false, "record runs in the history database")

	bindCountFlags(rootCmd, flags)

	rootCmd.AddCommand(NewVersionCmd())
	rootCmd.AddCommand(NewInitCmd())
	rootCmd.AddCommand(NewHistoryCmd())
	rootCmd.AddCommand(NewEncodingsCmd())

	return rootCmd
}

// initializeApp loads configuration and builds the application container.
func initializeApp(cmd *cobra.Command) error {
	formatter := output.NewFormatter(
		output.WithWriter(cmd.ErrOrStderr()),
		output.WithColor(output.ColorSupported(os.Stderr)),
	)

	cfg, err := loadConfig(globalFlags.ConfigFile)
	if err != nil {
		return err
	}

	// Recording can be switched on per run; reading history needs the store.
	if globalFlags.Record || cmd.Name() == "history" {
		cfg.History.Enabled = true
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	container, err := application.NewContainer(cfg, globalFlags.Verbose,
		application.WithLogOutput(cmd.ErrOrStderr()))
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	appCtxMu.Lock()
	if appCtx != nil && appCtx.Container != nil {
		_ = appCtx.Container.Close()
	}
	appCtx = &AppContext{
		Config:    cfg,
		Formatter: formatter,
		Flags:     &globalFlags,
		Container: container,
	}
	appCtxMu.Unlock()

	return nil
}

// loadConfig loads configuration from the specified file or default location.
// An explicit path must exist; the default path falls back to defaults.
func loadConfig(configPath string) (*config.Config, error) {
	loader, err := config.NewLoader("")
	if err != nil {
		return nil, fmt.Errorf("failed to create config loader: %w", err)
	}

	if configPath != "" {
		return loader.LoadFromFile(configPath)
	}
	return loader.Load("")
}

// GetAppContext returns the current application context.
// Returns nil if the app hasn't been initialized.
func GetAppContext() *AppContext {
	appCtxMu.RLock()
	defer appCtxMu.RUnlock()
	return appCtx
}

// GetFormatter returns the diagnostics formatter.
// Creates a stderr formatter if app context is not initialized.
func GetFormatter() *output.Formatter {
	appCtxMu.RLock()
	ctx := appCtx
	appCtxMu.RUnlock()

	if ctx != nil {
		return ctx.Formatter
	}
	return output.NewFormatter(
		output.WithWriter(os.Stderr),
		output.WithColor(output.ColorSupported(os.Stderr)),
	)
}

// GetContainer returns the application container.
// Returns nil if the app hasn't been initialized.
func GetContainer() *application.Container {
	appCtxMu.RLock()
	ctx := appCtx
	appCtxMu.RUnlock()

	if ctx != nil {
		return ctx.Container
	}
	return nil
}

// Shutdown releases the application container.
func Shutdown() {
	appCtxMu.Lock()
	defer appCtxMu.Unlock()

	if appCtx != nil && appCtx.Container != nil {
		_ = appCtx.Container.Close()
	}
	appCtx = nil
}

// Execute runs the root command with graceful shutdown support.
func Execute() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Run command in a goroutine
	errChan := make(chan error, 1)
	go func() {
		rootCmd := NewRootCmd()
		errChan <- rootCmd.ExecuteContext(ctx)
	}()

	// Wait for either command completion or signal
	select {
	case err := <-errChan:
		if err != nil {
			_ = GetFormatter().Error("%s", err.Error())
			Shutdown()
			os.Exit(1)
		}
	case <-sigChan:
		cancel()
		Shutdown()
		os.Exit(130) // Standard exit code for SIGINT
	}

	Shutdown()
}
