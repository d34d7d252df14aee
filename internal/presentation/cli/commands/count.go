package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	appCounting "github.com/jbctechsolutions/counttokens/internal/application/counting"
	appWatch "github.com/jbctechsolutions/counttokens/internal/application/watch"
	domainCounting "github.com/jbctechsolutions/counttokens/internal/domain/counting"
	domainErrors "github.com/jbctechsolutions/counttokens/internal/domain/errors"
	"github.com/jbctechsolutions/counttokens/internal/domain/tokenizer"
	"github.com/jbctechsolutions/counttokens/internal/infrastructure/config"
	"github.com/jbctechsolutions/counttokens/internal/presentation/cli/output"
)

// stdinArg is the file argument that reads standard input.
const stdinArg = "-"

// countFlags holds the flags of the root count command.
type countFlags struct {
	quiet              bool
	encoding           string
	approx             string
	directory          string
	recursive          bool
	pattern            string
	format             string
	stream             bool
	chunkSize          int
	maxTokens          int
	tokensPerWord      float64
	charactersPerToken float64
	text               string
	workers            int
	watch              bool
}

func bindCountFlags(cmd *cobra.Command, f *countFlags) {
	flags := cmd.Flags()

	flags.BoolVarP(&f.quiet, "quiet", "q", false, "print only the number of tokens")
	flags.StringVarP(&f.encoding, "encoding", "e", tokenizer.DefaultEncoding, "encoding to use")
	flags.StringVarP(&f.approx, "approx", "a", "", "approximate the number of tokens without tokenizing, based on: w - words, c - characters")

	flags.StringVarP(&f.directory, "directory", "d", "", "process all matching files in directory")
	flags.BoolVarP(&f.recursive, "recursive", "r", false, "process directories recursively")
	flags.StringVarP(&f.pattern, "pattern", "p", config.DefaultPattern, "file pattern when using directory mode (comma-separated)")
	flags.IntVar(&f.workers, "workers", 1, "files counted concurrently in directory mode")

	flags.StringVar(&f.format, "format", string(output.FormatText), "output format: text, json, csv")

	flags.BoolVar(&f.stream, "stream", false, "use streaming mode for large files")
	flags.IntVar(&f.chunkSize, "chunk-size", domainCounting.DefaultChunkSize, "chunk size for streaming mode (characters)")

	flags.IntVar(&f.maxTokens, "max-tokens", 0, "flag counts that exceed this limit")

	flags.Float64Var(&f.tokensPerWord, "tokens-per-word", domainCounting.DefaultTokensPerWord, "tokens per word for word-based approximation")
	flags.Float64Var(&f.charactersPerToken, "characters-per-token", domainCounting.DefaultCharactersPerToken, "characters per token for character-based approximation")

	flags.StringVar(&f.text, "text", "", "count a literal string instead of a file")
	flags.BoolVarP(&f.watch, "watch", "w", false, "recount whenever the file or directory changes")
}

// runCount is the root command: it counts the selected input and renders it.
func runCount(cmd *cobra.Command, args []string, f *countFlags) error {
	in, err := buildInput(cmd, args, f)
	if err != nil {
		return err
	}
	if in.Mode() == "" {
		return cmd.Help()
	}

	format, err := output.ParseFormat(f.format)
	if err != nil {
		return domainErrors.NewError(domainErrors.CodeValidation, err.Error(), nil)
	}

	app := GetAppContext()
	if app == nil {
		return fmt.Errorf("application not initialized")
	}

	opts, err := buildOptions(cmd, f, app.Config)
	if err != nil {
		return err
	}

	formatter := output.NewFormatter(
		output.WithWriter(cmd.OutOrStdout()),
		output.WithFormat(format),
	)
	view := output.View{
		Quiet:         f.quiet,
		Encoding:      opts.Encoding,
		Approximation: opts.Approximation,
		Ratios:        opts.Ratios,
	}
	if in.Mode() == "file" {
		view.Path = in.File
	}

	if f.watch {
		return watchCount(cmd.Context(), app, in, opts, formatter, view)
	}

	result, err := app.Container.Count(cmd.Context(), in, opts)
	if err != nil {
		return err
	}
	return formatter.Result(result, view)
}

// buildInput picks the input in precedence order: --text, then --directory,
// then the file argument. A file argument of "-" reads standard input as text.
func buildInput(cmd *cobra.Command, args []string, f *countFlags) (appCounting.Input, error) {
	var in appCounting.Input

	switch {
	case cmd.Flags().Changed("text"):
		text := f.text
		in.Text = &text
	case f.directory != "":
		in.Directory = f.directory
	case len(args) > 0 && args[0] == stdinArg:
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return in, domainErrors.IOError("<stdin>", err)
		}
		text := string(data)
		in.Text = &text
	case len(args) > 0:
		in.File = args[0]
	}
	return in, nil
}

// buildOptions starts from the configured counting defaults and applies
// every flag the user set explicitly.
func buildOptions(cmd *cobra.Command, f *countFlags, cfg *config.Config) (domainCounting.Options, error) {
	opts := cfg.Counting.Options()
	flags := cmd.Flags()

	// Unknown methods fall back to an exact count.
	approx, err := domainCounting.ParseApproximation(f.approx)
	if err != nil {
		_ = GetFormatter().Warning("unknown approximation method %q, counting exactly", f.approx)
	}
	opts.Approximation = approx

	if flags.Changed("encoding") {
		opts.Encoding = f.encoding
	}
	if flags.Changed("tokens-per-word") {
		opts.Ratios.TokensPerWord = f.tokensPerWord
	}
	if flags.Changed("characters-per-token") {
		opts.Ratios.CharactersPerToken = f.charactersPerToken
	}
	if flags.Changed("pattern") {
		opts.Patterns = splitPatterns(f.pattern)
	}
	if flags.Changed("recursive") {
		opts.Recursive = f.recursive
	}
	if flags.Changed("workers") {
		if f.workers < 1 {
			return opts, domainErrors.NewError(domainErrors.CodeValidation, "--workers must be at least 1", nil)
		}
		opts.Workers = f.workers
	}
	if flags.Changed("chunk-size") {
		opts.ChunkSize = f.chunkSize
		if f.chunkSize < 1 {
			return opts, domainErrors.WithContext(
				domainErrors.NewError(domainErrors.CodeValidation, "--chunk-size must be positive", domainErrors.ErrInvalidChunkSize),
				"chunk_size", f.chunkSize)
		}
	}
	if flags.Changed("max-tokens") {
		opts.MaxTokens = domainCounting.Limit(f.maxTokens)
	}
	opts.Streaming = f.stream

	return opts, nil
}

// splitPatterns splits a comma-separated pattern list, trimming whitespace.
func splitPatterns(s string) []string {
	parts := strings.Split(s, ",")
	patterns := make([]string, 0, len(parts))
	for _, p := range parts {
		patterns = append(patterns, strings.TrimSpace(p))
	}
	return patterns
}

// watchCount renders the input once and again after every change until ctx ends.
func watchCount(ctx context.Context, app *AppContext, in appCounting.Input, opts domainCounting.Options, formatter *output.Formatter, view output.View) error {
	svc, err := appWatch.NewService(appWatch.ServiceConfig{
		Input:   in,
		Options: opts,
		Count: func(ctx context.Context) (domainCounting.Result, error) {
			return app.Container.Count(ctx, in, opts)
		},
		OnUpdate: func(u appWatch.Update) {
			if u.Trigger != "" {
				_ = app.Formatter.Println("%s", app.Formatter.Colorize(
					fmt.Sprintf("[%s] %s changed", time.Now().Format(time.TimeOnly), u.Trigger), output.ColorDim))
			}
			if u.Err != nil {
				_ = app.Formatter.Error("%s", u.Err.Error())
				return
			}
			if err := formatter.Result(u.Result, view); err != nil {
				_ = app.Formatter.Error("%s", err.Error())
			}
		},
		Logger: app.Container.Logger(),
	})
	if err != nil {
		return domainErrors.NewError(domainErrors.CodeValidation, err.Error(), err)
	}

	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	<-ctx.Done()
	return nil
}
