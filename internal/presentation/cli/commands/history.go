package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jbctechsolutions/counttokens/internal/application/ports"
	"github.com/jbctechsolutions/counttokens/internal/domain/history"
	"github.com/jbctechsolutions/counttokens/internal/presentation/cli/output"
)

type historyOptions struct {
	limit  int
	mode   string
	since  time.Duration
	runID  string
	asJSON bool
}

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	var opts historyOptions

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded count runs",
		Long: `List count runs recorded in the history database, most recent first.

Runs are recorded when history is enabled in the configuration or when a
count is run with --record. Use --run to show one run and its files.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			container := GetContainer()
			if container == nil || container.HistoryRepository() == nil {
				return fmt.Errorf("history is not available")
			}
			formatter := output.NewFormatter(output.WithWriter(cmd.OutOrStdout()))
			return runHistory(cmd.Context(), formatter, container.HistoryRepository(), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 20, "maximum number of runs to list (0 for all)")
	cmd.Flags().StringVar(&opts.mode, "mode", "", "only list runs of this mode: text, file, directory")
	cmd.Flags().DurationVar(&opts.since, "since", 0, "only list runs started within this duration, e.g. 24h")
	cmd.Flags().StringVar(&opts.runID, "run", "", "show a single run and its files")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print as JSON")

	return cmd
}

// runRow is the JSON shape of a run.
type runRow struct {
	ID            string `json:"id"`
	Mode          string `json:"mode"`
	Target        string `json:"target"`
	Encoding      string `json:"encoding"`
	Approximation string `json:"approximation"`
	Status        string `json:"status"`
	TotalTokens   int    `json:"total_tokens"`
	Files         int    `json:"files"`
	FailedFiles   int    `json:"failed_files"`
	Error         string `json:"error,omitempty"`
	DurationMS    int64  `json:"duration_ms"`
	StartedAt     string `json:"started_at"`
}

type entryRow struct {
	Path          string `json:"path"`
	Tokens        int    `json:"tokens"`
	LimitExceeded bool   `json:"limit_exceeded,omitempty"`
	Error         string `json:"error,omitempty"`
}

func toRunRow(run history.RunRecord) runRow {
	return runRow{
		ID:            run.ID,
		Mode:          run.Mode,
		Target:        run.Target,
		Encoding:      run.Encoding,
		Approximation: run.Approximation,
		Status:        run.Status,
		TotalTokens:   run.TotalTokens,
		Files:         run.Files,
		FailedFiles:   run.FailedFiles,
		Error:         run.ErrorMessage,
		DurationMS:    run.Duration.Milliseconds(),
		StartedAt:     run.StartedAt.Format(time.RFC3339),
	}
}

func runHistory(ctx context.Context, formatter *output.Formatter, repo ports.HistoryStoragePort, opts historyOptions) error {
	if opts.runID != "" {
		return showRun(ctx, formatter, repo, opts)
	}

	filter := history.Filter{Mode: opts.mode, Limit: opts.limit}
	if opts.since > 0 {
		filter.Since = time.Now().Add(-opts.since)
	}

	runs, err := repo.ListRuns(ctx, filter)
	if err != nil {
		return err
	}

	if opts.asJSON {
		rows := make([]runRow, 0, len(runs))
		for _, run := range runs {
			rows = append(rows, toRunRow(run))
		}
		return formatter.JSON(rows)
	}

	if len(runs) == 0 {
		return formatter.Println("No runs recorded")
	}

	data := output.TableData{
		Columns: []output.TableColumn{
			{Header: "ID"},
			{Header: "Started"},
			{Header: "Mode"},
			{Header: "Target"},
			{Header: "Tokens", Align: output.AlignRight},
			{Header: "Files", Align: output.AlignRight},
			{Header: "Status"},
		},
	}
	for _, run := range runs {
		data.Rows = append(data.Rows, []string{
			run.ID,
			run.StartedAt.Local().Format(time.DateTime),
			run.Mode,
			run.Target,
			strconv.Itoa(run.TotalTokens),
			strconv.Itoa(run.Files),
			run.Status,
		})
	}
	return formatter.Table(data)
}

func showRun(ctx context.Context, formatter *output.Formatter, repo ports.HistoryStoragePort, opts historyOptions) error {
	run, err := repo.GetRun(ctx, opts.runID)
	if err != nil {
		return err
	}
	entries, err := repo.GetEntries(ctx, run.ID)
	if err != nil {
		return err
	}

	if opts.asJSON {
		rows := make([]entryRow, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, entryRow{Path: e.Path, Tokens: e.Tokens, LimitExceeded: e.LimitExceeded, Error: e.Error})
		}
		return formatter.JSON(struct {
			Run     runRow     `json:"run"`
			Entries []entryRow `json:"entries"`
		}{toRunRow(*run), rows})
	}

	_ = formatter.Header("Run " + run.ID)
	_ = formatter.Item("Mode", run.Mode)
	_ = formatter.Item("Target", run.Target)
	_ = formatter.Item("Encoding", run.Encoding)
	_ = formatter.Item("Approximation", run.Approximation)
	_ = formatter.Item("Status", run.Status)
	if run.ErrorMessage != "" {
		_ = formatter.Item("Error", run.ErrorMessage)
	}
	_ = formatter.Item("Total tokens", strconv.Itoa(run.TotalTokens))
	_ = formatter.Item("Duration", run.Duration.String())
	_ = formatter.Item("Started", run.StartedAt.Local().Format(time.DateTime))

	if len(entries) == 0 {
		return nil
	}
	_ = formatter.Println("")

	data := output.TableData{
		Columns: []output.TableColumn{
			{Header: "Path"},
			{Header: "Tokens", Align: output.AlignRight},
			{Header: "Note"},
		},
	}
	for _, e := range entries {
		tokens := strconv.Itoa(e.Tokens)
		note := ""
		switch {
		case e.Error != "":
			tokens = "-"
			note = e.Error
		case e.LimitExceeded:
			note = "exceeds limit"
		}
		data.Rows = append(data.Rows, []string{e.Path, tokens, note})
	}
	return formatter.Table(data)
}
