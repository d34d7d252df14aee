package commands

import (
	"runtime"

	"github.com/spf13/cobra"

	"github.com/jbctechsolutions/counttokens/internal/presentation/cli/output"
)

// VersionInfo holds version information for JSON output.
type VersionInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	var (
		short  bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display the version, build information, and platform details for count-tokens.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(output.WithWriter(cmd.OutOrStdout()))
			return runVersion(formatter, short, asJSON)
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "print only the version number")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print version information as JSON")

	return cmd
}

func runVersion(formatter *output.Formatter, short, asJSON bool) error {
	if short {
		if asJSON {
			return formatter.JSON(map[string]string{"version": Version})
		}
		return formatter.Println("%s", Version)
	}

	info := VersionInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	if asJSON {
		return formatter.JSON(info)
	}

	_ = formatter.Header("count-tokens")
	_ = formatter.Item("Version", info.Version)
	_ = formatter.Item("Git Commit", info.GitCommit)
	_ = formatter.Item("Build Date", info.BuildDate)
	_ = formatter.Item("Go Version", info.GoVersion)
	return formatter.Item("Platform", info.Platform)
}
