package commands

import (
	"github.com/spf13/cobra"

	"github.com/jbctechsolutions/counttokens/internal/domain/tokenizer"
	infraTokenizer "github.com/jbctechsolutions/counttokens/internal/infrastructure/tokenizer"
	"github.com/jbctechsolutions/counttokens/internal/presentation/cli/output"
)

// NewEncodingsCmd creates the encodings command.
func NewEncodingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encodings",
		Short: "List the supported encodings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(output.WithWriter(cmd.OutOrStdout()))
			for _, name := range infraTokenizer.Encodings {
				line := name
				if name == tokenizer.DefaultEncoding {
					line += " (default)"
				}
				if err := formatter.Println("%s", line); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
