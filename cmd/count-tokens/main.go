// count-tokens CLI entry point
//
// count-tokens counts the tokens a tiktoken encoding produces for files,
// directories and strings, or approximates them from words or characters.
package main

import "github.com/jbctechsolutions/counttokens/internal/presentation/cli/commands"

func main() {
	commands.Execute()
}
