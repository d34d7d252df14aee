package output

import (
	"os"
)

// ColorSupported reports whether colored output should be written to f.
// NO_COLOR disables color, FORCE_COLOR enables it, and otherwise f must be a
// terminal with a usable TERM.
func ColorSupported(f *os.File) bool {
	// See https://no-color.org/
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		return false
	}

	if _, exists := os.LookupEnv("FORCE_COLOR"); exists {
		return true
	}

	if f == nil {
		return false
	}
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	if stat.Mode()&os.ModeCharDevice == 0 {
		return false
	}

	term := os.Getenv("TERM")
	return term != "" && term != "dumb"
}
