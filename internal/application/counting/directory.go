package counting

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	domainCounting "github.com/jbctechsolutions/counttokens/internal/domain/counting"
	domainErrors "github.com/jbctechsolutions/counttokens/internal/domain/errors"
	"github.com/jbctechsolutions/counttokens/internal/infrastructure/logging"
)

// CountDirectory counts every entry under dir whose name matches one of
// opts.Patterns. An entry that fails to count, such as a matching
// directory, becomes a failed entry; the remaining files are still counted. Entries keep enumeration order:
// pattern by pattern, then lexical path order.
func (e *Engine) CountDirectory(ctx context.Context, dir string, opts domainCounting.Options) (domainCounting.Result, error) {
	opts = opts.WithDefaults()
	start := time.Now()

	paths, err := MatchFiles(dir, opts.Patterns, opts.Recursive)
	if err != nil {
		return domainCounting.Result{}, err
	}

	entries := make([]domainCounting.Entry, len(paths))
	countOne := func(ctx context.Context, i int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		entries[i] = e.countEntry(ctx, paths[i], opts)
		return nil
	}

	if opts.Workers > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.Workers)
		for i := range paths {
			i := i
			g.Go(func() error { return countOne(gctx, i) })
		}
		if err := g.Wait(); err != nil {
			return domainCounting.Result{}, err
		}
	} else {
		for i := range paths {
			if err := countOne(ctx, i); err != nil {
				return domainCounting.Result{}, err
			}
		}
	}

	result := domainCounting.NewDirectoryResult()
	for i, path := range paths {
		result.Set(path, entries[i])
	}

	tokens, files := result.Total()
	e.logger.DebugContext(ctx, "directory counted",
		"directory", dir,
		"files", files,
		"failed", result.Failures(),
		"total_tokens", tokens,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// countEntry counts one file, turning any error into a failed entry.
func (e *Engine) countEntry(ctx context.Context, path string, opts domainCounting.Options) domainCounting.Entry {
	var (
		tokens int
		err    error
	)
	if opts.Streaming {
		tokens, err = e.CountLargeFile(ctx, path, opts)
	} else {
		tokens, err = e.CountFile(ctx, path, opts)
	}
	if err != nil {
		logging.LogFileFailed(ctx, e.logger, path, err)
		return domainCounting.Failed(err)
	}
	return domainCounting.Counted(tokens)
}

// MatchFiles lists the entries under dir whose base name matches any
// pattern, in pattern order. Patterns use filepath.Match syntax; a leading
// "*" matches dot names too. Recursive matching descends into every
// subdirectory, hidden ones included. Matching directories and dangling
// symlinks are listed so that counting them reports an error entry. A path
// matched by several patterns is listed once, at its first match.
func MatchFiles(dir string, patterns []string, recursive bool) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, domainErrors.IOError(dir, err)
	}
	if !info.IsDir() {
		return nil, domainErrors.WithContext(
			domainErrors.NewError(domainErrors.CodeValidation, "not a directory", nil),
			"path", dir)
	}

	for _, p := range patterns {
		if _, err := filepath.Match(p, ""); err != nil {
			return nil, domainErrors.WithContext(
				domainErrors.NewError(domainErrors.CodeValidation, "invalid file pattern", err),
				"pattern", p)
		}
	}

	candidates, err := listFiles(dir, recursive)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var matched []string
	for _, p := range patterns {
		for _, path := range candidates {
			if seen[path] {
				continue
			}
			if ok, _ := filepath.Match(p, filepath.Base(path)); !ok {
				continue
			}
			seen[path] = true
			matched = append(matched, path)
		}
	}
	return matched, nil
}

// listFiles returns the entries directly in dir, or every entry below it
// when recursive is set, in lexical order.
func listFiles(dir string, recursive bool) ([]string, error) {
	var files []string

	if !recursive {
		des, err := os.ReadDir(dir)
		if err != nil {
			return nil, domainErrors.IOError(dir, err)
		}
		for _, d := range des {
			path := filepath.Join(dir, d.Name())
			if countable(path, d) {
				files = append(files, path)
			}
		}
		return files, nil
	}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			// Unreadable subdirectories are skipped.
			return nil
		}
		if path == dir {
			return nil
		}
		if countable(path, d) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, domainErrors.IOError(dir, err)
	}
	return files, nil
}

// countable reports whether an entry is offered to the patterns: regular
// files, directories and symlinks, dangling ones included. Devices, pipes
// and sockets are left out since reading them can block.
func countable(path string, d fs.DirEntry) bool {
	mode := d.Type()
	if mode&fs.ModeSymlink != 0 {
		info, err := os.Stat(path)
		if err != nil {
			return true
		}
		mode = info.Mode().Type()
	}
	return mode.IsRegular() || mode.IsDir()
}

// MatchesAny reports whether the base name of path matches one of patterns
// under the same rules as MatchFiles.
func MatchesAny(patterns []string, path string) bool {
	name := filepath.Base(path)
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}
