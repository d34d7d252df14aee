package counting

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	domainCounting "github.com/jbctechsolutions/counttokens/internal/domain/counting"
	domainErrors "github.com/jbctechsolutions/counttokens/internal/domain/errors"
	"github.com/jbctechsolutions/counttokens/internal/infrastructure/testutil"
)

// newTree creates a small directory tree and returns its root.
func newTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "a.txt", "one two three")
	testutil.WriteFile(t, dir, "b.md", "# title\n")
	testutil.WriteFile(t, dir, "c.py", "print('hi')\n")
	testutil.WriteFile(t, dir, "ignored.go", "package main")
	testutil.WriteFile(t, dir, ".hidden.txt", "secret")
	testutil.WriteFile(t, dir, filepath.Join("sub", "d.txt"), "four five")
	testutil.WriteFile(t, dir, filepath.Join("sub", "deeper", "e.txt"), "six")
	testutil.WriteFile(t, dir, filepath.Join(".git", "f.txt"), "seven")
	return dir
}

func paths(r domainCounting.Result) []string {
	var out []string
	for _, fe := range r.Entries() {
		out = append(out, fe.Path)
	}
	return out
}

func TestMatchFiles(t *testing.T) {
	dir := newTree(t)

	tests := []struct {
		name      string
		patterns  []string
		recursive bool
		want      []string
	}{
		{
			name:     "top level defaults",
			patterns: domainCounting.DefaultPatterns(),
			want:     []string{".hidden.txt", "a.txt", "c.py", "b.md"},
		},
		{
			name:      "recursive",
			patterns:  []string{"*.txt"},
			recursive: true,
			want:      []string{".git/f.txt", ".hidden.txt", "a.txt", "sub/d.txt", "sub/deeper/e.txt"},
		},
		{
			name:     "overlapping patterns listed once",
			patterns: []string{"*.txt", "a.*", "*"},
			want:     []string{".hidden.txt", "a.txt", ".git", "b.md", "c.py", "ignored.go", "sub"},
		},
		{
			name:     "explicit dot pattern",
			patterns: []string{".*.txt"},
			want:     []string{".hidden.txt"},
		},
		{
			name:     "directory names match",
			patterns: []string{"su*"},
			want:     []string{"sub"},
		},
		{
			name:     "no matches",
			patterns: []string{"*.rs"},
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MatchFiles(dir, tt.patterns, tt.recursive)
			testutil.AssertNoError(t, err)

			var want []string
			for _, w := range tt.want {
				want = append(want, filepath.Join(dir, w))
			}
			if strings.Join(got, ",") != strings.Join(want, ",") {
				t.Errorf("got %v, want %v", got, want)
			}
		})
	}
}

func TestMatchFiles_Errors(t *testing.T) {
	dir := newTree(t)

	_, err := MatchFiles(filepath.Join(dir, "missing"), []string{"*.txt"}, false)
	testutil.AssertEqual(t, domainErrors.CodeOf(err), domainErrors.CodeNotFound)

	_, err = MatchFiles(filepath.Join(dir, "a.txt"), []string{"*.txt"}, false)
	testutil.AssertEqual(t, domainErrors.CodeOf(err), domainErrors.CodeValidation)

	_, err = MatchFiles(dir, []string{"[a-"}, false)
	testutil.AssertEqual(t, domainErrors.CodeOf(err), domainErrors.CodeValidation)
}

func TestMatchFiles_DirectoriesAndSymlinks(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "real.txt", "x")
	if err := os.Mkdir(filepath.Join(dir, "folder.txt"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(dir, "real.txt"), filepath.Join(dir, "link.txt")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	if err := os.Symlink(filepath.Join(dir, "gone"), filepath.Join(dir, "dangling.txt")); err != nil {
		t.Fatal(err)
	}

	got, err := MatchFiles(dir, []string{"*.txt"}, false)
	testutil.AssertNoError(t, err)
	var want []string
	for _, name := range []string{"dangling.txt", "folder.txt", "link.txt", "real.txt"} {
		want = append(want, filepath.Join(dir, name))
	}
	testutil.AssertEqual(t, strings.Join(got, ","), strings.Join(want, ","))
}

func TestEngine_CountDirectory(t *testing.T) {
	engine, _ := newTestEngine(t)
	dir := newTree(t)

	opts := domainCounting.DefaultOptions()
	opts.Patterns = []string{"*.txt"}
	opts.Recursive = true

	result, err := engine.CountDirectory(context.Background(), dir, opts)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, result.Kind, domainCounting.ResultDirectory)

	entries := result.Entries()
	testutil.AssertEqual(t, len(entries), 5)
	want := []int{1, 1, 3, 2, 1}
	for i, fe := range entries {
		if !fe.Entry.OK() || fe.Entry.Outcome.Tokens != want[i] {
			t.Errorf("%s: got %+v, want %d tokens", fe.Path, fe.Entry, want[i])
		}
	}

	tokens, files := result.Total()
	testutil.AssertEqual(t, tokens, 8)
	testutil.AssertEqual(t, files, 5)
}

func TestEngine_CountDirectory_HiddenEntries(t *testing.T) {
	engine, _ := newTestEngine(t)
	dir := t.TempDir()
	testutil.WriteFile(t, dir, ".n.txt", "dot")
	testutil.WriteFile(t, dir, "z.txt", "zed")
	testutil.WriteFile(t, dir, filepath.Join(".hid", "x.txt"), "ex")

	opts := domainCounting.DefaultOptions()
	opts.Patterns = []string{"*.txt"}
	opts.Recursive = true

	result, err := engine.CountDirectory(context.Background(), dir, opts)
	testutil.AssertNoError(t, err)

	want := []string{
		filepath.Join(dir, ".hid", "x.txt"),
		filepath.Join(dir, ".n.txt"),
		filepath.Join(dir, "z.txt"),
	}
	testutil.AssertEqual(t, strings.Join(paths(result), ","), strings.Join(want, ","))
	testutil.AssertEqual(t, result.Failures(), 0)
}

func TestEngine_CountDirectory_UnreadableMatches(t *testing.T) {
	for _, streaming := range []bool{false, true} {
		t.Run(fmt.Sprintf("streaming=%v", streaming), func(t *testing.T) {
			engine, _ := newTestEngine(t)
			dir := t.TempDir()
			testutil.WriteFile(t, dir, "a.txt", "one two")
			if err := os.Mkdir(filepath.Join(dir, "notes.txt"), 0o755); err != nil {
				t.Fatal(err)
			}
			if err := os.Symlink(filepath.Join(dir, "gone"), filepath.Join(dir, "broken.txt")); err != nil {
				t.Skipf("symlinks unsupported: %v", err)
			}

			opts := domainCounting.DefaultOptions()
			opts.Patterns = []string{"*.txt"}
			opts.Streaming = streaming
			result, err := engine.CountDirectory(context.Background(), dir, opts)
			testutil.AssertNoError(t, err)

			entries := result.Entries()
			testutil.AssertEqual(t, len(entries), 3)
			codes := map[string]domainErrors.ErrorCode{
				"broken.txt": domainErrors.CodeNotFound,
				"notes.txt":  domainErrors.CodeIO,
			}
			for _, fe := range entries {
				name := filepath.Base(fe.Path)
				code, bad := codes[name]
				if !bad {
					testutil.AssertEqual(t, fe.Entry.Outcome.Tokens, 2)
					continue
				}
				if fe.Entry.OK() {
					t.Fatalf("%s: expected a failed entry", name)
				}
				if !strings.HasPrefix(fe.Entry.Message, "Error: ["+string(code)+"]") {
					t.Errorf("%s: message %q, want code %s", name, fe.Entry.Message, code)
				}
			}
		})
	}
}

func TestEngine_CountDirectory_IsolatesFailures(t *testing.T) {
	for _, streaming := range []bool{false, true} {
		name := "whole file"
		if streaming {
			name = "streaming"
		}
		t.Run(name, func(t *testing.T) {
			engine, _ := newTestEngine(t)
			dir := t.TempDir()
			testutil.WriteFile(t, dir, "file1.txt", "This is file 1.")
			testutil.WriteFile(t, dir, "file2.txt", "This is file 2.")
			testutil.WriteFile(t, dir, "file3.txt", "This is file 3.")
			bad := testutil.WriteFile(t, dir, "file4.txt", "unreadable")
			if streaming {
				// Streaming recovers from decode faults, so use an unopenable file.
				if err := os.Chmod(bad, 0o000); err != nil {
					t.Fatal(err)
				}
				if f, err := os.Open(bad); err == nil {
					f.Close()
					t.Skip("running with permissions that ignore file modes")
				}
			} else {
				testutil.WriteBytes(t, dir, "file4.txt", []byte("bad \xff\xfe bytes"))
			}

			opts := domainCounting.DefaultOptions()
			opts.Streaming = streaming
			result, err := engine.CountDirectory(context.Background(), dir, opts)
			testutil.AssertNoError(t, err)

			entries := result.Entries()
			testutil.AssertEqual(t, len(entries), 4)

			failed := 0
			for _, fe := range entries {
				if fe.Entry.OK() {
					testutil.AssertEqual(t, fe.Entry.Outcome.Tokens, 4)
					continue
				}
				failed++
				if !strings.HasPrefix(fe.Entry.Message, "Error:") {
					t.Errorf("failure message %q must start with Error:", fe.Entry.Message)
				}
				testutil.AssertEqual(t, fe.Path, bad)
			}
			testutil.AssertEqual(t, failed, 1)
		})
	}
}

func TestEngine_CountDirectory_UnknownEncodingPerFile(t *testing.T) {
	engine, _ := newTestEngine(t)
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "a.txt", "text")

	opts := domainCounting.DefaultOptions()
	opts.Encoding = "invalid_encoding"
	result, err := engine.CountDirectory(context.Background(), dir, opts)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, result.Failures(), 1)
}

func TestEngine_CountDirectory_WorkersKeepOrder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"e.txt", "a.txt", "d.txt", "b.txt", "c.txt", "f.txt", "g.txt", "h.txt"} {
		testutil.WriteFile(t, dir, name, strings.Repeat("w ", len(name)+int(name[0]-'a')))
	}

	serialEngine, _ := newTestEngine(t)
	serial, err := serialEngine.CountDirectory(context.Background(), dir, domainCounting.DefaultOptions())
	testutil.AssertNoError(t, err)

	parallelEngine, _ := newTestEngine(t)
	opts := domainCounting.DefaultOptions()
	opts.Workers = 4
	parallel, err := parallelEngine.CountDirectory(context.Background(), dir, opts)
	testutil.AssertNoError(t, err)

	testutil.AssertEqual(t, strings.Join(paths(parallel), ","), strings.Join(paths(serial), ","))
	se, pe := serial.Entries(), parallel.Entries()
	for i := range se {
		testutil.AssertEqual(t, pe[i].Entry.Outcome.Tokens, se[i].Entry.Outcome.Tokens)
	}
}

func TestEngine_CountDirectory_Empty(t *testing.T) {
	engine, _ := newTestEngine(t)
	result, err := engine.CountDirectory(context.Background(), t.TempDir(), domainCounting.DefaultOptions())
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, len(result.Entries()), 0)
}

func TestEngine_CountDirectory_Cancelled(t *testing.T) {
	engine, _ := newTestEngine(t)
	dir := newTree(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, workers := range []int{1, 3} {
		opts := domainCounting.DefaultOptions()
		opts.Workers = workers
		_, err := engine.CountDirectory(ctx, dir, opts)
		testutil.AssertErrorIs(t, err, context.Canceled)
	}
}

func TestMatchesAny(t *testing.T) {
	patterns := []string{"*.txt", ".env*"}
	tests := []struct {
		path string
		want bool
	}{
		{"docs/a.txt", true},
		{"docs/a.md", false},
		{"docs/.hidden.txt", true},
		{"docs/.envrc", true},
	}
	for _, tt := range tests {
		if got := MatchesAny(patterns, tt.path); got != tt.want {
			t.Errorf("MatchesAny(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
