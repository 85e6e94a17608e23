package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// Mock Implementations
// ---------------------------------------------------------------------------

// mockRunner stands in for Pandoc: it records argv and writes the --output
// file. Calls whose argv contains --to=failWriter fail.
type mockRunner struct {
	mu         sync.Mutex
	calls      [][]string
	failWriter string
}

func (m *mockRunner) Run(ctx context.Context, name string, args ...string) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, append([]string{name}, args...))
	if name == "/usr/bin/pandoc" && slices.Contains(args, "--version") {
		return "pandoc 3.1.11\nFeatures: +server\n", "", nil
	}
	if m.failWriter != "" && slices.Contains(args, "--to="+m.failWriter) {
		return "", "Error producing PDF.\n! LaTeX Error: File `fontspec.sty' not found.", errors.New("exit status 43")
	}
	for _, arg := range args {
		if out, ok := strings.CutPrefix(arg, "--output="); ok {
			if err := os.WriteFile(out, []byte("# Built\n"), 0o600); err != nil {
				return "", "", err
			}
		}
	}
	return "", "", nil
}

func (m *mockRunner) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func pandocOnly(name string) (string, error) {
	if name == "pandoc" {
		return "/usr/bin/pandoc", nil
	}
	return "", exec.ErrNotFound
}

func noTools(string) (string, error) {
	return "", exec.ErrNotFound
}

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

const fixtureChapter = "# One\n\n![Figure](../../assets/img.png)\n"

type testProject struct {
	root    string
	chapter string
}

func newTestProject(t *testing.T) testProject {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fixture uses unix path expectations")
	}

	root, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("resolving temp dir: %v", err)
	}
	p := testProject{root: root, chapter: filepath.Join(root, "manuscript", "chapters", "01-one.md")}
	writeFile(t, p.chapter, fixtureChapter)
	writeFile(t, filepath.Join(root, "manuscript", "chapters", "02-two.md"), "# Two\n\nText.\n")
	writeFile(t, filepath.Join(root, "manuscript", "front-matter", "toc.md"), "- [One](../chapters/01-one.md#one)\n")
	writeFile(t, filepath.Join(root, "assets", "img.png"), "png")
	writeFile(t, filepath.Join(root, "config", "metadata.yaml"), "title: Test Book\nlang: en\n")
	writeFile(t, filepath.Join(root, "pyproject.toml"), "[tool.poetry]\nname = \"testbook\"\n")
	return p
}

func (p testProject) path(parts ...string) string {
	return filepath.Join(append([]string{p.root}, parts...)...)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(data)
}

// testEnv returns an Environment writing to buffers, with the mock runner
// and a lookPath that only knows pandoc.
func testEnv(runner *mockRunner) (*Environment, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	return &Environment{
		Now:      func() time.Time { return time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC) },
		Stdout:   &stdout,
		Stderr:   &stderr,
		LookPath: pandocOnly,
		Runner:   runner,
	}, &stdout, &stderr
}

// run executes args against a fresh command tree.
func run(t *testing.T, env *Environment, args ...string) error {
	t.Helper()
	return execute(context.Background(), args, env)
}
