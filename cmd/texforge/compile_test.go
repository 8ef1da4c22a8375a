package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/texforge/texforge/internal/compile"
	"github.com/texforge/texforge/internal/logging"
	"github.com/texforge/texforge/internal/watcher"
	"github.com/texforge/texforge/internal/workspace"
)

func TestOutputIgnore(t *testing.T) {
	root := t.TempDir()

	if outputIgnore(root, "") != nil {
		t.Error("no output should ignore nothing")
	}
	if outputIgnore(root, filepath.Join(t.TempDir(), "out.pdf")) != nil {
		t.Error("output outside the project should ignore nothing")
	}

	ignore := outputIgnore(root, filepath.Join(root, "build", "thesis.pdf"))
	if ignore == nil {
		t.Fatal("expected an ignore func")
	}
	for path, want := range map[string]bool{
		"build/thesis.pdf":      true,
		"build/thesis.pdf.part": true,
		"main.tex":              false,
		"build/other.pdf":       false,
	} {
		if got := ignore(path); got != want {
			t.Errorf("ignore(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestApplyChanges(t *testing.T) {
	root := t.TempDir()
	for name, content := range map[string]string{
		"main.tex":  "old main",
		"ch1.tex":   "old ch1",
		"gone.tex":  "bye",
		"other.tex": "not open",
	} {
		if err := os.WriteFile(filepath.Join(root, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	ws := workspace.New(root)
	for _, p := range []string{"main.tex", "ch1.tex", "gone.tex"} {
		if err := ws.OpenFile(p); err != nil {
			t.Fatal(err)
		}
	}
	if err := ws.Edit("ch1.tex", "unsaved ch1"); err != nil {
		t.Fatal(err)
	}

	os.WriteFile(filepath.Join(root, "main.tex"), []byte("new main"), 0644)
	os.WriteFile(filepath.Join(root, "ch1.tex"), []byte("new ch1"), 0644)
	os.Remove(filepath.Join(root, "gone.tex"))

	applyChanges(ws, []watcher.Change{
		{Type: watcher.ChangeModify, Path: "main.tex"},
		{Type: watcher.ChangeModify, Path: "ch1.tex"},
		{Type: watcher.ChangeDelete, Path: "gone.tex"},
		{Type: watcher.ChangeModify, Path: "other.tex"},
	})

	if doc, _ := ws.Document("main.tex"); doc.Content != "new main" {
		t.Errorf("main.tex = %q, want reloaded content", doc.Content)
	}
	if doc, _ := ws.Document("ch1.tex"); doc.Content != "unsaved ch1" || !doc.Dirty {
		t.Errorf("dirty ch1.tex was overwritten: %+v", doc)
	}
	if _, ok := ws.Document("gone.tex"); ok {
		t.Error("deleted document should be closed")
	}
	if _, ok := ws.Document("other.tex"); ok {
		t.Error("a change must not open a document")
	}
}

func TestLogWatchError(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logging.SetLogger(zap.New(core))
	defer logging.SetLogger(zap.NewNop())

	logWatchError(nil)
	logWatchError(&reportedError{err: errors.New("already shown")})
	logWatchError(compile.ErrCompileInProgress)
	logWatchError(fmt.Errorf("download output: %w", errors.New("connection reset")))

	errorsLogged := logs.FilterLevelExact(zapcore.ErrorLevel).All()
	if len(errorsLogged) != 1 {
		t.Fatalf("error entries = %d, want 1", len(errorsLogged))
	}
	if got := errorsLogged[0].ContextMap()["error"]; got != "download output: connection reset" {
		t.Errorf("logged error = %v", got)
	}
	if logs.FilterLevelExact(zapcore.DebugLevel).Len() != 1 {
		t.Error("in-flight skip should be logged at debug")
	}
}
