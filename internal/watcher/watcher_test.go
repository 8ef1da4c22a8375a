package watcher

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestPoll_CreateModifyDelete(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "main.tex", "a")
	write(t, dir, "chapters/one.tex", "b")
	write(t, dir, ".git/HEAD", "ref")
	write(t, dir, "output.pdf", "%PDF")

	w := New(dir, time.Hour)
	w.Ignore = func(rel string) bool { return rel == "output.pdf" }

	initial := w.Poll()
	want := []Change{
		{Type: ChangeCreate, Path: "chapters/one.tex"},
		{Type: ChangeCreate, Path: "main.tex"},
	}
	if !reflect.DeepEqual(initial, want) {
		t.Fatalf("initial = %+v, want %+v", initial, want)
	}

	if changes := w.Poll(); len(changes) != 0 {
		t.Errorf("unchanged tree reported %+v", changes)
	}

	future := time.Now().Add(time.Minute)
	if err := os.Chtimes(filepath.Join(dir, "main.tex"), future, future); err != nil {
		t.Fatal(err)
	}
	os.Remove(filepath.Join(dir, "chapters", "one.tex"))
	write(t, dir, "refs.bib", "@book{}")
	write(t, dir, "output.pdf", "%PDF-2")

	want = []Change{
		{Type: ChangeDelete, Path: "chapters/one.tex"},
		{Type: ChangeModify, Path: "main.tex"},
		{Type: ChangeCreate, Path: "refs.bib"},
	}
	if got := w.Poll(); !reflect.DeepEqual(got, want) {
		t.Errorf("changes = %+v, want %+v", got, want)
	}
}

func TestRun_ReportsChangesUntilCanceled(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "main.tex", "a")

	w := New(dir, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan []Change, 10)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(c []Change) { got <- c })
	}()

	// Give Run time to take its initial snapshot.
	time.Sleep(50 * time.Millisecond)
	write(t, dir, "new.tex", "b")

	select {
	case changes := <-got:
		if len(changes) != 1 || changes[0] != (Change{Type: ChangeCreate, Path: "new.tex"}) {
			t.Errorf("changes = %+v", changes)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}
