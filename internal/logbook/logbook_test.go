package logbook

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestTailReturnsRecentLinesAndTotal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "kiln.log")
	book, err := New(path)
	if err != nil {
		t.Fatalf("new logbook: %v", err)
	}
	for i := 0; i < 5; i++ {
		book.Info("entry-%d", i)
	}
	lines, total := book.Tail(3)
	if total != 5 {
		t.Fatalf("total lines = %d, want 5", total)
	}
	if len(lines) != 3 {
		t.Fatalf("len(lines) = %d, want 3", len(lines))
	}
	for idx, want := range []string{"entry-2", "entry-3", "entry-4"} {
		if !strings.Contains(lines[idx], want) {
			t.Fatalf("line %d = %q, missing %s", idx, lines[idx], want)
		}
	}
}

func TestEntriesCarryLevelAndMirror(t *testing.T) {
	var mirror bytes.Buffer
	fixed := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	book, err := New(filepath.Join(t.TempDir(), "kiln.log"), WithMirror(&mirror), WithClock(func() time.Time { return fixed }))
	if err != nil {
		t.Fatalf("new logbook: %v", err)
	}
	book.Warn("no chain matches %s", "robots.txt")
	lines, _ := book.Tail(1)
	want := "2026-10-16T09:00:00Z WARN  no chain matches robots.txt"
	if len(lines) != 1 || lines[0] != want {
		t.Fatalf("line = %q, want %q", lines, want)
	}
	if strings.TrimSpace(mirror.String()) != want {
		t.Fatalf("mirror = %q", mirror.String())
	}
}

func TestNilLogbookIsInert(t *testing.T) {
	var book *Logbook
	book.Error("ignored")
	if lines, total := book.Tail(10); lines != nil || total != 0 {
		t.Fatalf("nil logbook returned data")
	}
	if book.Path() != "" {
		t.Fatalf("nil logbook has a path")
	}
}
