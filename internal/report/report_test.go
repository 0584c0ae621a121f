package report

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/deixis/candy/internal/config"
)

func record(id string, started time.Time) *Record {
	rec := NewRecord(id, "cargo build", "/work")
	rec.Kind = Complete
	rec.Stdout = []string{"Compiling candy", "Finished dev"}
	rec.Stderr = []string{"warning: unused variable", "error: oops"}
	rec.Started = started
	rec.Duration = 1500 * time.Millisecond
	return rec
}

// exerciseStore runs the behaviour every Store implementation shares.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i := range 3 {
		if err := s.Save(record(fmt.Sprintf("run-%d", i), base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	got, err := s.Load("run-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Command != "cargo build" || got.Dir != "/work" || got.Kind != Complete {
		t.Errorf("Load = %+v, want the saved record", got)
	}
	if len(got.Stderr) != 2 || got.Stderr[1] != "error: oops" {
		t.Errorf("Stderr = %q, want the saved lines", got.Stderr)
	}
	if !got.Started.Equal(base.Add(time.Minute)) {
		t.Errorf("Started = %v, want %v", got.Started, base.Add(time.Minute))
	}
	if got.Duration != 1500*time.Millisecond {
		t.Errorf("Duration = %v, want 1.5s", got.Duration)
	}

	if _, err := s.Load("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load(missing) err = %v, want ErrNotFound", err)
	}

	list, err := s.List(2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].ID != "run-2" || list[1].ID != "run-1" {
		var ids []string
		for _, r := range list {
			ids = append(ids, r.ID)
		}
		t.Errorf("List(2) = %v, want [run-2 run-1]", ids)
	}
	all, err := s.List(0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("len(List(0)) = %d, want 3", len(all))
	}
}

func TestDiskStore(t *testing.T) {
	exerciseStore(t, NewDiskStore(filepath.Join(t.TempDir(), "nested", "runs")))
}

func TestDiskStore_RejectsPathIDs(t *testing.T) {
	s := NewDiskStore(t.TempDir())
	if _, err := s.Load("../etc/passwd"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStore(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	exerciseStore(t, s)
}

func TestSQLiteStore_Replace(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	rec := record("same", time.Now())
	if err := s.Save(rec); err != nil {
		t.Fatal(err)
	}
	rec.Kind = Failed
	rec.ExitCode = 101
	if err := s.Save(rec); err != nil {
		t.Fatal(err)
	}
	got, err := s.Load("same")
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind != Failed || got.ExitCode != 101 {
		t.Errorf("Load = %s/%d, want failed/101", got.Kind, got.ExitCode)
	}
}

func TestLRUStore_Memory(t *testing.T) {
	exerciseStore(t, NewLRUStore(5, nil))
}

func TestLRUStore_Evicts(t *testing.T) {
	s := NewLRUStore(2, nil)
	now := time.Now()
	for _, id := range []string{"a", "b", "c"} {
		if err := s.Save(record(id, now)); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.Load("a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load(a) err = %v, want ErrNotFound after eviction", err)
	}
	if _, err := s.Load("c"); err != nil {
		t.Errorf("Load(c): %v", err)
	}
}

func TestLRUStore_FallsBackToBackingStore(t *testing.T) {
	back := NewDiskStore(t.TempDir())
	s := NewLRUStore(1, back)
	now := time.Now()
	if err := s.Save(record("first", now)); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(record("second", now)); err != nil {
		t.Fatal(err)
	}
	got, err := s.Load("first")
	if err != nil {
		t.Fatalf("Load(first): %v", err)
	}
	if got.ID != "first" {
		t.Errorf("ID = %q, want first", got.ID)
	}
}

func TestOpen(t *testing.T) {
	for _, kind := range []string{config.StoreMemory, config.StoreDisk, config.StoreSQLite} {
		t.Run(kind, func(t *testing.T) {
			cfg := &config.Config{Store: config.StoreConfig{Kind: kind, Dir: t.TempDir()}}
			s, err := Open(cfg)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			t.Cleanup(func() { s.Close() })
			if err := s.Save(record("x", time.Now())); err != nil {
				t.Fatalf("Save: %v", err)
			}
			if _, err := s.Load("x"); err != nil {
				t.Errorf("Load: %v", err)
			}
		})
	}
}

func TestOpen_UnknownKind(t *testing.T) {
	_, err := Open(&config.Config{Store: config.StoreConfig{Kind: "redis"}})
	if err == nil {
		t.Fatal("expected error for unknown store kind")
	}
}

func TestLines(t *testing.T) {
	rec := record("r", time.Now())
	got, err := Lines(rec, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 4 || got[0] != "Compiling candy" || got[2] != "warning: unused variable" {
		t.Errorf("Lines(both) = %q, want stdout then stderr", got)
	}
	if _, err := Lines(rec, "stdin"); err == nil {
		t.Error("expected error for unknown stream")
	}
}

func TestGrep(t *testing.T) {
	rec := record("r", time.Now())
	matches, err := Grep(rec, "", `^(error|Finished)`)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 2 {
		t.Fatalf("Grep = %v, want 2 matches", matches)
	}
	if matches[0].String() != "stdout:2: Finished dev" {
		t.Errorf("matches[0] = %q", matches[0].String())
	}
	if matches[1].String() != "stderr:2: error: oops" {
		t.Errorf("matches[1] = %q", matches[1].String())
	}

	only, err := Grep(rec, Stderr, "Finished")
	if err != nil {
		t.Fatal(err)
	}
	if len(only) != 0 {
		t.Errorf("Grep(stderr) = %v, want none", only)
	}

	if _, err := Grep(rec, "", "("); err == nil {
		t.Error("expected error for invalid pattern")
	}
}
