package partition

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/pkg/errors"
)

func TestFormatLine(t *testing.T) {
	tests := []struct {
		entry index.WordEntry
		want  string
	}{
		{index.WordEntry{Word: "hello", FileIDs: []int{1}}, "hello:[1]"},
		{index.WordEntry{Word: "world", FileIDs: []int{1, 2, 10}}, "world:[1 2 10]"},
	}
	for _, tt := range tests {
		if got := FormatLine(&tt.entry); got != tt.want {
			t.Errorf("FormatLine = %q, want %q", got, tt.want)
		}
	}
}

func TestWriteAndOpen(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	entries := []index.WordEntry{
		{Word: "world", FileIDs: []int{1, 2}},
		{Word: "wax", FileIDs: []int{3}},
	}
	path, err := w.Write('w', entries)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if path != filepath.Join(dir, "w.txt") {
		t.Errorf("path = %s", path)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != "world:[1 2]\nwax:[3]\n" {
		t.Errorf("contents = %q", raw)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}

	p, err := Open(dir, 'w')
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !reflect.DeepEqual(p.Entries(), entries) {
		t.Errorf("Entries = %v", p.Entries())
	}
	got, ok := p.Lookup("wax")
	if !ok || !reflect.DeepEqual(got.FileIDs, []int{3}) {
		t.Errorf("Lookup(wax) = %v, %v", got, ok)
	}
	if _, ok := p.Lookup("zebra"); ok {
		t.Error("Lookup(zebra) should miss")
	}
}

func TestWriteRejectsBadInput(t *testing.T) {
	w := NewWriter(t.TempDir())
	if _, err := w.Write('w', nil); !errors.Is(err, apperrors.ErrOutputPartition) {
		t.Errorf("empty entries: err = %v", err)
	}
	if _, err := w.Write('7', []index.WordEntry{{Word: "x", FileIDs: []int{1}}}); !errors.Is(err, apperrors.ErrOutputPartition) {
		t.Errorf("bad letter: err = %v", err)
	}
}

func TestWriteMissingDirectory(t *testing.T) {
	w := NewWriter(filepath.Join(t.TempDir(), "missing"))
	_, err := w.Write('a', []index.WordEntry{{Word: "a", FileIDs: []int{1}}})
	if !errors.Is(err, apperrors.ErrOutputPartition) {
		t.Errorf("err = %v, want ErrOutputPartition", err)
	}
	if apperrors.ExitCode(err) != apperrors.ExitOutput {
		t.Errorf("exit code = %d", apperrors.ExitCode(err))
	}
}

func TestOpenMissing(t *testing.T) {
	if _, err := Open(t.TempDir(), 'q'); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestParseLineErrors(t *testing.T) {
	for _, line := range []string{"noseparator", ":[1]", "word:1 2", "word:[1 x]"} {
		if _, err := ParseLine(line); err == nil {
			t.Errorf("ParseLine(%q) succeeded", line)
		}
	}
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"c.txt", "a.txt", "a.txt.tmp", "ab.txt", "1.txt", "notes"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	letters, err := List(dir)
	if err != nil {
		t.Fatal(err)
	}
	if string(letters) != "ac" {
		t.Errorf("List = %q, want \"ac\"", letters)
	}
}

func TestRemove(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	if _, err := w.Write('z', []index.WordEntry{{Word: "zebra", FileIDs: []int{1}}}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	path, removed, err := w.Remove('z')
	if err != nil || !removed {
		t.Fatalf("Remove = %v, %v; want removed", removed, err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("%s still exists: %v", path, err)
	}

	if _, removed, err := w.Remove('z'); err != nil || removed {
		t.Errorf("second Remove = %v, %v; want not removed, nil", removed, err)
	}
	if _, _, err := w.Remove('!'); !errors.Is(err, apperrors.ErrOutputPartition) {
		t.Errorf("Remove('!') err = %v", err)
	}
}
