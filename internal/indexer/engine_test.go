package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/internal/indexer/partition"
	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/internal/indexer/queue"
	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func pipelineConfig(dir string, mappers, reducers int) config.PipelineConfig {
	return config.PipelineConfig{
		Mappers:       mappers,
		Reducers:      reducers,
		OutputDir:     dir,
		MaxTokenBytes: 99,
		OnFileError:   config.OnFileErrorAbort,
	}
}

// memOpener serves file contents from memory.
func memOpener(files map[string]string) Opener {
	return OpenerFunc(func(path string) (io.ReadCloser, error) {
		body, ok := files[path]
		if !ok {
			return nil, fmt.Errorf("open %s: %w", path, os.ErrNotExist)
		}
		return io.NopCloser(strings.NewReader(body)), nil
	})
}

func writeFiles(t *testing.T, dir string, contents ...string) []string {
	t.Helper()
	paths := make([]string, len(contents))
	for i, c := range contents {
		paths[i] = filepath.Join(dir, fmt.Sprintf("in%d.txt", i+1))
		if err := os.WriteFile(paths[i], []byte(c), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return paths
}

func readOutputs(t *testing.T, dir string) map[string]string {
	t.Helper()
	out := make(map[string]string)
	letters, err := partition.List(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, l := range letters {
		raw, err := os.ReadFile(partition.Path(dir, l))
		if err != nil {
			t.Fatal(err)
		}
		out[string(l)] = string(raw)
	}
	return out
}

func runEngine(t *testing.T, cfg config.PipelineConfig, files []string, opts ...Option) *RunResult {
	t.Helper()
	e, err := NewEngine(cfg, opts...)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	res, err := e.Run(context.Background(), files)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return res
}

func TestRunTwoFiles(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	files := writeFiles(t, in, "Hello world", "world, FOO!")

	res := runEngine(t, pipelineConfig(out, 2, 3), files)

	want := map[string]string{
		"f": "foo:[2]\n",
		"h": "hello:[1]\n",
		"w": "world:[1 2]\n",
	}
	if got := readOutputs(t, out); !reflect.DeepEqual(got, want) {
		t.Errorf("outputs = %v, want %v", got, want)
	}
	if res.Files != 2 || res.Words != 3 || len(res.Partitions) != 3 {
		t.Errorf("result = %+v", res)
	}
	if res.Partitions[0].Letter != "f" || res.Partitions[2].Letter != "w" {
		t.Errorf("partitions not ordered by letter: %+v", res.Partitions)
	}
	if res.Tokens != 4 {
		t.Errorf("Tokens = %d, want 4", res.Tokens)
	}
}

func TestRunEmptyInputs(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		order []string
	}{
		{"no files", nil, nil},
		{"empty file", map[string]string{"e.txt": ""}, []string{"e.txt"}},
		{"punctuation only", map[string]string{"p.txt": "-- 42 !!"}, []string{"p.txt"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := t.TempDir()
			res := runEngine(t, pipelineConfig(out, 3, 3), tt.order, WithOpener(memOpener(tt.files)))
			if len(readOutputs(t, out)) != 0 {
				t.Error("expected no partition files")
			}
			if res.Words != 0 || len(res.Partitions) != 0 {
				t.Errorf("result = %+v", res)
			}
		})
	}
}

func TestRunOneWordPerFileInLowestID(t *testing.T) {
	out := t.TempDir()
	files := map[string]string{"a": "apple apple APPLE", "b": "banana"}
	runEngine(t, pipelineConfig(out, 1, 1), []string{"a", "b"}, WithOpener(memOpener(files)))
	got := readOutputs(t, out)
	if got["a"] != "apple:[1]\n" || got["b"] != "banana:[2]\n" {
		t.Errorf("outputs = %v", got)
	}
}

func TestRunSortOrder(t *testing.T) {
	out := t.TempDir()
	files := map[string]string{
		"1": "sun sea sky",
		"2": "sea sky",
		"3": "sky salt",
	}
	runEngine(t, pipelineConfig(out, 2, 2), []string{"1", "2", "3"}, WithOpener(memOpener(files)))
	want := "sky:[1 2 3]\nsea:[1 2]\nsalt:[3]\nsun:[1]\n"
	if got := readOutputs(t, out)["s"]; got != want {
		t.Errorf("s.txt =\n%s\nwant\n%s", got, want)
	}
}

// corpus builds a deterministic set of files over a vocabulary that touches
// every letter.
func corpus(numFiles, wordsPerFile int) (map[string]string, []string) {
	rng := rand.New(rand.NewSource(42))
	vocab := make([]string, 0, 26*20)
	for c := 'a'; c <= 'z'; c++ {
		for i := 0; i < 20; i++ {
			vocab = append(vocab, fmt.Sprintf("%c%s", c, strings.Repeat(string(rune('a'+i)), 1+i%4)))
		}
	}
	files := make(map[string]string, numFiles)
	order := make([]string, numFiles)
	for f := 0; f < numFiles; f++ {
		var sb strings.Builder
		for w := 0; w < wordsPerFile; w++ {
			word := vocab[rng.Intn(len(vocab))]
			if rng.Intn(5) == 0 {
				word = strings.ToUpper(word) + ","
			}
			sb.WriteString(word)
			sb.WriteByte(" \n\t"[rng.Intn(3)])
		}
		name := fmt.Sprintf("doc%03d", f)
		files[name] = sb.String()
		order[f] = name
	}
	return files, order
}

// expectedIndex computes the index sequentially.
func expectedIndex(files map[string]string, order []string) map[string][]int {
	idx := make(map[string][]int)
	for i, name := range order {
		seen := make(map[string]bool)
		tokenizer.Scan(strings.NewReader(files[name]), 99, func(tok string) {
			w := tokenizer.Normalize(tok)
			if w == "" || seen[w] {
				return
			}
			seen[w] = true
			idx[w] = append(idx[w], i+1)
		})
	}
	return idx
}

func TestRunDeterministicAcrossWorkerCounts(t *testing.T) {
	files, order := corpus(60, 400)
	var baseline map[string]string
	for _, mr := range [][2]int{{1, 26}, {4, 2}, {1, 1}, {8, 40}, {16, 7}} {
		out := t.TempDir()
		runEngine(t, pipelineConfig(out, mr[0], mr[1]), order, WithOpener(memOpener(files)))
		got := readOutputs(t, out)
		if baseline == nil {
			baseline = got
			continue
		}
		if !reflect.DeepEqual(got, baseline) {
			t.Errorf("M=%d R=%d produced different output", mr[0], mr[1])
		}
	}
}

func TestRunMatchesSequentialIndex(t *testing.T) {
	files, order := corpus(100, 300)
	out := t.TempDir()
	res := runEngine(t, pipelineConfig(out, 8, 5), order, WithOpener(memOpener(files)))

	want := expectedIndex(files, order)
	if res.Words != len(want) {
		t.Errorf("Words = %d, want %d", res.Words, len(want))
	}
	seen := 0
	for _, p := range res.Partitions {
		part, err := partition.Open(out, p.Letter[0])
		if err != nil {
			t.Fatal(err)
		}
		entries := part.Entries()
		for i, e := range entries {
			seen++
			if e.Word[0] != p.Letter[0] {
				t.Errorf("word %q in partition %s", e.Word, p.Letter)
			}
			if !reflect.DeepEqual(e.FileIDs, want[e.Word]) {
				t.Errorf("%s ids = %v, want %v", e.Word, e.FileIDs, want[e.Word])
			}
			if !sort.IntsAreSorted(e.FileIDs) {
				t.Errorf("%s ids not ascending", e.Word)
			}
			if i > 0 && index.Compare(&entries[i-1], &entries[i]) >= 0 {
				t.Errorf("partition %s out of order at %q", p.Letter, e.Word)
			}
		}
	}
	if seen != len(want) {
		t.Errorf("saw %d words across partitions, want %d", seen, len(want))
	}
}

func TestRunNoLostUpdatesUnderContention(t *testing.T) {
	const numFiles = 300
	files := make(map[string]string, numFiles)
	order := make([]string, numFiles)
	for i := range order {
		order[i] = fmt.Sprintf("f%d", i)
		files[order[i]] = "shared common everywhere"
	}
	out := t.TempDir()
	runEngine(t, pipelineConfig(out, 32, 26), order, WithOpener(memOpener(files)))

	ids := make([]string, numFiles)
	for i := range ids {
		ids[i] = fmt.Sprint(i + 1)
	}
	line := ":[" + strings.Join(ids, " ") + "]\n"
	got := readOutputs(t, out)
	if got["s"] != "shared"+line || got["c"] != "common"+line || got["e"] != "everywhere"+line {
		t.Error("a file id was lost or duplicated under contention")
	}
}

func TestRunClaimsExactlyOnce(t *testing.T) {
	files, order := corpus(50, 20)
	fileRec := &queue.Recorder[int]{}
	letterRec := &queue.Recorder[byte]{}
	runEngine(t, pipelineConfig(t.TempDir(), 6, 30), order,
		WithOpener(memOpener(files)),
		WithFileObserver(fileRec.Observe),
		WithLetterObserver(letterRec.Observe),
	)

	fileCounts := fileRec.Counts()
	if len(fileCounts) != len(order) {
		t.Fatalf("%d files claimed, want %d", len(fileCounts), len(order))
	}
	for idx, n := range fileCounts {
		if n != 1 {
			t.Errorf("file %d claimed %d times", idx, n)
		}
	}
	letterCounts := letterRec.Counts()
	if len(letterCounts) != 26 {
		t.Fatalf("%d letters claimed, want 26", len(letterCounts))
	}
	for c, n := range letterCounts {
		if n != 1 {
			t.Errorf("letter %c claimed %d times", c, n)
		}
	}
}

func TestRunMissingFileAborts(t *testing.T) {
	out := t.TempDir()
	files := map[string]string{"ok": "alpha"}
	e, err := NewEngine(pipelineConfig(out, 2, 2), WithOpener(memOpener(files)))
	if err != nil {
		t.Fatal(err)
	}
	_, err = e.Run(context.Background(), []string{"ok", "missing"})
	if !errors.Is(err, apperrors.ErrInputFile) {
		t.Fatalf("err = %v, want ErrInputFile", err)
	}
	if apperrors.ExitCode(err) != apperrors.ExitInputFile {
		t.Errorf("exit code = %d", apperrors.ExitCode(err))
	}
	if len(readOutputs(t, out)) != 0 {
		t.Error("reducers must not run after the map phase failed")
	}
}

func TestRunTokenTooLongAborts(t *testing.T) {
	files := map[string]string{"long": "ok " + strings.Repeat("x", 100)}
	e, err := NewEngine(pipelineConfig(t.TempDir(), 1, 1), WithOpener(memOpener(files)))
	if err != nil {
		t.Fatal(err)
	}
	_, err = e.Run(context.Background(), []string{"long"})
	if !errors.Is(err, apperrors.ErrTokenTooLong) || !errors.Is(err, apperrors.ErrInputFile) {
		t.Errorf("err = %v", err)
	}
}

type failingReader struct {
	r io.Reader
}

func (f *failingReader) Read(p []byte) (int, error) {
	n, err := f.r.Read(p)
	if err == io.EOF {
		return n, errors.New("disk went away")
	}
	return n, err
}

func (f *failingReader) Close() error { return nil }

func TestRunSkipPolicy(t *testing.T) {
	out := t.TempDir()
	opener := OpenerFunc(func(path string) (io.ReadCloser, error) {
		switch path {
		case "good":
			return io.NopCloser(strings.NewReader("alpha zulu")), nil
		case "broken":
			return &failingReader{r: strings.NewReader("alpha zeta ")}, nil
		default:
			return nil, os.ErrNotExist
		}
	})
	cfg := pipelineConfig(out, 1, 2)
	cfg.OnFileError = config.OnFileErrorSkip

	res := runEngine(t, cfg, []string{"good", "missing", "broken", "good"}, WithOpener(opener))

	sort.Strings(res.Skipped)
	if !reflect.DeepEqual(res.Skipped, []string{"broken", "missing"}) {
		t.Errorf("Skipped = %v", res.Skipped)
	}
	if res.Tokens != 4 {
		t.Errorf("Tokens = %d, want 4 (skipped files excluded)", res.Tokens)
	}
	want := map[string]string{
		"a": "alpha:[1 4]\n",
		"z": "zulu:[1 4]\n",
	}
	if got := readOutputs(t, out); !reflect.DeepEqual(got, want) {
		t.Errorf("outputs = %v, want %v", got, want)
	}
}

func TestRunRemovesStalePartitions(t *testing.T) {
	out := t.TempDir()
	n := &recordingNotifier{}
	files := map[string]string{"first": "zebra apple", "second": "apple"}
	e, err := NewEngine(pipelineConfig(out, 2, 3), WithOpener(memOpener(files)), WithNotifier(n))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	if _, err := e.Run(context.Background(), []string{"first"}); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	n.events = nil
	res, err := e.Run(context.Background(), []string{"second"})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}

	want := map[string]string{"a": "apple:[1]\n"}
	if got := readOutputs(t, out); !reflect.DeepEqual(got, want) {
		t.Errorf("outputs = %v, want %v", got, want)
	}
	if len(res.Partitions) != 1 || res.Partitions[0].Letter != "a" {
		t.Errorf("Partitions = %+v", res.Partitions)
	}

	sort.Slice(n.events, func(i, j int) bool { return n.events[i].Letter < n.events[j].Letter })
	if len(n.events) != 2 {
		t.Fatalf("got %d events, want 2: %+v", len(n.events), n.events)
	}
	if ev := n.events[1]; ev.Letter != "z" || ev.Words != 0 || ev.Path != partition.Path(out, 'z') {
		t.Errorf("removal event = %+v", ev)
	}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []PartitionEvent
	err    error
}

func (n *recordingNotifier) PartitionWritten(ctx context.Context, ev PartitionEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return n.err
}

func TestRunNotifiesEveryPartition(t *testing.T) {
	out := t.TempDir()
	n := &recordingNotifier{err: errors.New("broker down")}
	files := map[string]string{"1": "hello world", "2": "world foo"}
	res := runEngine(t, pipelineConfig(out, 2, 2), []string{"1", "2"},
		WithOpener(memOpener(files)), WithNotifier(n))

	if len(n.events) != 3 {
		t.Fatalf("got %d events, want 3", len(n.events))
	}
	sort.Slice(n.events, func(i, j int) bool { return n.events[i].Letter < n.events[j].Letter })
	for i, ev := range n.events {
		p := res.Partitions[i]
		if ev.Letter != p.Letter || ev.Path != p.Path || ev.Words != p.Words || ev.RunID != res.RunID {
			t.Errorf("event %+v does not match partition %+v", ev, p)
		}
	}
}

func TestRunRecordsMetrics(t *testing.T) {
	m := metrics.New()
	files := map[string]string{"1": "hello world", "2": "world foo"}
	runEngine(t, pipelineConfig(t.TempDir(), 2, 4), []string{"1", "2"},
		WithOpener(memOpener(files)), WithMetrics(m))

	if v := testutil.ToFloat64(m.FilesMappedTotal.WithLabelValues("ok")); v != 2 {
		t.Errorf("files ok = %v", v)
	}
	if v := testutil.ToFloat64(m.TokensTotal); v != 4 {
		t.Errorf("tokens = %v", v)
	}
	if v := testutil.ToFloat64(m.ClaimsTotal.WithLabelValues("letter")); v != 26 {
		t.Errorf("letter claims = %v", v)
	}
	if v := testutil.ToFloat64(m.PartitionsWrittenTotal); v != 3 {
		t.Errorf("partitions = %v", v)
	}
	if v := testutil.ToFloat64(m.WorkersActive.WithLabelValues("mapper")); v != 0 {
		t.Errorf("mappers still active = %v", v)
	}
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e, err := NewEngine(pipelineConfig(t.TempDir(), 2, 2), WithOpener(memOpener(map[string]string{"a": "x"})))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Run(ctx, []string{"a"}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestNewEngineValidation(t *testing.T) {
	for name, cfg := range map[string]config.PipelineConfig{
		"zero mappers":  pipelineConfig(t.TempDir(), 0, 1),
		"zero reducers": pipelineConfig(t.TempDir(), 1, 0),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewEngine(cfg)
			if !errors.Is(err, apperrors.ErrInvalidInput) || apperrors.ExitCode(err) != apperrors.ExitUsage {
				t.Errorf("err = %v", err)
			}
		})
	}

	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := NewEngine(pipelineConfig(filepath.Join(blocker, "out"), 1, 1))
	if !errors.Is(err, apperrors.ErrOutputPartition) {
		t.Errorf("err = %v, want ErrOutputPartition", err)
	}
}

func BenchmarkRun(b *testing.B) {
	files, order := corpus(200, 2000)
	for _, mr := range [][2]int{{1, 1}, {4, 4}, {8, 26}} {
		b.Run(fmt.Sprintf("M%d_R%d", mr[0], mr[1]), func(b *testing.B) {
			e, err := NewEngine(pipelineConfig(b.TempDir(), mr[0], mr[1]), WithOpener(memOpener(files)))
			if err != nil {
				b.Fatal(err)
			}
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := e.Run(context.Background(), order); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
