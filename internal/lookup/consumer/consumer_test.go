package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/internal/indexer"
)

type fakeForgetter struct {
	forgotten []byte
}

func (f *fakeForgetter) Forget(letter byte) {
	f.forgotten = append(f.forgotten, letter)
}

type fakeInvalidator struct {
	letters []byte
	err     error
}

func (f *fakeInvalidator) InvalidateLetter(ctx context.Context, letter byte) (int64, error) {
	f.letters = append(f.letters, letter)
	return 3, f.err
}

func encode(t *testing.T, ev indexer.PartitionEvent) []byte {
	t.Helper()
	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestHandleMessageInvalidatesLetter(t *testing.T) {
	f := &fakeForgetter{}
	inv := &fakeInvalidator{}
	h := HandleMessage(f, inv)

	err := h(context.Background(), []byte("w"), encode(t, indexer.PartitionEvent{RunID: "r", Letter: "w", Words: 2}))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if string(f.forgotten) != "w" || string(inv.letters) != "w" {
		t.Errorf("forgotten %q, invalidated %q", f.forgotten, inv.letters)
	}
}

func TestHandleMessageSkipsBadEvents(t *testing.T) {
	f := &fakeForgetter{}
	inv := &fakeInvalidator{}
	h := HandleMessage(f, inv)

	for _, value := range [][]byte{
		[]byte("not json"),
		encode(t, indexer.PartitionEvent{Letter: ""}),
		encode(t, indexer.PartitionEvent{Letter: "ab"}),
		encode(t, indexer.PartitionEvent{Letter: "7"}),
	} {
		if err := h(context.Background(), nil, value); err != nil {
			t.Errorf("bad event returned %v, want nil", err)
		}
	}
	if len(f.forgotten) != 0 || len(inv.letters) != 0 {
		t.Error("bad events must not invalidate anything")
	}
}

func TestHandleMessageReturnsCacheError(t *testing.T) {
	inv := &fakeInvalidator{err: errors.New("redis down")}
	h := HandleMessage(&fakeForgetter{}, inv)
	if err := h(context.Background(), nil, encode(t, indexer.PartitionEvent{Letter: "a"})); err == nil {
		t.Error("expected the cache error to be returned")
	}
}

func TestHandleMessageWithoutCache(t *testing.T) {
	f := &fakeForgetter{}
	h := HandleMessage(f, nil)
	if err := h(context.Background(), nil, encode(t, indexer.PartitionEvent{Letter: "z"})); err != nil {
		t.Fatal(err)
	}
	if string(f.forgotten) != "z" {
		t.Errorf("forgotten = %q", f.forgotten)
	}
}
