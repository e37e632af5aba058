package repository

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"quantcore/internal/ml"
)

func TestFileWeightStoreRoundTrip(t *testing.T) {
	store, err := NewFileWeightStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	blob := []byte(`{"hidden":1}`)
	if err := store.Save("sber", blob); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Load("SBER")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(got) != string(blob) {
		t.Fatalf("loaded %q, want %q", got, blob)
	}

	if err := store.Save("SBER", []byte(`{"hidden":2}`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err = store.Load("SBER")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if string(got) != `{"hidden":2}` {
		t.Fatalf("loaded %q after overwrite", got)
	}
}

func TestFileWeightStoreMissingModel(t *testing.T) {
	store, err := NewFileWeightStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	_, err = store.Load("GAZP")
	if !errors.Is(err, ml.ErrModelNotFound) {
		t.Fatalf("err = %v, want ErrModelNotFound", err)
	}
}

func TestFileWeightStoreLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileWeightStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.Save("SBER", []byte("{}")); err != nil {
		t.Fatalf("save: %v", err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("temp files left behind: %v", matches)
	}
	if _, err := os.Stat(filepath.Join(dir, "SBER_weights.json")); err != nil {
		t.Fatalf("published file missing: %v", err)
	}
}
