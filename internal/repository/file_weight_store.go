package repository

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	domrepo "quantcore/internal/domain/repository"
	"quantcore/internal/ml"
)

// FileWeightStore persists model weight blobs as one file per ticker
// under a base directory.
type FileWeightStore struct {
	dir string
}

func NewFileWeightStore(dir string) (*FileWeightStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("weight store dir: %w", err)
	}
	return &FileWeightStore{dir: dir}, nil
}

func (s *FileWeightStore) Load(ticker string) ([]byte, error) {
	blob, err := os.ReadFile(s.path(ticker))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("weights for %s: %w", ticker, ml.ErrModelNotFound)
		}
		return nil, fmt.Errorf("read weights for %s: %w", ticker, err)
	}
	return blob, nil
}

// Save writes atomically: temp file then rename, so a live engine
// never observes a half-written blob.
func (s *FileWeightStore) Save(ticker string, blob []byte) error {
	tmp := s.path(ticker) + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o644); err != nil {
		return fmt.Errorf("write weights for %s: %w", ticker, err)
	}
	if err := os.Rename(tmp, s.path(ticker)); err != nil {
		return fmt.Errorf("publish weights for %s: %w", ticker, err)
	}
	return nil
}

func (s *FileWeightStore) path(ticker string) string {
	name := strings.ToUpper(ticker) + "_weights.json"
	return filepath.Join(s.dir, name)
}

var _ domrepo.WeightStore = (*FileWeightStore)(nil)
