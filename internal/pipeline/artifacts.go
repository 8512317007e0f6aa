package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/leapstack-labs/leapml/internal/ml"
	"github.com/leapstack-labs/leapml/pkg/core"
)

// ArtifactStore keeps model blobs and transform bundles on disk, one
// directory per experiment. Files are created exclusively and never
// rewritten.
type ArtifactStore struct {
	dir string
}

// NewArtifactStore creates a store rooted at dir.
func NewArtifactStore(dir string) *ArtifactStore {
	return &ArtifactStore{dir: dir}
}

// Dir returns the root directory.
func (s *ArtifactStore) Dir() string {
	return s.dir
}

func (s *ArtifactStore) experimentDir(id int64) (string, error) {
	dir := filepath.Join(s.dir, fmt.Sprintf("experiment_%d", id))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", core.Wrap(core.CategoryStorageUnavailable, err, "failed to create artifact directory")
	}
	return dir, nil
}

// SaveModel writes a fitted model under a fresh name and returns its path.
func (s *ArtifactStore) SaveModel(experimentID int64, alg ml.Algorithm, m ml.Model) (string, error) {
	dir, err := s.experimentDir(experimentID)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := ml.Save(&buf, alg, m); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("model_%s.gob", uuid.NewString()))
	if err := writeOnce(path, buf.Bytes()); err != nil {
		return "", err
	}
	return path, nil
}

// LoadModel reads a model written by SaveModel.
func (s *ArtifactStore) LoadModel(path string) (ml.Algorithm, ml.Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", nil, openError(err, "model", path)
	}
	defer func() { _ = f.Close() }()
	return ml.Load(f)
}

// SaveBundle writes the transform bundle of an experiment. A second bundle
// for the same experiment is refused.
func (s *ArtifactStore) SaveBundle(experimentID int64, b *Bundle) (string, error) {
	dir, err := s.experimentDir(experimentID)
	if err != nil {
		return "", err
	}
	data, err := MarshalBundle(b)
	if err != nil {
		return "", fmt.Errorf("failed to encode transform bundle: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("transformations_%d.json", experimentID))
	if err := writeOnce(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// LoadBundle reads a bundle written by SaveBundle.
func (s *ArtifactStore) LoadBundle(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, openError(err, "transform bundle", path)
	}
	return UnmarshalBundle(data)
}

func writeOnce(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return core.Wrap(core.CategoryStorageUnavailable, err, "failed to create %s", filepath.Base(path))
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return core.Wrap(core.CategoryStorageUnavailable, err, "failed to write %s", filepath.Base(path))
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return core.Wrap(core.CategoryStorageUnavailable, err, "failed to close %s", filepath.Base(path))
	}
	return nil
}

func openError(err error, what, path string) error {
	if errors.Is(err, fs.ErrNotExist) {
		return core.Errorf(core.CategoryNotFound, "%s file not found: %s", what, path)
	}
	return core.Wrap(core.CategoryStorageUnavailable, err, "failed to open %s", what)
}
