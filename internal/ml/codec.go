package ml

import (
	"encoding/gob"
	"fmt"
	"io"
)

func init() {
	gob.Register(&KNNClassifier{})
	gob.Register(&DecisionTreeClassifier{})
	gob.Register(&CHAIDClassifier{})
	gob.Register(&NaiveBayesClassifier{})
	gob.Register(&MLPClassifier{})
	gob.Register(&LinearRegressor{})
}

// artifactVersion is bumped whenever a model's persisted fields change.
const artifactVersion = 1

// artifact is the persisted envelope of a fitted model.
type artifact struct {
	Version   int
	Algorithm Algorithm
	Model     Model
}

// Save writes a fitted model of family a to w.
func Save(w io.Writer, a Algorithm, m Model) error {
	if err := gob.NewEncoder(w).Encode(artifact{Version: artifactVersion, Algorithm: a, Model: m}); err != nil {
		return fmt.Errorf("failed to encode %s model: %w", a, err)
	}
	return nil
}

// Load reads a model written by Save.
func Load(r io.Reader) (Algorithm, Model, error) {
	var art artifact
	if err := gob.NewDecoder(r).Decode(&art); err != nil {
		return "", nil, fmt.Errorf("failed to decode model: %w", err)
	}
	if art.Version != artifactVersion {
		return "", nil, fmt.Errorf("unsupported model artifact version %d", art.Version)
	}
	return art.Algorithm, art.Model, nil
}
