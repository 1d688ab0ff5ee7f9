package classifier

import (
	"encoding/gob"
	"fmt"
	"io"
	"os"

	"github.com/justestif/go-mood-classifier/internal/domain"
	"github.com/justestif/go-mood-classifier/internal/features"
	"github.com/justestif/go-mood-classifier/internal/table"
)

const artifactVersion = 1

type artifact struct {
	Version int
	Model   *Model
}

// Save writes the model to path.
func (m *Model) Save(path string) error {
	return table.WriteAtomic(path, func(w io.Writer) error {
		return gob.NewEncoder(w).Encode(artifact{Version: artifactVersion, Model: m})
	})
}

// Load reads a model from path. When schema is non-nil the model must have
// been trained with identical scaling.
func Load(path string, schema *features.Schema) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var a artifact
	if err := gob.NewDecoder(f).Decode(&a); err != nil {
		return nil, fmt.Errorf("decoding model %s: %w", path, err)
	}
	if a.Version != artifactVersion {
		return nil, fmt.Errorf("model %s has version %d, want %d", path, a.Version, artifactVersion)
	}
	if a.Model == nil || a.Model.Schema == nil || len(a.Model.Trees) == 0 {
		return nil, fmt.Errorf("model %s is incomplete", path)
	}
	if schema != nil && a.Model.Schema.Fingerprint() != schema.Fingerprint() {
		return nil, &domain.ConfigurationError{
			Field:  "schema",
			Reason: fmt.Sprintf("model %s was trained with schema %s, have %s", path, a.Model.Schema.Fingerprint(), schema.Fingerprint()),
		}
	}
	return a.Model, nil
}
