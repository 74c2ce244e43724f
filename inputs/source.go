// Package inputs loads the taxonomy and assumptions documents produced
// upstream and merges them with overrides and hard-coded defaults.
package inputs

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/giygas/regimen-forecast/entities"
	"github.com/giygas/regimen-forecast/interfaces"
	"github.com/giygas/regimen-forecast/logging"
)

var (
	ErrInputNotFound  = errors.New("input file not found")
	ErrMalformedInput = errors.New("malformed input")
)

// Compile-time check to ensure FileSource implements InputSource
var _ interfaces.InputSource = (*FileSource)(nil)

// FileSource reads inputs from a directory. OverridesFile is optional.
type FileSource struct {
	Dir             string
	TaxonomyFile    string
	AssumptionsFile string
	OverridesFile   string
}

// NewFileSource creates a file source rooted at dir
func NewFileSource(dir, taxonomyFile, assumptionsFile, overridesFile string) *FileSource {
	return &FileSource{
		Dir:             dir,
		TaxonomyFile:    taxonomyFile,
		AssumptionsFile: assumptionsFile,
		OverridesFile:   overridesFile,
	}
}

// readFile reads a file under Dir and returns its content as JSON
func (s *FileSource) readFile(name string) ([]byte, error) {
	path := filepath.Join(s.Dir, filepath.Clean(name))

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrInputNotFound, path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	out, err := normalize(name, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

// Load reads the taxonomy, the assumptions and the optional overrides
func (s *FileSource) Load() (entities.Taxonomy, entities.Assumptions, error) {
	taxonomyData, err := s.readFile(s.TaxonomyFile)
	if err != nil {
		return entities.Taxonomy{}, entities.Assumptions{}, err
	}
	taxonomy, err := DecodeTaxonomy(taxonomyData)
	if err != nil {
		return entities.Taxonomy{}, entities.Assumptions{}, fmt.Errorf("%s: %w", s.TaxonomyFile, err)
	}

	assumptionsData, err := s.readFile(s.AssumptionsFile)
	if err != nil {
		return entities.Taxonomy{}, entities.Assumptions{}, err
	}

	var overridesData []byte
	if s.OverridesFile != "" {
		overridesData, err = s.readFile(s.OverridesFile)
		if err != nil {
			return entities.Taxonomy{}, entities.Assumptions{}, err
		}
	}

	assumptions, err := MergeAssumptions(assumptionsData, overridesData)
	if err != nil {
		return entities.Taxonomy{}, entities.Assumptions{}, err
	}

	logging.Debug("Inputs loaded",
		"dir", s.Dir,
		"nodes", len(taxonomy.Nodes),
		"overrides", s.OverridesFile != "",
	)

	return taxonomy, assumptions, nil
}

// DecodeTaxonomy accepts either {"indication": ..., "nodes": [...]} or a bare node array.
// Unknown fields are ignored since upstream extraction adds its own annotations.
func DecodeTaxonomy(data []byte) (entities.Taxonomy, error) {
	var taxonomy entities.Taxonomy

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := decode(trimmed, &taxonomy.Nodes, false); err != nil {
			return entities.Taxonomy{}, err
		}
		return taxonomy, nil
	}

	if err := decode(trimmed, &taxonomy, false); err != nil {
		return entities.Taxonomy{}, err
	}
	return taxonomy, nil
}
