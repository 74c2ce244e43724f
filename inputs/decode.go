package inputs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"gopkg.in/yaml.v3"
)

// toUTF8 decodes ISO-8859-1 content; valid UTF-8 is returned as-is
func toUTF8(data []byte) ([]byte, error) {
	if utf8.Valid(data) {
		return data, nil
	}
	decoded, err := io.ReadAll(charmap.ISO8859_1.NewDecoder().Reader(bytes.NewReader(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode ISO-8859-1 content: %w", err)
	}
	return decoded, nil
}

// isYAML reports whether a file name carries a YAML extension
func isYAML(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// yamlToJSON re-encodes a YAML document as JSON so a single set of
// json tags drives decoding for both formats.
func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	return out, nil
}

// normalize returns JSON bytes for a file's content
func normalize(name string, data []byte) ([]byte, error) {
	data, err := toUTF8(data)
	if err != nil {
		return nil, err
	}
	if isYAML(name) {
		return yamlToJSON(data)
	}
	return data, nil
}

// decode unmarshals JSON; strict decoding rejects unknown fields
func decode(data []byte, v any, strict bool) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	if strict {
		decoder.DisallowUnknownFields()
	}
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	return nil
}
