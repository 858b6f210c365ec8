package dsl

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/openfroyo/typesynth/pkg/catalog"
)

// Catalog file formats.
const (
	FormatGrammar = "grammar"
	FormatYAML    = "yaml"
	FormatJSON    = "json"
	FormatCUE     = "cue"
	FormatDOT     = "dot"
)

// FormatForPath infers the catalog format from a file extension.
func FormatForPath(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".dsl", ".ts", ".tsyn":
		return FormatGrammar, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".cue":
		return FormatCUE, nil
	default:
		return "", fmt.Errorf("unrecognised catalog extension %q", filepath.Ext(path))
	}
}

// Load reads a catalog file, choosing the reader by extension.
func Load(path string) (*catalog.Catalog, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}

	if format == FormatCUE {
		loader, err := NewCUELoader()
		if err != nil {
			return nil, err
		}
		doc, err := loader.LoadFile(path)
		if err != nil {
			return nil, err
		}
		return doc.Catalog()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer f.Close()

	switch format {
	case FormatYAML:
		doc, err := ReadYAML(f)
		if err != nil {
			return nil, err
		}
		return doc.Catalog()
	case FormatJSON:
		doc, err := ReadJSON(f)
		if err != nil {
			return nil, err
		}
		return doc.Catalog()
	default:
		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog: %w", err)
		}
		return Parse(string(content))
	}
}
