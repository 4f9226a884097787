package changelog

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/lockplane/schemaclone/internal/cloneerr"
)

// Format is a changelog serialization
type Format string

const (
	FormatJSON Format = "json"
	FormatXML  Format = "xml"
)

// FormatFromPath picks the format from the file extension
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".xml":
		return FormatXML, nil
	}
	return "", fmt.Errorf("cannot tell changelog format of %s: expected .json or .xml", path)
}

// Write serializes doc with 2-space indentation
func Write(w io.Writer, doc *Document, format Format) error {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal changelog: %w", err)
		}
		data = append(data, '\n')
		_, err = w.Write(data)
		return err
	case FormatXML:
		if _, err := io.WriteString(w, xml.Header); err != nil {
			return err
		}
		enc := xml.NewEncoder(w)
		enc.Indent("", "  ")
		if err := enc.Encode(xmlDocument{Xmlns: Namespace, ChangeSets: doc.ChangeSets}); err != nil {
			return fmt.Errorf("failed to marshal changelog: %w", err)
		}
		_, err := io.WriteString(w, "\n")
		return err
	}
	return fmt.Errorf("unsupported changelog format %q", format)
}

// Read parses and validates a changelog. JSON input is checked against the
// JSON schema before decoding.
func Read(r io.Reader, format Format) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read changelog: %w", err)
	}

	var doc Document
	switch format {
	case FormatJSON:
		if err := ValidateJSON(data); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse changelog: %w", err)
		}
	case FormatXML:
		var x xmlDocument
		if err := xml.Unmarshal(data, &x); err != nil {
			return nil, fmt.Errorf("failed to parse changelog: %w", err)
		}
		doc.ChangeSets = x.ChangeSets
	default:
		return nil, fmt.Errorf("unsupported changelog format %q", format)
	}

	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid changelog: %w", err)
	}
	return &doc, nil
}

// Load reads the changelog at path, picking the format from its extension
func Load(path string) (*Document, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, cloneerr.New(cloneerr.MigrationEngine, "load changelog", path, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, cloneerr.New(cloneerr.MigrationEngine, "load changelog", path, err)
	}
	defer func() { _ = f.Close() }()

	doc, err := Read(f, format)
	if err != nil {
		return nil, cloneerr.New(cloneerr.MigrationEngine, "load changelog", path, err)
	}
	doc.Name = filepath.Base(path)
	return doc, nil
}

// Save writes doc to path atomically (temp file, then rename)
func Save(path string, doc *Document) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return cloneerr.New(cloneerr.MigrationEngine, "save changelog", path, err)
	}

	tempFile := path + ".tmp"
	f, err := os.Create(tempFile)
	if err != nil {
		return cloneerr.New(cloneerr.MigrationEngine, "save changelog", path, err)
	}

	if err := Write(f, doc, format); err != nil {
		_ = f.Close()
		_ = os.Remove(tempFile)
		return cloneerr.New(cloneerr.MigrationEngine, "save changelog", path, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tempFile)
		return cloneerr.New(cloneerr.MigrationEngine, "save changelog", path, err)
	}
	if err := os.Rename(tempFile, path); err != nil {
		_ = os.Remove(tempFile)
		return cloneerr.New(cloneerr.MigrationEngine, "save changelog", path, err)
	}
	return nil
}
