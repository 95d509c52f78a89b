// Package export writes neighbourhoods as CSV, JSON, YAML or XLSX.
package export

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Format names an output encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatXLSX Format = "xlsx"
)

// ErrUnknownFormat is returned for format names and file extensions that
// have no writer.
var ErrUnknownFormat = eris.New("export: unknown format")

// Formats lists every supported format.
func Formats() []Format {
	return []Format{FormatCSV, FormatJSON, FormatYAML, FormatXLSX}
}

// ParseFormat parses a case-insensitive format name. "yml" is accepted for
// YAML.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "xlsx":
		return FormatXLSX, nil
	default:
		return "", eris.Wrapf(ErrUnknownFormat, "%q", s)
	}
}

// FormatFromPath infers the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "", eris.Wrapf(ErrUnknownFormat, "no extension on %q", path)
	}
	return ParseFormat(ext)
}
