package output

import (
	"fmt"
	"io"
	"strings"
)

// Format represents the output format.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// Formats lists the accepted format names.
var Formats = []string{string(FormatTable), string(FormatJSON), string(FormatYAML)}

// Formatter formats data for output.
type Formatter interface {
	Format(w io.Writer, data any) error
}

// ValidFormat reports whether name is an accepted format.
func ValidFormat(name string) bool {
	_, err := ParseFormat(name)
	return err == nil
}

// ParseFormat converts a user-supplied name to a Format.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q (want %s)", name, strings.Join(Formats, ", "))
}

var formatters = map[Format]Formatter{
	FormatTable: &TableFormatter{},
	FormatJSON:  FormatterFunc(writeJSON),
	FormatYAML:  FormatterFunc(writeYAML),
}

// NewFormatter returns the formatter for format, falling back to a table.
func NewFormatter(format Format) Formatter {
	if f, ok := formatters[format]; ok {
		return f
	}
	return formatters[FormatTable]
}

// Print writes data to w in format.
func Print(w io.Writer, format Format, data any) error {
	return NewFormatter(format).Format(w, data)
}
