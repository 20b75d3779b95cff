package output

import (
	"encoding/json"
	"io"

	"gopkg.in/yaml.v3"
)

// FormatterFunc adapts a plain function to Formatter.
type FormatterFunc func(w io.Writer, data any) error

// Format calls f(w, data).
func (f FormatterFunc) Format(w io.Writer, data any) error {
	return f(w, data)
}

// writeJSON emits indented JSON. HTML escaping is off so URLs in server
// responses print as sent.
func writeJSON(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(data)
}

func writeYAML(w io.Writer, data any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(data); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}
