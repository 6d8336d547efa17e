// Package render formats read-only command output (summaries, version).
//
// Format selection:
//   - --format always wins
//   - otherwise table on a TTY, json when piped
//   - invalid formats are errors
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

// Format represents an output format.
type Format string

// Supported formats.
const (
	FormatJSON  Format = "json"
	FormatTable Format = "table"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a format string. Empty returns "" so the caller can
// pick a default.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatTable, FormatYAML, "":
		return f, nil
	default:
		return "", fmt.Errorf("invalid format: %q (must be json, table, or yaml)", s)
	}
}

// Renderer writes values in one format.
type Renderer struct {
	format Format
	out    io.Writer
}

// NewRenderer creates a renderer from the --format flag, writing to the
// app's writer (stdout unless overridden).
func NewRenderer(c *cli.Context) (*Renderer, error) {
	format, err := ParseFormat(c.String("format"))
	if err != nil {
		return nil, err
	}

	var out io.Writer = os.Stdout
	if c.App != nil && c.App.Writer != nil {
		out = c.App.Writer
	}

	if format == "" {
		format = FormatJSON
		if f, ok := out.(*os.File); ok && isTTY(f) {
			format = FormatTable
		}
	}
	return NewRendererWithWriter(format, out), nil
}

// NewRendererWithWriter creates a renderer with a fixed format and writer.
func NewRendererWithWriter(format Format, out io.Writer) *Renderer {
	return &Renderer{format: format, out: out}
}

// Format returns the selected format.
func (r *Renderer) Format() Format { return r.format }

// Render writes data in the configured format.
func (r *Renderer) Render(data any) error {
	switch r.format {
	case FormatJSON:
		enc := json.NewEncoder(r.out)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatYAML:
		enc := yaml.NewEncoder(r.out)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return err
		}
		return enc.Close()
	case FormatTable:
		return r.renderTable(data)
	default:
		return fmt.Errorf("unknown format: %s", r.format)
	}
}

// renderTable prints a slice of structs as rows with a header, and a single
// struct as "name: value" lines.
func (r *Renderer) renderTable(data any) error {
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)

	v := indirect(reflect.ValueOf(data))
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			fmt.Fprintln(w, "(no results)")
			break
		}
		first := indirect(v.Index(0))
		if first.Kind() != reflect.Struct {
			for i := 0; i < v.Len(); i++ {
				fmt.Fprintln(w, formatValue(v.Index(i)))
			}
			break
		}
		fmt.Fprintln(w, strings.Join(fieldNames(first.Type()), "\t"))
		for i := 0; i < v.Len(); i++ {
			row := indirect(v.Index(i))
			cells := make([]string, row.NumField())
			for j := range cells {
				cells[j] = formatValue(row.Field(j))
			}
			fmt.Fprintln(w, strings.Join(cells, "\t"))
		}
	case reflect.Struct:
		names := fieldNames(v.Type())
		for i, name := range names {
			fmt.Fprintf(w, "%s:\t%s\n", name, formatValue(v.Field(i)))
		}
	default:
		fmt.Fprintln(w, formatValue(v))
	}

	return w.Flush()
}

func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

// fieldNames returns column names, preferring json tags.
func fieldNames(t reflect.Type) []string {
	names := make([]string, t.NumField())
	for i := range names {
		f := t.Field(i)
		name := strings.Split(f.Tag.Get("json"), ",")[0]
		if name == "" || name == "-" {
			name = strings.ToLower(f.Name)
		}
		names[i] = name
	}
	return names
}

func formatValue(v reflect.Value) string {
	v = indirect(v)
	if !v.IsValid() {
		return ""
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			return "[]"
		}
		return fmt.Sprintf("[%d items]", v.Len())
	case reflect.Map:
		if v.Len() == 0 {
			return "{}"
		}
		return fmt.Sprintf("{%d keys}", v.Len())
	case reflect.Struct:
		if s, ok := v.Interface().(fmt.Stringer); ok {
			return s.String()
		}
		return "{...}"
	case reflect.Float32, reflect.Float64:
		return fmt.Sprintf("%.1f", v.Float())
	default:
		return fmt.Sprintf("%v", v.Interface())
	}
}

// isTTY returns true if f is a character device.
func isTTY(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
