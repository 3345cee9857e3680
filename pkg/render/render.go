// Package render formats query results for the terminal.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/DrSkyle/vitool/pkg/session"
)

// Format selects a renderer.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q, possible values are: table, json", s)
	}
}

// Write renders rs in the given format.
func Write(w io.Writer, rs *session.ResultSet, f Format, width int) error {
	switch f {
	case FormatJSON:
		return JSON(w, rs)
	default:
		return Table(w, rs, width)
	}
}

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

// Table prints the row count followed by a bordered table. Nothing but the
// count is printed for an empty result.
func Table(w io.Writer, rs *session.ResultSet, width int) error {
	if _, err := fmt.Fprintf(w, "%d row(s) returned\n", len(rs.Rows)); err != nil {
		return err
	}
	if len(rs.Rows) == 0 {
		return nil
	}

	rows := make([][]string, len(rs.Rows))
	for i, row := range rs.Rows {
		rows[i] = make([]string, len(row))
		for j, v := range row {
			rows[i][j] = cell(v)
		}
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(rs.Columns...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	if width > 0 {
		t = t.Width(width)
	}

	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// JSON prints every row as "[i] = {...}" with keys in column order, then the
// row count.
func JSON(w io.Writer, rs *session.ResultSet) error {
	for i, row := range rs.Rows {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(orderedRow{columns: rs.Columns, values: row}); err != nil {
			return fmt.Errorf("failed to encode row %d: %w", i, err)
		}
		if _, err := fmt.Fprintf(w, "[%d] = %s", i, buf.Bytes()); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%d row(s) returned\n", len(rs.Rows))
	return err
}

// orderedRow marshals as an object whose keys follow the column order.
type orderedRow struct {
	columns []string
	values  []any
}

func (r orderedRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := marshalNoEscape(col)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		var v any
		if i < len(r.values) {
			v = r.values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
		}
		val, err := marshalNoEscape(v)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
