// Package schema describes SQLite schemas and computes differences between
// two descriptions.
package schema

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/DrSkyle/vitool/pkg/session"
)

// Querier runs read-only statements. *session.Session satisfies it.
type Querier interface {
	Query(ctx context.Context, stmt string) (*session.ResultSet, error)
}

// Schema is a point-in-time description of every user table.
type Schema struct {
	Tables    []Table   `json:"tables"`
	Timestamp time.Time `json:"timestamp"`
}

type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
	Indexes []Index  `json:"indexes"`
	// Options holds the clauses after the column list, e.g. "WITHOUT ROWID".
	Options []string `json:"options"`
	RawSQL  string   `json:"rawSql"`
}

type Column struct {
	Name  string   `json:"name"`
	Type  string   `json:"type"`
	Specs []string `json:"specs"`
	// RawSQL is the column definition as it would appear in CREATE TABLE.
	RawSQL string `json:"rawSql"`
}

type Index struct {
	Name string `json:"name"`
	// Type is INDEX, UNIQUE or PRIMARY KEY.
	Type    string   `json:"type"`
	Columns []string `json:"columns"`
	RawSQL  string   `json:"rawSql"`
}

const (
	IndexPlain   = "INDEX"
	IndexUnique  = "UNIQUE"
	IndexPrimary = "PRIMARY KEY"
)

// Describe reads the schema of the connected SQLite database.
func Describe(ctx context.Context, q Querier) (*Schema, error) {
	rs, err := q.Query(ctx, "select name, sql from sqlite_master where type = 'table' and name not like 'sqlite_%' order by name")
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	s := &Schema{Tables: []Table{}, Timestamp: time.Now()}
	for _, row := range rs.Rows {
		t := Table{Name: str(row[0]), RawSQL: str(row[1])}
		if t.Columns, err = describeColumns(ctx, q, t.Name); err != nil {
			return nil, err
		}
		if t.Indexes, err = describeIndexes(ctx, q, t.Name); err != nil {
			return nil, err
		}
		t.Options = tableOptions(t.RawSQL)
		s.Tables = append(s.Tables, t)
	}
	return s, nil
}

func describeColumns(ctx context.Context, q Querier, table string) ([]Column, error) {
	rs, err := q.Query(ctx, fmt.Sprintf(
		`select name, type, "notnull", dflt_value, pk from pragma_table_info(%s) order by cid`, literal(table)))
	if err != nil {
		return nil, fmt.Errorf("failed to describe columns of %s: %w", table, err)
	}

	cols := make([]Column, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		c := Column{Name: str(row[0]), Type: strings.ToUpper(str(row[1])), Specs: []string{}}
		if num(row[4]) > 0 {
			c.Specs = append(c.Specs, "PRIMARY KEY")
		}
		if num(row[2]) != 0 {
			c.Specs = append(c.Specs, "NOT NULL")
		}
		if row[3] != nil {
			c.Specs = append(c.Specs, "DEFAULT "+str(row[3]))
		}
		parts := []string{quoteIdent(c.Name)}
		if c.Type != "" {
			parts = append(parts, c.Type)
		}
		c.RawSQL = strings.Join(append(parts, c.Specs...), " ")
		cols = append(cols, c)
	}
	return cols, nil
}

func describeIndexes(ctx context.Context, q Querier, table string) ([]Index, error) {
	list, err := q.Query(ctx, fmt.Sprintf(
		`select il.name, il."unique", il.origin, m.sql from pragma_index_list(%s) il
		 left join sqlite_master m on m.type = 'index' and m.name = il.name
		 order by il.name`, literal(table)))
	if err != nil {
		return nil, fmt.Errorf("failed to list indexes of %s: %w", table, err)
	}

	indexes := make([]Index, 0, len(list.Rows))
	for _, row := range list.Rows {
		idx := Index{Name: str(row[0]), Type: IndexPlain, RawSQL: str(row[3])}
		switch {
		case str(row[2]) == "pk":
			idx.Type = IndexPrimary
		case num(row[1]) != 0:
			idx.Type = IndexUnique
		}

		info, err := q.Query(ctx, fmt.Sprintf("select name from pragma_index_info(%s) order by seqno", literal(idx.Name)))
		if err != nil {
			return nil, fmt.Errorf("failed to describe index %s: %w", idx.Name, err)
		}
		idx.Columns = make([]string, 0, len(info.Rows))
		for _, r := range info.Rows {
			idx.Columns = append(idx.Columns, str(r[0]))
		}

		// Automatic indexes have no sql of their own.
		if idx.RawSQL == "" {
			idx.RawSQL = fmt.Sprintf("%s (%s)", idx.Type, strings.Join(idx.Columns, ", "))
		}
		indexes = append(indexes, idx)
	}
	return indexes, nil
}

// tableOptions returns the comma separated clauses after the closing
// parenthesis of a CREATE TABLE statement.
func tableOptions(createSQL string) []string {
	opts := []string{}
	i := strings.LastIndex(createSQL, ")")
	if i < 0 {
		return opts
	}
	for _, part := range strings.Split(createSQL[i+1:], ",") {
		if part = strings.Join(strings.Fields(part), " "); part != "" {
			opts = append(opts, strings.ToUpper(part))
		}
	}
	return opts
}

// Load decodes a description previously written by Encode.
func Load(data []byte) (*Schema, error) {
	var s Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("invalid schema description: %w", err)
	}
	return &s, nil
}

// Encode writes v as JSON without HTML escaping, indented when pretty.
func Encode(v any, pretty bool) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func literal(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func str(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

func num(v any) int64 {
	switch v := v.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case bool:
		if v {
			return 1
		}
	}
	return 0
}
