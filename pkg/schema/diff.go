package schema

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Feature names a part of a definition that Diff can be told to ignore.
type Feature string

const (
	// FeatureDefault ignores column DEFAULT clauses.
	FeatureDefault Feature = "default"
	// FeatureNotNull ignores column NOT NULL constraints.
	FeatureNotNull Feature = "not_null"
	// FeatureIndexType ignores the difference between plain and unique indexes.
	FeatureIndexType Feature = "index_type"
	// FeatureOptions ignores table options such as WITHOUT ROWID or STRICT.
	FeatureOptions Feature = "options"
)

var features = []Feature{FeatureDefault, FeatureNotNull, FeatureIndexType, FeatureOptions}

// ParseFeatures parses a comma separated --ignore value.
func ParseFeatures(s string) (map[Feature]bool, error) {
	out := map[Feature]bool{}
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		if !slices.Contains(features, Feature(part)) {
			names := make([]string, len(features))
			for i, f := range features {
				names[i] = string(f)
			}
			return nil, fmt.Errorf("unknown sql feature %q, possible values are: %s", part, strings.Join(names, ", "))
		}
		out[Feature(part)] = true
	}
	return out, nil
}

// SchemaDiff lists the tables present on one side only and the tables whose
// definitions differ.
type SchemaDiff struct {
	Tables       []TableMissing `json:"tables"`
	InsideTables []TableDiff    `json:"insideTables"`
	Timestamp    time.Time      `json:"timestamp"`
}

// Empty reports whether the two sides matched.
func (d *SchemaDiff) Empty() bool {
	return len(d.Tables) == 0 && len(d.InsideTables) == 0
}

type TableDDL struct {
	Name string `json:"name"`
	SQL  string `json:"sql"`
}

// TableMissing has exactly one side set.
type TableMissing struct {
	Left  *TableDDL `json:"left,omitempty"`
	Right *TableDDL `json:"right,omitempty"`
}

type TableDiff struct {
	Name    string       `json:"name"`
	Columns []StringDiff `json:"columns"`
	Indexes []StringDiff `json:"indexes"`
	Option  *StringDiff  `json:"option,omitempty"`
}

// StringDiff pairs the raw SQL of both sides. A nil side is absent.
type StringDiff struct {
	Left  *string `json:"left,omitempty"`
	Right *string `json:"right,omitempty"`
}

// Diff compares left against right. Tables and their parts are matched by
// name; ignored features do not count as differences, but reported
// snippets keep their original SQL.
func Diff(left, right *Schema, ignore map[Feature]bool) *SchemaDiff {
	d := &SchemaDiff{Tables: []TableMissing{}, InsideTables: []TableDiff{}, Timestamp: time.Now()}

	rightByName := indexTables(right)
	leftByName := indexTables(left)

	for _, t := range left.Tables {
		if _, ok := rightByName[t.Name]; !ok {
			d.Tables = append(d.Tables, TableMissing{Left: &TableDDL{Name: t.Name, SQL: t.RawSQL}})
		}
	}
	for _, t := range right.Tables {
		if _, ok := leftByName[t.Name]; !ok {
			d.Tables = append(d.Tables, TableMissing{Right: &TableDDL{Name: t.Name, SQL: t.RawSQL}})
		}
	}

	for _, lt := range left.Tables {
		rt, ok := rightByName[lt.Name]
		if !ok {
			continue
		}
		td := TableDiff{
			Name:    lt.Name,
			Columns: snippetDiffs(columnSnippets(lt.Columns, ignore), columnSnippets(rt.Columns, ignore)),
			Indexes: snippetDiffs(indexSnippets(lt.Indexes, ignore), indexSnippets(rt.Indexes, ignore)),
		}
		if !ignore[FeatureOptions] && !slices.Equal(lt.Options, rt.Options) {
			td.Option = &StringDiff{Left: ptr(strings.Join(lt.Options, " ")), Right: ptr(strings.Join(rt.Options, " "))}
		}
		if len(td.Columns) > 0 || len(td.Indexes) > 0 || td.Option != nil {
			d.InsideTables = append(d.InsideTables, td)
		}
	}
	return d
}

func indexTables(s *Schema) map[string]Table {
	m := make(map[string]Table, len(s.Tables))
	for _, t := range s.Tables {
		m[t.Name] = t
	}
	return m
}

// snippet is a named definition: key is what gets compared, raw what gets
// reported.
type snippet struct {
	name string
	key  string
	raw  string
}

func columnSnippets(cols []Column, ignore map[Feature]bool) []snippet {
	out := make([]snippet, 0, len(cols))
	for _, c := range cols {
		specs := slices.DeleteFunc(slices.Clone(c.Specs), func(s string) bool {
			return (ignore[FeatureDefault] && strings.HasPrefix(s, "DEFAULT ")) ||
				(ignore[FeatureNotNull] && s == "NOT NULL")
		})
		out = append(out, snippet{name: c.Name, key: c.Type + "|" + strings.Join(specs, "|"), raw: c.RawSQL})
	}
	return out
}

func indexSnippets(idxs []Index, ignore map[Feature]bool) []snippet {
	out := make([]snippet, 0, len(idxs))
	for _, idx := range idxs {
		typ := idx.Type
		if ignore[FeatureIndexType] && typ != IndexPrimary {
			typ = IndexPlain
		}
		out = append(out, snippet{name: idx.Name, key: typ + "|" + strings.Join(idx.Columns, "|"), raw: idx.RawSQL})
	}
	return out
}

// snippetDiffs reports left-only snippets, then right-only ones, then the
// common ones whose keys differ, each group in left-then-right order.
func snippetDiffs(left, right []snippet) []StringDiff {
	out := []StringDiff{}
	rightByName := make(map[string]snippet, len(right))
	for _, s := range right {
		rightByName[s.name] = s
	}
	leftByName := make(map[string]snippet, len(left))
	for _, s := range left {
		leftByName[s.name] = s
	}

	for _, s := range left {
		if _, ok := rightByName[s.name]; !ok {
			out = append(out, StringDiff{Left: ptr(s.raw)})
		}
	}
	for _, s := range right {
		if _, ok := leftByName[s.name]; !ok {
			out = append(out, StringDiff{Right: ptr(s.raw)})
		}
	}
	for _, l := range left {
		if r, ok := rightByName[l.name]; ok && r.key != l.key {
			out = append(out, StringDiff{Left: ptr(l.raw), Right: ptr(r.raw)})
		}
	}
	return out
}

func ptr(s string) *string { return &s }
