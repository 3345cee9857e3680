package schema

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DrSkyle/vitool/pkg/datastore"
	"github.com/DrSkyle/vitool/pkg/session"
)

func openSQLite(t *testing.T, stmts ...string) session.Handle {
	t.Helper()
	ctx := context.Background()
	h, err := datastore.NewSQLProvider().Open(ctx, "sqlite:"+filepath.Join(t.TempDir(), "s.db"), "", "")
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	for _, s := range stmts {
		_, err := h.Exec(ctx, s)
		require.NoError(t, err, s)
	}
	return h
}

func TestDescribe(t *testing.T) {
	h := openSQLite(t,
		"create table users (id integer primary key, email text not null, name text default 'anon', unique (email))",
		"create index users_name on users (name)",
		"create table kv (k text primary key, v blob) without rowid",
	)

	s, err := Describe(context.Background(), h)
	require.NoError(t, err)
	require.Len(t, s.Tables, 2)
	assert.False(t, s.Timestamp.IsZero())

	kv, users := s.Tables[0], s.Tables[1]
	assert.Equal(t, "kv", kv.Name)
	assert.Equal(t, []string{"WITHOUT ROWID"}, kv.Options)
	require.Len(t, kv.Indexes, 1)
	assert.Equal(t, IndexPrimary, kv.Indexes[0].Type)
	assert.Equal(t, []string{"k"}, kv.Indexes[0].Columns)

	assert.Equal(t, "users", users.Name)
	assert.Contains(t, users.RawSQL, "email text not null")
	assert.Empty(t, users.Options)
	assert.Equal(t, []Column{
		{Name: "id", Type: "INTEGER", Specs: []string{"PRIMARY KEY"}, RawSQL: `"id" INTEGER PRIMARY KEY`},
		{Name: "email", Type: "TEXT", Specs: []string{"NOT NULL"}, RawSQL: `"email" TEXT NOT NULL`},
		{Name: "name", Type: "TEXT", Specs: []string{"DEFAULT 'anon'"}, RawSQL: `"name" TEXT DEFAULT 'anon'`},
	}, users.Columns)

	require.Len(t, users.Indexes, 2)
	assert.Equal(t, Index{
		Name: "sqlite_autoindex_users_1", Type: IndexUnique, Columns: []string{"email"}, RawSQL: "UNIQUE (email)",
	}, users.Indexes[0])
	assert.Equal(t, "users_name", users.Indexes[1].Name)
	assert.Equal(t, IndexPlain, users.Indexes[1].Type)
	assert.Contains(t, users.Indexes[1].RawSQL, "users_name")
}

func TestDescribe_SameDatabaseHasNoDifferences(t *testing.T) {
	h := openSQLite(t, "create table t (a integer not null, b text)", "create index t_b on t (b)")

	left, err := Describe(context.Background(), h)
	require.NoError(t, err)
	right, err := Describe(context.Background(), h)
	require.NoError(t, err)

	assert.True(t, Diff(left, right, nil).Empty())
}

func col(name, typ string, specs ...string) Column {
	raw := `"` + name + `" ` + typ
	for _, s := range specs {
		raw += " " + s
	}
	return Column{Name: name, Type: typ, Specs: specs, RawSQL: raw}
}

func TestDiff(t *testing.T) {
	left := &Schema{Tables: []Table{
		{Name: "a", RawSQL: "CREATE TABLE a (x, y)", Columns: []Column{col("x", "TEXT"), col("y", "INTEGER")},
			Indexes: []Index{{Name: "a_x", Type: IndexPlain, Columns: []string{"x"}, RawSQL: "CREATE INDEX a_x ON a (x)"}}},
		{Name: "gone", RawSQL: "CREATE TABLE gone (y)"},
		{Name: "same", Columns: []Column{col("z", "TEXT")}},
	}}
	right := &Schema{Tables: []Table{
		{Name: "a", Columns: []Column{col("x", "TEXT", "NOT NULL"), col("w", "REAL")},
			Indexes: []Index{{Name: "a_x", Type: IndexUnique, Columns: []string{"x"}, RawSQL: "CREATE UNIQUE INDEX a_x ON a (x)"}}},
		{Name: "new", RawSQL: "CREATE TABLE new (q)"},
		{Name: "same", Columns: []Column{col("z", "TEXT")}},
	}}

	d := Diff(left, right, nil)
	require.False(t, d.Empty())

	assert.Equal(t, []TableMissing{
		{Left: &TableDDL{Name: "gone", SQL: "CREATE TABLE gone (y)"}},
		{Right: &TableDDL{Name: "new", SQL: "CREATE TABLE new (q)"}},
	}, d.Tables)

	require.Len(t, d.InsideTables, 1)
	a := d.InsideTables[0]
	assert.Equal(t, "a", a.Name)
	assert.Equal(t, []StringDiff{
		{Left: ptr(`"y" INTEGER`)},
		{Right: ptr(`"w" REAL`)},
		{Left: ptr(`"x" TEXT`), Right: ptr(`"x" TEXT NOT NULL`)},
	}, a.Columns)
	assert.Equal(t, []StringDiff{
		{Left: ptr("CREATE INDEX a_x ON a (x)"), Right: ptr("CREATE UNIQUE INDEX a_x ON a (x)")},
	}, a.Indexes)
	assert.Nil(t, a.Option)
}

func TestDiff_IgnoredFeatures(t *testing.T) {
	left := &Schema{Tables: []Table{{
		Name:    "t",
		Columns: []Column{col("a", "TEXT", "NOT NULL", "DEFAULT 'x'")},
		Indexes: []Index{{Name: "t_a", Type: IndexPlain, Columns: []string{"a"}}},
		Options: []string{"STRICT"},
	}}}
	right := &Schema{Tables: []Table{{
		Name:    "t",
		Columns: []Column{col("a", "TEXT")},
		Indexes: []Index{{Name: "t_a", Type: IndexUnique, Columns: []string{"a"}}},
	}}}

	require.False(t, Diff(left, right, nil).Empty())

	ignore, err := ParseFeatures("default, not_null,INDEX_TYPE,options")
	require.NoError(t, err)
	assert.True(t, Diff(left, right, ignore).Empty())

	// Ignoring some features still reports the rest, with the original SQL.
	ignore, err = ParseFeatures("default")
	require.NoError(t, err)
	d := Diff(left, right, ignore)
	require.Len(t, d.InsideTables, 1)
	assert.Equal(t, []StringDiff{{Left: ptr(`"a" TEXT NOT NULL DEFAULT 'x'`), Right: ptr(`"a" TEXT`)}}, d.InsideTables[0].Columns)
	assert.Equal(t, &StringDiff{Left: ptr("STRICT"), Right: ptr("")}, d.InsideTables[0].Option)
}

func TestParseFeatures(t *testing.T) {
	got, err := ParseFeatures("")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = ParseFeatures("default,comment")
	assert.EqualError(t, err, `unknown sql feature "comment", possible values are: default, not_null, index_type, options`)
}

func TestEncode_DiffGolden(t *testing.T) {
	left := &Schema{Tables: []Table{
		{Name: "a", RawSQL: "CREATE TABLE a (x)", Columns: []Column{col("x", "TEXT")}},
		{Name: "gone", RawSQL: "CREATE TABLE gone (y)"},
	}}
	right := &Schema{Tables: []Table{
		{Name: "a", Columns: []Column{col("x", "TEXT", "NOT NULL")}, Options: []string{"STRICT"}},
	}}
	d := Diff(left, right, nil)
	d.Timestamp = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	data, err := Encode(d, true)
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "diff_pretty", data)
}

func TestEncode_LoadsBack(t *testing.T) {
	s := &Schema{Tables: []Table{{Name: "t", RawSQL: "CREATE TABLE t (a <> b)", Columns: []Column{col("a", "TEXT")}}}}

	data, err := Encode(s, false)
	require.NoError(t, err)
	assert.Contains(t, string(data), "(a <> b)")
	assert.NotContains(t, string(data), "\n")

	got, err := Load(data)
	require.NoError(t, err)
	assert.Equal(t, s.Tables, got.Tables)

	_, err = Load([]byte("not json"))
	assert.ErrorContains(t, err, "invalid schema description")
}
