package datastore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) (*sqlHandle, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")

	h, err := NewRouter().Open(context.Background(), "sqlite:"+path, "admin", "secret")
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h.(*sqlHandle), path
}

func TestSQLProvider_ExecAndQuery(t *testing.T) {
	h, _ := openTestDB(t)
	ctx := context.Background()

	_, err := h.Exec(ctx, "create table users (id integer primary key, name text, note text)")
	require.NoError(t, err)

	n, err := h.Exec(ctx, "insert into users (id, name, note) values (1, 'alice', null), (2, 'bob', 'x')")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	rs, err := h.Query(ctx, "select id, name, note from users order by id")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "note"}, rs.Columns)
	assert.Equal(t, [][]any{
		{int64(1), "alice", nil},
		{int64(2), "bob", "x"},
	}, rs.Rows)
}

func TestSQLProvider_EmptyResultHasColumns(t *testing.T) {
	h, _ := openTestDB(t)
	ctx := context.Background()

	_, err := h.Exec(ctx, "create table t (a integer)")
	require.NoError(t, err)

	rs, err := h.Query(ctx, "select a from t")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, rs.Columns)
	assert.Empty(t, rs.Rows)
}

func TestSQLProvider_PinnedConnectionKeepsTempTables(t *testing.T) {
	h, _ := openTestDB(t)
	ctx := context.Background()

	_, err := h.Exec(ctx, "create temp table scratch (v text)")
	require.NoError(t, err)
	_, err = h.Exec(ctx, "insert into scratch values ('kept')")
	require.NoError(t, err)

	rs, err := h.Query(ctx, "select v from scratch")
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"kept"}}, rs.Rows)
}

func TestSQLProvider_BadStatement(t *testing.T) {
	h, _ := openTestDB(t)
	_, err := h.Query(context.Background(), "select * from missing_table")
	assert.Error(t, err)
}

func TestSQLProvider_CloseReleasesFile(t *testing.T) {
	h, path := openTestDB(t)
	require.NoError(t, h.Close())

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestSQLiteDSN(t *testing.T) {
	cases := map[string]string{
		"sqlite:/tmp/a.db":       "/tmp/a.db",
		"sqlite:///tmp/a.db":     "/tmp/a.db",
		"jdbc:sqlite:/tmp/a.db":  "/tmp/a.db",
		"sqlite::memory:":        ":memory:",
		"jdbc:sqlite://rel/a.db": "rel/a.db",
	}
	for in, want := range cases {
		got, err := sqliteDSN(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := sqliteDSN("sqlite:")
	assert.Error(t, err)
	_, err = sqliteDSN("mysql://host/db")
	assert.Error(t, err)
}

func TestScheme(t *testing.T) {
	assert.Equal(t, "sqlite", Scheme("jdbc:sqlite:/a.db"))
	assert.Equal(t, "redis", Scheme("REDIS://localhost:6379/0"))
	assert.Equal(t, "", Scheme("no-scheme"))
}

func TestRouter_UnknownScheme(t *testing.T) {
	_, err := NewRouter().Open(context.Background(), "db://host", "u", "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis, rediss, sqlite")
}

func TestRedisProvider(t *testing.T) {
	url := os.Getenv("VI_TEST_REDIS_URL")
	if url == "" {
		t.Skip("VI_TEST_REDIS_URL not set")
	}
	ctx := context.Background()

	h, err := NewRouter().Open(ctx, url, "", "")
	require.NoError(t, err)
	defer h.Close()

	n, err := h.Exec(ctx, "DEL vitool:test")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(0))

	_, err = h.Exec(ctx, `RPUSH vitool:test a "b c"`)
	require.NoError(t, err)

	rs, err := h.Query(ctx, "LRANGE vitool:test 0 -1")
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"a"}, {"b c"}}, rs.Rows)

	rs, err = h.Query(ctx, "GET vitool:missing")
	require.NoError(t, err)
	assert.Empty(t, rs.Rows)
}
