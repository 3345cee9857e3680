package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/DrSkyle/vitool/pkg/session"
)

// SQLProvider opens database/sql connections. The username and password are
// accepted for every URL but only passed on by drivers that authenticate;
// SQLite does not.
type SQLProvider struct {
	// DriverName is the database/sql driver, "sqlite" by default.
	DriverName string
}

// NewSQLProvider returns a provider for the bundled SQLite driver.
func NewSQLProvider() *SQLProvider {
	return &SQLProvider{DriverName: "sqlite"}
}

// Open implements session.Provider.
func (p *SQLProvider) Open(ctx context.Context, url, username, password string) (session.Handle, error) {
	dsn, err := sqliteDSN(url)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(p.DriverName, dsn)
	if err != nil {
		return nil, err
	}

	// A session is one connection: temp tables and pragmas must stick.
	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		db.Close()
		return nil, err
	}

	return &sqlHandle{db: db, conn: conn}, nil
}

// sqliteDSN accepts sqlite:<path>, sqlite://<path> and the same with a jdbc:
// prefix.
func sqliteDSN(url string) (string, error) {
	u := strings.TrimPrefix(url, "jdbc:")
	switch {
	case strings.HasPrefix(u, "sqlite://"):
		u = strings.TrimPrefix(u, "sqlite://")
	case strings.HasPrefix(u, "sqlite:"):
		u = strings.TrimPrefix(u, "sqlite:")
	default:
		return "", fmt.Errorf("unsupported sql url %q", url)
	}
	if u == "" {
		return "", fmt.Errorf("missing database path in %q", url)
	}
	return u, nil
}

type sqlHandle struct {
	db   *sql.DB
	conn *sql.Conn
}

func (h *sqlHandle) Query(ctx context.Context, stmt string) (*session.ResultSet, error) {
	rows, err := h.conn.QueryContext(ctx, stmt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	rs := &session.ResultSet{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		rs.Rows = append(rs.Rows, values)
	}
	return rs, rows.Err()
}

func (h *sqlHandle) Exec(ctx context.Context, stmt string) (int64, error) {
	res, err := h.conn.ExecContext(ctx, stmt)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (h *sqlHandle) Close() error {
	return errors.Join(h.conn.Close(), h.db.Close())
}
