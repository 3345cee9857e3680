// Package commands registers the vitool shell commands.
package commands

import (
	"bytes"
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/DrSkyle/vitool/pkg/datastore"
	"github.com/DrSkyle/vitool/pkg/option"
	"github.com/DrSkyle/vitool/pkg/render"
	"github.com/DrSkyle/vitool/pkg/schema"
	"github.com/DrSkyle/vitool/pkg/session"
	"github.com/DrSkyle/vitool/pkg/shell"
	"github.com/DrSkyle/vitool/pkg/storage"
)

const GroupDatabase = "Database Commands"

// SourceConnection is the schema diff side that reads the current connection.
const SourceConnection = "connection"

// DatabaseOptions configures the db commands.
type DatabaseOptions struct {
	// DefaultFormat is used when --format is not given.
	DefaultFormat string
	// S3 builds stores for `--to s3://...`. Nil disables S3 export.
	S3 storage.S3Factory
	// Hooks receives the hook that closes the session on exit.
	Hooks *shell.ExitHooks
}

// RegisterDatabase adds the db command family bound to sess.
func RegisterDatabase(r *shell.Registry, sess *session.Session, o DatabaseOptions) {
	if o.DefaultFormat == "" {
		o.DefaultFormat = string(render.FormatTable)
	}
	if o.Hooks != nil {
		o.Hooks.OnExit(func() error {
			if !sess.Connected() {
				return nil
			}
			return sess.Close()
		})
	}

	connected := sess.ConnectedGate()
	disconnected := sess.DisconnectedGate()

	r.Register(&shell.Command{
		Name:  "db connect",
		Group: GroupDatabase,
		Help:  "Connect to a database.",
		Flags: func(fs *pflag.FlagSet) {
			fs.String("url", "", "connection url, falls back to $"+session.EnvURL)
			fs.String("username", "", "user name, falls back to $"+session.EnvUsername)
			fs.String("password", "", "password, falls back to $"+session.EnvPassword+" then a prompt")
		},
		Gate: disconnected,
		Run: func(ctx context.Context, inv *shell.Invocation) error {
			if err := sess.Connect(ctx, inv.String("url"), inv.String("username"), inv.String("password")); err != nil {
				return err
			}
			inv.Printf("Connection has been established.\n")
			return nil
		},
	})

	r.Register(&shell.Command{
		Name:  "db query",
		Group: GroupDatabase,
		Help:  "Run a query and print the returned rows.",
		Usage: `"<statement>"`,
		Flags: func(fs *pflag.FlagSet) {
			fs.String("format", o.DefaultFormat, "output format: table or json")
			fs.String("to", storage.LocationConsole, "console, a file path or s3://bucket/key")
		},
		Gate: connected,
		Run: func(ctx context.Context, inv *shell.Invocation) error {
			stmt, err := option.Value(inv.Rest()).Require("`statement` cannot be inferred")
			if err != nil {
				return err
			}
			format, err := render.ParseFormat(inv.String("format"))
			if err != nil {
				return err
			}

			// Resolve the destination first so a bad --to does not run the query.
			to := inv.String("to")
			var target storage.Target
			if to != storage.LocationConsole {
				if target, err = storage.Resolve(ctx, to, o.S3); err != nil {
					return err
				}
			}

			rs, err := sess.Query(ctx, stmt)
			if err != nil {
				return err
			}

			if to == storage.LocationConsole {
				return render.Write(inv.Out, rs, format, inv.Width)
			}

			var buf bytes.Buffer
			if err := render.Write(&buf, rs, format, 0); err != nil {
				return err
			}
			if err := target.Write(ctx, buf.Bytes()); err != nil {
				return err
			}
			inv.Printf("%d row(s) written to %s\n", len(rs.Rows), target.Display)
			return nil
		},
	})

	r.Register(&shell.Command{
		Name:  "db command",
		Group: GroupDatabase,
		Help:  "Run a statement that changes data and print the affected row count.",
		Usage: `"<statement>"`,
		Gate:  connected,
		Run: func(ctx context.Context, inv *shell.Invocation) error {
			stmt, err := option.Value(inv.Rest()).Require("`statement` cannot be inferred")
			if err != nil {
				return err
			}
			n, err := sess.Exec(ctx, stmt)
			if err != nil {
				return err
			}
			inv.Printf("%d row(s) affected\n", n)
			return nil
		},
	})

	r.Register(&shell.Command{
		Name:  "db close",
		Group: GroupDatabase,
		Help:  "Close the current connection.",
		Gate:  connected,
		Run: func(ctx context.Context, inv *shell.Invocation) error {
			if err := sess.Close(); err != nil {
				return err
			}
			inv.Printf("Connection has been closed.\n")
			return nil
		},
	})

	r.Register(&shell.Command{
		Name:  "db reconnect",
		Group: GroupDatabase,
		Help:  "Close the current connection and open it again with the same settings.",
		Gate:  connected,
		Run: func(ctx context.Context, inv *shell.Invocation) error {
			if err := sess.Reconnect(ctx); err != nil {
				return err
			}
			inv.Printf("Connection has been re-established.\n")
			return nil
		},
	})

	r.Register(&shell.Command{
		Name:  "db status",
		Group: GroupDatabase,
		Help:  "Show the current connection.",
		Run: func(ctx context.Context, inv *shell.Invocation) error {
			st := sess.Status()
			if !st.Connected {
				inv.Printf("(No connections.)\n")
				return nil
			}
			inv.Printf("url: %s\nusername: %s\n", st.URL, st.Username)
			return nil
		},
	})

	r.Register(&shell.Command{
		Name:  "db schema dump",
		Group: GroupDatabase,
		Help:  "Write the table descriptions of the current SQLite connection as JSON.",
		Flags: func(fs *pflag.FlagSet) {
			fs.String("to", storage.LocationConsole, "console, a file path or s3://bucket/key")
			fs.Bool("pretty", true, "indent the json")
		},
		Gate: connected,
		Run: func(ctx context.Context, inv *shell.Invocation) error {
			desc, err := describe(ctx, sess)
			if err != nil {
				return err
			}
			return writeJSON(ctx, inv, o.S3, desc, func(display string) {
				noun := "table description has"
				if len(desc.Tables) > 1 {
					noun = "table descriptions have"
				}
				inv.Printf("%d %s been written to %q .\n", len(desc.Tables), noun, display)
			})
		},
	})

	r.Register(&shell.Command{
		Name:  "db schema diff",
		Group: GroupDatabase,
		Help:  "Compare two table descriptions.",
		Usage: "<left> <right>",
		Flags: func(fs *pflag.FlagSet) {
			fs.String("to", storage.LocationConsole, "console, a file path or s3://bucket/key")
			fs.Bool("pretty", true, "indent the json")
			fs.String("ignore", "", "comma separated sql features to ignore: default, not_null, index_type, options")
		},
		Run: func(ctx context.Context, inv *shell.Invocation) error {
			if len(inv.Args) != 2 {
				return fmt.Errorf("expected <left> and <right>, each %q, a file path or s3://bucket/key", SourceConnection)
			}
			ignore, err := schema.ParseFeatures(inv.String("ignore"))
			if err != nil {
				return err
			}

			left, err := loadSchema(ctx, sess, o.S3, inv.Args[0])
			if err != nil {
				return err
			}
			inv.Printf("Left side descriptions have been loaded from %q .\n", left.from)
			right, err := loadSchema(ctx, sess, o.S3, inv.Args[1])
			if err != nil {
				return err
			}
			inv.Printf("Right side descriptions have been loaded from %q .\n", right.from)

			d := schema.Diff(left.schema, right.schema, ignore)
			if d.Empty() {
				inv.Printf("(No differences.)\n")
				return nil
			}
			return writeJSON(ctx, inv, o.S3, d, func(display string) {
				inv.Printf("Differences have been written to %q .\n", display)
			})
		},
	})
}

func describe(ctx context.Context, sess *session.Session) (*schema.Schema, error) {
	if !sess.Connected() {
		return nil, session.ErrNotConnected
	}
	if scheme := datastore.Scheme(sess.Status().URL); scheme != "sqlite" {
		return nil, fmt.Errorf("only sqlite is supported, not %q", scheme)
	}
	return schema.Describe(ctx, sess)
}

type loadedSchema struct {
	schema *schema.Schema
	from   string
}

func loadSchema(ctx context.Context, sess *session.Session, newS3 storage.S3Factory, location string) (loadedSchema, error) {
	if location == SourceConnection {
		s, err := describe(ctx, sess)
		if err != nil {
			return loadedSchema{}, err
		}
		return loadedSchema{schema: s, from: "connection[url='" + sess.Status().URL + "']"}, nil
	}

	target, err := storage.Resolve(ctx, location, newS3)
	if err != nil {
		return loadedSchema{}, err
	}
	data, err := target.Read(ctx)
	if err != nil {
		return loadedSchema{}, err
	}
	s, err := schema.Load(data)
	if err != nil {
		return loadedSchema{}, fmt.Errorf("%s: %w", target.Display, err)
	}
	return loadedSchema{schema: s, from: target.Display}, nil
}

// writeJSON prints v to the console, or stores it at --to and calls written
// with the location.
func writeJSON(ctx context.Context, inv *shell.Invocation, newS3 storage.S3Factory, v any, written func(display string)) error {
	data, err := schema.Encode(v, inv.Bool("pretty"))
	if err != nil {
		return err
	}

	to := inv.String("to")
	if to == storage.LocationConsole {
		inv.Printf("%s\n", data)
		return nil
	}

	target, err := storage.Resolve(ctx, to, newS3)
	if err != nil {
		return err
	}
	if err := target.Write(ctx, data); err != nil {
		return err
	}
	written(target.Display)
	return nil
}
