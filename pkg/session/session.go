// Package session holds the single shared data-store handle of the shell
// together with the credentials it was opened with.
package session

import (
	"context"
	"errors"

	"github.com/DrSkyle/vitool/pkg/option"
	"github.com/DrSkyle/vitool/pkg/shell"
)

// Environment variables consulted when an argument is not given.
const (
	EnvURL      = "VI_DB_URL"
	EnvUsername = "VI_DB_USERNAME"
	EnvPassword = "VI_DB_PASSWORD"
)

var (
	ErrNotConnected     = errors.New("the connection is not established")
	ErrAlreadyConnected = errors.New("your connection is still alive")

	// ErrNoHandle is wrapped in a ResourceError when a provider reports
	// success without a handle.
	ErrNoHandle = errors.New("the provider returned no connection")
)

// ResultSet is the tabular result of a query, rows in column order.
type ResultSet struct {
	Columns []string
	Rows    [][]any
}

// Handle is an open connection to an external data store.
type Handle interface {
	Query(ctx context.Context, stmt string) (*ResultSet, error)
	Exec(ctx context.Context, stmt string) (int64, error)
	Close() error
}

// Provider opens handles.
type Provider interface {
	Open(ctx context.Context, url, username, password string) (Handle, error)
}

// ResourceError reports a failed handle operation. Its message is the
// underlying error's message, unchanged.
type ResourceError struct {
	Op  string
	Err error
}

func (e *ResourceError) Error() string {
	return e.Err.Error()
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}

// Status is a display snapshot of the connected session.
type Status struct {
	Connected bool
	URL       string
	Username  string
}

// Session owns the handle. The handle is set iff url, username and password
// are set. Not safe for concurrent use: the shell runs one command at a time.
type Session struct {
	provider Provider
	prompter option.Prompter

	url      string
	username string
	password string
	handle   Handle
}

// New returns a disconnected session. prompter may be nil, in which case the
// password is never asked for interactively.
func New(provider Provider, prompter option.Prompter) *Session {
	return &Session{provider: provider, prompter: prompter}
}

// Connected reports whether a handle is held.
func (s *Session) Connected() bool {
	return s.handle != nil
}

// Status returns the url and username of the current connection.
func (s *Session) Status() Status {
	return Status{Connected: s.Connected(), URL: s.url, Username: s.username}
}

// Connect resolves the three parameters, opens a handle and stores it with
// the resolved credentials. On failure the session stays disconnected.
func (s *Session) Connect(ctx context.Context, url, username, password string) error {
	if s.Connected() {
		return ErrAlreadyConnected
	}

	urlOpt, err := option.Value(url).OrEnv(EnvURL).Require("`url` cannot be inferred")
	if err != nil {
		return err
	}
	usernameOpt, err := option.Value(username).OrEnv(EnvUsername).Require("`username` cannot be inferred")
	if err != nil {
		return err
	}
	passwordOpt, err := option.Value(password).
		OrEnv(EnvPassword).
		OrInput(s.prompter, "Enter password:").
		Require("`password` cannot be inferred")
	if err != nil {
		return err
	}

	h, err := s.provider.Open(ctx, urlOpt, usernameOpt, passwordOpt)
	if err != nil {
		return &ResourceError{Op: "open", Err: err}
	}
	if h == nil {
		return &ResourceError{Op: "open", Err: ErrNoHandle}
	}

	s.url, s.username, s.password, s.handle = urlOpt, usernameOpt, passwordOpt, h
	return nil
}

// Close closes the handle. All fields are cleared whether or not the close
// succeeded; a close failure is still returned.
func (s *Session) Close() error {
	if !s.Connected() {
		return ErrNotConnected
	}

	h := s.handle
	defer s.clear()

	if err := h.Close(); err != nil {
		return &ResourceError{Op: "close", Err: err}
	}
	return nil
}

// Reconnect closes the session and connects again with the credentials it
// had. A failed connect leaves the session disconnected with nothing stored.
func (s *Session) Reconnect(ctx context.Context) error {
	if !s.Connected() {
		return ErrNotConnected
	}

	// Close clears the credentials, so take them first.
	url, username, password := s.url, s.username, s.password

	closeErr := s.Close()
	if err := s.Connect(ctx, url, username, password); err != nil {
		return errors.Join(closeErr, err)
	}
	return closeErr
}

// Query runs a statement returning rows.
func (s *Session) Query(ctx context.Context, stmt string) (*ResultSet, error) {
	if !s.Connected() {
		return nil, ErrNotConnected
	}
	rs, err := s.handle.Query(ctx, stmt)
	if err != nil {
		return nil, &ResourceError{Op: "query", Err: err}
	}
	return rs, nil
}

// Exec runs a statement and returns the number of affected rows.
func (s *Session) Exec(ctx context.Context, stmt string) (int64, error) {
	if !s.Connected() {
		return 0, ErrNotConnected
	}
	n, err := s.handle.Exec(ctx, stmt)
	if err != nil {
		return 0, &ResourceError{Op: "exec", Err: err}
	}
	return n, nil
}

// ConnectedGate is available while a handle is held.
func (s *Session) ConnectedGate() *shell.Gate {
	return &shell.Gate{Name: "connected", Check: func() shell.Availability {
		if s.Connected() {
			return shell.Available()
		}
		return shell.Unavailable(ErrNotConnected.Error())
	}}
}

// DisconnectedGate is available while no handle is held.
func (s *Session) DisconnectedGate() *shell.Gate {
	return &shell.Gate{Name: "disconnected", Check: func() shell.Availability {
		if !s.Connected() {
			return shell.Available()
		}
		return shell.Unavailable(ErrAlreadyConnected.Error())
	}}
}

func (s *Session) clear() {
	s.handle = nil
	s.url = ""
	s.username = ""
	s.password = ""
}
