package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DrSkyle/vitool/pkg/option"
)

type fakeHandle struct {
	closeErr error
	closed   bool
}

func (h *fakeHandle) Query(ctx context.Context, stmt string) (*ResultSet, error) {
	return &ResultSet{Columns: []string{"stmt"}, Rows: [][]any{{stmt}}}, nil
}

func (h *fakeHandle) Exec(ctx context.Context, stmt string) (int64, error) {
	return 3, nil
}

func (h *fakeHandle) Close() error {
	h.closed = true
	return h.closeErr
}

type openCall struct{ url, username, password string }

type fakeProvider struct {
	openErr  error
	noHandle bool
	calls    []openCall
	handles  []*fakeHandle
}

func (p *fakeProvider) Open(ctx context.Context, url, username, password string) (Handle, error) {
	p.calls = append(p.calls, openCall{url, username, password})
	if p.openErr != nil {
		return nil, p.openErr
	}
	if p.noHandle {
		return nil, nil
	}
	h := &fakeHandle{}
	p.handles = append(p.handles, h)
	return h, nil
}

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvURL, "")
	t.Setenv(EnvUsername, "")
	t.Setenv(EnvPassword, "")
}

func assertDisconnected(t *testing.T, s *Session) {
	t.Helper()
	assert.False(t, s.Connected())
	assert.Nil(t, s.handle)
	assert.Empty(t, s.url)
	assert.Empty(t, s.username)
	assert.Empty(t, s.password)
}

func TestConnect_ExplicitArguments(t *testing.T) {
	clearEnv(t)
	p := &fakeProvider{}
	s := New(p, nil)

	require.NoError(t, s.Connect(context.Background(), "db://x", "root", "secret"))
	assert.True(t, s.Connected())
	assert.Equal(t, []openCall{{"db://x", "root", "secret"}}, p.calls)
	assert.Equal(t, Status{Connected: true, URL: "db://x", Username: "root"}, s.Status())
}

func TestConnect_EnvURLExplicitUserPromptedPassword(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvURL, "db://host")

	var asked []option.InputRequest
	prompter := option.PrompterFunc(func(req option.InputRequest) (string, error) {
		asked = append(asked, req)
		return "typed-secret", nil
	})
	p := &fakeProvider{}
	s := New(p, prompter)

	require.NoError(t, s.Connect(context.Background(), "", "admin", ""))
	assert.Equal(t, []openCall{{"db://host", "admin", "typed-secret"}}, p.calls)
	require.Len(t, asked, 1)
	assert.True(t, asked[0].Mask)
	assert.Equal(t, "Enter password:", asked[0].Prompt)
}

func TestConnect_BlankExplicitFallsThroughToEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvURL, "db://env")
	t.Setenv(EnvUsername, "env-user")
	t.Setenv(EnvPassword, "env-pass")
	p := &fakeProvider{}
	s := New(p, nil)

	require.NoError(t, s.Connect(context.Background(), " ", "", "\t"))
	assert.Equal(t, []openCall{{"db://env", "env-user", "env-pass"}}, p.calls)
}

func TestConnect_CannotInfer(t *testing.T) {
	clearEnv(t)
	p := &fakeProvider{}
	s := New(p, nil)

	err := s.Connect(context.Background(), "", "", "")
	var cfgErr *option.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "`url` cannot be inferred", cfgErr.Message)

	err = s.Connect(context.Background(), "db://x", "", "")
	assert.EqualError(t, err, "`username` cannot be inferred")

	err = s.Connect(context.Background(), "db://x", "u", "")
	assert.EqualError(t, err, "`password` cannot be inferred")

	assert.Empty(t, p.calls)
	assertDisconnected(t, s)
}

func TestConnect_OpenFailureLeavesDisconnected(t *testing.T) {
	clearEnv(t)
	driverErr := errors.New("access denied for user 'u'")
	s := New(&fakeProvider{openErr: driverErr}, nil)

	err := s.Connect(context.Background(), "db://x", "u", "p")
	require.ErrorIs(t, err, driverErr)
	assert.Equal(t, driverErr.Error(), err.Error())

	var resErr *ResourceError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, "open", resErr.Op)
	assertDisconnected(t, s)
}

func TestConnect_NilHandleLeavesDisconnected(t *testing.T) {
	clearEnv(t)
	s := New(&fakeProvider{noHandle: true}, nil)

	err := s.Connect(context.Background(), "u", "n", "p")

	var re *ResourceError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "open", re.Op)
	assert.ErrorIs(t, err, ErrNoHandle)
	assertDisconnected(t, s)
}

func TestConnect_RefusedWhileConnected(t *testing.T) {
	clearEnv(t)
	p := &fakeProvider{}
	s := New(p, nil)
	require.NoError(t, s.Connect(context.Background(), "db://x", "u", "p"))

	assert.ErrorIs(t, s.Connect(context.Background(), "db://y", "u", "p"), ErrAlreadyConnected)
	assert.Len(t, p.calls, 1)
}

func TestClose_ClearsEvenWhenHandleCloseFails(t *testing.T) {
	clearEnv(t)
	p := &fakeProvider{}
	s := New(p, nil)
	require.NoError(t, s.Connect(context.Background(), "db://x", "u", "p"))

	closeErr := errors.New("connection reset")
	p.handles[0].closeErr = closeErr

	err := s.Close()
	require.ErrorIs(t, err, closeErr)
	assert.True(t, p.handles[0].closed)
	assertDisconnected(t, s)
}

func TestClose_NotConnected(t *testing.T) {
	s := New(&fakeProvider{}, nil)
	assert.ErrorIs(t, s.Close(), ErrNotConnected)
}

func TestReconnect_UsesSnapshot(t *testing.T) {
	clearEnv(t)
	p := &fakeProvider{}
	s := New(p, nil)
	require.NoError(t, s.Connect(context.Background(), "u", "n", "p"))

	require.NoError(t, s.Reconnect(context.Background()))
	assert.True(t, p.handles[0].closed)
	assert.Equal(t, []openCall{{"u", "n", "p"}, {"u", "n", "p"}}, p.calls)
	assert.True(t, s.Connected())
}

func TestReconnect_FailureDoesNotKeepCredentials(t *testing.T) {
	clearEnv(t)
	p := &fakeProvider{}
	s := New(p, nil)
	require.NoError(t, s.Connect(context.Background(), "u", "n", "p"))

	openErr := errors.New("host unreachable")
	p.openErr = openErr

	err := s.Reconnect(context.Background())
	require.ErrorIs(t, err, openErr)
	assertDisconnected(t, s)

	// Nothing was persisted, so a bare connect has nothing to fall back on.
	p.openErr = nil
	err = s.Connect(context.Background(), "", "", "")
	assert.EqualError(t, err, "`url` cannot be inferred")
	assert.Len(t, p.calls, 2)
}

func TestReconnect_CloseFailureStillReconnects(t *testing.T) {
	clearEnv(t)
	p := &fakeProvider{}
	s := New(p, nil)
	require.NoError(t, s.Connect(context.Background(), "u", "n", "p"))

	closeErr := errors.New("broken pipe")
	p.handles[0].closeErr = closeErr

	err := s.Reconnect(context.Background())
	assert.ErrorIs(t, err, closeErr)
	assert.True(t, s.Connected())
	assert.Len(t, p.handles, 2)
}

func TestQueryAndExec(t *testing.T) {
	clearEnv(t)
	s := New(&fakeProvider{}, nil)

	_, err := s.Query(context.Background(), "select 1")
	assert.ErrorIs(t, err, ErrNotConnected)
	_, err = s.Exec(context.Background(), "delete from t")
	assert.ErrorIs(t, err, ErrNotConnected)

	require.NoError(t, s.Connect(context.Background(), "u", "n", "p"))

	rs, err := s.Query(context.Background(), "select 1")
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"select 1"}}, rs.Rows)

	n, err := s.Exec(context.Background(), "delete from t")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.True(t, s.Connected())
}

func TestGates(t *testing.T) {
	clearEnv(t)
	s := New(&fakeProvider{}, nil)
	connected, disconnected := s.ConnectedGate(), s.DisconnectedGate()

	assert.False(t, connected.Evaluate().Available)
	assert.Equal(t, "the connection is not established", connected.Evaluate().Reason)
	assert.True(t, disconnected.Evaluate().Available)

	require.NoError(t, s.Connect(context.Background(), "u", "n", "p"))

	assert.True(t, connected.Evaluate().Available)
	assert.False(t, disconnected.Evaluate().Available)
	assert.Equal(t, "your connection is still alive", disconnected.Evaluate().Reason)
}
