package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RedactsSensitiveKeys(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, Options{Level: "debug", JSON: true})
	require.NoError(t, err)

	logger.Debug("connect", "url", "sqlite:/tmp/a.db", "password", "hunter2", "Token", "abc")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "sqlite:/tmp/a.db", rec["url"])
	assert.Equal(t, "[REDACTED]", rec["password"])
	assert.Equal(t, "[REDACTED]", rec["Token"])
	assert.NotContains(t, buf.String(), "hunter2")
}

func TestNew_DefaultLevelIsWarn(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, Options{})
	require.NoError(t, err)

	logger.Info("quiet")
	assert.Empty(t, buf.String())

	logger.Warn("loud")
	assert.Contains(t, buf.String(), "loud")
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("ERROR")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelError, l)

	_, err = New(&bytes.Buffer{}, Options{Level: "chatty"})
	assert.EqualError(t, err, `invalid log level "chatty"`)
}
