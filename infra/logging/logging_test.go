package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l, err := New("warn", FormatJSON, &buf)
	require.NoError(t, err)
	l = Module(l, "service")

	l.Info().Msg("dropped")
	l.Warn().Uint64("market", 3).Msg("kept")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["message"])
	assert.Equal(t, "service", line["module"])
	assert.Equal(t, "warn", line["level"])
	assert.EqualValues(t, 3, line["market"])
}

func TestPlainLogger(t *testing.T) {
	var buf bytes.Buffer
	l, err := New("", FormatPlain, &buf)
	require.NoError(t, err)
	l.Info().Str("k", "v").Msg("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.Contains(t, buf.String(), "k=v")
}

func TestInvalidSettings(t *testing.T) {
	_, err := New("loud", FormatJSON, &bytes.Buffer{})
	require.Error(t, err)
	_, err = New("info", "xml", &bytes.Buffer{})
	require.Error(t, err)
}
