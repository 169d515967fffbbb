package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_FirstCallWins(t *testing.T) {
	t.Cleanup(Reset)
	var first, second bytes.Buffer

	Init(Options{Level: "debug", Output: &first, Service: "marketplace-agent"})
	Init(Options{Level: "error", Output: &second})

	l := Component("session")
	l.Debug().Msg("hello")

	assert.Zero(t, second.Len())
	var line map[string]any
	require.NoError(t, json.Unmarshal(first.Bytes(), &line))
	assert.Equal(t, "hello", line["message"])
	assert.Equal(t, "session", line["component"])
	assert.Equal(t, "marketplace-agent", line["service"])
}

func TestGet_BeforeInitIsNoop(t *testing.T) {
	Reset()
	assert.Equal(t, zerolog.Disabled, Get().GetLevel())
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		"DEBUG":   zerolog.DebugLevel,
		" warn ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"loud":    zerolog.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}
