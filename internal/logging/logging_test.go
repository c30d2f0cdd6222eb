package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelString(t *testing.T) {
	cases := map[Level]string{
		TraceLevel:    "trace",
		DebugLevel:    "debug",
		InfoLevel:     "info",
		WarnLevel:     "warn",
		ErrorLevel:    "error",
		DisabledLevel: "disabled",
		Level(99):     "unknown",
	}
	for level, want := range cases {
		assert.Equal(t, want, level.String())
	}
}

func TestNewDiscardsBelowConfiguredLevel(t *testing.T) {
	logger, err := New(Config{ConsoleLevel: DisabledLevel, FileLevel: DisabledLevel})
	require.NoError(t, err)
	// Should not panic even with every writer disabled.
	logger.Info().Msg("swallowed")
}

func TestNewFromVerbosity(t *testing.T) {
	logger, err := NewFromVerbosity(2)
	require.NoError(t, err)
	assert.Equal(t, "debug", logger.GetLevel().String())
}
