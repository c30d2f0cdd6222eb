package xerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessage(t *testing.T) {
	err := New(BadConfig, "missing rules directory")
	assert.Equal(t, "bad_config: missing rules directory", err.Error())
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(cause, ReportWriteFailed, "writing XFI_RESULT.json")

	assert.Equal(t, cause, err.Unwrap())
	assert.Contains(t, err.Error(), "disk full")
	assert.True(t, errors.Is(err, cause))
}

func TestOf(t *testing.T) {
	err := Newf(InvalidRule, "rule %q has no conditions", "R1")
	require.True(t, Of(err, InvalidRule))
	require.False(t, Of(err, BadConfig))
	require.False(t, Of(errors.New("plain"), InvalidRule))
}
