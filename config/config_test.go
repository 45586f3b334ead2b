package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultRuntimeValidates(t *testing.T) {
	r := NewDefaultRuntime()
	require.NoError(t, r.Validate())
}

func TestRuntimeRejectsZeroDepth(t *testing.T) {
	r := NewDefaultRuntime()
	r.MaxObjectDepth = 0
	require.Error(t, r.Validate())
}

func TestDefaultWriterOptionsValidates(t *testing.T) {
	w := DefaultWriterOptions()
	require.NoError(t, w.Validate())
}

func TestWriterOptionsRejectsBadMode(t *testing.T) {
	w := DefaultWriterOptions()
	w.ObjectStreams = "bogus"
	require.Error(t, w.Validate())
}
