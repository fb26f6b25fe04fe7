package profiling

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_WritesBothProfiles(t *testing.T) {
	// Given: both profiles requested
	dir := t.TempDir()
	opts := Options{CPUPath: filepath.Join(dir, "cpu.prof"), HeapPath: filepath.Join(dir, "mem.prof")}

	// When: a session runs some work and stops
	s, err := Start(opts)
	require.NoError(t, err)
	sum := 0
	for i := 0; i < 1e6; i++ {
		sum += i % 7
	}
	_ = sum
	require.NoError(t, s.Stop())

	// Then: both files exist; the heap profile is never empty
	assert.FileExists(t, opts.CPUPath)
	info, err := os.Stat(opts.HeapPath)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestSession_StopIsIdempotent(t *testing.T) {
	s, err := Start(Options{HeapPath: filepath.Join(t.TempDir(), "mem.prof")})
	require.NoError(t, err)

	require.NoError(t, s.Stop())
	assert.NoError(t, s.Stop())

	var nilSession *Session
	assert.NoError(t, nilSession.Stop())
}

func TestStart_BadCPUPath(t *testing.T) {
	_, err := Start(Options{CPUPath: filepath.Join(t.TempDir(), "missing", "cpu.prof")})

	assert.Error(t, err)
}

func TestOptions_Enabled(t *testing.T) {
	assert.False(t, Options{}.Enabled())
	assert.True(t, Options{HeapPath: "mem.prof"}.Enabled())
}
