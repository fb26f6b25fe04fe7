package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// newProject creates a corpus directory with two documents and isolates
// HOME, the user config and CORPUSRANK_* variables from the host.
func newProject(t *testing.T) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, kv := range os.Environ() {
		if key, _, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(key, "CORPUSRANK_") {
			t.Setenv(key, "")
			_ = os.Unsetenv(key)
		}
	}

	dir := t.TempDir()
	writeDoc(t, dir, "ops/kubernetes.md", `---
title: Kubernetes operators
quality: preferred
tags: [platform]
---
# Operators

Kubernetes operators reconcile custom resources against the cluster state.
The reconcile loop watches resources and converges them.
`)
	writeDoc(t, dir, "notes/baking.txt", "Sourdough bread needs a mature starter, flour, water and salt.\n\nBake the loaf in a hot dutch oven.\n")
	return dir
}

func writeDoc(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// runCLI executes the root command and returns combined output.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	root := NewRootCmd()
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	_ = stopProfilingAndLogging(nil, nil)
	return buf.String(), err
}
