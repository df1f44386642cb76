package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "libraryql version dev\n", out)
}

func TestSchema(t *testing.T) {
	out, err := run(t, "schema")
	require.NoError(t, err)
	assert.Contains(t, out, "type Query {")
	assert.Contains(t, out, "bookAdded: Book!")
}

func TestConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "libraryql.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store: memory\nauth:\n  secret: do not show\n"), 0o600))

	out, err := run(t, "config", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "store: memory")
	assert.Contains(t, out, "********")
	assert.False(t, strings.Contains(out, "do not show"), "secret printed: %s", out)
}

func TestServeBadStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "libraryql.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store: memory\nauth:\n  secret: s\n"), 0o600))

	_, err := run(t, "serve", "--config", path, "--store", "paper")
	assert.Error(t, err)
}
