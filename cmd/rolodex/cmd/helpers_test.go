package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/rolodex/configs"
)

// isolate points every config and data path at a fresh temp dir and
// makes it the working directory.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, ".config"))
	t.Setenv("ROLODEX_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("ROLODEX_EMBEDDINGS_PROVIDER", "static")
	t.Setenv("ROLODEX_REASONING_PROVIDER", "rules")
	t.Chdir(dir)
	return dir
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), err
}

// writeFixture writes the fixture address book into dir.
func writeFixture(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "contacts.json")
	require.NoError(t, os.WriteFile(path, configs.Contacts, 0o644))
	return path
}
