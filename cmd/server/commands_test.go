package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeCommand(args ...string) (string, error) {
	root := newRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestRootHelp(t *testing.T) {
	out, err := executeCommand("--help")
	require.NoError(t, err)
	assert.Contains(t, out, "serve")
	assert.Contains(t, out, "migrate")
}

func TestMigrate_SQLite(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "ledger.db")
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
database:
  driver: sqlite
  path: `+dbPath+`
log:
  output: file
  file: `+filepath.Join(dir, "app.log")+`
`), 0o600))

	_, err := executeCommand("migrate", "--config", cfgPath)
	require.NoError(t, err)
	assert.FileExists(t, dbPath)
}

func TestMigrate_MissingConfig(t *testing.T) {
	_, err := executeCommand("migrate", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
