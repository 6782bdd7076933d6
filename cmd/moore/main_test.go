package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lightYAML = `name: light
initial: START
states:
  - id: START
    prompt: The light is off.
    transitions:
      STATE_ON: If user says to turn on the light
  - id: STATE_ON
    prompt: The light is on.
    transitions:
      START: If user says to turn off the light
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "moore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestValidateCommand(t *testing.T) {
	out, err := execute(t, "validate", "--config", writeConfig(t, lightYAML))
	require.NoError(t, err)
	assert.Contains(t, out, `Machine "light" is valid: 2 states, initial START`)

	broken := writeConfig(t, "initial: A\nstates: [{id: A, prompt: x, transitions: {B: never}}]\n")
	_, err = execute(t, "validate", "--config", broken)
	assert.ErrorContains(t, err, "validation failed")
}

func TestGraphCommand(t *testing.T) {
	out, err := execute(t, "graph", "--config", writeConfig(t, lightYAML))
	require.NoError(t, err)
	assert.Contains(t, out, "graph TD")
	assert.Contains(t, out, `START -- "If user says to turn on the light" --> STATE_ON`)
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "moore version ")
}
