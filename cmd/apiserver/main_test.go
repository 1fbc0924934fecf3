package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleka07/onchain-agent/pkg/lifecycle"
)

func TestVersionCommand(t *testing.T) {
	exitCode := lifecycle.ExitOK
	cmd := newRootCmd(&exitCode)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "apiserver dev")
}

func TestExecute_MissingStorageURIExitsNonZero(t *testing.T) {
	if prev, ok := os.LookupEnv("MONGODB_URI"); ok {
		t.Cleanup(func() { os.Setenv("MONGODB_URI", prev) })
	}
	os.Unsetenv("MONGODB_URI")
	t.Cleanup(func() { os.Unsetenv("MONGODB_URI") })

	envFile := filepath.Join(t.TempDir(), "absent.env")
	code := execute([]string{"--env-file", envFile})
	assert.Equal(t, lifecycle.ExitFailure, code)
}

func TestExecute_BlankStorageURIExitsNonZero(t *testing.T) {
	t.Setenv("MONGODB_URI", "   ")

	envFile := filepath.Join(t.TempDir(), "absent.env")
	code := execute([]string{"--env-file", envFile})
	assert.Equal(t, lifecycle.ExitFailure, code)
}

func TestExecute_UnsupportedStorageExitsNonZero(t *testing.T) {
	t.Setenv("MONGODB_URI", "redis://localhost:6379")

	envFile := filepath.Join(t.TempDir(), "absent.env")
	code := execute([]string{"--env-file", envFile})
	assert.Equal(t, lifecycle.ExitFailure, code)
}

func TestExecute_UnknownArgs(t *testing.T) {
	code := execute([]string{"unexpected"})
	assert.Equal(t, lifecycle.ExitFailure, code)
}
