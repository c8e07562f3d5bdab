package suite

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutorPassesPayloadAndArgs(t *testing.T) {
	dir := t.TempDir()
	payloadFile := filepath.Join(dir, "payload.json")
	argsFile := filepath.Join(dir, "args.txt")
	script := fmt.Sprintf("#!/bin/sh\necho \"$@\" > %s\ncat > %s\n", argsFile, payloadFile)
	hookPath := filepath.Join(dir, "capture")
	writeExecutable(t, hookPath, script)

	hook := &ExternalHook{ID: "capture", Path: hookPath}
	payload := Payload{
		Hook:  "capture",
		Repo:  "PySDM",
		Owner: "open-atmos",
		Fix:   true,
		Files: []string{"a.ipynb", "b.ipynb"},
	}

	err := NewExecutor(0).Execute(context.Background(), hook, []string{"--strict"}, payload)
	require.NoError(t, err)

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Equal(t, "run --strict\n", string(args))

	var got Payload
	data, err := os.ReadFile(payloadFile)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, payload, got)
}

func TestExecutorFailureCarriesStderr(t *testing.T) {
	dir := t.TempDir()
	hookPath := filepath.Join(dir, "failing")
	writeExecutable(t, hookPath, "#!/bin/sh\ncat > /dev/null\necho 'spelling errors found' >&2\nexit 1\n")

	hook := &ExternalHook{ID: "failing", Path: hookPath}
	err := NewExecutor(0).Execute(context.Background(), hook, nil, Payload{Hook: "failing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hook failing failed")
	assert.Contains(t, err.Error(), "spelling errors found")
}

func TestExecutorTimeout(t *testing.T) {
	dir := t.TempDir()
	hookPath := filepath.Join(dir, "slow")
	// Redirect the child's fds so killing the shell closes the output
	// pipes instead of leaving sleep holding them open.
	writeExecutable(t, hookPath, "#!/bin/sh\ncat > /dev/null\nsleep 5 > /dev/null 2>&1\n")

	hook := &ExternalHook{ID: "slow", Path: hookPath}
	start := time.Now()
	err := NewExecutor(100 * time.Millisecond).Execute(context.Background(), hook, nil, Payload{Hook: "slow"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out after 100ms")
	assert.Less(t, time.Since(start), 3*time.Second)
}
