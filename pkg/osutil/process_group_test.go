//go:build unix

package osutil

import (
	"context"
	"os"
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetProcessGroup(t *testing.T) {
	cmd := exec.Command("echo", "test")
	SetProcessGroup(cmd)

	require.NotNil(t, cmd.SysProcAttr)
	assert.True(t, cmd.SysProcAttr.Setpgid, "Setpgid should be true")
}

func TestSetProcessGroupKill_KillsEntireProcessGroup(t *testing.T) {
	// A cancelled command must take its children down with it.

	script := `
		(trap '' TERM; while true; do sleep 0.1; done) &
		CHILD_PID=$!
		echo "CHILD:$CHILD_PID"
		trap '' TERM
		while true; do sleep 0.1; done
	`

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "bash", "-c", script)
	SetProcessGroup(cmd)
	SetProcessGroupKill(cmd)

	stdout, err := cmd.StdoutPipe()
	require.NoError(t, err)

	err = cmd.Start()
	require.NoError(t, err)

	parentPid := cmd.Process.Pid

	// Read the child PID from stdout
	buf := make([]byte, 100)
	n, err := stdout.Read(buf)
	require.NoError(t, err)

	var childPid int
	_, err = parseChildPid(string(buf[:n]), &childPid)
	require.NoError(t, err, "Failed to parse child PID from output: %s", string(buf[:n]))

	// Give processes time to start
	time.Sleep(200 * time.Millisecond)

	// Verify both processes are running
	err = syscall.Kill(parentPid, 0)
	require.NoError(t, err, "Parent process should be running")
	err = syscall.Kill(childPid, 0)
	require.NoError(t, err, "Child process should be running")

	// Cancel the context to trigger the Cancel function
	cancel()

	// Wait for the parent process to exit
	_ = cmd.Wait()

	// Give a moment for process cleanup
	time.Sleep(100 * time.Millisecond)

	// Verify both processes are terminated
	err = syscall.Kill(parentPid, 0)
	assert.Error(t, err, "Parent process should be terminated")
	err = syscall.Kill(childPid, 0)
	assert.Error(t, err, "Child process should be terminated")
}

func TestSetProcessGroupKill_IgnoresSigterm(t *testing.T) {
	// SIGKILL on the group terminates even processes that trap SIGTERM.

	script := `trap '' TERM; while true; do sleep 0.1; done`

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "bash", "-c", script)
	SetProcessGroup(cmd)
	SetProcessGroupKill(cmd)

	err := cmd.Start()
	require.NoError(t, err)

	pid := cmd.Process.Pid

	// Give the process time to set up its trap handler
	time.Sleep(200 * time.Millisecond)

	err = syscall.Kill(pid, 0)
	require.NoError(t, err, "Process should be running")

	cancel()
	_ = cmd.Wait()

	err = syscall.Kill(pid, 0)
	assert.Error(t, err, "Process should be terminated")
}

// parseChildPid extracts child PID from output like "CHILD:12345\n"
func parseChildPid(output string, pid *int) (string, error) {
	prefix := "CHILD:"
	if len(output) < len(prefix) || output[:len(prefix)] != prefix {
		return output, os.ErrInvalid
	}

	rest := output[len(prefix):]
	var num int
	for i, c := range rest {
		if c >= '0' && c <= '9' {
			num = num*10 + int(c-'0')
		} else {
			if i == 0 {
				return output, os.ErrInvalid
			}
			break
		}
	}

	*pid = num
	return output, nil
}
