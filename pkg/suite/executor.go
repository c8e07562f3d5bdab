package suite

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/AgnieszkaZaba/devops-tests/pkg/osutil"
)

// DefaultTimeout bounds a single external hook execution.
const DefaultTimeout = 60 * time.Second

// Payload is what an external hook reads from stdin when invoked with
// the "run" argument.
type Payload struct {
	Hook  string   `json:"hook"`
	Repo  string   `json:"repo"`
	Owner string   `json:"owner"`
	Fix   bool     `json:"fix"`
	Files []string `json:"files"`
}

// Executor runs external hooks with timeout enforcement.
type Executor struct {
	timeout time.Duration

	// Dir is the working directory hook processes start in, so the
	// relative paths in the payload resolve. Empty inherits the
	// caller's directory.
	Dir string
}

// NewExecutor creates an executor; a zero timeout means DefaultTimeout.
func NewExecutor(timeout time.Duration) *Executor {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Executor{timeout: timeout}
}

// Execute invokes the hook with the "run" argument plus any configured
// extra args, feeding it the JSON payload on stdin. A non-zero exit
// comes back as an error carrying the hook's stderr.
func (e *Executor) Execute(ctx context.Context, hook *ExternalHook, args []string, payload Payload) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "failed to marshal payload")
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	argv := append([]string{"run"}, args...)
	cmd := exec.CommandContext(ctx, hook.Path, argv...)
	cmd.Dir = e.Dir
	cmd.Stdin = bytes.NewReader(payloadBytes)
	// Hooks may spawn children; a timeout must take the whole tree down.
	osutil.SetProcessGroup(cmd)
	osutil.SetProcessGroupKill(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return errors.Errorf("hook %s timed out after %s", hook.ID, e.timeout)
		}
		return errors.Wrapf(err, "hook %s failed: %s", hook.ID, strings.TrimSpace(stderr.String()))
	}

	return nil
}
