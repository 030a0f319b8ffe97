package supervisor

import (
	"os/exec"
	"sync/atomic"
	"time"
)

// RunningInstance is the supervisor's in-memory record of a spawned
// listener child: who it is, when it started, and whether it is still
// alive. It does not persist across supervisor restarts.
type RunningInstance struct {
	VMName    string
	StartedAt time.Time

	cmd     *exec.Cmd
	done    chan struct{}
	exited  atomic.Bool
	waitErr error
}

// spawn starts cmd and begins reaping it in the background, recording
// its exit so IsAlive reflects reality without blocking on Wait.
func spawn(vmName string, cmd *exec.Cmd) (*RunningInstance, error) {
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	inst := &RunningInstance{
		VMName:    vmName,
		StartedAt: time.Now(),
		cmd:       cmd,
		done:      make(chan struct{}),
	}

	go func() {
		inst.waitErr = cmd.Wait()
		inst.exited.Store(true)
		close(inst.done)
	}()

	return inst, nil
}

// IsAlive reports whether the child process has not yet exited.
func (r *RunningInstance) IsAlive() bool {
	return r != nil && !r.exited.Load()
}

// ExitErr returns the error Wait() returned, valid only once !IsAlive().
func (r *RunningInstance) ExitErr() error {
	return r.waitErr
}
