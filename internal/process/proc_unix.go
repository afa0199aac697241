//go:build !windows

package process

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/dshills/scaffoldhost/internal/event"
)

// setupProcessGroup starts the child as the leader of a new process group.
func setupProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// killProcessTree sends SIGKILL to the child's process group, falling back
// to the child alone if the group cannot be signalled.
func killProcessTree(p *os.Process) error {
	if p == nil {
		return os.ErrProcessDone
	}

	err := unix.Kill(-p.Pid, unix.SIGKILL)
	if err == nil {
		return nil
	}
	if kerr := p.Kill(); kerr != nil {
		if errors.Is(err, unix.ESRCH) {
			return kerr
		}
		return errors.Join(err, kerr)
	}
	return nil
}

// exitStatus decodes a finished process state. A child terminated by a
// signal has no exit code.
func exitStatus(ps *os.ProcessState) event.Exit {
	if ps == nil {
		return event.Exit{}
	}
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return event.ExitSignal(int(ws.Signal()))
	}
	return event.ExitCode(ps.ExitCode())
}
