//go:build windows

package process

import (
	"os"
	"os/exec"
	"strconv"
	"syscall"

	"github.com/dshills/scaffoldhost/internal/event"
)

func setupProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.CreationFlags |= syscall.CREATE_NEW_PROCESS_GROUP
	cmd.SysProcAttr.HideWindow = true
}

// killProcessTree kills the child and every descendant with taskkill,
// falling back to killing the child alone.
func killProcessTree(p *os.Process) error {
	if p == nil {
		return os.ErrProcessDone
	}

	kill := exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(p.Pid))
	kill.SysProcAttr = &syscall.SysProcAttr{HideWindow: true}
	if err := kill.Run(); err != nil {
		return p.Kill()
	}
	return nil
}

// exitStatus decodes a finished process state. Windows has no signals.
func exitStatus(ps *os.ProcessState) event.Exit {
	if ps == nil {
		return event.Exit{}
	}
	return event.ExitCode(ps.ExitCode())
}
