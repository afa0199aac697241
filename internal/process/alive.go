package process

import (
	"fmt"
	"strconv"

	ps "github.com/mitchellh/go-ps"
)

// Alive reports whether the OS has a process with the given PID.
func Alive(pid string) (bool, error) {
	n, err := strconv.Atoi(pid)
	if err != nil {
		return false, fmt.Errorf("invalid pid %q: %w", pid, err)
	}

	p, err := ps.FindProcess(n)
	if err != nil {
		return false, fmt.Errorf("find process %d: %w", n, err)
	}
	return p != nil, nil
}

// Children returns the PIDs of the direct children of pid.
func Children(pid string) ([]string, error) {
	n, err := strconv.Atoi(pid)
	if err != nil {
		return nil, fmt.Errorf("invalid pid %q: %w", pid, err)
	}

	procs, err := ps.Processes()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	var out []string
	for _, p := range procs {
		if p.PPid() == n {
			out = append(out, strconv.Itoa(p.Pid()))
		}
	}
	return out, nil
}
