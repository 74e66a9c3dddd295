//go:build !windows

package daemon

import (
	"fmt"
	"syscall"
)

// IsRunning reports whether the process recorded in the pidfile is
// still alive, along with its PID. Signal 0 tests for existence
// without delivering anything.
func (p *PIDFile) IsRunning() (int, bool) {
	pid, err := p.Read()
	if err != nil {
		return 0, false
	}
	err = syscall.Kill(pid, 0)
	return pid, err == nil
}

// Signal delivers sig to the process recorded in the pidfile.
func (p *PIDFile) Signal(sig syscall.Signal) error {
	pid, err := p.Read()
	if err != nil {
		return fmt.Errorf("read PID file: %w", err)
	}
	return syscall.Kill(pid, sig)
}
