//go:build !windows

package process

import (
	"errors"

	"golang.org/x/sys/unix"
)

func (p *processInstance) Terminate() error {
	return p.signal(unix.SIGTERM)
}

func (p *processInstance) Kill() error {
	return p.signal(unix.SIGKILL)
}

func (p *processInstance) signal(sig unix.Signal) error {
	if p.exited() || p.cmd.Process == nil {
		return nil
	}
	_, err := p.signalGroup(sig)
	if err == nil {
		return nil
	}
	// Fall back to the direct child when the group cannot be signalled.
	pid := p.cmd.Process.Pid
	if direct := unix.Kill(pid, sig); direct != nil && !errors.Is(direct, unix.ESRCH) {
		return err
	}
	return nil
}
