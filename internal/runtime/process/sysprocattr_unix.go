//go:build !windows

package process

import (
	"errors"
	"fmt"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// Every task leads its own process group so stops reach the processes it
// forks. The group id stays reserved while any member is alive, so the group
// can still be signalled after the task process itself has been reaped.
func configureCmdSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// signalGroup delivers sig to the task's process group. It reports false
// when no process is left in the group.
func (p *processInstance) signalGroup(sig unix.Signal) (bool, error) {
	if p.cmd.Process == nil {
		return false, nil
	}
	err := unix.Kill(-p.cmd.Process.Pid, sig)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, unix.ESRCH):
		return false, nil
	default:
		return false, fmt.Errorf("signal %s group %s: %w", p.name, unix.SignalName(sig), err)
	}
}

func (p *processInstance) TerminateGroup() (bool, error) {
	if !p.exited() {
		return false, nil
	}
	return p.signalGroup(unix.SIGTERM)
}

func (p *processInstance) GroupRunning() bool {
	if !p.exited() {
		return false
	}
	alive, _ := p.signalGroup(0)
	return alive
}

func (p *processInstance) KillGroup() error {
	if !p.exited() {
		return nil
	}
	_, err := p.signalGroup(unix.SIGKILL)
	return err
}
