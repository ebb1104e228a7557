//go:build windows

package process

import (
	"errors"
	"fmt"
	"os"
)

func (p *processInstance) Terminate() error {
	if p.exited() || p.cmd.Process == nil {
		return nil
	}
	// Interrupt is not deliverable to most Windows processes; the grace
	// period then ends in Kill.
	_ = p.cmd.Process.Signal(os.Interrupt)
	return nil
}

func (p *processInstance) Kill() error {
	if p.exited() || p.cmd.Process == nil {
		return nil
	}
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill process %s: %w", p.name, err)
	}
	return nil
}

// Windows tasks are not tracked as groups; leftovers are never reported.
func (p *processInstance) TerminateGroup() (bool, error) { return false, nil }

func (p *processInstance) GroupRunning() bool { return false }

func (p *processInstance) KillGroup() error { return nil }
