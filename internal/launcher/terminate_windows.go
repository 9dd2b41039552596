//go:build windows

package launcher

import (
	"errors"
	"os/exec"
)

func configureSysProcAttr(*exec.Cmd) {}

// Windows has no graceful termination signal for arbitrary GUI processes, so
// both paths kill outright.
func terminateProcess(cmd *exec.Cmd) error {
	return killProcess(cmd)
}

func killProcess(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return errors.New("no process")
	}
	return cmd.Process.Kill()
}
