//go:build linux

package executor

import (
	"os/exec"
	"syscall"
)

// setPlatformSpecificAttrs kills the script when the parent dies.
func setPlatformSpecificAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Pdeathsig: syscall.SIGKILL,
	}
}
