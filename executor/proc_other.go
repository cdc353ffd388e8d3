//go:build !linux

package executor

import "os/exec"

// setPlatformSpecificAttrs is a no-op: Pdeathsig only exists on Linux and
// exec.CommandContext already kills the script when the context ends.
func setPlatformSpecificAttrs(_ *exec.Cmd) {}
