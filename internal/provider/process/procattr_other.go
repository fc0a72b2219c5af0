//go:build !linux

package process

import (
	"os/exec"
	"syscall"
)

// setProcAttr puts the child in its own process group so the whole group,
// descendants included, can be signalled together. Pdeathsig is not
// available off Linux.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}
