//go:build linux

package process

import (
	"os/exec"
	"syscall"
)

// setProcAttr puts the child in its own process group so the whole group,
// descendants included, can be signalled together. Pdeathsig delivers
// SIGTERM to the child if this process dies first.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGTERM,
	}
}
