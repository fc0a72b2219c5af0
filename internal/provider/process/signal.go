package process

import (
	"os"
	"syscall"
)

// signalGroup delivers sig to the child's whole process group. The negative
// pid addresses the group rather than the single process. Errors are
// ignored: the group may already be gone.
func signalGroup(p *os.Process, sig syscall.Signal) {
	if p == nil {
		return
	}
	_ = syscall.Kill(-p.Pid, sig)
}

// killGroup delivers SIGKILL to the child's whole process group.
func killGroup(p *os.Process) {
	signalGroup(p, syscall.SIGKILL)
}
