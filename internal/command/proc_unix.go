//go:build unix

package command

import (
	"os/exec"
	"syscall"
)

// setProcessGroup starts cmd in its own process group so cancellation also
// kills the programs it spawned.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
