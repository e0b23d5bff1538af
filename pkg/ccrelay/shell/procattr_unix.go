//go:build !windows

package shell

import (
	"os/exec"
	"syscall"
)

// KillGroupOnCancel runs cmd in its own process group and makes context
// cancellation kill the whole group.
func KillGroupOnCancel(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
	cmd.Cancel = func() error {
		if cmd.Process != nil {
			return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		return nil
	}
}
