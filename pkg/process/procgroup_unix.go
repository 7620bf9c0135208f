//go:build unix

package process

import (
	"os"
	"os/exec"
	"syscall"
)

// killProcessGroup starts the shell as the leader of a new process group and makes
// cancellation kill the whole group, so pipeline stages cannot outlive the analyzer.
func killProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		if err == syscall.ESRCH {
			return os.ErrProcessDone
		}
		return err
	}
}
