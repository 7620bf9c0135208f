//go:build !unix

package process

import "os/exec"

// killProcessGroup keeps the default cancellation, which kills only the shell
func killProcessGroup(cmd *exec.Cmd) {}
