//go:build unix

package process

import (
	"os/exec"
	"syscall"
)

// detach places the child in its own process group so terminal-generated
// signals reach the supervisor only.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
