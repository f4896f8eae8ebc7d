//go:build unix

package main

import (
	"os/exec"
	"syscall"
)

// detach starts coachd in a new session so closing the terminal does not
// send it SIGHUP.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
