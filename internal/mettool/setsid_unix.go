//go:build !windows

package mettool

import "syscall"

// sessionAttr starts the tool in its own session so it never reads from the
// wrapper's terminal.
func sessionAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}
