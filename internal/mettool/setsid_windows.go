//go:build windows

package mettool

import "syscall"

// sessionAttr returns an empty SysProcAttr; Windows has no setsid.
func sessionAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{}
}
