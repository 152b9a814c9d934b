//go:build unix

package host

import (
	"fmt"
	"os"
	"syscall"
)

func reexec() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}
	return syscall.Exec(exe, os.Args, os.Environ())
}
