//go:build windows

package organize

import (
	"errors"
	"os"
	"syscall"
)

// ERROR_NOT_SAME_DEVICE is what MoveFile reports for cross-volume renames.
const errNotSameDevice = syscall.Errno(17)

func isCrossDevice(err error) bool {
	if errors.Is(err, errNotSameDevice) {
		return true
	}
	var le *os.LinkError
	return errors.As(err, &le) && errors.Is(le.Err, errNotSameDevice)
}
