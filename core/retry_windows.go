//go:build windows

package core

import (
	"errors"
	"os"
	"syscall"
)

// ERROR_SHARING_VIOLATION: the file is open in another process.
const errSharingViolation = syscall.Errno(32)

func isRetryable(err error) bool {
	return os.IsPermission(err) || errors.Is(err, errSharingViolation)
}
