//go:build unix

package core

import "os"

// A file held open by another process surfaces as a permission failure.
func isRetryable(err error) bool {
	return os.IsPermission(err)
}
