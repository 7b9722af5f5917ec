//go:build windows

package crash

import "os"

// abortProcess terminates abnormally. Exit code 3 matches the C runtime's
// abort() convention on Windows.
func abortProcess() {
	os.Exit(3)
}
