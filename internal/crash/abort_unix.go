//go:build unix

package crash

import (
	"os"
	"os/signal"
	"syscall"
)

// abortProcess terminates abnormally. Raising SIGABRT with the default
// disposition restored lets the platform produce a core dump alongside the
// spooled annotations; the exit fallback covers a masked signal.
func abortProcess() {
	signal.Reset(syscall.SIGABRT)
	_ = syscall.Kill(os.Getpid(), syscall.SIGABRT)
	os.Exit(2)
}
