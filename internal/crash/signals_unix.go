//go:build unix

package crash

import (
	"os"
	"os/signal"
	"syscall"
)

// installSignalHandler routes externally raised fatal signals into the
// crash path. Memory faults inside Go code surface as runtime panics and
// reach us through HandlePanic instead; os/signal only delivers SIGSEGV,
// SIGBUS and SIGFPE here when they were raised by another process or by
// non-Go code.
func (m *Manager) installSignalHandler() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGSEGV, syscall.SIGBUS, syscall.SIGFPE, syscall.SIGABRT)

	go func() {
		sig := <-ch
		// One shot: stop listening before handling so our own abort cannot
		// feed back into this channel.
		signal.Stop(ch)
		m.HandleCrash("signal: " + sig.String())
	}()
}
