// Package l10nsched contains process-wide helpers shared by the l10n
// scheduler's commands: signal-driven context cancellation and an at-exit
// hook registry (RegisterAtExit/RunAtExit) whose hooks cmd/l10nsched runs
// before the process terminates.
package l10nsched

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// InterruptibleContext returns a context which is canceled when the scheduler
// receives SIGINT or SIGTERM, and a second signal forces immediate exit in
// case a reload or flush is wedged.
func InterruptibleContext() (context.Context, context.CancelFunc) {
	ctx, canc := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		// A second signal terminates immediately, in case cleanup (draining
		// the pending buffer, closing the ops listener) hangs.
		signal.Stop(sig)
		canc()
	}()
	return ctx, canc
}
