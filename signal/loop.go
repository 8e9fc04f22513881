package signal

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

// LoopOptions configures a supervised receive loop.
type LoopOptions struct {
	// IdleTimeout stops the loop after that long without an impulse.
	// Zero means wait forever.
	IdleTimeout time.Duration
}

// Loop supervises a Receiver: it repeatedly waits for impulses and
// hands dispatch results to a sink, and it is the one place that can
// abandon the receiver's bare blocking wait. Cancelling the context or
// hitting the idle timeout closes the receiver to unblock it, so a
// Loop consumes its receiver.
type Loop[A, R any] struct {
	rx *Receiver[A, R]

	logger *slog.Logger
	clock  clock.Clock
	opts   LoopOptions
}

func NewLoop[A, R any](
	rx *Receiver[A, R],
	logger *slog.Logger,
	clock clock.Clock,
	opts LoopOptions,
) *Loop[A, R] {
	return &Loop[A, R]{
		rx:     rx,
		logger: logger.With("tract", rx.TractName()),
		clock:  clock,
		opts:   opts,
	}
}

// Run dispatches impulses until ctx is cancelled, the idle timeout
// fires, or the receiver's socket fails. Unrecognized impulses are
// logged and skipped; a peer with a stale table must not kill the
// listener. Returns nil on idle timeout, ctx.Err() on cancellation.
func (l *Loop[A, R]) Run(ctx context.Context, buf []byte, args A, sink func(R)) error {
	done := make(chan struct{})

	var idle *clock.Timer
	var idleC <-chan time.Time // nil unless armed; never fires
	if l.opts.IdleTimeout > 0 {
		idle = l.clock.Timer(l.opts.IdleTimeout)
		defer idle.Stop()
		idleC = idle.C
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
		case <-idleC:
		case <-done:
			return
		}
		l.rx.Close()
	}()
	defer close(done)

	for {
		result, err := l.rx.Receive(buf, args)
		if err != nil {
			var unrecognized UnrecognizedImpulseError
			switch {
			case errors.As(err, &unrecognized):
				l.logger.Warn(
					"dropping unrecognized impulse",
					"impulse", unrecognized.Impulse.String(),
				)
				continue
			case isDecodeErr(err):
				// Foreign traffic; the wire is open to anyone.
				l.logger.Warn("dropping malformed datagram", "error", err.Error())
				continue
			case isClosedErr(err):
				// Cancelled, idled out, or closed externally.
				return ctx.Err()
			}
			return err
		}

		if idle != nil {
			idle.Stop()
			idle.Reset(l.opts.IdleTimeout)
		}

		sink(result)
	}
}
