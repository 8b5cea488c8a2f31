// Package scan models the device side of tag discovery: a session owns
// one screen's scan lifecycle, consuming tag identifiers from an NFC
// source and running at most one verification at a time.  Discoveries
// arriving while a verification is in flight are dropped, so overlapping
// taps coalesce into the in-flight one.
package scan

import (
	"context"
	"log"
	"time"

	"github.com/tapgate/server/internal/tapgate/types"
)

// TagSource delivers scanned tag identifiers, at most one per physical
// tap.  The channel closes when the hardware source shuts down.
type TagSource interface {
	Tags() <-chan string
}

// Verifier resolves one tag identifier to a verification result.
type Verifier interface {
	Verify(ctx context.Context, uid string) (types.VerificationResult, error)
}

// Outcome is what the session emits per processed tap: the result, or a
// transport error the operator can retry by re-tapping.
type Outcome struct {
	UID    string
	Result types.VerificationResult
	Err    error
}

// Session is constructed per screen and torn down with Stop; it holds no
// process-wide state.
type Session struct {
	source  TagSource
	verify  Verifier
	timeout time.Duration
	logger  *log.Logger

	results chan Outcome
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSession creates a session but does not start it.  timeout bounds each
// verification call; 0 means 15 seconds.
func NewSession(source TagSource, verify Verifier, timeout time.Duration, logger *log.Logger) *Session {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Session{
		source:  source,
		verify:  verify,
		timeout: timeout,
		logger:  logger,
		results: make(chan Outcome),
		done:    make(chan struct{}),
	}
}

// Results delivers one Outcome per processed tap.  The channel closes when
// the session stops.
func (s *Session) Results() <-chan Outcome {
	return s.results
}

// Start begins consuming tag discoveries.  The loop exits when ctx is
// cancelled, Stop is called, or the tag source closes.
func (s *Session) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.loop(ctx)
}

// Stop tears the session down and waits for the loop to finish.  Calling
// Stop on a session that was never started is a no-op.
func (s *Session) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

func (s *Session) loop(ctx context.Context) {
	defer close(s.done)
	defer close(s.results)

	inflight := make(chan Outcome, 1)
	busy := false

	for {
		select {
		case <-ctx.Done():
			return

		case uid, ok := <-s.source.Tags():
			if !ok {
				return
			}
			if busy {
				// Single-in-flight discipline: ignore new discoveries
				// until the pending verification resolves.
				if s.logger != nil {
					s.logger.Printf("scan: dropped tag %q (verification in flight)", uid)
				}
				continue
			}
			busy = true
			go func(uid string) {
				callCtx, cancel := context.WithTimeout(ctx, s.timeout)
				defer cancel()
				res, err := s.verify.Verify(callCtx, uid)
				inflight <- Outcome{UID: uid, Result: res, Err: err}
			}(uid)

		case out := <-inflight:
			busy = false
			select {
			case s.results <- out:
			case <-ctx.Done():
				return
			}
		}
	}
}
