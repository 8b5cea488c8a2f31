package scan_test

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/tapgate/server/internal/tapgate/scan"
	"github.com/tapgate/server/internal/tapgate/types"
)

type fakeSource struct {
	ch chan string
}

func (f *fakeSource) Tags() <-chan string { return f.ch }

// fakeVerifier signals on started when a verification begins and blocks
// until release is closed (when release is non-nil).
type fakeVerifier struct {
	started chan string
	release chan struct{}
	err     error
}

func (f *fakeVerifier) Verify(ctx context.Context, uid string) (types.VerificationResult, error) {
	if f.started != nil {
		f.started <- uid
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return types.VerificationResult{}, ctx.Err()
		}
	}
	if f.err != nil {
		return types.VerificationResult{}, f.err
	}
	return types.VerificationResult{Status: types.StatusValid}, nil
}

func newTestSession(t *testing.T, src *fakeSource, v *fakeVerifier) *scan.Session {
	t.Helper()

	s := scan.NewSession(src, v, time.Second, log.New(io.Discard, "", 0))
	s.Start(context.Background())
	t.Cleanup(s.Stop)
	return s
}

func recvOutcome(t *testing.T, s *scan.Session) scan.Outcome {
	t.Helper()

	select {
	case out, ok := <-s.Results():
		if !ok {
			t.Fatal("results channel closed unexpectedly")
		}
		return out
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for outcome")
		return scan.Outcome{}
	}
}

func TestSession_DeliversOutcomePerTap(t *testing.T) {
	src := &fakeSource{ch: make(chan string)}
	s := newTestSession(t, src, &fakeVerifier{})

	src.ch <- "tag-1"

	out := recvOutcome(t, s)
	if out.UID != "tag-1" || out.Err != nil {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if out.Result.Status != types.StatusValid {
		t.Errorf("expected valid, got %q", out.Result.Status)
	}
}

func TestSession_DropsTagsWhileBusy(t *testing.T) {
	src := &fakeSource{ch: make(chan string)}
	v := &fakeVerifier{
		started: make(chan string, 1),
		release: make(chan struct{}),
	}
	s := newTestSession(t, src, v)

	src.ch <- "tag-1"
	<-v.started // verification for tag-1 is now in flight

	// These arrive while busy and must be ignored.
	src.ch <- "tag-2"
	src.ch <- "tag-3"

	close(v.release)

	out := recvOutcome(t, s)
	if out.UID != "tag-1" {
		t.Fatalf("expected outcome for tag-1, got %q", out.UID)
	}

	// The loop stays live after a drop: a fresh tap verifies normally.
	v.release = nil
	src.ch <- "tag-4"
	<-v.started
	out = recvOutcome(t, s)
	if out.UID != "tag-4" {
		t.Fatalf("expected outcome for tag-4, got %q", out.UID)
	}

	select {
	case out := <-s.Results():
		t.Fatalf("dropped tags produced an outcome: %+v", out)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSession_SurfacesVerifyError(t *testing.T) {
	src := &fakeSource{ch: make(chan string)}
	wantErr := context.DeadlineExceeded
	s := newTestSession(t, src, &fakeVerifier{err: wantErr})

	src.ch <- "tag-1"

	out := recvOutcome(t, s)
	if out.Err != wantErr {
		t.Fatalf("expected %v, got %v", wantErr, out.Err)
	}
}

func TestSession_StopBeforeStart_NoOp(t *testing.T) {
	src := &fakeSource{ch: make(chan string)}
	s := scan.NewSession(src, &fakeVerifier{}, time.Second, log.New(io.Discard, "", 0))

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop on an unstarted session blocked")
	}
}

func TestSession_StopClosesResults(t *testing.T) {
	src := &fakeSource{ch: make(chan string)}
	s := scan.NewSession(src, &fakeVerifier{}, time.Second, log.New(io.Discard, "", 0))
	s.Start(context.Background())
	s.Stop()

	if _, ok := <-s.Results(); ok {
		t.Fatal("expected results channel to be closed after Stop")
	}
}

func TestSession_SourceCloseEndsSession(t *testing.T) {
	src := &fakeSource{ch: make(chan string)}
	s := scan.NewSession(src, &fakeVerifier{}, time.Second, log.New(io.Discard, "", 0))
	s.Start(context.Background())

	close(src.ch)

	select {
	case _, ok := <-s.Results():
		if ok {
			t.Fatal("expected closed results channel, got an outcome")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("session did not shut down after source closed")
	}
	s.Stop()
}
