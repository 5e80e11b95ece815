package transcription

import (
	"context"
	"sync/atomic"
)

type JobState int32

const (
	JobQueued JobState = iota
	JobAssigned
	JobRunning
	JobCompleted
	JobFailed
)

func (s JobState) String() string {
	switch s {
	case JobQueued:
		return "queued"
	case JobAssigned:
		return "assigned"
	case JobRunning:
		return "running"
	case JobCompleted:
		return "completed"
	case JobFailed:
		return "failed"
	}
	return "unknown"
}

// Handle is the completion handle of a submitted job. It resolves exactly once.
type Handle struct {
	id    string
	state atomic.Int32
	done  chan struct{}
	text  string
	err   error
}

func newHandle(id string) *Handle {
	return &Handle{id: id, done: make(chan struct{})}
}

func (h *Handle) ID() string { return h.id }

func (h *Handle) State() JobState { return JobState(h.state.Load()) }

// Done is closed once the job has completed or failed.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the job resolves or ctx is done. Giving up on a handle
// does not cancel the job.
func (h *Handle) Wait(ctx context.Context) (string, error) {
	select {
	case <-h.done:
		return h.text, h.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// advance moves the job forward to s. States never go backwards and a
// terminal state is final.
func (h *Handle) advance(s JobState) bool {
	for {
		cur := h.state.Load()
		if cur >= int32(s) || cur >= int32(JobCompleted) {
			return false
		}
		if h.state.CompareAndSwap(cur, int32(s)) {
			return true
		}
	}
}

func (h *Handle) resolve(text string, err error) {
	h.text, h.err = text, err
	if err != nil {
		h.advance(JobFailed)
	} else {
		h.advance(JobCompleted)
	}
	close(h.done)
}
