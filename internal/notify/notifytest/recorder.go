// Package notifytest provides a recording Scheduler for tests.
package notifytest

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/arnold/habitgrid-api/internal/notify"
)

// Call is one scheduler invocation in the order it happened.
type Call struct {
	Op      string
	ID      string
	Request notify.Request
}

// Recorder keeps registrations in memory. FailWeekdays makes Schedule fail
// for the given 1-based weekdays; FailCancel makes Cancel fail for handles.
type Recorder struct {
	mu           sync.Mutex
	seq          int
	Live         map[string]notify.Request
	Calls        []Call
	FailWeekdays map[int]bool
	FailCancel   map[string]bool
	Denied       bool

	// OnCall, when set, observes every Schedule and Cancel call.
	OnCall func(Call)
}

func New() *Recorder {
	return &Recorder{
		Live:         make(map[string]notify.Request),
		FailWeekdays: make(map[int]bool),
		FailCancel:   make(map[string]bool),
	}
}

func (r *Recorder) RequestPermission(ctx context.Context, owner uuid.UUID) (bool, error) {
	return !r.Denied, nil
}

func (r *Recorder) Schedule(ctx context.Context, req notify.Request) (string, error) {
	r.mu.Lock()
	call := Call{Op: "schedule", Request: req}
	if r.FailWeekdays[req.Trigger.Weekday] {
		r.Calls = append(r.Calls, call)
		r.mu.Unlock()
		r.observe(call)
		return "", fmt.Errorf("weekday %d rejected", req.Trigger.Weekday)
	}
	r.seq++
	id := fmt.Sprintf("n%d", r.seq)
	call.ID = id
	r.Live[id] = req
	r.Calls = append(r.Calls, call)
	r.mu.Unlock()
	r.observe(call)
	return id, nil
}

func (r *Recorder) Cancel(ctx context.Context, id string) error {
	r.mu.Lock()
	call := Call{Op: "cancel", ID: id}
	r.Calls = append(r.Calls, call)
	fail := r.FailCancel[id]
	if !fail {
		delete(r.Live, id)
	}
	r.mu.Unlock()
	r.observe(call)
	if fail {
		return fmt.Errorf("cancel %s rejected", id)
	}
	return nil
}

func (r *Recorder) List(ctx context.Context) ([]notify.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.Registration, 0, len(r.Live))
	for id, req := range r.Live {
		out = append(out, notify.Registration{ID: id, Owner: req.Owner, Tag: req.Tag})
	}
	return out, nil
}

// Ops returns the operations recorded so far.
func (r *Recorder) Ops() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.Calls...)
}

func (r *Recorder) LiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Live)
}

func (r *Recorder) observe(c Call) {
	if r.OnCall != nil {
		r.OnCall(c)
	}
}
