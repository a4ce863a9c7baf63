package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrInvalidTime    = errors.New("alarm time out of range")
	ErrInvalidTrigger = errors.New("invalid notification trigger")
)

// WeekMask marks the weekdays an alarm repeats on, Sunday at index 0.
type WeekMask [7]bool

func MaskFromSlice(in []bool) WeekMask {
	var m WeekMask
	copy(m[:], in)
	return m
}

func (m WeekMask) Slice() []bool {
	return append([]bool(nil), m[:]...)
}

func (m WeekMask) Any() bool {
	for _, on := range m {
		if on {
			return true
		}
	}
	return false
}

func (m WeekMask) All() bool {
	for _, on := range m {
		if !on {
			return false
		}
	}
	return true
}

// Identifiers holds the scheduler handle per weekday. A stored alarm has a
// handle on exactly the weekdays its mask enables.
type Identifiers [7]*string

func IdentifiersFromSlice(in []*string) Identifiers {
	var ids Identifiers
	copy(ids[:], in)
	return ids
}

func (ids Identifiers) Slice() []*string {
	return append([]*string(nil), ids[:]...)
}

// Handles lists the non-nil handles.
func (ids Identifiers) Handles() []string {
	var out []string
	for _, id := range ids {
		if id != nil {
			out = append(out, *id)
		}
	}
	return out
}

func (ids Identifiers) Contains(handle string) bool {
	for _, id := range ids {
		if id != nil && *id == handle {
			return true
		}
	}
	return false
}

// ConsistentWith reports whether handles sit exactly on the weekdays the
// mask enables.
func (ids Identifiers) ConsistentWith(mask WeekMask) bool {
	return ids.Mask() == mask
}

// Mask returns the weekdays that hold a handle.
func (ids Identifiers) Mask() WeekMask {
	var m WeekMask
	for i, id := range ids {
		m[i] = id != nil
	}
	return m
}

// Trigger fires weekly at Hour:Minute on Weekday, where 1 is Sunday and 7 is
// Saturday.
type Trigger struct {
	Weekly  bool
	Hour    int
	Minute  int
	Weekday int
}

func (t Trigger) Validate() error {
	if !t.Weekly || t.Weekday < 1 || t.Weekday > 7 || t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 {
		return fmt.Errorf("%w: %+v", ErrInvalidTrigger, t)
	}
	return nil
}

// Request is one registration handed to the scheduler.
type Request struct {
	Owner   uuid.UUID
	Tag     string
	Title   string
	Body    string
	Sound   bool
	Trigger Trigger
}

// Scheduler is the platform facility that fires local notifications.
type Scheduler interface {
	RequestPermission(ctx context.Context, owner uuid.UUID) (bool, error)
	Schedule(ctx context.Context, req Request) (string, error)
	Cancel(ctx context.Context, id string) error
}

// Registration is a live scheduler entry as reported by a Lister.
type Registration struct {
	ID    string
	Owner uuid.UUID
	Tag   string
}

// Lister is implemented by schedulers that can enumerate their registrations.
type Lister interface {
	List(ctx context.Context) ([]Registration, error)
}
