package notify_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/arnold/habitgrid-api/internal/locale"
	"github.com/arnold/habitgrid-api/internal/notify"
	"github.com/arnold/habitgrid-api/internal/notify/notifytest"
)

func strp(s string) *string { return &s }

func TestScheduleSundayAndSaturday(t *testing.T) {
	rec := notifytest.New()
	m := notify.NewManager(rec, nil)

	ids, err := m.Schedule(context.Background(), notify.Plan{
		Owner:   uuid.New(),
		Hours:   7,
		Minutes: 30,
		Mask:    notify.WeekMask{true, false, false, false, false, false, true},
		Title:   "Run",
		Body:    "5km",
	})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	calls := rec.Ops()
	if len(calls) != 2 {
		t.Fatalf("expected 2 registrations, got %d", len(calls))
	}
	if calls[0].Request.Trigger.Weekday != 1 || calls[1].Request.Trigger.Weekday != 7 {
		t.Fatalf("unexpected weekdays %d and %d", calls[0].Request.Trigger.Weekday, calls[1].Request.Trigger.Weekday)
	}
	for _, c := range calls {
		tr := c.Request.Trigger
		if !tr.Weekly || tr.Hour != 7 || tr.Minute != 30 || !c.Request.Sound {
			t.Fatalf("unexpected request %+v", c.Request)
		}
	}

	if ids[0] == nil || ids[6] == nil {
		t.Fatalf("expected handles at 0 and 6, got %v", ids)
	}
	for i := 1; i < 6; i++ {
		if ids[i] != nil {
			t.Fatalf("unexpected handle at %d", i)
		}
	}
}

func TestSchedulePartialFailureKeepsOtherWeekdays(t *testing.T) {
	rec := notifytest.New()
	rec.FailWeekdays[3] = true
	m := notify.NewManager(rec, nil)
	mask := notify.WeekMask{false, true, true, true}

	ids, err := m.Schedule(context.Background(), notify.Plan{Hours: 9, Mask: mask})

	var se *notify.ScheduleError
	if !errors.As(err, &se) {
		t.Fatalf("expected ScheduleError, got %v", err)
	}
	if len(se.Failed) != 1 || se.Failed[0] != 2 {
		t.Fatalf("failed weekdays = %v, want [2]", se.Failed)
	}
	if ids[1] == nil || ids[2] != nil || ids[3] == nil {
		t.Fatalf("unexpected identifiers %v", ids)
	}
	if ids.ConsistentWith(mask) {
		t.Fatalf("a failed weekday cannot be consistent with the requested mask")
	}
	if !ids.ConsistentWith(notify.WeekMask{false, true, false, true}) {
		t.Fatalf("identifiers should match the weekdays that were scheduled")
	}
}

func TestScheduleRejectsInvalidTime(t *testing.T) {
	rec := notifytest.New()
	m := notify.NewManager(rec, nil)

	_, err := m.Schedule(context.Background(), notify.Plan{Hours: 24, Mask: notify.WeekMask{true}})
	if !errors.Is(err, notify.ErrInvalidTime) {
		t.Fatalf("expected ErrInvalidTime, got %v", err)
	}
	if len(rec.Ops()) != 0 {
		t.Fatalf("nothing should be scheduled")
	}
}

func TestScheduleEmptyMaskIsNoop(t *testing.T) {
	rec := notifytest.New()
	m := notify.NewManager(rec, nil)

	ids, err := m.Schedule(context.Background(), notify.Plan{Hours: 9})
	if err != nil || len(ids.Handles()) != 0 || len(rec.Ops()) != 0 {
		t.Fatalf("empty mask scheduled something: %v %v", ids, err)
	}
}

func TestCancelAttemptsEveryHandle(t *testing.T) {
	rec := notifytest.New()
	rec.FailCancel["a"] = true
	m := notify.NewManager(rec, nil)

	err := m.Cancel(context.Background(), notify.Identifiers{strp("a"), nil, strp("b"), nil, nil, nil, strp("c")})
	if err == nil {
		t.Fatalf("expected the failure of handle a to be reported")
	}

	var cancelled []string
	for _, c := range rec.Ops() {
		cancelled = append(cancelled, c.ID)
	}
	if len(cancelled) != 3 || cancelled[0] != "a" || cancelled[1] != "b" || cancelled[2] != "c" {
		t.Fatalf("cancel attempts = %v", cancelled)
	}
}

func TestRescheduleCancelsBeforeScheduling(t *testing.T) {
	rec := notifytest.New()
	m := notify.NewManager(rec, nil)
	ctx := context.Background()

	old, err := m.Schedule(ctx, notify.Plan{Hours: 6, Mask: notify.WeekMask{false, true}})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	before := len(rec.Ops())

	ids, err := m.Reschedule(ctx, old, notify.Plan{Hours: 6, Mask: notify.WeekMask{false, true, false, true}})
	if err != nil {
		t.Fatalf("Reschedule: %v", err)
	}

	ops := rec.Ops()[before:]
	if len(ops) != 3 || ops[0].Op != "cancel" || ops[1].Op != "schedule" || ops[2].Op != "schedule" {
		t.Fatalf("unexpected op order %+v", ops)
	}
	if ops[0].ID != *old[1] {
		t.Fatalf("cancelled %s, want %s", ops[0].ID, *old[1])
	}
	if ids[1] == nil || ids[3] == nil || ids.Contains(*old[1]) {
		t.Fatalf("unexpected new identifiers %v", ids)
	}
	if rec.LiveCount() != 2 {
		t.Fatalf("expected 2 live registrations, got %d", rec.LiveCount())
	}
}

func TestTitleAndBody(t *testing.T) {
	cases := []struct {
		name, mission, detail string
		wantTitle, wantBody   string
	}{
		{name: "blank", mission: "  ", detail: "", wantTitle: locale.T("en", locale.NotificationDefaultTitle), wantBody: locale.T("en", locale.NotificationDefaultBody)},
		{name: "short", mission: "Read", detail: "ten pages", wantTitle: "Read", wantBody: "ten pages"},
		{name: "long", mission: "Read", detail: "abcdefghijklmnopqrstuvwxyz", wantTitle: "Read", wantBody: "abcdefghijklmnopqrst"},
		{name: "multibyte", mission: "読書", detail: "毎日二十ページ以上の本を読むことを目標にする", wantTitle: "読書", wantBody: "毎日二十ページ以上の本を読むことを目標に"},
	}

	for _, tc := range cases {
		if got := notify.Title(tc.mission, "en"); got != tc.wantTitle {
			t.Fatalf("%s: Title = %q, want %q", tc.name, got, tc.wantTitle)
		}
		if got := notify.Body(tc.detail, "en"); got != tc.wantBody {
			t.Fatalf("%s: Body = %q, want %q", tc.name, got, tc.wantBody)
		}
	}
}

func TestIdentifiersFromSlicePads(t *testing.T) {
	ids := notify.IdentifiersFromSlice([]*string{strp("x")})
	if ids[0] == nil || *ids[0] != "x" || ids[6] != nil {
		t.Fatalf("unexpected identifiers %v", ids)
	}
	mask := notify.MaskFromSlice([]bool{true, true, true, true, true, true, true, true})
	if !mask.All() {
		t.Fatalf("oversized mask should truncate to 7 set flags")
	}
}
