package weekgrid

import "github.com/arnold/habitgrid-api/internal/achievement"

// WeeksPerBlock is how many weeks one calendar page shows.
const WeeksPerBlock = 4

// Window pages through history in blocks of WeeksPerBlock weeks. Offset 0 is
// the block ending with the current week; negative offsets go back in time.
type Window struct {
	Offset int `json:"offset"`
}

// Previous has no lower bound.
func (w Window) Previous() Window {
	return Window{Offset: w.Offset - 1}
}

// Next never moves past the block containing today.
func (w Window) Next() Window {
	if w.Offset >= 0 {
		return Window{}
	}
	return Window{Offset: w.Offset + 1}
}

// Clamp pulls positive offsets back to the current block.
func (w Window) Clamp() Window {
	if w.Offset > 0 {
		return Window{}
	}
	return w
}

// Weeks returns the Sunday of every week in the block, oldest first.
func (w Window) Weeks(today achievement.Date) []achievement.Date {
	last := WeekStart(today).AddDays(7 * WeeksPerBlock * w.Clamp().Offset)
	out := make([]achievement.Date, WeeksPerBlock)
	for i := range out {
		out[i] = last.AddDays(-7 * (WeeksPerBlock - 1 - i))
	}
	return out
}

// Period returns the first Sunday and the last Saturday of the block.
func (w Window) Period(today achievement.Date) (from, to achievement.Date) {
	weeks := w.Weeks(today)
	return weeks[0], weeks[len(weeks)-1].AddDays(6)
}

// Project renders every week of the block, oldest first.
func (w Window) Project(l *achievement.Ledger, today achievement.Date) []Week {
	weeks := w.Weeks(today)
	out := make([]Week, len(weeks))
	for i, start := range weeks {
		out[i] = Project(start, l, today)
	}
	return out
}
