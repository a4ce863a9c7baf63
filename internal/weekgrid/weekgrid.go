package weekgrid

import "github.com/arnold/habitgrid-api/internal/achievement"

// Slot is one rendered day of the weekly grid.
type Slot struct {
	Year      int               `json:"year"`
	Month     int               `json:"month"`
	Day       int               `json:"day"`
	DayOfWeek int               `json:"dayOfWeek"`
	State     achievement.State `json:"state"`
	IsToday   bool              `json:"isToday"`
	IsFuture  bool              `json:"isFuture"`
}

func (s Slot) Date() achievement.Date {
	return achievement.Date{Year: s.Year, Month: s.Month, Day: s.Day}
}

// Week is always Sunday through Saturday.
type Week [7]Slot

// WeekStart returns the Sunday on or before ref.
func WeekStart(ref achievement.Date) achievement.Date {
	return ref.AddDays(-ref.Weekday())
}

// Project maps the seven days starting at weekStart onto their ledger states.
// A weekStart that is not a Sunday is snapped back to one.
func Project(weekStart achievement.Date, l *achievement.Ledger, today achievement.Date) Week {
	var w Week
	start := WeekStart(weekStart)
	for i := range w {
		d := start.AddDays(i)
		w[i] = Slot{
			Year:      d.Year,
			Month:     d.Month,
			Day:       d.Day,
			DayOfWeek: i,
			State:     l.StateAt(d),
			IsToday:   d == today,
			IsFuture:  d.After(today),
		}
	}
	return w
}

// Current projects the week containing today.
func Current(l *achievement.Ledger, today achievement.Date) Week {
	return Project(WeekStart(today), l, today)
}
