package achievement

// Record is one logged day as it is persisted inside a habit document.
// Absence of a record for a day means nothing was logged.
type Record struct {
	Year        int  `firestore:"year" json:"year"`
	Month       int  `firestore:"month" json:"month"`
	Day         int  `firestore:"day" json:"day"`
	DayOfWeek   int  `firestore:"dayOfWeek" json:"dayOfWeek"`
	Achievement bool `firestore:"achievement" json:"achievement"`
}

// NewRecord derives DayOfWeek from the date.
func NewRecord(d Date, achieved bool) Record {
	return Record{
		Year:        d.Year,
		Month:       d.Month,
		Day:         d.Day,
		DayOfWeek:   d.Weekday(),
		Achievement: achieved,
	}
}

func (r Record) Date() Date {
	return Date{Year: r.Year, Month: r.Month, Day: r.Day}
}

func (r Record) State() State {
	if r.Achievement {
		return Achieved
	}
	return NotAchieved
}

// Map is the document form used for store writes.
func (r Record) Map() map[string]interface{} {
	return map[string]interface{}{
		"year":        r.Year,
		"month":       r.Month,
		"day":         r.Day,
		"dayOfWeek":   r.DayOfWeek,
		"achievement": r.Achievement,
	}
}

// Maps converts records for a whole-array write.
func Maps(records []Record) []interface{} {
	out := make([]interface{}, 0, len(records))
	for _, r := range records {
		out = append(out, r.Map())
	}
	return out
}
