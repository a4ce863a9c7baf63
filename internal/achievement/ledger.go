package achievement

import "sort"

// Ledger holds the sparse per-day records of one habit, at most one record
// per date, kept in ascending date order.
type Ledger struct {
	records []Record
}

func New() *Ledger {
	return &Ledger{}
}

// FromRecords loads persisted records tolerantly. The first record seen for
// a date wins, impossible dates are dropped and DayOfWeek is recomputed.
func FromRecords(in []Record) *Ledger {
	l := &Ledger{records: make([]Record, 0, len(in))}
	seen := make(map[Date]bool, len(in))
	for _, r := range in {
		d := r.Date()
		if !d.Valid() || seen[d] {
			continue
		}
		seen[d] = true
		l.records = append(l.records, NewRecord(d, r.Achievement))
	}
	l.sort()
	return l
}

func (l *Ledger) Len() int {
	if l == nil {
		return 0
	}
	return len(l.records)
}

// Records returns a copy in ascending date order.
func (l *Ledger) Records() []Record {
	if l == nil {
		return []Record{}
	}
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

func (l *Ledger) Clone() *Ledger {
	return &Ledger{records: l.Records()}
}

func (l *Ledger) StateAt(d Date) State {
	if i := l.index(d); i >= 0 {
		return l.records[i].State()
	}
	return NoRecord
}

// Cycle advances the state of d one step and returns the new state. Dates
// after today are left untouched and their current state is returned.
func (l *Ledger) Cycle(d Date, today Date) State {
	if d.After(today) || !d.Valid() {
		return l.StateAt(d)
	}

	i := l.index(d)
	if i < 0 {
		l.records = append(l.records, NewRecord(d, true))
		l.sort()
		return Achieved
	}

	if l.records[i].Achievement {
		l.records[i].Achievement = false
		return NotAchieved
	}

	l.records = append(l.records[:i], l.records[i+1:]...)
	return NoRecord
}

// ChangeSet is what has to be written to bring the remote copy in line.
// The store replaces the whole array, so Records is always the full local
// content.
type ChangeSet struct {
	Records []Record
	Changed bool
}

func (l *Ledger) Diff(remote *Ledger) ChangeSet {
	return ChangeSet{
		Records: l.Records(),
		Changed: !Equal(l, remote),
	}
}

// Equal compares two ledgers date by date, ignoring DayOfWeek.
func Equal(a, b *Ledger) bool {
	ra, rb := a.Records(), b.Records()
	if len(ra) != len(rb) {
		return false
	}
	sortRecords(ra)
	sortRecords(rb)
	for i := range ra {
		if ra[i].Date() != rb[i].Date() || ra[i].Achievement != rb[i].Achievement {
			return false
		}
	}
	return true
}

func (l *Ledger) index(d Date) int {
	if l == nil {
		return -1
	}
	for i, r := range l.records {
		if r.Year == d.Year && r.Month == d.Month && r.Day == d.Day {
			return i
		}
	}
	return -1
}

func (l *Ledger) sort() {
	sortRecords(l.records)
}

func sortRecords(rs []Record) {
	sort.SliceStable(rs, func(i, j int) bool {
		return rs[i].Date().Before(rs[j].Date())
	})
}
