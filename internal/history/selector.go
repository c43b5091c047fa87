package history

import "fmt"

type SelectorKind int

const (
	KindCount SelectorKind = iota + 1
	KindCalendarDay
)

// Selector picks which messages a report covers: the n newest, or one UTC
// calendar day relative to today. The zero value is invalid.
type Selector struct {
	kind   SelectorKind
	count  int
	offset int
}

func ByCount(n int) Selector { return Selector{kind: KindCount, count: n} }

// ByCalendarDay selects the UTC day offset days from today (0 today, -1
// yesterday).
func ByCalendarDay(offset int) Selector { return Selector{kind: KindCalendarDay, offset: offset} }

func (s Selector) Kind() SelectorKind { return s.kind }
func (s Selector) Count() int         { return s.count }
func (s Selector) DayOffset() int     { return s.offset }

func (s Selector) String() string {
	switch s.kind {
	case KindCount:
		return fmt.Sprintf("last %d messages", s.count)
	case KindCalendarDay:
		switch s.offset {
		case 0:
			return "today"
		case -1:
			return "yesterday"
		default:
			return fmt.Sprintf("day %+d", s.offset)
		}
	default:
		return "invalid selector"
	}
}
