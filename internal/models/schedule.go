package models

// SlotCount is the number of fixed feeding slots in a schedule.
const SlotCount = 3

// NeverRan marks a slot that has not fired since the schedule was written.
const NeverRan uint8 = 255

// MaxPortion bounds the portion count of a single slot.
const MaxPortion = 255

// MinRegionSize is the smallest storage region that holds the longest valid
// schedule document plus its NUL terminator.
const MinRegionSize = 167

// ScheduleEntry is one time-of-day feeding slot.
type ScheduleEntry struct {
	Hour       int   `json:"hour"`       // 0-23
	Minute     int   `json:"minute"`     // 0-59
	Portion    int   `json:"portion"`    // dispense cycles to run
	LastDayRan uint8 `json:"lastDayRan"` // weekday 0-6, or NeverRan
}

// Schedule is the full set of slots. It is always replaced as a whole.
type Schedule [SlotCount]ScheduleEntry

// FiredOn reports whether the entry already fired on the given weekday.
func (e ScheduleEntry) FiredOn(weekday int) bool {
	return e.LastDayRan != NeverRan && int(e.LastDayRan) == weekday
}

// ResetFired returns a copy of the schedule with every slot marked as never fired.
func (s Schedule) ResetFired() Schedule {
	for i := range s {
		s[i].LastDayRan = NeverRan
	}
	return s
}
