package domain

import "time"

// Event is a ticketed event with a fixed supply and sale window.
type Event struct {
	ID          int64
	Name        string
	UnitPrice   Amount
	TotalSupply int64
	TicketsSold int64
	MaxPerBuyer int64
	StartTime   time.Time
	EndTime     time.Time
	Active      bool
}

// InWindow reports whether t falls within [StartTime, EndTime].
func (e Event) InWindow(t time.Time) bool {
	return !t.Before(e.StartTime) && !t.After(e.EndTime)
}

func (e Event) SoldOut() bool {
	return e.TicketsSold >= e.TotalSupply
}
