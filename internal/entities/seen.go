package entities

import (
	"cloud.google.com/go/civil"
	"time"
)

// MaxSeenAgeDays is how long a dispatched id is remembered after its last dispatch.
const MaxSeenAgeDays = 180

// SeenIDs maps an opportunity id to the ISO date it was last dispatched on.
type SeenIDs map[string]string

func (s SeenIDs) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

func (s SeenIDs) Clone() SeenIDs {
	clone := make(SeenIDs, len(s))
	for id, date := range s {
		clone[id] = date
	}
	return clone
}

// Pruned returns the entries whose date is on or after today-maxAgeDays, and the number dropped.
// Entries with an unparseable date are dropped as well.
func (s SeenIDs) Pruned(today civil.Date, maxAgeDays int) (SeenIDs, int) {
	cutoff := today.AddDays(-maxAgeDays)
	kept := make(SeenIDs, len(s))
	for id, raw := range s {
		date, err := civil.ParseDate(raw)
		if err != nil || date.Before(cutoff) {
			continue
		}
		kept[id] = raw
	}
	return kept, len(s) - len(kept)
}

// SeenRecord is the sqlite row for one remembered id.
type SeenRecord struct {
	OpportunityID string `gorm:"primaryKey"`
	SeenOn        string `gorm:"index"`
	UpdatedAt     time.Time
}

func Today(now time.Time) civil.Date {
	return civil.DateOf(now)
}
