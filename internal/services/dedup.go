package services

import (
	"cloud.google.com/go/civil"
	"github.com/maxaizer/funding-digest/internal/entities"
	"github.com/samber/lo"
)

// FilterNew keeps the opportunities not reported before, preserving order and scores.
func FilterNew(scored []entities.ScoredOpportunity, seen entities.SeenIDs) []entities.ScoredOpportunity {
	return lo.Filter(scored, func(s entities.ScoredOpportunity, _ int) bool {
		return !seen.Contains(s.ID)
	})
}

// MarkSeen returns a copy of seen with every dispatched id stamped with today's date.
func MarkSeen(dispatched []entities.ScoredOpportunity, seen entities.SeenIDs, today civil.Date) entities.SeenIDs {
	updated := seen.Clone()
	for _, s := range dispatched {
		updated[s.ID] = today.String()
	}
	return updated
}
