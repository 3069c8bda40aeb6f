package services

import (
	"github.com/maxaizer/funding-digest/internal/config"
	"github.com/maxaizer/funding-digest/internal/entities"
	"slices"
	"strings"
)

const (
	maxScore          = 100
	keywordTitleHit   = 15
	keywordTextHit    = 5
	disciplineInTitle = 10
	disciplineInText  = 3
)

// Score rates an opportunity against the profile on a 0..100 scale.
// Keyword hits are counted in the title and again in the combined text, so a title hit weighs 20.
func Score(opportunity entities.Opportunity, profile config.ProfileConfig) int {
	title := strings.ToLower(opportunity.Title)
	combined := title + " " + strings.ToLower(opportunity.Description) + " " + strings.ToLower(opportunity.Eligibility)

	score := 0
	for _, keyword := range profile.Keywords {
		keyword = strings.ToLower(keyword)
		if keyword == "" {
			continue
		}
		score += strings.Count(title, keyword) * keywordTitleHit
		score += strings.Count(combined, keyword) * keywordTextHit
	}

	for _, discipline := range profile.Disciplines {
		discipline = strings.ToLower(discipline)
		if discipline == "" {
			continue
		}
		if strings.Contains(title, discipline) {
			score += disciplineInTitle
		}
		if strings.Contains(combined, discipline) {
			score += disciplineInText
		}
	}

	return min(score, maxScore)
}

// ScoreAndFilter keeps opportunities scoring at least the profile threshold, best first.
// Equal scores keep their input order.
func ScoreAndFilter(opportunities []entities.Opportunity, profile config.ProfileConfig) []entities.ScoredOpportunity {
	scored := make([]entities.ScoredOpportunity, 0, len(opportunities))
	for _, opportunity := range opportunities {
		score := Score(opportunity, profile)
		if score >= profile.ScoreThreshold {
			scored = append(scored, entities.ScoredOpportunity{Opportunity: opportunity, Score: score})
		}
	}

	slices.SortStableFunc(scored, func(a, b entities.ScoredOpportunity) int {
		return b.Score - a.Score
	})
	return scored
}
