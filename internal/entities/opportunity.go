package entities

import (
	"cloud.google.com/go/civil"
)

type Opportunity struct {
	ID           string
	Title        string
	URL          string
	Source       string
	Description  string
	Deadline     *civil.Date
	Amount       string
	Eligibility  string
	Organization string
	Notes        string
}

func (o Opportunity) DeadlineString() string {
	if o.Deadline == nil {
		return ""
	}
	return o.Deadline.String()
}

type ScoredOpportunity struct {
	Opportunity
	Score int
}
