package events

import "time"

var SourceFetchedTopic = "SourceFetchedEvent"

var RunFinishedTopic = "RunFinishedEvent"

// SourceFetched is published once per source and run. Skipped marks a source whose optional input is absent.
type SourceFetched struct {
	Source   string
	Count    int
	Err      error
	Skipped  bool
	Duration time.Duration
}

type RunFinished struct {
	RunID      string
	Fetched    int
	Scored     int
	Unseen     int
	Dispatched int
	Outcome    string
	Duration   time.Duration
}
