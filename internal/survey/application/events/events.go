package events

import "time"

// DatasetLoaded is published after a tabular upload is parsed into a session.
type DatasetLoaded struct {
	DatasetID  string
	SourceName string
	Points     int
	Routes     int
	OccurredAt time.Time
}

// StateChanged is published after every successful mutating command; view
// adapters treat it as their redraw trigger.
type StateChanged struct {
	DatasetID  string
	Command    string
	Revision   int
	OccurredAt time.Time
}

// ExportBuilt is published after an export payload is produced.
type ExportBuilt struct {
	DatasetID  string
	Format     string
	Bytes      int
	OccurredAt time.Time
}
