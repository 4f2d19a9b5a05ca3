package export

import (
	"encoding/json"
	"fmt"
	"time"

	"pcm-survey/internal/survey/application"
	survey "pcm-survey/internal/survey/domain"
)

type jsonSummary struct {
	Source       string         `json:"source"`
	Loaded       time.Time      `json:"loaded"`
	Routes       []string       `json:"routes"`
	Points       int            `json:"points"`
	RemovedCount int            `json:"removedCount"`
	Groups       []survey.Group `json:"groups"`
}

type jsonMultiRoute struct {
	Summary jsonSummary                 `json:"summary"`
	RIDData map[string][]map[string]any `json:"ridData"`
	AllData []map[string]any            `json:"allData"`
}

// BuildJSON renders the flattened rows. A single-route dataset serializes as
// a flat row array; multiple routes get a summary plus per-route and
// combined views.
func BuildJSON(snap *application.Snapshot) ([]byte, error) {
	tables := BuildTables(snap)
	if len(tables) == 0 {
		return nil, fmt.Errorf("export: snapshot has no routes")
	}

	if len(tables) == 1 {
		return json.MarshalIndent(tables[0].Rows, "", "  ")
	}

	doc := jsonMultiRoute{
		Summary: jsonSummary{
			Source:       snap.SourceName,
			Loaded:       snap.CreatedAt,
			Routes:       snap.Routes,
			Points:       len(snap.Points),
			RemovedCount: snap.RemovedCount,
			Groups:       snap.Groups,
		},
		RIDData: make(map[string][]map[string]any, len(tables)),
	}
	for _, table := range tables {
		doc.RIDData[table.RouteID] = table.Rows
		doc.AllData = append(doc.AllData, table.Rows...)
	}
	return json.MarshalIndent(doc, "", "  ")
}
