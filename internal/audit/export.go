package audit

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"time"
)

// Exporter writes audit timeline exports.
type Exporter struct{}

// NewExporter constructs an Exporter.
func NewExporter() *Exporter {
	return &Exporter{}
}

// WriteCSV encodes rows with a header line. Details are written as JSON.
func (e *Exporter) WriteCSV(rows []TimelineRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"occurred_at", "action", "module", "sub_module", "actor_id", "actor", "details"}); err != nil {
		return nil, err
	}
	for _, row := range rows {
		details := ""
		if len(row.Details) > 0 {
			raw, err := json.Marshal(row.Details)
			if err != nil {
				return nil, err
			}
			details = string(raw)
		}
		record := []string{
			row.At.UTC().Format(time.RFC3339),
			row.Action,
			row.Module,
			row.SubModule,
			row.ActorID,
			row.Actor,
			details,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
