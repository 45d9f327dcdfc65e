package audit

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// ContentType returns the MIME type and file extension of f
func (f ExportFormat) ContentType() (string, string) {
	switch f {
	case ExportFormatCSV:
		return "text/csv; charset=utf-8", "csv"
	case ExportFormatNDJSON:
		return "application/x-ndjson", "ndjson"
	default:
		return "application/json", "json"
	}
}

// Encode writes events to w in format f
func Encode(w io.Writer, f ExportFormat, events []Event) error {
	switch f {
	case ExportFormatCSV:
		return encodeCSV(w, events)
	case ExportFormatNDJSON:
		return encodeNDJSON(w, events)
	default:
		return encodeJSON(w, events)
	}
}

func encodeJSON(w io.Writer, events []Event) error {
	if events == nil {
		events = []Event{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(events)
}

func encodeNDJSON(w io.Writer, events []Event) error {
	enc := json.NewEncoder(w)
	for i := range events {
		if err := enc.Encode(&events[i]); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}
	return nil
}

var csvHeader = []string{"ID", "CreatedAt", "Type", "ActorID", "ActorName", "Action", "Details"}

func encodeCSV(w io.Writer, events []Event) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, e := range events {
		actorID := ""
		if e.ActorID != nil {
			actorID = *e.ActorID
		}
		row := []string{
			e.ID,
			e.CreatedAt.UTC().Format(time.RFC3339),
			string(e.Type),
			actorID,
			e.ActorName,
			e.Action,
			e.Details,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("CSV writer error: %w", err)
	}
	return nil
}
