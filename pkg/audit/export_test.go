package audit

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exportFixture() []Event {
	return []Event{
		{ID: "e-2", ActorID: strPtr("u-1"), ActorName: "Ana", Action: "Exportação de data", Details: "CSV, com vírgula", Type: TypeExport, CreatedAt: baseTime},
		{ID: "e-1", ActorName: "visitor@example.com", Action: "Falha de login", Type: TypeLogin, CreatedAt: baseTime},
	}
}

func TestExportFormat_ContentType(t *testing.T) {
	tests := []struct {
		format ExportFormat
		mime   string
		ext    string
	}{
		{ExportFormatJSON, "application/json", "json"},
		{ExportFormatCSV, "text/csv; charset=utf-8", "csv"},
		{ExportFormatNDJSON, "application/x-ndjson", "ndjson"},
	}
	for _, tt := range tests {
		mime, ext := tt.format.ContentType()
		assert.Equal(t, tt.mime, mime)
		assert.Equal(t, tt.ext, ext)
	}
}

func TestEncode_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, ExportFormatJSON, exportFixture()))

	var got []Event
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Len(t, got, 2)
	assert.Equal(t, "e-2", got[0].ID)

	buf.Reset()
	require.NoError(t, Encode(&buf, ExportFormatJSON, nil))
	assert.JSONEq(t, `[]`, buf.String())
}

func TestEncode_NDJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, ExportFormatNDJSON, exportFixture()))

	scanner := bufio.NewScanner(&buf)
	var lines int
	for scanner.Scan() {
		var e Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		lines++
	}
	assert.Equal(t, 2, lines)
}

func TestEncode_CSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, ExportFormatCSV, exportFixture()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, []string{"e-2", "2024-06-10T12:00:00Z", "export", "u-1", "Ana", "Exportação de data", "CSV, com vírgula"}, rows[1])
	assert.Equal(t, "", rows[2][3], "null actor is empty")
}
