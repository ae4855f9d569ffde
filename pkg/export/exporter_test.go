package export

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Title:   "Reservations",
		Headers: []string{"Date", "Room", "Status"},
		Rows: [][]string{
			{"2026-01-05", "Lab 1", "claimed"},
			{"2026-01-05", "Lab 1", "open"},
		},
	}
}

func TestCSVExporterRendersHeaderAndRows(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)

	want := "Date,Room,Status\n2026-01-05,Lab 1,claimed\n2026-01-05,Lab 1,open\n"
	assert.Equal(t, want, string(out))
}

func TestCSVExporterRejectsRaggedRows(t *testing.T) {
	data := sampleDataset()
	data.Rows = append(data.Rows, []string{"2026-01-06"})

	_, err := NewCSVExporter().Render(data)
	assert.Error(t, err)
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestJSONExporterRendersHeaderKeyedObjects(t *testing.T) {
	out, err := NewJSONExporter().Render(sampleDataset())
	require.NoError(t, err)

	var records []map[string]string
	require.NoError(t, json.Unmarshal(out, &records))
	require.Len(t, records, 2)
	assert.Equal(t, "claimed", records[0]["Status"])
	assert.Equal(t, "Lab 1", records[1]["Room"])
}

func TestJSONExporterEmptyRowsYieldEmptyArray(t *testing.T) {
	data := sampleDataset()
	data.Rows = nil

	out, err := NewJSONExporter().Render(data)
	require.NoError(t, err)

	var records []map[string]string
	require.NoError(t, json.Unmarshal(out, &records))
	assert.Empty(t, records)
}

func TestPDFExporterProducesDocument(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}
