package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Headers: []string{"Room", "Start", "Thesis"},
		Rows: []map[string]string{
			{"Room": "Room 110/DI", "Start": "2026-10-18 07:15", "Thesis": "Graph coloring, revisited"},
			{"Room": "Room 111/DI", "Start": "2026-10-18 07:50"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)

	expected := "Room,Start,Thesis\n" +
		"Room 110/DI,2026-10-18 07:15,\"Graph coloring, revisited\"\n" +
		"Room 111/DI,2026-10-18 07:50,\n"
	assert.Equal(t, expected, string(out))
}

func TestExportersRequireHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
	_, err = NewPDFExporter().Render(Dataset{}, "plan")
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	exporter := &PDFExporter{Weights: map[string]float64{"Thesis": 3}}
	out, err := exporter.Render(sampleDataset(), "Defense plan")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestPDFColumnWidthsFillPage(t *testing.T) {
	exporter := &PDFExporter{Weights: map[string]float64{"Thesis": 2}}
	widths := exporter.columnWidths([]string{"Room", "Thesis", "Start"})
	require.Len(t, widths, 3)
	assert.InDelta(t, landscapeWidth, widths[0]+widths[1]+widths[2], 0.001)
	assert.InDelta(t, widths[0]*2, widths[1], 0.001)
}
