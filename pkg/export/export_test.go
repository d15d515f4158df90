package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Headers: []string{"Time", "Monday", "Tuesday"},
		Rows: []map[string]string{
			{"Time": "08:00 - 08:30", "Monday": "Mathematics\nS1\nR101\nEmp:E1"},
			{"Time": "08:30 - 09:00", "Tuesday": "Physics, lab"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)
	text := string(out)
	assert.Contains(t, text, "Time,Monday,Tuesday\n")
	assert.Contains(t, text, "\"Mathematics\nS1\nR101\nEmp:E1\"")
	assert.Contains(t, text, "08:30 - 09:00,,\"Physics, lab\"")

	_, err = NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestCSVExporterOptions(t *testing.T) {
	out, err := NewCSVExporter(WithBOM(true)).Render(Dataset{
		Headers: []string{"Course ID", "Day"},
		Rows:    []map[string]string{{"Course ID": "101", "Day": "Monday"}},
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, utf8BOM))
	assert.Equal(t, "Course ID,Day\n101,Monday\n", string(out[len(utf8BOM):]))

	out, err = NewCSVExporter(WithBOM(false)).Render(Dataset{Headers: []string{"Time"}})
	require.NoError(t, err)
	assert.Equal(t, "Time\n", string(out))
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset(), "Section S1")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	wide := Dataset{Headers: []string{"a", "b", "c", "d", "e", "f", "g", "h"}}
	for i := 0; i < 80; i++ {
		wide.Rows = append(wide.Rows, map[string]string{"a": "x", "h": "line one\nline two"})
	}
	out, err = NewPDFExporter().Render(wide, "")
	require.NoError(t, err)
	assert.NotEmpty(t, out)

	_, err = NewPDFExporter().Render(Dataset{}, "empty")
	assert.Error(t, err)
}
