package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable() Table {
	t := Table{Title: "CS301 marks", Headers: []string{"Roll No", "Name", "Marks"}}
	t.AddRow("21CS001", "Kavya, R", "47")
	t.AddRow("21CS002", "Rahul")
	return t
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" PDF ")
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, f)
	assert.Equal(t, "application/pdf", f.ContentType())

	_, err = ParseFormat("xlsx")
	assert.Error(t, err)
}

func TestCSVRender(t *testing.T) {
	out, err := NewCSVRenderer().Render(sampleTable())
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"Roll No", "Name", "Marks"}, records[0])
	assert.Equal(t, "Kavya, R", records[1][1])
	assert.Equal(t, []string{"21CS002", "Rahul", ""}, records[2])
}

func TestRenderRequiresHeaders(t *testing.T) {
	_, err := NewCSVRenderer().Render(Table{})
	assert.Error(t, err)
	_, err = NewPDFRenderer().Render(Table{})
	assert.Error(t, err)
}

func TestPDFRender(t *testing.T) {
	r, err := For(FormatPDF)
	require.NoError(t, err)
	out, err := r.Render(sampleTable())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}
