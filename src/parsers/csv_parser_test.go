package parsers

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTrimsHeaderAndKeepsCells(t *testing.T) {
	input := " FechaVta ;Unidades; VtaFacturada\n01/02/2024;2;1.234,56\n15/02/2024;;\n"

	p := NewCSVParser()
	table, err := p.Parse(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"FechaVta", "Unidades", "VtaFacturada"}, table.Columns)
	require.Len(t, table.Rows, 2)
	// Cells stay untouched strings; normalization happens later.
	assert.Equal(t, "1.234,56", table.Rows[0][2])
	assert.Equal(t, "", table.Rows[1][1])
}

func TestParsePadsShortRows(t *testing.T) {
	input := "A;B;C\n1;2\n"

	p := NewCSVParser()
	table, err := p.Parse(strings.NewReader(input))
	require.NoError(t, err)

	require.Len(t, table.Rows, 1)
	assert.Equal(t, []string{"1", "2", ""}, table.Rows[0])
}

func TestParseEmptyInputIsFatal(t *testing.T) {
	p := NewCSVParser()
	_, err := p.Parse(strings.NewReader(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "header")
}

func TestParseFileMissingIsFatal(t *testing.T) {
	p := NewCSVParser()
	_, err := p.ParseFile("does/not/exist.csv")
	require.Error(t, err)
}

func TestWriteRoundTrip(t *testing.T) {
	input := "FechaVta;NombreComercial;VtaFacturada\n01/02/2024;Farmacia Central;1.234,56\n02/02/2024;Botica del Sur;99,50\n"

	p := NewCSVParser()
	table, err := p.Parse(strings.NewReader(input))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, p.Write(&buf, table.Columns, table.Rows))

	reparsed, err := p.Parse(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, table.Columns, reparsed.Columns)
	assert.Equal(t, table.Rows, reparsed.Rows)
}
