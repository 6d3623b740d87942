package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func capture(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	oldOut, oldErr, oldNoColor := Stdout, Stderr, color.NoColor
	var out, errOut bytes.Buffer
	Stdout, Stderr = &out, &errOut
	color.NoColor = true
	t.Cleanup(func() {
		Stdout, Stderr, color.NoColor = oldOut, oldErr, oldNoColor
	})
	return &out, &errOut
}

func TestSuccess(t *testing.T) {
	out, _ := capture(t)
	Success("Created %d items in %s", 5, "journal")

	assert.Contains(t, out.String(), "✓")
	assert.Contains(t, out.String(), "Created 5 items in journal")
}

func TestErrorAndWarnGoToStderr(t *testing.T) {
	out, errOut := capture(t)
	Error("boom: %s", "bad key")
	Warn("careful")

	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "✗ boom: bad key")
	assert.Contains(t, errOut.String(), "⚠ careful")
}

func TestInfo(t *testing.T) {
	out, _ := capture(t)
	Info("plain %s", "text")

	assert.Equal(t, "plain text\n", out.String())
}

func TestJSON(t *testing.T) {
	out, _ := capture(t)
	require.NoError(t, JSON(map[string]any{"amount": json.Number("1500")}))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, float64(1500), decoded["amount"])
	assert.Contains(t, out.String(), "  \"amount\"")
}

func TestYAML_NumbersStayNumeric(t *testing.T) {
	out, _ := capture(t)
	data := map[string]any{
		"amount": json.Number("1500"),
		"rate":   json.Number("0.5"),
		"rows":   []any{map[string]any{"id": json.Number("7")}},
	}
	require.NoError(t, YAML(data))

	assert.Contains(t, out.String(), "amount: 1500\n")
	assert.NotContains(t, out.String(), `"1500"`)

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, 0.5, decoded["rate"])
}

func TestTableRender(t *testing.T) {
	out, _ := capture(t)
	table := NewTable([]string{"Name", "Method"})
	table.AddRow([]string{"GetShop", "GET"})
	table.AddRow([]string{"CreateTransaction", "POST"})
	assert.Equal(t, 2, table.Len())
	table.Render()

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "Name"))
	assert.True(t, strings.HasPrefix(lines[1], strings.Repeat("-", len("CreateTransaction"))))
	assert.Contains(t, lines[3], "CreateTransaction  POST")
}

func TestRender(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{FormatJSON, `"k": "v"`},
		{FormatYAML, "k: v"},
		{FormatTable, "row"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			out, _ := capture(t)
			err := Render(tt.format, map[string]any{"k": "v"}, func() *Table {
				tbl := NewTable([]string{"H"})
				tbl.AddRow([]string{"row"})
				return tbl
			})
			require.NoError(t, err)
			assert.Contains(t, out.String(), tt.want)
		})
	}

	_, _ = capture(t)
	assert.Error(t, Render("xml", nil, nil))
	assert.False(t, ValidFormat("xml"))
	assert.True(t, ValidFormat(FormatYAML))
}
