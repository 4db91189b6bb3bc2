package output

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// FormatHeader returns a markdown header.
func FormatHeader(level int, text string) string {
	if level < 1 {
		level = 1
	}
	return strings.Repeat("#", level) + " " + text
}

// FormatKeyValue returns a markdown list item "- **key:** value".
func FormatKeyValue(key, value string) string {
	return fmt.Sprintf("- **%s:** %s", key, value)
}

// FormatList returns items as a markdown bullet list, or "_none_".
func FormatList(items []string) string {
	if len(items) == 0 {
		return "_none_"
	}
	var sb strings.Builder
	for i, item := range items {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("- ")
		sb.WriteString(item)
	}
	return sb.String()
}

// Table writes rows under header: a box table in text mode and a markdown
// table otherwise.
func (r *Renderer) Table(header []string, rows [][]string) {
	if len(rows) == 0 {
		r.Muted("(0 rows)")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.out)

	headerRow := make(table.Row, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	t.AppendHeader(headerRow)
	for _, row := range rows {
		tr := make(table.Row, len(row))
		for i, cell := range row {
			tr[i] = cell
		}
		t.AppendRow(tr)
	}

	if r.EffectiveMode() == ModeText {
		t.SetStyle(table.StyleLight)
		t.Render()
		return
	}
	t.RenderMarkdown()
}
