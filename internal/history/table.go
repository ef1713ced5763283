package history

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

const placeholder = "—"

// Render draws entries as a rounded table. An empty log renders as "".
func Render(entries []Entry) string {
	if len(entries) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "Time", "Verdict", "Brand", "Country", "Confidence", "Image"})

	for i, e := range entries {
		tw.AppendRow(table.Row{
			strconv.Itoa(len(entries) - i),
			e.At.Format("15:04:05"),
			orPlaceholder(e.Title),
			orPlaceholder(e.Brand),
			orPlaceholder(e.Country),
			orPlaceholder(e.Confidence),
			imageSummary(e),
		})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 7, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})

	return tw.Render()
}

func orPlaceholder(s string) string {
	if s == "" {
		return placeholder
	}
	return s
}

func imageSummary(e Entry) string {
	if e.Image == nil {
		return placeholder
	}
	return fmt.Sprintf("%dx%d %.1fkB", e.Image.Width, e.Image.Height, float64(len(e.Image.Data))/1024)
}
