package deps

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// RenderStatusTable renders dependency statuses as a rounded table. Colour is
// only applied to the status column and only when color is true.
func RenderStatusTable(statuses []Status, color bool) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Dependency", "Command", "Status", "Detail"})

	for _, st := range statuses {
		detail := st.Detail
		if detail == "" {
			detail = st.Description
		}
		tw.AppendRow(table.Row{titleCaser.String(st.Name), st.Command, statusLabel(st, color), detail})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 2, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 3, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 4, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

func statusLabel(st Status, color bool) string {
	label := "missing"
	colors := text.Colors{text.FgRed}
	switch {
	case st.Available:
		label = "ok"
		colors = text.Colors{text.FgGreen}
	case st.Optional:
		label = "optional"
		colors = text.Colors{text.FgYellow}
	}
	if !color {
		return label
	}
	return colors.Sprint(label)
}
