package render

import "strings"

// EmptyTable is returned by Table when there are no rows
const EmptyTable = "> no data\n"

// Table renders rows as a markdown table. Pipes and newlines inside cells are escaped.
func Table(headers []string, rows [][]string) string {
	if len(rows) == 0 {
		return EmptyTable
	}

	var sb strings.Builder
	writeRow(&sb, headers)

	sb.WriteString("|")
	for range headers {
		sb.WriteString("---|")
	}
	sb.WriteString("\n")

	for _, row := range rows {
		cells := make([]string, len(headers))
		copy(cells, row)
		writeRow(&sb, cells)
	}

	return sb.String()
}

func writeRow(sb *strings.Builder, cells []string) {
	sb.WriteString("|")
	for _, cell := range cells {
		cell = strings.ReplaceAll(cell, "|", `\|`)
		cell = strings.ReplaceAll(cell, "\n", " ")
		sb.WriteString(" " + cell + " |")
	}
	sb.WriteString("\n")
}
